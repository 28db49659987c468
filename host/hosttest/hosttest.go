// Package hosttest provides in-memory host fakes for tests.
package hosttest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/odvcencio/shade/host"
	"github.com/odvcencio/shade/region"
)

// Command records one editor mutation issued by the core.
type Command struct {
	Op     string // "decorate", "fold", "unfold", "createStyle", "disposeStyle"
	ViewID string
	Style  host.StyleID
	Ranges []region.Region
	Lines  []int
}

// Editor is a recording fake of host.Editor.
type Editor struct {
	mu       sync.Mutex
	active   string
	views    []host.View
	nextID   host.StyleID
	styles   map[host.StyleID]float64
	Commands []Command
	FailFold bool // simulate a view closing under a fold command
}

// NewEditor creates an editor fake with no views.
func NewEditor() *Editor {
	return &Editor{styles: make(map[host.StyleID]float64)}
}

// AddView makes a view visible.
func (e *Editor) AddView(v host.View) {
	e.mu.Lock()
	e.views = append(e.views, v)
	e.mu.Unlock()
}

// SetActive marks the view with id as active.
func (e *Editor) SetActive(id string) {
	e.mu.Lock()
	e.active = id
	e.mu.Unlock()
}

func (e *Editor) ActiveView() (host.View, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, v := range e.views {
		if v.ID == e.active {
			return v, true
		}
	}
	return host.View{}, false
}

func (e *Editor) VisibleViews() []host.View {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]host.View, len(e.views))
	copy(out, e.views)
	return out
}

func (e *Editor) CreateStyle(opacity float64) (host.StyleID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	e.styles[e.nextID] = opacity
	e.Commands = append(e.Commands, Command{Op: "createStyle", Style: e.nextID})
	return e.nextID, nil
}

func (e *Editor) DisposeStyle(id host.StyleID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.styles[id]; !ok {
		return fmt.Errorf("unknown style %d", id)
	}
	delete(e.styles, id)
	e.Commands = append(e.Commands, Command{Op: "disposeStyle", Style: id})
	return nil
}

func (e *Editor) SetHiddenRanges(v host.View, style host.StyleID, ranges []region.Region) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.styles[style]; !ok {
		return fmt.Errorf("unknown style %d", style)
	}
	cp := make([]region.Region, len(ranges))
	copy(cp, ranges)
	e.Commands = append(e.Commands, Command{Op: "decorate", ViewID: v.ID, Style: style, Ranges: cp})
	return nil
}

func (e *Editor) Fold(v host.View, startLines []int) error {
	if e.FailFold {
		return fmt.Errorf("view %s is gone", v.ID)
	}
	e.record("fold", v, startLines)
	return nil
}

func (e *Editor) Unfold(v host.View, startLines []int) error {
	e.record("unfold", v, startLines)
	return nil
}

func (e *Editor) record(op string, v host.View, lines []int) {
	cp := make([]int, len(lines))
	copy(cp, lines)
	sort.Ints(cp)
	e.mu.Lock()
	e.Commands = append(e.Commands, Command{Op: op, ViewID: v.ID, Lines: cp})
	e.mu.Unlock()
}

// StyleOpacity returns the opacity a live style was created with.
func (e *Editor) StyleOpacity(id host.StyleID) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	op, ok := e.styles[id]
	return op, ok
}

// LiveStyles returns the number of undisposed styles.
func (e *Editor) LiveStyles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.styles)
}

// Ops returns the recorded operation names in order, filtered to the given
// ops (all when none given).
func (e *Editor) Ops(filter ...string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, c := range e.Commands {
		if len(filter) == 0 {
			out = append(out, c.Op)
			continue
		}
		for _, f := range filter {
			if c.Op == f {
				out = append(out, c.Op)
			}
		}
	}
	return out
}

// Settings is a fixed-value fake of host.Settings.
type Settings struct {
	OpacityValue        float64
	ServiceOpacityValue float64
	DefaultModeValue    string
	DimWhenVisible      bool
	LanguagesValue      []string
}

// NewSettings returns settings with the defaults tests expect: opacity
// 0.4, service opacity 0.55, default mode visible, languages c and cpp.
func NewSettings() *Settings {
	return &Settings{
		OpacityValue:        0.4,
		ServiceOpacityValue: 0.55,
		DefaultModeValue:    "visible",
		LanguagesValue:      []string{"c", "cpp"},
	}
}

func (s *Settings) Opacity() float64               { return s.OpacityValue }
func (s *Settings) ServiceOpacity() float64        { return s.ServiceOpacityValue }
func (s *Settings) DefaultMode() string            { return s.DefaultModeValue }
func (s *Settings) DimDirectivesWhenVisible() bool { return s.DimWhenVisible }
func (s *Settings) Languages() []string            { return s.LanguagesValue }

// StateStore is an in-memory host.StateStore.
type StateStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{values: make(map[string]string)}
}

func (s *StateStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *StateStore) Set(key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}
