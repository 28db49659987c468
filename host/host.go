// Package host declares the editor-side surfaces the core consumes. The
// real implementations live behind the RPC channel to the editor frontend;
// tests substitute in-memory fakes.
package host

import "github.com/odvcencio/shade/region"

// StyleID identifies a decoration style object owned by the host editor.
// Styles are created with one opacity and disposed when replaced.
type StyleID uint64

// View is one editor view bound to a document. Several views may show the
// same document; decoration and fold actions are issued per view.
type View struct {
	ID         string
	Path       string
	Language   string
	FileBacked bool
}

// Key returns the document key for the view's document.
func (v View) Key() region.DocumentKey {
	return region.KeyFor(v.Path)
}

// Editor is the command surface the core drives. Every call is best-effort:
// a view that closed between scheduling and execution yields an error that
// callers treat as a no-op.
type Editor interface {
	// ActiveView returns the focused view, if any.
	ActiveView() (View, bool)
	// VisibleViews returns all currently visible views.
	VisibleViews() []View
	// CreateStyle creates a hidden-code decoration style with the given
	// opacity.
	CreateStyle(opacity float64) (StyleID, error)
	// DisposeStyle invalidates a style and removes its decorations.
	DisposeStyle(id StyleID) error
	// SetHiddenRanges replaces the decorated range list for the view and
	// style.
	SetHiddenRanges(v View, style StyleID, ranges []region.Region) error
	// Fold collapses one level at each of the given start lines.
	Fold(v View, startLines []int) error
	// Unfold expands one level at each of the given start lines.
	Unfold(v View, startLines []int) error
}

// StateStore is the per-workspace key/value persistence the host offers.
type StateStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Settings are the configuration values the core reads on demand.
type Settings interface {
	// Opacity is the locally configured dimming opacity in [0,1], used in
	// the Hidden and HiddenFolded modes.
	Opacity() float64
	// ServiceOpacity mirrors the analysis service's own dimming opacity,
	// used while the mode is Visible.
	ServiceOpacity() float64
	// DefaultMode names the mode used when no persisted state exists.
	DefaultMode() string
	// DimDirectivesWhenVisible extends the decorated set with directive
	// lines even in Visible mode.
	DimDirectivesWhenVisible() bool
	// Languages lists the language identifiers the core acts on.
	Languages() []string
}
