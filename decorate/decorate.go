// Package decorate derives the hidden-code decoration style from the
// current mode and applies decorated ranges to editor views.
package decorate

import (
	"sort"

	"github.com/odvcencio/shade/directive"
	"github.com/odvcencio/shade/document"
	"github.com/odvcencio/shade/host"
	"github.com/odvcencio/shade/region"
	"github.com/odvcencio/shade/visibility"
)

// Synchronizer keeps exactly one live decoration style and sets the
// hidden-range list on eligible views. The style is recreated, and the old
// one disposed, only when the derived opacity changes; reusing it otherwise
// avoids redraw flicker.
type Synchronizer struct {
	ed       host.Editor
	docs     *document.Store
	cache    *region.Cache
	settings host.Settings
	mode     func() visibility.Mode

	style     host.StyleID
	haveStyle bool
	opacity   float64
}

// NewSynchronizer wires a synchronizer to its collaborators. mode reports
// the current visibility mode on each call.
func NewSynchronizer(ed host.Editor, docs *document.Store, cache *region.Cache, settings host.Settings, mode func() visibility.Mode) *Synchronizer {
	return &Synchronizer{ed: ed, docs: docs, cache: cache, settings: settings, mode: mode}
}

// Style returns the live style for the current mode, creating or replacing
// it when the derived opacity changed since the last call.
func (s *Synchronizer) Style() (host.StyleID, error) {
	opacity := s.settings.Opacity()
	if s.mode() == visibility.Visible {
		opacity = s.settings.ServiceOpacity()
	}
	if s.haveStyle && s.opacity == opacity {
		return s.style, nil
	}
	if s.haveStyle {
		_ = s.ed.DisposeStyle(s.style)
		s.haveStyle = false
	}
	id, err := s.ed.CreateStyle(opacity)
	if err != nil {
		return 0, err
	}
	s.style = id
	s.haveStyle = true
	s.opacity = opacity
	return id, nil
}

// Eligible reports whether decoration and fold actions apply to the view:
// its document must be file-backed and its language one of the supported
// source languages.
func (s *Synchronizer) Eligible(v host.View) bool {
	if !v.FileBacked {
		return false
	}
	for _, lang := range s.settings.Languages() {
		if v.Language == lang {
			return true
		}
	}
	return false
}

// Ranges computes the decorated range list for the view's document:
// inactive regions, plus directive lines when the mode decorates them or
// the directives-in-visible policy is on.
func (s *Synchronizer) Ranges(v host.View) []region.Region {
	key := v.Key()
	cached := s.cache.Get(key)
	ranges := make([]region.Region, 0, len(cached))
	ranges = append(ranges, cached...)

	if s.mode().DecoratesDirectives() || s.settings.DimDirectivesWhenVisible() {
		if doc, ok := s.docs.Get(key); ok {
			scanned := directive.Scan(doc.Text())
			lines := make([]int, 0, len(scanned))
			for line := range scanned {
				lines = append(lines, line)
			}
			sort.Ints(lines)
			for _, line := range lines {
				ranges = append(ranges, region.Line(line))
			}
		}
	}
	return ranges
}

// ApplyTo sets the decorated range list on the view, replacing any previous
// set for the live style. Ineligible views are a no-op.
func (s *Synchronizer) ApplyTo(v host.View) error {
	if !s.Eligible(v) {
		return nil
	}
	style, err := s.Style()
	if err != nil {
		return err
	}
	return s.ed.SetHiddenRanges(v, style, s.Ranges(v))
}

// RefreshAll applies the current style to the active view first, then to
// every other visible view. Individual view failures do not stop the pass;
// the first error is returned.
func (s *Synchronizer) RefreshAll() error {
	var firstErr error
	active, hasActive := s.ed.ActiveView()
	if hasActive {
		firstErr = s.ApplyTo(active)
	}
	for _, v := range s.ed.VisibleViews() {
		if hasActive && v.ID == active.ID {
			continue
		}
		if err := s.ApplyTo(v); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Dispose invalidates the live style. Called at shutdown and idempotent.
func (s *Synchronizer) Dispose() {
	if s.haveStyle {
		_ = s.ed.DisposeStyle(s.style)
		s.haveStyle = false
	}
}
