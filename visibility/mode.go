// Package visibility defines the three-state visibility mode applied to
// inactive code regions.
package visibility

// Mode is the current visibility policy, applied uniformly to all
// documents. The cycle is Visible → Hidden → HiddenFolded → Visible.
type Mode int

const (
	// Visible leaves inactive regions readable; only the analysis
	// service's own dimming applies.
	Visible Mode = iota
	// Hidden dims inactive regions and directive lines with the locally
	// configured opacity.
	Hidden
	// HiddenFolded additionally collapses the hidden line runs.
	HiddenFolded
)

// Next returns the mode that follows m in cycle order.
func (m Mode) Next() Mode {
	switch m {
	case Visible:
		return Hidden
	case Hidden:
		return HiddenFolded
	default:
		return Visible
	}
}

// DecoratesDirectives reports whether directive lines join the decorated
// set in this mode.
func (m Mode) DecoratesDirectives() bool {
	return m != Visible
}

// Folds reports whether hidden line runs are auto-collapsed in this mode.
func (m Mode) Folds() bool {
	return m == HiddenFolded
}

func (m Mode) String() string {
	switch m {
	case Visible:
		return "visible"
	case Hidden:
		return "hidden"
	case HiddenFolded:
		return "hidden-folded"
	default:
		return "visible"
	}
}

// Parse maps a persisted or configured mode name to a Mode. Unknown names
// fall back to Visible.
func Parse(s string) Mode {
	switch s {
	case "hidden":
		return Hidden
	case "hidden-folded", "hiddenfolded", "folded":
		return HiddenFolded
	default:
		return Visible
	}
}
