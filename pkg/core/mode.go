// pkg/core/mode.go
package core

import "fmt"

// AlignmentMode selects how a remote peer's coordinate frame is mapped
// into the local one. Exactly one mode is active at a time; switching
// takes effect on the next tick, already-applied poses are not recomputed.
type AlignmentMode int

const (
	// AutoAlign derives per-peer offsets from exchanged reference poses.
	AutoAlign AlignmentMode = iota
	// ManualAlign uses user-tuned offsets instead of negotiated ones.
	ManualAlign
	// MarkerBased derives offsets from the centroids of at least three
	// physical calibration markers seen by both peers.
	MarkerBased
	// SharedOrigin assumes all peers share one physical origin; the
	// transform is identity and no negotiation is required.
	SharedOrigin
)

func (m AlignmentMode) String() string {
	switch m {
	case AutoAlign:
		return "auto"
	case ManualAlign:
		return "manual"
	case MarkerBased:
		return "marker"
	case SharedOrigin:
		return "shared"
	default:
		return fmt.Sprintf("AlignmentMode(%d)", int(m))
	}
}

// ParseAlignmentMode converts a config string into an AlignmentMode.
func ParseAlignmentMode(s string) (AlignmentMode, error) {
	switch s {
	case "auto":
		return AutoAlign, nil
	case "manual":
		return ManualAlign, nil
	case "marker":
		return MarkerBased, nil
	case "shared":
		return SharedOrigin, nil
	default:
		return AutoAlign, fmt.Errorf("unknown alignment mode: %q", s)
	}
}
