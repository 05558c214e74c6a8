package sensor

import (
	"errors"
	"fmt"
	"math"
)

// Channel roles decide which domain bound applies during validation.
// Coordinate channels carry head-relative landmark positions; scalar
// channels carry normalized gaze and pupil values.
type ChannelRole int

const (
	RoleCoordinate ChannelRole = iota
	RoleScalar
)

// Domain bounds. A landmark coordinate beyond CoordinateBound meters of
// the head origin is sensor garbage, not a face. Scalars are nominally
// normalized to [0,1]; ScalarRejectBound is the hard outer limit past
// which a value is rejected rather than clamped. Upstream trackers ran
// scalars through a looser +-10 gate before this one; since anything
// the wide gate rejects the +-2 gate rejects too, the two reject layers
// collapse into ScalarRejectBound here and only the clamp survives as a
// separate step.
const (
	CoordinateBound   float32 = 10
	ScalarRejectBound float32 = 2
)

var (
	ErrNonFinite   = errors.New("sensor: non-finite channel value")
	ErrOutOfDomain = errors.New("sensor: channel value out of domain")
)

// ValidateChannel checks a single channel value against its role.
// Returns the value unchanged on success. The caller drops the whole
// sample group on error; validation never repairs coordinate data.
func ValidateChannel(v float32, role ChannelRole) error {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return fmt.Errorf("%w: %v", ErrNonFinite, v)
	}
	switch role {
	case RoleCoordinate:
		if v < -CoordinateBound || v > CoordinateBound {
			return fmt.Errorf("%w: coordinate %v outside ±%v", ErrOutOfDomain, v, CoordinateBound)
		}
	case RoleScalar:
		if v < -ScalarRejectBound || v > ScalarRejectBound {
			return fmt.Errorf("%w: scalar %v outside ±%v", ErrOutOfDomain, v, ScalarRejectBound)
		}
	}
	return nil
}

// ValidateVector validates every channel of a raw vector under a single
// role. The first failing channel aborts with its index in the error.
func ValidateVector(raw []float32, role ChannelRole) error {
	for i, v := range raw {
		if err := ValidateChannel(v, role); err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
	}
	return nil
}

// ClampScalar is the second defense layer for gaze and pupil values
// that passed ValidateChannel: mildly out-of-range values (within the
// reject bound) are pulled back into [0,1] instead of dropping the
// sample. Eye trackers routinely report 1.02 at the edge of the field.
func ClampScalar(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
