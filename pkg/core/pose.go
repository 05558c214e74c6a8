// pkg/core/pose.go
package core

import "cogentcore.org/core/math32"

// MinScale is the smallest legal uniform scale. Scale values at or below
// zero would invert or collapse a peer's frame, so they are clamped here
// rather than rejected.
const MinScale float32 = 0.001

// Pose is a position and orientation in one peer's coordinate frame,
// with an optional uniform scale. Poses are value types; they are copied
// across the network boundary and carry no ownership.
type Pose struct {
	Position math32.Vector3
	Rotation math32.Quat // unit quaternion
	Scale    float32
}

// DefaultPose returns the identity pose: origin position, identity
// rotation, unit scale. Used wherever a peer has no better information,
// e.g. a persistence miss or an unaligned remote peer.
func DefaultPose() Pose {
	return Pose{
		Rotation: math32.NewQuat(0, 0, 0, 1),
		Scale:    1,
	}
}

// NewPose returns a pose with the given position and rotation and unit scale.
func NewPose(position math32.Vector3, rotation math32.Quat) Pose {
	return Pose{Position: position, Rotation: rotation, Scale: 1}
}

// ClampScale returns a copy of the pose with Scale raised to MinScale if
// it is zero or negative.
func (p Pose) ClampScale() Pose {
	if p.Scale < MinScale {
		p.Scale = MinScale
	}
	return p
}

// Normalized returns a copy of the pose with the rotation renormalized to
// unit length. Quaternions drift away from unit length after repeated
// composition and interpolation.
func (p Pose) Normalized() Pose {
	p.Rotation.Normalize()
	return p
}
