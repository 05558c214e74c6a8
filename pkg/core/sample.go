// pkg/core/sample.go
package core

import "cogentcore.org/core/math32"

// SensorSample is the per-tick biometric payload relayed from a source
// peer to observers: a reduced set of facial landmark positions, a 2-D
// gaze point in the unit square, and a scalar pupil size. Each group may
// be independently absent when the sensor produced no valid data this
// tick. Samples are transient; only the latest accepted sample per source
// peer is retained.
type SensorSample struct {
	// Landmarks holds one position per key index of the active schema,
	// in schema order. Valid only when LandmarksPresent.
	Landmarks        []math32.Vector3
	LandmarksPresent bool

	// Gaze is the normalized gaze position in [0,1]x[0,1]. Valid only
	// when GazePresent and not Blink.
	Gaze        math32.Vector2
	PupilSize   float32
	GazePresent bool

	// Blink reports that the source detected a blink this tick. The
	// sensor encodes a blink as the gaze triple (0,0,1), suppressing the
	// gaze position.
	Blink bool
}

// Absent returns a sample with every group marked missing. Used on
// validation rejection and decode desynchronization: the channel reverts
// to "no data this tick" rather than carrying partial values.
func Absent() SensorSample {
	return SensorSample{}
}
