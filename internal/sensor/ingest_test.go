package sensor

import (
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIngester(t *testing.T) *Ingester {
	t.Helper()
	schema, err := NewSchema(99, []int{0, 1, 2})
	require.NoError(t, err)
	return NewIngester(schema, slog.Default())
}

// rawVector builds a well-formed 3-landmark vector with the given gaze
// tail (x, y, blink, pupil).
func rawVector(gaze ...float32) []float32 {
	raw := []float32{
		0.1, 0.2, 0.3,
		0.4, 0.5, 0.6,
		0.7, 0.8, 0.9,
	}
	return append(raw, gaze...)
}

func TestIngestValid(t *testing.T) {
	in := testIngester(t)

	sample := in.Ingest(rawVector(0.25, 0.75, 0, 0.5))
	require.True(t, sample.LandmarksPresent)
	require.True(t, sample.GazePresent)
	assert.Len(t, sample.Landmarks, 3)
	assert.InDelta(t, 0.4, sample.Landmarks[1].X, 1e-6)
	assert.InDelta(t, 0.25, sample.Gaze.X, 1e-6)
	assert.InDelta(t, 0.5, sample.PupilSize, 1e-6)
	assert.False(t, sample.Blink)
}

func TestIngestBlinkMarker(t *testing.T) {
	in := testIngester(t)

	sample := in.Ingest(rawVector(0, 0, 1, 0))
	require.True(t, sample.GazePresent)
	assert.True(t, sample.Blink)
	assert.Zero(t, sample.Gaze.X)
	assert.Zero(t, sample.Gaze.Y)
}

func TestIngestLengthMismatch(t *testing.T) {
	in := testIngester(t)

	sample := in.Ingest([]float32{1, 2, 3})
	assert.False(t, sample.LandmarksPresent)
	assert.False(t, sample.GazePresent)
}

func TestIngestGroupIsolation(t *testing.T) {
	in := testIngester(t)

	tests := []struct {
		name          string
		raw           []float32
		wantLandmarks bool
		wantGaze      bool
	}{
		{
			name: "NaN landmark drops only landmarks",
			raw: append([]float32{float32(math.NaN()), 0.2, 0.3,
				0.4, 0.5, 0.6, 0.7, 0.8, 0.9}, 0.5, 0.5, 0, 0.5),
			wantLandmarks: false,
			wantGaze:      true,
		},
		{
			name: "coordinate beyond bound drops only landmarks",
			raw: append([]float32{0.1, 0.2, 11.0,
				0.4, 0.5, 0.6, 0.7, 0.8, 0.9}, 0.5, 0.5, 0, 0.5),
			wantLandmarks: false,
			wantGaze:      true,
		},
		{
			name:          "Inf gaze drops only gaze",
			raw:           rawVector(float32(math.Inf(1)), 0.5, 0, 0.5),
			wantLandmarks: true,
			wantGaze:      false,
		},
		{
			name:          "gaze far out of domain drops only gaze",
			raw:           rawVector(5.0, 0.5, 0, 0.5),
			wantLandmarks: true,
			wantGaze:      false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample := in.Ingest(tt.raw)
			assert.Equal(t, tt.wantLandmarks, sample.LandmarksPresent)
			assert.Equal(t, tt.wantGaze, sample.GazePresent)
		})
	}
}

func TestIngestClampsMildOvershoot(t *testing.T) {
	in := testIngester(t)

	// tracker edge readings just past [0,1] are clamped, not dropped
	sample := in.Ingest(rawVector(1.02, -0.03, 0, 1.5))
	require.True(t, sample.GazePresent)
	assert.Equal(t, float32(1), sample.Gaze.X)
	assert.Equal(t, float32(0), sample.Gaze.Y)
	assert.Equal(t, float32(1), sample.PupilSize)
}
