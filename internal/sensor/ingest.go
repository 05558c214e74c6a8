package sensor

import (
	"fmt"
	"log/slog"

	"cogentcore.org/core/math32"

	"github.com/holoshare/relay/pkg/core"
)

// Source is a local sensor device feed. PullLatestSample returns the
// most recent raw vector, or nil when no new reading has arrived since
// the last pull. Implementations are free to return the same backing
// slice across calls; Ingest copies what it keeps.
type Source interface {
	IsConnected() bool
	PullLatestSample() []float32
}

// Ingester converts raw device vectors into validated samples. Each
// group (landmarks, gaze) is validated independently: a bad value in
// one group marks that group absent without discarding the other.
type Ingester struct {
	schema Schema
	log    *slog.Logger
}

func NewIngester(schema Schema, log *slog.Logger) *Ingester {
	return &Ingester{schema: schema, log: log}
}

// RawVectorLen returns the expected raw vector length for the schema:
// three coordinates per landmark followed by gaze x, gaze y, blink and
// pupil diameter.
func (in *Ingester) RawVectorLen() int {
	return 3*in.schema.PointCount() + 4
}

// Ingest validates a raw vector and builds a sample. A vector of the
// wrong length yields a fully absent sample; this happens when the
// device renegotiates its stream mid-session.
func (in *Ingester) Ingest(raw []float32) core.SensorSample {
	if len(raw) != in.RawVectorLen() {
		in.log.Warn("raw sensor vector length mismatch",
			"got", len(raw), "want", in.RawVectorLen())
		return core.Absent()
	}

	n := in.schema.PointCount()
	sample := core.Absent()

	coords := raw[:3*n]
	if err := ValidateVector(coords, RoleCoordinate); err != nil {
		in.log.Debug("landmark group rejected", "error", err)
	} else {
		sample.Landmarks = make([]math32.Vector3, n)
		for i := 0; i < n; i++ {
			sample.Landmarks[i] = math32.Vec3(coords[3*i], coords[3*i+1], coords[3*i+2])
		}
		sample.LandmarksPresent = true
	}

	gazeX, gazeY := raw[3*n], raw[3*n+1]
	blink, pupil := raw[3*n+2], raw[3*n+3]
	if err := validateGaze(gazeX, gazeY, blink, pupil); err != nil {
		in.log.Debug("gaze group rejected", "error", err)
	} else {
		sample.Gaze = math32.Vec2(ClampScalar(gazeX), ClampScalar(gazeY))
		sample.PupilSize = ClampScalar(pupil)
		sample.Blink = blink > 0.5
		sample.GazePresent = true
	}

	return sample
}

func validateGaze(values ...float32) error {
	for i, v := range values {
		if err := ValidateChannel(v, RoleScalar); err != nil {
			return fmt.Errorf("gaze channel %d: %w", i, err)
		}
	}
	return nil
}
