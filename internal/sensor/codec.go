package sensor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"cogentcore.org/core/math32"

	"github.com/holoshare/relay/pkg/core"
)

// Wire layout, little-endian, in order:
//
//	uint16  schema version
//	byte    landmark group present (0/1)
//	3*N     float32 landmark coordinates          (present only)
//	byte    gaze group present (0/1)
//	float32 gaze x, gaze y, pupil diameter        (present only)
//	byte    blink (0/1)                           (present only)
//
// Absent groups contribute exactly one byte. The decoder must consume
// the buffer exactly; any leftover or shortfall is a desync.

// ErrDesync reports a frame whose byte stream does not line up with the
// decoder's schema. Desynced frames are discarded and replaced by an
// absent sample rather than risking misaligned field reads.
var ErrDesync = errors.New("sensor: frame desync")

const (
	groupAbsent  byte = 0
	groupPresent byte = 1
)

// Codec encodes and decodes sensor frames against a fixed schema. A
// single codec instance is shared per session; both sides must be
// constructed from the same schema version.
type Codec struct {
	schema   Schema
	compress bool
}

func NewCodec(schema Schema, compress bool) *Codec {
	return &Codec{schema: schema, compress: compress}
}

func (c *Codec) Schema() Schema { return c.schema }

// round3 quantizes to three decimal places, millimeter resolution for
// head-relative coordinates. Good enough for avatar rendering, and the
// shorter mantissa repetition helps downstream transport compression.
func round3(v float32) float32 {
	return float32(math.Round(float64(v)*1000) / 1000)
}

func (c *Codec) quantize(v float32) float32 {
	if c.compress {
		return round3(v)
	}
	return v
}

// Encode serializes a sample into the wire layout. Landmark count must
// match the schema when the group is present.
func (c *Codec) Encode(sample core.SensorSample) ([]byte, error) {
	if sample.LandmarksPresent && len(sample.Landmarks) != c.schema.PointCount() {
		return nil, fmt.Errorf("sensor: encode: %d landmarks, schema %d wants %d",
			len(sample.Landmarks), c.schema.Version, c.schema.PointCount())
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, c.schema.Version)

	if sample.LandmarksPresent {
		buf.WriteByte(groupPresent)
		for _, lm := range sample.Landmarks {
			binary.Write(buf, binary.LittleEndian, c.quantize(lm.X))
			binary.Write(buf, binary.LittleEndian, c.quantize(lm.Y))
			binary.Write(buf, binary.LittleEndian, c.quantize(lm.Z))
		}
	} else {
		buf.WriteByte(groupAbsent)
	}

	if sample.GazePresent {
		buf.WriteByte(groupPresent)
		binary.Write(buf, binary.LittleEndian, c.quantize(sample.Gaze.X))
		binary.Write(buf, binary.LittleEndian, c.quantize(sample.Gaze.Y))
		binary.Write(buf, binary.LittleEndian, c.quantize(sample.PupilSize))
		if sample.Blink {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	} else {
		buf.WriteByte(groupAbsent)
	}

	return buf.Bytes(), nil
}

// Decode parses a wire frame. Any structural mismatch, a foreign
// schema version, a truncated group, or trailing bytes, returns
// ErrDesync; callers substitute an absent sample for that peer/tick.
func (c *Codec) Decode(data []byte) (core.SensorSample, error) {
	r := bytes.NewReader(data)

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return core.SensorSample{}, fmt.Errorf("%w: short header", ErrDesync)
	}
	if version != c.schema.Version {
		return core.SensorSample{}, fmt.Errorf("%w: schema version %d, expected %d",
			ErrDesync, version, c.schema.Version)
	}

	var sample core.SensorSample

	flag, err := r.ReadByte()
	if err != nil {
		return core.SensorSample{}, fmt.Errorf("%w: missing landmark flag", ErrDesync)
	}
	switch flag {
	case groupPresent:
		n := c.schema.PointCount()
		sample.Landmarks = make([]math32.Vector3, n)
		for i := 0; i < n; i++ {
			var x, y, z float32
			if err := binary.Read(r, binary.LittleEndian, &x); err != nil {
				return core.SensorSample{}, fmt.Errorf("%w: truncated landmark %d", ErrDesync, i)
			}
			if err := binary.Read(r, binary.LittleEndian, &y); err != nil {
				return core.SensorSample{}, fmt.Errorf("%w: truncated landmark %d", ErrDesync, i)
			}
			if err := binary.Read(r, binary.LittleEndian, &z); err != nil {
				return core.SensorSample{}, fmt.Errorf("%w: truncated landmark %d", ErrDesync, i)
			}
			sample.Landmarks[i] = math32.Vec3(x, y, z)
		}
		sample.LandmarksPresent = true
	case groupAbsent:
		// nothing follows for this group
	default:
		return core.SensorSample{}, fmt.Errorf("%w: bad landmark flag %d", ErrDesync, flag)
	}

	flag, err = r.ReadByte()
	if err != nil {
		return core.SensorSample{}, fmt.Errorf("%w: missing gaze flag", ErrDesync)
	}
	switch flag {
	case groupPresent:
		var gx, gy, pupil float32
		if err := binary.Read(r, binary.LittleEndian, &gx); err != nil {
			return core.SensorSample{}, fmt.Errorf("%w: truncated gaze", ErrDesync)
		}
		if err := binary.Read(r, binary.LittleEndian, &gy); err != nil {
			return core.SensorSample{}, fmt.Errorf("%w: truncated gaze", ErrDesync)
		}
		if err := binary.Read(r, binary.LittleEndian, &pupil); err != nil {
			return core.SensorSample{}, fmt.Errorf("%w: truncated pupil", ErrDesync)
		}
		blink, err := r.ReadByte()
		if err != nil {
			return core.SensorSample{}, fmt.Errorf("%w: missing blink flag", ErrDesync)
		}
		sample.Gaze = math32.Vec2(gx, gy)
		sample.PupilSize = pupil
		sample.Blink = blink != 0
		sample.GazePresent = true
	case groupAbsent:
	default:
		return core.SensorSample{}, fmt.Errorf("%w: bad gaze flag %d", ErrDesync, flag)
	}

	if r.Len() != 0 {
		return core.SensorSample{}, fmt.Errorf("%w: %d trailing bytes", ErrDesync, r.Len())
	}
	return sample, nil
}
