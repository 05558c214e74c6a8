package core

import (
	"testing"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPose(t *testing.T) {
	p := DefaultPose()
	assert.Equal(t, math32.Vector3{}, p.Position)
	assert.Equal(t, math32.NewQuat(0, 0, 0, 1), p.Rotation)
	assert.Equal(t, float32(1), p.Scale)
}

func TestClampScale(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want float32
	}{
		{"zero", 0, MinScale},
		{"negative", -2, MinScale},
		{"tiny but legal", MinScale, MinScale},
		{"normal", 1.5, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPose()
			p.Scale = tt.in
			assert.Equal(t, tt.want, p.ClampScale().Scale)
		})
	}
}

func TestNormalized(t *testing.T) {
	p := NewPose(math32.Vector3{}, math32.NewQuat(0, 0, 0, 2))
	got := p.Normalized()
	assert.InDelta(t, 1, got.Rotation.W, 1e-6)
}

func TestParseAlignmentMode(t *testing.T) {
	for _, mode := range []AlignmentMode{AutoAlign, ManualAlign, MarkerBased, SharedOrigin} {
		parsed, err := ParseAlignmentMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}

	_, err := ParseAlignmentMode("sideways")
	assert.Error(t, err)
}
