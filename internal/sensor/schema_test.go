package sensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchema(t *testing.T) {
	tests := []struct {
		name    string
		indices []int
		wantErr bool
	}{
		{"valid", []int{0, 1, 467}, false},
		{"empty", nil, true},
		{"negative index", []int{0, -1}, true},
		{"index past model", []int{0, 468}, true},
		{"duplicate index", []int{1, 2, 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(1, tt.indices)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuiltinSchemas(t *testing.T) {
	reduced := ReducedSchema()
	assert.Equal(t, SchemaVersionReduced10, reduced.Version)
	assert.Equal(t, 10, reduced.PointCount())

	full := FullSchema()
	assert.Equal(t, SchemaVersionFull68, full.Version)
	assert.Equal(t, 68, full.PointCount())
}

func TestSchemaByName(t *testing.T) {
	s, err := SchemaByName("reduced10")
	require.NoError(t, err)
	assert.Equal(t, SchemaVersionReduced10, s.Version)

	s, err = SchemaByName("full68")
	require.NoError(t, err)
	assert.Equal(t, SchemaVersionFull68, s.Version)

	_, err = SchemaByName("bogus")
	assert.Error(t, err)
}

func TestValidateChannel(t *testing.T) {
	tests := []struct {
		name    string
		v       float32
		role    ChannelRole
		wantErr error
	}{
		{"coordinate in range", 9.9, RoleCoordinate, nil},
		{"coordinate negative in range", -9.9, RoleCoordinate, nil},
		{"coordinate past bound", 10.1, RoleCoordinate, ErrOutOfDomain},
		{"coordinate past negative bound", -10.1, RoleCoordinate, ErrOutOfDomain},
		{"scalar in range", 1.0, RoleScalar, nil},
		{"scalar mild overshoot passes", 1.5, RoleScalar, nil},
		{"scalar past reject bound", 2.5, RoleScalar, ErrOutOfDomain},
		{"NaN", float32(math.NaN()), RoleScalar, ErrNonFinite},
		{"positive Inf", float32(math.Inf(1)), RoleCoordinate, ErrNonFinite},
		{"negative Inf", float32(math.Inf(-1)), RoleCoordinate, ErrNonFinite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChannel(tt.v, tt.role)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClampScalar(t *testing.T) {
	assert.Equal(t, float32(0), ClampScalar(-0.5))
	assert.Equal(t, float32(1), ClampScalar(1.5))
	assert.Equal(t, float32(0.5), ClampScalar(0.5))
}

func TestThrottle(t *testing.T) {
	t.Run("every tick", func(t *testing.T) {
		th := NewThrottle(1)
		for i := 0; i < 5; i++ {
			assert.True(t, th.ShouldEmit())
		}
	})

	t.Run("every third tick", func(t *testing.T) {
		th := NewThrottle(3)
		var emitted []bool
		for i := 0; i < 7; i++ {
			emitted = append(emitted, th.ShouldEmit())
		}
		assert.Equal(t, []bool{true, false, false, true, false, false, true}, emitted)
	})

	t.Run("zero treated as one", func(t *testing.T) {
		th := NewThrottle(0)
		assert.True(t, th.ShouldEmit())
		assert.True(t, th.ShouldEmit())
	})
}
