package sensor

import "fmt"

// Schema is the explicit, versioned key-index list shared by the
// encoder and decoder. The encoder stamps its schema version into every
// frame header so a receiver configured with a different schema detects
// the mismatch instead of silently misreading neighboring fields.
type Schema struct {
	Version    uint16
	KeyIndices []int
}

// Schema versions. Bump when the key-index list changes.
const (
	SchemaVersionReduced10 uint16 = 1
	SchemaVersionFull68    uint16 = 2
)

// NewSchema builds a schema from a version and key-index list,
// validating that the list is non-empty, within the full model bounds,
// and free of duplicates.
func NewSchema(version uint16, keyIndices []int) (Schema, error) {
	if len(keyIndices) == 0 {
		return Schema{}, fmt.Errorf("schema %d: empty key-index list", version)
	}
	if len(keyIndices) > FaceMeshModelSize {
		return Schema{}, fmt.Errorf("schema %d: %d key indices exceeds model size %d",
			version, len(keyIndices), FaceMeshModelSize)
	}
	seen := make(map[int]bool, len(keyIndices))
	for _, idx := range keyIndices {
		if idx < 0 || idx >= FaceMeshModelSize {
			return Schema{}, fmt.Errorf("schema %d: key index %d out of range [0,%d)",
				version, idx, FaceMeshModelSize)
		}
		if seen[idx] {
			return Schema{}, fmt.Errorf("schema %d: duplicate key index %d", version, idx)
		}
		seen[idx] = true
	}
	indices := make([]int, len(keyIndices))
	copy(indices, keyIndices)
	return Schema{Version: version, KeyIndices: indices}, nil
}

// ReducedSchema returns the 10-point key landmark schema.
func ReducedSchema() Schema {
	s, err := NewSchema(SchemaVersionReduced10, Reduced10Indices)
	if err != nil {
		panic(err) // static table, validated by tests
	}
	return s
}

// FullSchema returns the 68-point standard landmark schema.
func FullSchema() Schema {
	s, err := NewSchema(SchemaVersionFull68, FaceMesh68Indices)
	if err != nil {
		panic(err)
	}
	return s
}

// SchemaByName resolves a config string to a schema.
func SchemaByName(name string) (Schema, error) {
	switch name {
	case "reduced10":
		return ReducedSchema(), nil
	case "full68":
		return FullSchema(), nil
	default:
		return Schema{}, fmt.Errorf("unknown sensor schema: %q", name)
	}
}

// PointCount returns the number of landmark points the schema carries.
func (s Schema) PointCount() int {
	return len(s.KeyIndices)
}
