// Package mesh holds static triangle meshes and combines posed parts into a
// single mesh.
package mesh

import (
	"errors"
	"fmt"
)

// Mesh validation errors.
var (
	ErrNoParts       = errors.New("no parts to combine")
	ErrEmptyGeometry = errors.New("empty geometry")
	ErrBadIndex      = errors.New("invalid index buffer")
)

// Vertex is a mesh vertex with position, normal, and texture coordinates.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// Bounds holds an axis-aligned bounding box.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Mesh is an indexed triangle list with a single material slot.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
	Bounds   Bounds
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no drawable geometry.
func (m *Mesh) IsEmpty() bool {
	return m == nil || len(m.Vertices) == 0 || len(m.Indices) == 0
}

// Validate checks that the mesh has triangles and every index is in range.
func (m *Mesh) Validate() error {
	if m.IsEmpty() {
		return ErrEmptyGeometry
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices is not a triangle list", ErrBadIndex, len(m.Indices))
	}
	n := uint32(len(m.Vertices))
	for i, idx := range m.Indices {
		if idx >= n {
			return fmt.Errorf("%w: index %d at %d exceeds %d vertices", ErrBadIndex, idx, i, n)
		}
	}
	return nil
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	if m == nil {
		return nil
	}
	c := &Mesh{
		Name:     m.Name,
		Vertices: make([]Vertex, len(m.Vertices)),
		Indices:  make([]uint32, len(m.Indices)),
		Bounds:   m.Bounds,
	}
	copy(c.Vertices, m.Vertices)
	copy(c.Indices, m.Indices)
	return c
}

// RecomputeBounds recalculates Bounds from the vertex positions.
func (m *Mesh) RecomputeBounds() {
	if len(m.Vertices) == 0 {
		m.Bounds = Bounds{}
		return
	}
	b := Bounds{Min: m.Vertices[0].Position, Max: m.Vertices[0].Position}
	for i := 1; i < len(m.Vertices); i++ {
		b.extend(m.Vertices[i].Position)
	}
	m.Bounds = b
}

func (b *Bounds) extend(p [3]float32) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// Positions returns the vertex positions as a flat slice of triples.
func (m *Mesh) Positions() [][3]float32 {
	out := make([][3]float32, len(m.Vertices))
	for i := range m.Vertices {
		out[i] = m.Vertices[i].Position
	}
	return out
}

// Normals returns the vertex normals.
func (m *Mesh) Normals() [][3]float32 {
	out := make([][3]float32, len(m.Vertices))
	for i := range m.Vertices {
		out[i] = m.Vertices[i].Normal
	}
	return out
}

// TexCoords returns the vertex texture coordinates.
func (m *Mesh) TexCoords() [][2]float32 {
	out := make([][2]float32, len(m.Vertices))
	for i := range m.Vertices {
		out[i] = m.Vertices[i].TexCoord
	}
	return out
}
