// Package pointcache reads YAML point caches: per-part vertex positions keyed
// by time, played back as a seekable deformation stream.
//
// A cache looks like:
//
//	name: flag
//	start_time: 0.25
//	transform: {position: [10, 0, 0]}
//	parts:
//	  - name: cloth
//	    indices: [0, 1, 2]
//	    uvs: [[0, 0], [1, 0], [0, 1]]
//	    keys:
//	      - {time: 0, positions: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]}
//	      - {time: 1, positions: [[0, 0, 1], [1, 0, 1], [0, 1, 1]]}
//
// Positions between keys are interpolated linearly. The stream's duration is
// the latest key time unless duration is set.
package pointcache

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/flipbake/internal/bake"
	"github.com/Faultbox/flipbake/internal/mesh"
	gmath "github.com/Faultbox/flipbake/pkg/math"
)

// ErrInvalidCache is wrapped by every validation failure.
var ErrInvalidCache = errors.New("invalid point cache")

// Transform is a translation, rotation (quaternion X, Y, Z, W) and scale.
// Omitted fields mean identity.
type Transform struct {
	Position *[3]float32 `yaml:"position,omitempty"`
	Rotation *[4]float32 `yaml:"rotation,omitempty"`
	Scale    *[3]float32 `yaml:"scale,omitempty"`
}

// Matrix returns T * R * S.
func (t Transform) Matrix() gmath.Mat4 {
	pos := [3]float32{}
	rot := gmath.QuatIdentity()
	scale := [3]float32{1, 1, 1}
	if t.Position != nil {
		pos = *t.Position
	}
	if t.Rotation != nil {
		rot = gmath.QuatFromArray(*t.Rotation).Normalize()
	}
	if t.Scale != nil {
		scale = *t.Scale
	}
	return gmath.TRS(pos, rot, scale)
}

// Key is a snapshot of one part's vertex positions.
type Key struct {
	Time      float64      `yaml:"time"`
	Positions [][3]float32 `yaml:"positions"`
}

// Part is one deforming sub-mesh.
type Part struct {
	Name      string       `yaml:"name"`
	Transform Transform    `yaml:"transform,omitempty"`
	Indices   []uint32     `yaml:"indices"`
	UVs       [][2]float32 `yaml:"uvs,omitempty"`
	Keys      []Key        `yaml:"keys"`
}

// Cache is a decoded point cache file.
type Cache struct {
	Name      string    `yaml:"name"`
	Duration  float64   `yaml:"duration,omitempty"`
	StartTime float64   `yaml:"start_time,omitempty"`
	Transform Transform `yaml:"transform,omitempty"`
	Parts     []Part    `yaml:"parts"`
}

// Load reads and validates a cache file.
func Load(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading point cache: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates cache YAML. Keys are sorted by time.
func Parse(data []byte) (*Cache, error) {
	var c Cache
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCache, err)
	}
	for i := range c.Parts {
		keys := c.Parts[i].Keys
		sort.SliceStable(keys, func(a, b int) bool { return keys[a].Time < keys[b].Time })
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every part has consistent keys and a triangle list.
func (c *Cache) Validate() error {
	if !finite(c.Duration) || c.Duration < 0 {
		return fmt.Errorf("%w: duration %g", ErrInvalidCache, c.Duration)
	}
	if !finite(c.StartTime) {
		return fmt.Errorf("%w: start_time %g", ErrInvalidCache, c.StartTime)
	}
	for _, p := range c.Parts {
		if len(p.Keys) == 0 {
			return fmt.Errorf("%w: part %q has no keys", ErrInvalidCache, p.Name)
		}
		n := len(p.Keys[0].Positions)
		if n == 0 {
			return fmt.Errorf("%w: part %q has no vertices", ErrInvalidCache, p.Name)
		}
		for _, k := range p.Keys {
			if len(k.Positions) != n {
				return fmt.Errorf("%w: part %q key at %gs has %d vertices, want %d",
					ErrInvalidCache, p.Name, k.Time, len(k.Positions), n)
			}
			if !finite(k.Time) || k.Time < 0 {
				return fmt.Errorf("%w: part %q key time %g", ErrInvalidCache, p.Name, k.Time)
			}
		}
		if len(p.UVs) != 0 && len(p.UVs) != n {
			return fmt.Errorf("%w: part %q has %d uvs for %d vertices", ErrInvalidCache, p.Name, len(p.UVs), n)
		}
		if len(p.Indices) == 0 || len(p.Indices)%3 != 0 {
			return fmt.Errorf("%w: part %q has %d indices", ErrInvalidCache, p.Name, len(p.Indices))
		}
		for _, idx := range p.Indices {
			if int(idx) >= n {
				return fmt.Errorf("%w: part %q index %d out of range", ErrInvalidCache, p.Name, idx)
			}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Length returns the explicit duration or the latest key time.
func (c *Cache) Length() float64 {
	if c.Duration > 0 {
		return c.Duration
	}
	var d float64
	for _, p := range c.Parts {
		if last := p.Keys[len(p.Keys)-1].Time; last > d {
			d = last
		}
	}
	return d
}

// positionsAt interpolates the part's vertex positions at t, holding the
// first and last keys outside their range.
func (p *Part) positionsAt(t float64) [][3]float32 {
	keys := p.Keys
	i := sort.Search(len(keys), func(i int) bool { return keys[i].Time > t })
	switch {
	case i == 0:
		return keys[0].Positions
	case i == len(keys):
		return keys[len(keys)-1].Positions
	}
	k0, k1 := keys[i-1], keys[i]
	f := float32((t - k0.Time) / (k1.Time - k0.Time))
	out := make([][3]float32, len(k0.Positions))
	for v := range out {
		out[v] = gmath.LerpVec3(k0.Positions[v], k1.Positions[v], f)
	}
	return out
}

// meshAt builds the part's mesh at t with area-weighted vertex normals.
func (p *Part) meshAt(t float64) *mesh.Mesh {
	pos := p.positionsAt(t)
	normals := make([]gmath.Vec3, len(pos))
	for i := 0; i+2 < len(p.Indices); i += 3 {
		a, b, c := p.Indices[i], p.Indices[i+1], p.Indices[i+2]
		n := gmath.V3(pos[b]).Sub(gmath.V3(pos[a])).Cross(gmath.V3(pos[c]).Sub(gmath.V3(pos[a])))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}

	m := &mesh.Mesh{
		Name:     p.Name,
		Vertices: make([]mesh.Vertex, len(pos)),
		Indices:  append([]uint32(nil), p.Indices...),
	}
	for i := range pos {
		m.Vertices[i].Position = pos[i]
		m.Vertices[i].Normal = normals[i].Normalize().Array()
		if len(p.UVs) > 0 {
			m.Vertices[i].TexCoord = p.UVs[i]
		}
	}
	m.RecomputeBounds()
	return m
}

// Source plays a Cache as a bake.Streamed source.
type Source struct {
	cache *Cache
	head  *Playhead
}

var _ bake.Streamed = (*Source)(nil)

// NewSource returns a source whose playhead starts at the cache's start time.
func NewSource(c *Cache) *Source {
	return &Source{cache: c, head: &Playhead{t: c.StartTime, duration: c.Length()}}
}

// Name returns the cache name.
func (s *Source) Name() string { return s.cache.Name }

// Parts returns one part per cache part, in file order.
func (s *Source) Parts() []bake.Part {
	parts := make([]bake.Part, len(s.cache.Parts))
	for i, p := range s.cache.Parts {
		parts[i] = bake.Part{Name: p.Name, Index: i}
	}
	return parts
}

func (s *Source) part(p bake.Part) (*Part, error) {
	if p.Index < 0 || p.Index >= len(s.cache.Parts) {
		return nil, fmt.Errorf("%s has no part %d", s.cache.Name, p.Index)
	}
	return &s.cache.Parts[p.Index], nil
}

// BakeGeometry returns the part's mesh at the playhead.
func (s *Source) BakeGeometry(p bake.Part) (*mesh.Mesh, error) {
	part, err := s.part(p)
	if err != nil {
		return nil, err
	}
	return part.meshAt(s.head.t), nil
}

// WorldTransform returns the cache transform times the part transform.
func (s *Source) WorldTransform(p bake.Part) gmath.Mat4 {
	part, err := s.part(p)
	if err != nil {
		return s.ReferenceTransform()
	}
	return s.ReferenceTransform().Mul(part.Transform.Matrix())
}

// ReferenceTransform returns the cache's own transform.
func (s *Source) ReferenceTransform() gmath.Mat4 {
	return s.cache.Transform.Matrix()
}

// Stream returns the playhead.
func (s *Source) Stream() bake.Stream { return s.head }

// Playhead is the cache's seekable position.
type Playhead struct {
	t        float64
	duration float64
}

// Seek moves the playhead. Times outside [0, duration] hold the nearest key.
func (h *Playhead) Seek(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("seek to %g", t)
	}
	h.t = t
	return nil
}

// CurrentTime returns the playhead position.
func (h *Playhead) CurrentTime() float64 { return h.t }

// Duration returns the stream length.
func (h *Playhead) Duration() float64 { return h.duration }
