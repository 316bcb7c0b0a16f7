package bake

import (
	"errors"
	"fmt"

	"github.com/Faultbox/flipbake/internal/mesh"
	"github.com/Faultbox/flipbake/pkg/math"
)

func triangle() *mesh.Mesh {
	return &mesh.Mesh{
		Vertices: []mesh.Vertex{
			{Position: [3]float32{0, 0, 0}, Normal: [3]float32{0, 0, 1}},
			{Position: [3]float32{1, 0, 0}, Normal: [3]float32{0, 0, 1}, TexCoord: [2]float32{1, 0}},
			{Position: [3]float32{0, 1, 0}, Normal: [3]float32{0, 0, 1}, TexCoord: [2]float32{0, 1}},
		},
		Indices: []uint32{0, 1, 2},
	}
}

func makeParts(n int) []Part {
	parts := make([]Part, n)
	for i := range parts {
		parts[i] = Part{Name: fmt.Sprintf("part%d", i), Index: i}
	}
	return parts
}

// skinned is an Animated source. Part i sits at x = i and is lifted on y by
// the posed time, so every frame is distinguishable.
type skinned struct {
	name  string
	parts []Part
	clips []Clip
	t     float64
	poses []float64
}

func (s *skinned) Name() string  { return s.name }
func (s *skinned) Parts() []Part { return s.parts }
func (s *skinned) Clips() []Clip { return s.clips }

func (s *skinned) EvaluatePose(c Clip, t float64) error {
	s.t = t
	s.poses = append(s.poses, t)
	return nil
}

func (s *skinned) BakeGeometry(p Part) (*mesh.Mesh, error) {
	return triangle(), nil
}

func (s *skinned) WorldTransform(p Part) math.Mat4 {
	return math.Translate(float32(p.Index), float32(s.t), 0)
}

type stream struct {
	t        float64
	duration float64
	seeks    []float64
	failAt   int
}

func (s *stream) Seek(t float64) error {
	s.seeks = append(s.seeks, t)
	if s.failAt > 0 && len(s.seeks) == s.failAt {
		return errors.New("seek failed")
	}
	s.t = t
	return nil
}

func (s *stream) CurrentTime() float64 { return s.t }
func (s *stream) Duration() float64    { return s.duration }

// cached is a Streamed source placed at x = 10. Part i sits at x = 10 + i in
// world space, so relative to the reference it sits at x = i.
type cached struct {
	name   string
	parts  []Part
	stream *stream
}

func (c *cached) Name() string  { return c.name }
func (c *cached) Parts() []Part { return c.parts }

func (c *cached) Stream() Stream {
	if c.stream == nil {
		return nil
	}
	return c.stream
}

func (c *cached) ReferenceTransform() math.Mat4 {
	return math.Translate(10, 0, 0)
}

func (c *cached) BakeGeometry(p Part) (*mesh.Mesh, error) {
	return triangle(), nil
}

func (c *cached) WorldTransform(p Part) math.Mat4 {
	return math.Translate(10+float32(p.Index), float32(c.stream.t), 0)
}

// memStore stages frames in memory and commits them on Flush.
type memStore struct {
	committed   map[string]*mesh.Mesh
	staged      map[string]*mesh.Mesh
	order       []string
	writableErr error
	flushErr    error
	failOn      string
	flushes     int
	discards    int
}

func newMemStore() *memStore {
	return &memStore{
		committed: map[string]*mesh.Mesh{},
		staged:    map[string]*mesh.Mesh{},
	}
}

func (s *memStore) Writable(output string) error { return s.writableErr }

func (s *memStore) Exists(id string) bool {
	_, ok := s.committed[id]
	return ok
}

func (s *memStore) Create(id string, m *mesh.Mesh) (string, error) {
	if id == s.failOn {
		return "", errors.New("disk full")
	}
	s.staged[id] = m
	s.order = append(s.order, id)
	return id, nil
}

func (s *memStore) Discard() error {
	s.discards++
	s.staged = map[string]*mesh.Mesh{}
	return nil
}

func (s *memStore) Flush() error {
	s.flushes++
	if s.flushErr != nil {
		return s.flushErr
	}
	for id, m := range s.staged {
		s.committed[id] = m
	}
	s.staged = map[string]*mesh.Mesh{}
	return nil
}

type countingConfirmer struct {
	answer   bool
	calls    int
	estimate int
	message  string
}

func (c *countingConfirmer) Confirm(msg string, n int) bool {
	c.calls++
	c.estimate = n
	c.message = msg
	return c.answer
}
