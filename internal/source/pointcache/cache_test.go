package pointcache

import (
	"errors"
	gomath "math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/flipbake/internal/bake"
	"github.com/Faultbox/flipbake/internal/mesh"
)

const flagYAML = `
name: flag
start_time: 0.25
transform: {position: [10, 0, 0]}
parts:
  - name: cloth
    transform: {position: [1, 0, 0]}
    indices: [0, 1, 2]
    uvs: [[0, 0], [1, 0], [0, 1]]
    keys:
      - {time: 1, positions: [[0, 0, 2], [1, 0, 2], [0, 1, 2]]}
      - {time: 0, positions: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]}
`

func near(a, b float32) bool {
	return gomath.Abs(float64(a-b)) < 1e-5
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(flagYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Name != "flag" || c.StartTime != 0.25 || c.Length() != 1 {
		t.Errorf("cache = %s start %g length %g", c.Name, c.StartTime, c.Length())
	}
	if c.Parts[0].Keys[0].Time != 0 {
		t.Error("keys were not sorted by time")
	}
}

func TestParseRejectsBadCaches(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"not yaml", "parts: [", ""},
		{"no keys", "parts: [{name: a, indices: [0, 1, 2]}]", "no keys"},
		{"vertex count mismatch", `
parts:
  - name: a
    indices: [0, 1, 2]
    keys:
      - {time: 0, positions: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]}
      - {time: 1, positions: [[0, 0, 0]]}
`, "vertices"},
		{"index out of range", `
parts:
  - name: a
    indices: [0, 1, 9]
    keys: [{time: 0, positions: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]}]
`, "out of range"},
		{"partial triangle", `
parts:
  - name: a
    indices: [0, 1]
    keys: [{time: 0, positions: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]}]
`, "indices"},
		{"negative duration", "duration: -1", "duration"},
		{"infinite duration", "duration: .inf", "duration"},
		{"NaN duration", "duration: .nan", "duration"},
		{"infinite start time", "start_time: -.inf", "start_time"},
		{"infinite key time", `
parts:
  - name: a
    indices: [0, 1, 2]
    keys:
      - {time: 0, positions: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]}
      - {time: .inf, positions: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]}
`, "key time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !errors.Is(err, ErrInvalidCache) {
				t.Fatalf("got %v, want ErrInvalidCache", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSourceInterpolates(t *testing.T) {
	c, err := Parse([]byte(flagYAML))
	if err != nil {
		t.Fatal(err)
	}
	src := NewSource(c)
	part := src.Parts()[0]

	tests := []struct {
		time  float64
		wantZ float32
	}{
		{0, 0},
		{0.25, 0.5},
		{0.5, 1},
		{1, 2},
		{3, 2},
	}
	for _, tt := range tests {
		if err := src.Stream().Seek(tt.time); err != nil {
			t.Fatal(err)
		}
		m, err := src.BakeGeometry(part)
		if err != nil {
			t.Fatal(err)
		}
		if !near(m.Vertices[1].Position[2], tt.wantZ) {
			t.Errorf("z at %gs = %g, want %g", tt.time, m.Vertices[1].Position[2], tt.wantZ)
		}
		if m.Vertices[0].Normal != [3]float32{0, 0, 1} {
			t.Errorf("normal at %gs = %v", tt.time, m.Vertices[0].Normal)
		}
	}
}

func TestSourceTransforms(t *testing.T) {
	c, err := Parse([]byte(flagYAML))
	if err != nil {
		t.Fatal(err)
	}
	src := NewSource(c)

	p := src.WorldTransform(src.Parts()[0]).TransformPoint([3]float32{0, 0, 0})
	if !near(p[0], 11) {
		t.Errorf("world origin of part = %v, want x = 11", p)
	}
	r := src.ReferenceTransform().TransformPoint([3]float32{0, 0, 0})
	if !near(r[0], 10) {
		t.Errorf("reference origin = %v, want x = 10", r)
	}
	if src.Stream().CurrentTime() != 0.25 {
		t.Errorf("playhead starts at %g", src.Stream().CurrentTime())
	}
}

func TestSeekRejectsNaN(t *testing.T) {
	c, _ := Parse([]byte(flagYAML))
	if err := NewSource(c).Stream().Seek(gomath.NaN()); err == nil {
		t.Error("expected an error")
	}
}

type memStore map[string]*mesh.Mesh

func (s memStore) Writable(string) error { return nil }
func (s memStore) Flush() error          { return nil }

func (s memStore) Exists(id string) bool {
	_, ok := s[id]
	return ok
}

func (s memStore) Create(id string, m *mesh.Mesh) (string, error) {
	s[id] = m
	return id, nil
}

func TestBakeFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flag.yaml")
	if err := os.WriteFile(path, []byte(flagYAML), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	src := NewSource(c)

	res, err := bake.NewBaker(memStore{}).Bake(bake.Request{
		Source: src,
		Mode:   bake.ModeStream,
		Spec:   bake.SampleSpec{Cadence: 0.3, Output: "out/flag"},
	})
	if err != nil {
		t.Fatalf("Bake: %v", err)
	}
	if len(res.Frames) != 4 || res.Duration != 1 {
		t.Fatalf("got %d frames over %gs, want 4 over 1s", len(res.Frames), res.Duration)
	}
	if src.Stream().CurrentTime() != 0.25 {
		t.Errorf("playhead left at %g, want 0.25", src.Stream().CurrentTime())
	}
	// frames are relative to the cache transform, so only the part offset remains
	if b := res.Frames[0].Bounds; !near(b.Min[0], 1) || !near(b.Max[0], 2) {
		t.Errorf("frame 0 x bounds = [%g, %g], want [1, 2]", b.Min[0], b.Max[0])
	}
	if res.StartTime != 0.25 {
		t.Errorf("start time = %g", res.StartTime)
	}
}
