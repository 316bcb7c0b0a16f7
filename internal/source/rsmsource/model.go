// Package rsmsource adapts RSM models to the bake.Animated source: every
// node with faces is a deformable part and the model's keyframe animation is
// its single clip.
package rsmsource

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/Faultbox/flipbake/internal/bake"
	"github.com/Faultbox/flipbake/internal/mesh"
	"github.com/Faultbox/flipbake/pkg/formats"
	"github.com/Faultbox/flipbake/pkg/math"
)

// ErrUnknownClip is returned when posing a clip the model does not have.
var ErrUnknownClip = errors.New("unknown clip")

// Options controls how node geometry is built.
type Options struct {
	// ForceTwoSided emits a back face for every face, not only flagged ones.
	ForceTwoSided bool
	// FlatShading keeps per-face normals even on smooth-shaded models.
	FlatShading bool
}

// Model is a posable RSM model.
type Model struct {
	name   string
	rsm    *formats.RSM
	opts   Options
	parts  []bake.Part
	timeMs float32
}

var _ bake.Animated = (*Model)(nil)

// New wraps a parsed model. name is used for the clip and in errors.
func New(name string, rsm *formats.RSM, opts Options) *Model {
	m := &Model{name: name, rsm: rsm, opts: opts}
	for i := range rsm.Nodes {
		if hasDrawableFace(&rsm.Nodes[i]) {
			m.parts = append(m.parts, bake.Part{Name: rsm.Nodes[i].Name, Index: i})
		}
	}
	return m
}

// Parse parses RSM bytes read from path. The model is named after the file.
func Parse(filePath string, data []byte, opts Options) (*Model, error) {
	rsm, err := formats.ParseRSM(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}
	return New(ModelName(filePath), rsm, opts), nil
}

// ModelName returns the base name of an RSM path without its extension.
func ModelName(filePath string) string {
	base := path.Base(strings.ReplaceAll(filePath, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// RSM returns the underlying model data.
func (m *Model) RSM() *formats.RSM { return m.rsm }

// Parts returns nodes that carry at least one drawable face.
func (m *Model) Parts() []bake.Part { return m.parts }

// Clips returns the model's animation as one clip named after the model,
// or nothing for a static model.
func (m *Model) Clips() []bake.Clip {
	if !isAnimated(m.rsm) {
		return nil
	}
	return []bake.Clip{{Name: m.name, Length: m.rsm.AnimSeconds()}}
}

// EvaluatePose poses every node at time t seconds into clip.
func (m *Model) EvaluatePose(clip bake.Clip, t float64) error {
	if clip.Name != m.name {
		return fmt.Errorf("%w: %q on %s", ErrUnknownClip, clip.Name, m.name)
	}
	m.timeMs = float32(t * 1000)
	return nil
}

// PoseTime returns the current pose time in seconds.
func (m *Model) PoseTime() float64 {
	return float64(m.timeMs) / 1000
}

func (m *Model) node(p bake.Part) (*formats.RSMNode, error) {
	if p.Index < 0 || p.Index >= len(m.rsm.Nodes) || m.rsm.Nodes[p.Index].Name != p.Name {
		return nil, fmt.Errorf("%s has no part %q", m.name, p.Name)
	}
	return &m.rsm.Nodes[p.Index], nil
}

// WorldTransform returns the node's transform at the current pose, in Y-up
// space.
func (m *Model) WorldTransform(p bake.Part) math.Mat4 {
	node, err := m.node(p)
	if err != nil {
		return math.Identity()
	}
	return yFlip.Mul(nodeMatrix(node, m.rsm, m.timeMs))
}

// BakeGeometry returns the node's triangles in node space. RSM vertices do
// not deform on their own, so the result only depends on the node.
func (m *Model) BakeGeometry(p bake.Part) (*mesh.Mesh, error) {
	node, err := m.node(p)
	if err != nil {
		return nil, err
	}

	out := &mesh.Mesh{Name: node.Name}
	emit := func(face formats.RSMFace, normal [3]float32, reverse bool) {
		order := [3]int{0, 1, 2}
		if reverse {
			order = [3]int{2, 1, 0}
		}
		base := uint32(len(out.Vertices))
		for _, j := range order {
			var uv [2]float32
			if tid := int(face.TexCoordIDs[j]); tid < len(node.TexCoords) {
				uv = [2]float32{node.TexCoords[tid].U, node.TexCoords[tid].V}
			}
			out.Vertices = append(out.Vertices, mesh.Vertex{
				Position: node.Vertices[face.VertexIDs[j]],
				Normal:   normal,
				TexCoord: uv,
			})
		}
		out.Indices = append(out.Indices, base, base+1, base+2)
	}

	for _, face := range node.Faces {
		normal, ok := faceNormal(node, face)
		if !ok {
			continue
		}
		emit(face, normal, false)
		if face.TwoSide != 0 || m.opts.ForceTwoSided {
			emit(face, math.V3(normal).Scale(-1).Array(), true)
		}
	}

	if out.IsEmpty() {
		return nil, fmt.Errorf("%s: node %q: %w", m.name, node.Name, mesh.ErrEmptyGeometry)
	}
	if m.rsm.Shading == formats.RSMShadingSmooth && !m.opts.FlatShading {
		smoothNormals(out.Vertices)
	}
	out.RecomputeBounds()
	return out, nil
}

// faceNormal returns the unit normal of a face, or false for faces with
// out-of-range vertices or no area.
func faceNormal(node *formats.RSMNode, face formats.RSMFace) ([3]float32, bool) {
	for _, vid := range face.VertexIDs {
		if int(vid) >= len(node.Vertices) {
			return [3]float32{}, false
		}
	}
	v0 := math.V3(node.Vertices[face.VertexIDs[0]])
	v1 := math.V3(node.Vertices[face.VertexIDs[1]])
	v2 := math.V3(node.Vertices[face.VertexIDs[2]])
	n := v1.Sub(v0).Cross(v2.Sub(v0))
	if n.Length() < 1e-5 {
		return [3]float32{}, false
	}
	return n.Normalize().Array(), true
}

func hasDrawableFace(node *formats.RSMNode) bool {
	for _, face := range node.Faces {
		if _, ok := faceNormal(node, face); ok {
			return true
		}
	}
	return false
}

// smoothNormals averages normals of vertices sharing a position.
func smoothNormals(vertices []mesh.Vertex) {
	const epsilon float32 = 0.001

	groups := make(map[[3]int32][]int)
	for i := range vertices {
		p := vertices[i].Position
		key := [3]int32{int32(p[0] / epsilon), int32(p[1] / epsilon), int32(p[2] / epsilon)}
		groups[key] = append(groups[key], i)
	}

	for _, idxs := range groups {
		if len(idxs) < 2 {
			continue
		}
		var sum math.Vec3
		for _, idx := range idxs {
			sum = sum.Add(math.V3(vertices[idx].Normal))
		}
		if sum.Length() == 0 {
			continue
		}
		avg := sum.Normalize().Array()
		for _, idx := range idxs {
			vertices[idx].Normal = avg
		}
	}
}
