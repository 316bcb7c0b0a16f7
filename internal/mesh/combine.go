package mesh

import (
	"fmt"

	"github.com/Faultbox/flipbake/pkg/math"
)

// Part is one mesh together with its transform into the shared reference
// frame.
type Part struct {
	Mesh      *Mesh
	Transform math.Mat4
}

// Combine merges parts into one mesh expressed in the reference frame.
//
// Positions go through each part's transform and normals through its normal
// matrix. Parts whose transform mirrors geometry get their winding flipped so
// front faces stay front faces. All parts land in a single material slot.
func Combine(parts []Part) (*Mesh, error) {
	if len(parts) == 0 {
		return nil, ErrNoParts
	}

	var vertexCount, indexCount int
	for i, p := range parts {
		if err := p.Mesh.Validate(); err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		vertexCount += len(p.Mesh.Vertices)
		indexCount += len(p.Mesh.Indices)
	}

	out := &Mesh{
		Vertices: make([]Vertex, 0, vertexCount),
		Indices:  make([]uint32, 0, indexCount),
	}

	for _, p := range parts {
		base := uint32(len(out.Vertices))
		normalMat := p.Transform.NormalMatrix()

		for _, v := range p.Mesh.Vertices {
			out.Vertices = append(out.Vertices, Vertex{
				Position: p.Transform.TransformPoint(v.Position),
				Normal:   math.V3(normalMat.TransformDirection(v.Normal)).Normalize().Array(),
				TexCoord: v.TexCoord,
			})
		}

		mirrored := p.Transform.Determinant3x3() < 0
		for i := 0; i < len(p.Mesh.Indices); i += 3 {
			a, b, c := p.Mesh.Indices[i], p.Mesh.Indices[i+1], p.Mesh.Indices[i+2]
			if mirrored {
				b, c = c, b
			}
			out.Indices = append(out.Indices, base+a, base+b, base+c)
		}
	}

	out.RecomputeBounds()
	return out, nil
}
