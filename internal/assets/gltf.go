package assets

import (
	"errors"
	"fmt"
	"io"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/flipbake/internal/mesh"
)

// FrameExt is the file extension of persisted frames.
const FrameExt = ".glb"

// ErrNoMesh is returned when a glTF document carries no readable mesh.
var ErrNoMesh = errors.New("document has no mesh")

// FrameDocument builds a single-node glTF document holding m.
func FrameDocument(m *mesh.Mesh) *gltf.Document {
	doc := gltf.NewDocument()

	attributes := map[string]uint32{
		"POSITION":   modeler.WritePosition(doc, m.Positions()),
		"NORMAL":     modeler.WriteNormal(doc, m.Normals()),
		"TEXCOORD_0": modeler.WriteTextureCoord(doc, m.TexCoords()),
	}
	indices := modeler.WriteIndices(doc, m.Indices)

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: m.Name,
		Primitives: []*gltf.Primitive{{
			Indices:    &indices,
			Attributes: attributes,
		}},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name: m.Name,
		Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
	})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	return doc
}

// EncodeFrame writes m as binary glTF.
func EncodeFrame(w io.Writer, m *mesh.Mesh) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("encoding frame %q: %w", m.Name, err)
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	return enc.Encode(FrameDocument(m))
}

// ReadFrame loads the first mesh of a glTF file. Primitives are merged.
func ReadFrame(path string) (*mesh.Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	m, err := DocumentMesh(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// DocumentMesh converts the first mesh of doc.
func DocumentMesh(doc *gltf.Document) (*mesh.Mesh, error) {
	if len(doc.Meshes) == 0 {
		return nil, ErrNoMesh
	}
	gm := doc.Meshes[0]
	out := &mesh.Mesh{Name: gm.Name}

	for i, prim := range gm.Primitives {
		posIdx, ok := prim.Attributes["POSITION"]
		if !ok || prim.Indices == nil {
			return nil, fmt.Errorf("%w: primitive %d lacks positions or indices", ErrNoMesh, i)
		}
		positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("primitive %d positions: %w", i, err)
		}
		indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("primitive %d indices: %w", i, err)
		}

		var normals [][3]float32
		if idx, ok := prim.Attributes["NORMAL"]; ok {
			if normals, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil); err != nil {
				return nil, fmt.Errorf("primitive %d normals: %w", i, err)
			}
		}
		var uvs [][2]float32
		if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
			if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil); err != nil {
				return nil, fmt.Errorf("primitive %d uvs: %w", i, err)
			}
		}

		base := uint32(len(out.Vertices))
		for v, p := range positions {
			vert := mesh.Vertex{Position: p}
			if v < len(normals) {
				vert.Normal = normals[v]
			}
			if v < len(uvs) {
				vert.TexCoord = uvs[v]
			}
			out.Vertices = append(out.Vertices, vert)
		}
		for _, idx := range indices {
			out.Indices = append(out.Indices, base+idx)
		}
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	out.RecomputeBounds()
	return out, nil
}
