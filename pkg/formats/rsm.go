// RSM (Resource Model) format: a hierarchy of textured nodes with optional
// keyframe animation.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/Faultbox/flipbake/pkg/encoding"
)

// RSM format errors.
var (
	ErrInvalidRSMMagic       = errors.New("invalid RSM magic: expected 'GRSM'")
	ErrUnsupportedRSMVersion = errors.New("unsupported RSM version")
	ErrTruncatedRSMData      = errors.New("truncated RSM data")
	ErrInvalidNodeCount      = errors.New("invalid RSM node count")
)

const (
	rsmMagic      = "GRSM"
	rsmNameLength = 40

	maxNodes    = 10000
	maxElements = 100000
	maxKeys     = 10000
)

// RSMVersion represents the RSM file version.
type RSMVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v RSMVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if version is >= major.minor.
func (v RSMVersion) AtLeast(major, minor uint8) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// RSMShadingType is the model's shading mode.
type RSMShadingType int32

const (
	RSMShadingNone   RSMShadingType = 0
	RSMShadingFlat   RSMShadingType = 1
	RSMShadingSmooth RSMShadingType = 2
)

// String returns a human-readable shading type name.
func (s RSMShadingType) String() string {
	switch s {
	case RSMShadingNone:
		return "None"
	case RSMShadingFlat:
		return "Flat"
	case RSMShadingSmooth:
		return "Smooth"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// RSMTexCoord is a texture coordinate with its vertex color (v1.2+).
type RSMTexCoord struct {
	Color [4]uint8
	U, V  float32
}

// RSMFace is a triangle.
type RSMFace struct {
	VertexIDs   [3]uint16
	TexCoordIDs [3]uint16
	TextureID   uint16
	Padding     uint16
	TwoSide     int32
	SmoothGroup int32 // v1.2+
}

// RSMPosKeyframe is a position key (v < 1.5).
type RSMPosKeyframe struct {
	Frame    int32
	Position [3]float32
}

// RSMRotKeyframe is a rotation key; Quaternion is X, Y, Z, W.
type RSMRotKeyframe struct {
	Frame      int32
	Quaternion [4]float32
}

// RSMScaleKeyframe is a scale key (v1.5+).
type RSMScaleKeyframe struct {
	Frame int32
	Scale [3]float32
}

// RSMNode is one node of the model hierarchy. Keyframe frames are in
// milliseconds, on the same clock as RSM.AnimLength.
type RSMNode struct {
	Name       string
	Parent     string
	TextureIDs []int32

	Matrix   [9]float32 // 3x3, column-major
	Offset   [3]float32 // pivot
	Position [3]float32
	RotAngle float32 // radians
	RotAxis  [3]float32
	Scale    [3]float32

	Vertices  [][3]float32
	TexCoords []RSMTexCoord
	Faces     []RSMFace

	PosKeys   []RSMPosKeyframe
	RotKeys   []RSMRotKeyframe
	ScaleKeys []RSMScaleKeyframe
}

// RSMVolumeBox is a collision volume.
type RSMVolumeBox struct {
	Size     [3]float32
	Position [3]float32
	Rotation [3]float32
	Flag     int32 // v1.3+
}

// RSM is a parsed model.
type RSM struct {
	Version     RSMVersion
	AnimLength  int32 // milliseconds
	Shading     RSMShadingType
	Alpha       float32 // 0-1, v1.4+
	Textures    []string
	RootNode    string
	Nodes       []RSMNode
	VolumeBoxes []RSMVolumeBox
}

// rsmReader reads little-endian fields and remembers the first failure, so a
// parse can read a whole block and check once.
type rsmReader struct {
	r   *bytes.Reader
	err error
}

func (r *rsmReader) read(v any) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, binary.LittleEndian, v); err != nil {
		r.err = ErrTruncatedRSMData
	}
}

func (r *rsmReader) int32() int32 {
	var v int32
	r.read(&v)
	return v
}

func (r *rsmReader) name() string {
	buf := make([]byte, rsmNameLength)
	r.read(buf)
	if r.err != nil {
		return ""
	}
	return encoding.FixedStringToUTF8(buf)
}

func (r *rsmReader) skip(n int64) {
	if r.err != nil {
		return
	}
	if int64(r.r.Len()) < n {
		r.err = ErrTruncatedRSMData
		return
	}
	_, _ = r.r.Seek(n, io.SeekCurrent)
}

// count reads an element count and rejects values outside [0, limit].
func (r *rsmReader) count(what string, limit int32) int {
	n := r.int32()
	if r.err == nil && (n < 0 || n > limit) {
		r.err = fmt.Errorf("%w: %d %s", ErrTruncatedRSMData, n, what)
	}
	if r.err != nil {
		return 0
	}
	return int(n)
}

// ParseRSM parses RSM data from a byte slice.
func ParseRSM(data []byte) (*RSM, error) {
	if len(data) < 6 {
		return nil, ErrTruncatedRSMData
	}
	if string(data[:4]) != rsmMagic {
		return nil, ErrInvalidRSMMagic
	}

	rsm := &RSM{Version: RSMVersion{Major: data[4], Minor: data[5]}}
	if rsm.Version.Major < 1 || rsm.Version.Major > 2 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}

	r := &rsmReader{r: bytes.NewReader(data[6:])}
	r.read(&rsm.AnimLength)
	r.read(&rsm.Shading)

	rsm.Alpha = 1.0
	if rsm.Version.AtLeast(1, 4) {
		var alpha uint8
		r.read(&alpha)
		rsm.Alpha = float32(alpha) / 255.0
	}

	r.skip(16) // reserved

	textureCount := r.count("textures", maxElements)
	rsm.Textures = make([]string, textureCount)
	for i := range rsm.Textures {
		rsm.Textures[i] = r.name()
	}

	rsm.RootNode = r.name()
	if r.err != nil {
		return nil, fmt.Errorf("reading header: %w", r.err)
	}

	nodeCount := r.int32()
	if r.err != nil {
		return nil, fmt.Errorf("reading node count: %w", r.err)
	}
	if nodeCount < 0 || nodeCount > maxNodes {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNodeCount, nodeCount)
	}

	rsm.Nodes = make([]RSMNode, nodeCount)
	for i := range rsm.Nodes {
		parseRSMNode(r, rsm.Version, &rsm.Nodes[i])
		if r.err != nil {
			return nil, fmt.Errorf("parsing node %d: %w", i, r.err)
		}
	}

	// Volume boxes are optional trailing data.
	if r.r.Len() >= 4 {
		boxCount := r.int32()
		if boxCount > 0 && boxCount < 1000 {
			boxes := make([]RSMVolumeBox, boxCount)
			for i := range boxes {
				b := &boxes[i]
				r.read(&b.Size)
				r.read(&b.Position)
				r.read(&b.Rotation)
				if rsm.Version.AtLeast(1, 3) {
					r.read(&b.Flag)
				}
			}
			if r.err == nil {
				rsm.VolumeBoxes = boxes
			}
		}
	}

	return rsm, nil
}

func parseRSMNode(r *rsmReader, version RSMVersion, node *RSMNode) {
	node.Name = r.name()
	node.Parent = r.name()

	node.TextureIDs = make([]int32, r.count("texture ids", maxElements))
	for i := range node.TextureIDs {
		r.read(&node.TextureIDs[i])
	}

	r.read(&node.Matrix)
	r.read(&node.Offset)
	r.read(&node.Position)
	r.read(&node.RotAngle)
	r.read(&node.RotAxis)
	r.read(&node.Scale)

	node.Vertices = make([][3]float32, r.count("vertices", maxElements))
	for i := range node.Vertices {
		r.read(&node.Vertices[i])
	}

	node.TexCoords = make([]RSMTexCoord, r.count("texture coordinates", maxElements))
	for i := range node.TexCoords {
		tc := &node.TexCoords[i]
		if version.AtLeast(1, 2) {
			r.read(&tc.Color)
		} else {
			tc.Color = [4]uint8{255, 255, 255, 255}
		}
		r.read(&tc.U)
		r.read(&tc.V)
	}

	node.Faces = make([]RSMFace, r.count("faces", maxElements))
	for i := range node.Faces {
		f := &node.Faces[i]
		r.read(&f.VertexIDs)
		r.read(&f.TexCoordIDs)
		r.read(&f.TextureID)
		r.read(&f.Padding)
		r.read(&f.TwoSide)
		if version.AtLeast(1, 2) {
			r.read(&f.SmoothGroup)
		}
	}

	if !version.AtLeast(1, 5) {
		node.PosKeys = make([]RSMPosKeyframe, r.count("position keys", maxKeys))
		for i := range node.PosKeys {
			r.read(&node.PosKeys[i].Frame)
			r.read(&node.PosKeys[i].Position)
		}
	}

	node.RotKeys = make([]RSMRotKeyframe, r.count("rotation keys", maxKeys))
	for i := range node.RotKeys {
		r.read(&node.RotKeys[i].Frame)
		r.read(&node.RotKeys[i].Quaternion)
	}

	if version.AtLeast(1, 5) {
		node.ScaleKeys = make([]RSMScaleKeyframe, r.count("scale keys", maxKeys))
		for i := range node.ScaleKeys {
			r.read(&node.ScaleKeys[i].Frame)
			r.read(&node.ScaleKeys[i].Scale)
		}
	}
}

// ParseRSMFile parses an RSM file from disk.
func ParseRSMFile(path string) (*RSM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading RSM file: %w", err)
	}
	return ParseRSM(data)
}

// Encode writes rsm in its declared version's layout. Fields the version
// does not carry are dropped.
func (rsm *RSM) Encode(w io.Writer) error {
	var buf bytes.Buffer
	put := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	putName := func(s string) { buf.Write(encoding.UTF8ToFixedString(s, rsmNameLength)) }
	putCount := func(n int) { put(int32(n)) }

	v := rsm.Version
	buf.WriteString(rsmMagic)
	buf.WriteByte(v.Major)
	buf.WriteByte(v.Minor)
	put(rsm.AnimLength)
	put(rsm.Shading)
	if v.AtLeast(1, 4) {
		put(uint8(math.Round(float64(rsm.Alpha) * 255)))
	}
	buf.Write(make([]byte, 16))

	putCount(len(rsm.Textures))
	for _, t := range rsm.Textures {
		putName(t)
	}
	putName(rsm.RootNode)

	putCount(len(rsm.Nodes))
	for i := range rsm.Nodes {
		n := &rsm.Nodes[i]
		putName(n.Name)
		putName(n.Parent)
		putCount(len(n.TextureIDs))
		put(n.TextureIDs)
		put(n.Matrix)
		put(n.Offset)
		put(n.Position)
		put(n.RotAngle)
		put(n.RotAxis)
		put(n.Scale)

		putCount(len(n.Vertices))
		put(n.Vertices)

		putCount(len(n.TexCoords))
		for _, tc := range n.TexCoords {
			if v.AtLeast(1, 2) {
				put(tc.Color)
			}
			put(tc.U)
			put(tc.V)
		}

		putCount(len(n.Faces))
		for _, f := range n.Faces {
			put(f.VertexIDs)
			put(f.TexCoordIDs)
			put(f.TextureID)
			put(f.Padding)
			put(f.TwoSide)
			if v.AtLeast(1, 2) {
				put(f.SmoothGroup)
			}
		}

		if !v.AtLeast(1, 5) {
			putCount(len(n.PosKeys))
			put(n.PosKeys)
		}
		putCount(len(n.RotKeys))
		put(n.RotKeys)
		if v.AtLeast(1, 5) {
			putCount(len(n.ScaleKeys))
			put(n.ScaleKeys)
		}
	}

	putCount(len(rsm.VolumeBoxes))
	for _, b := range rsm.VolumeBoxes {
		put(b.Size)
		put(b.Position)
		put(b.Rotation)
		if v.AtLeast(1, 3) {
			put(b.Flag)
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// TotalVertexCount returns the number of vertices across all nodes.
func (rsm *RSM) TotalVertexCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Vertices)
	}
	return total
}

// TotalFaceCount returns the number of faces across all nodes.
func (rsm *RSM) TotalFaceCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Faces)
	}
	return total
}

// NodeByName returns the named node, or nil.
func (rsm *RSM) NodeByName(name string) *RSMNode {
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Name == name {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// Root returns the root node, or nil.
func (rsm *RSM) Root() *RSMNode {
	return rsm.NodeByName(rsm.RootNode)
}

// Children returns the nodes whose parent is parentName.
func (rsm *RSM) Children(parentName string) []*RSMNode {
	var children []*RSMNode
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Parent == parentName && rsm.Nodes[i].Name != parentName {
			children = append(children, &rsm.Nodes[i])
		}
	}
	return children
}

// HasAnimation reports whether any node has keyframes.
func (rsm *RSM) HasAnimation() bool {
	for _, node := range rsm.Nodes {
		if len(node.PosKeys) > 0 || len(node.RotKeys) > 0 || len(node.ScaleKeys) > 0 {
			return true
		}
	}
	return false
}

// AnimSeconds returns the animation length in seconds.
func (rsm *RSM) AnimSeconds() float64 {
	if rsm.AnimLength <= 0 {
		return 0
	}
	return float64(rsm.AnimLength) / 1000
}
