package rsmsource

import (
	"github.com/Faultbox/flipbake/pkg/formats"
	"github.com/Faultbox/flipbake/pkg/math"
)

// yFlip converts RSM's Y-down model space to Y-up.
var yFlip = math.Scale(1, -1, 1)

// nodeMatrix returns the local-to-model transform for node's vertices at
// timeMs: the inherited hierarchy matrix, then the node's own pivot offset
// and 3x3 matrix. Children inherit only the hierarchy part.
func nodeMatrix(node *formats.RSMNode, rsm *formats.RSM, timeMs float32) math.Mat4 {
	m := hierarchyMatrix(node, rsm, timeMs, make(map[string]bool))
	m = m.Mul(math.Translate(node.Offset[0], node.Offset[1], node.Offset[2]))
	return m.Mul(math.FromMat3x3(node.Matrix))
}

// hierarchyMatrix is parent * Position * Rotation * Scale. visited breaks
// parent cycles in malformed files.
func hierarchyMatrix(node *formats.RSMNode, rsm *formats.RSM, timeMs float32, visited map[string]bool) math.Mat4 {
	if visited[node.Name] {
		return math.Identity()
	}
	visited[node.Name] = true

	pos := node.Position
	if len(node.PosKeys) > 0 {
		pos = interpolatePos(node.PosKeys, timeMs)
	}
	local := math.Translate(pos[0], pos[1], pos[2])

	// Keyframes replace the static axis-angle rotation.
	switch {
	case len(node.RotKeys) > 0:
		local = local.Mul(interpolateRot(node.RotKeys, timeMs).ToMat4())
	case node.RotAngle != 0:
		axis := math.V3(node.RotAxis)
		if axis.Length() > 1e-6 {
			local = local.Mul(math.RotateAxis(axis.Normalize().Array(), node.RotAngle))
		}
	}

	local = local.Mul(math.Scale(node.Scale[0], node.Scale[1], node.Scale[2]))
	if len(node.ScaleKeys) > 0 {
		s := interpolateScale(node.ScaleKeys, timeMs)
		local = local.Mul(math.Scale(s[0], s[1], s[2]))
	}

	if node.Parent != "" && node.Parent != node.Name {
		if parent := rsm.NodeByName(node.Parent); parent != nil {
			return hierarchyMatrix(parent, rsm, timeMs, visited).Mul(local)
		}
	}
	return local
}
