package math

import "math"

// Mat4 is a 4x4 matrix in column-major order.
// Layout: [m0 m4 m8  m12]
//
//	[m1 m5 m9  m13]
//	[m2 m6 m10 m14]
//	[m3 m7 m11 m15]
type Mat4 [16]float32

// Identity returns an identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate returns a translation matrix.
func Translate(x, y, z float32) Mat4 {
	m := Identity()
	m[12], m[13], m[14] = x, y, z
	return m
}

// Scale returns a scale matrix.
func Scale(x, y, z float32) Mat4 {
	m := Identity()
	m[0], m[5], m[10] = x, y, z
	return m
}

// RotateAxis creates a rotation matrix around an arbitrary axis.
// axis should be normalized, angle is in radians.
func RotateAxis(axis [3]float32, angle float32) Mat4 {
	c := float32(math.Cos(float64(angle)))
	s := float32(math.Sin(float64(angle)))
	t := 1 - c

	x, y, z := axis[0], axis[1], axis[2]

	return Mat4{
		t*x*x + c, t*x*y + s*z, t*x*z - s*y, 0,
		t*x*y - s*z, t*y*y + c, t*y*z + s*x, 0,
		t*x*z + s*y, t*y*z - s*x, t*z*z + c, 0,
		0, 0, 0, 1,
	}
}

// TRS composes translation, rotation and scale into one matrix (T * R * S).
func TRS(translation [3]float32, rotation Quat, scale [3]float32) Mat4 {
	return Translate(translation[0], translation[1], translation[2]).
		Mul(rotation.ToMat4()).
		Mul(Scale(scale[0], scale[1], scale[2]))
}

// Mul multiplies this matrix by another (m * other).
func (m Mat4) Mul(other Mat4) Mat4 {
	var result Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+row] * other[col*4+k]
			}
			result[col*4+row] = sum
		}
	}
	return result
}

// TransformPoint transforms a 3D point by this matrix (assumes w=1).
func (m Mat4) TransformPoint(p [3]float32) [3]float32 {
	x := m[0]*p[0] + m[4]*p[1] + m[8]*p[2] + m[12]
	y := m[1]*p[0] + m[5]*p[1] + m[9]*p[2] + m[13]
	z := m[2]*p[0] + m[6]*p[1] + m[10]*p[2] + m[14]
	w := m[3]*p[0] + m[7]*p[1] + m[11]*p[2] + m[15]
	if w != 0 && w != 1 {
		return [3]float32{x / w, y / w, z / w}
	}
	return [3]float32{x, y, z}
}

// TransformDirection transforms a direction vector (ignores translation).
func (m Mat4) TransformDirection(d [3]float32) [3]float32 {
	return [3]float32{
		m[0]*d[0] + m[4]*d[1] + m[8]*d[2],
		m[1]*d[0] + m[5]*d[1] + m[9]*d[2],
		m[2]*d[0] + m[6]*d[1] + m[10]*d[2],
	}
}

// Transpose returns the transposed matrix.
func (m Mat4) Transpose() Mat4 {
	var t Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			t[row*4+col] = m[col*4+row]
		}
	}
	return t
}

// FromMat3x3 creates a Mat4 from a 3x3 rotation matrix.
func FromMat3x3(m3 [9]float32) Mat4 {
	return Mat4{
		m3[0], m3[1], m3[2], 0,
		m3[3], m3[4], m3[5], 0,
		m3[6], m3[7], m3[8], 0,
		0, 0, 0, 1,
	}
}

// Determinant3x3 returns the determinant of the upper-left 3x3 block.
// A negative value means the transform mirrors geometry.
func (m Mat4) Determinant3x3() float32 {
	return m[0]*(m[5]*m[10]-m[9]*m[6]) -
		m[4]*(m[1]*m[10]-m[9]*m[2]) +
		m[8]*(m[1]*m[6]-m[5]*m[2])
}

// InverseAffine inverts a matrix whose bottom row is (0, 0, 0, 1).
// ok is false when the linear part is singular.
func (m Mat4) InverseAffine() (inv Mat4, ok bool) {
	det := m.Determinant3x3()
	if det == 0 || math.IsNaN(float64(det)) {
		return Identity(), false
	}
	invDet := 1 / det

	// Adjugate of the 3x3 block, column-major.
	inv[0] = (m[5]*m[10] - m[9]*m[6]) * invDet
	inv[1] = (m[9]*m[2] - m[1]*m[10]) * invDet
	inv[2] = (m[1]*m[6] - m[5]*m[2]) * invDet
	inv[4] = (m[8]*m[6] - m[4]*m[10]) * invDet
	inv[5] = (m[0]*m[10] - m[8]*m[2]) * invDet
	inv[6] = (m[4]*m[2] - m[0]*m[6]) * invDet
	inv[8] = (m[4]*m[9] - m[8]*m[5]) * invDet
	inv[9] = (m[8]*m[1] - m[0]*m[9]) * invDet
	inv[10] = (m[0]*m[5] - m[4]*m[1]) * invDet

	t := inv.TransformDirection([3]float32{m[12], m[13], m[14]})
	inv[12], inv[13], inv[14] = -t[0], -t[1], -t[2]
	inv[15] = 1
	return inv, true
}

// NormalMatrix returns the matrix used to transform normals: the inverse
// transpose of the linear part. Singular matrices fall back to m itself.
func (m Mat4) NormalMatrix() Mat4 {
	inv, ok := m.InverseAffine()
	if !ok {
		return m
	}
	n := inv.Transpose()
	n[3], n[7], n[11] = 0, 0, 0
	n[12], n[13], n[14], n[15] = 0, 0, 0, 1
	return n
}

// ApproxEqual reports whether every element differs by at most eps.
func (m Mat4) ApproxEqual(other Mat4, eps float32) bool {
	for i := range m {
		d := m[i] - other[i]
		if d > eps || d < -eps {
			return false
		}
	}
	return true
}
