package math

import "math"

// Mat4 is a 4x4 matrix stored column-major: m[col][row]. Vectors are
// column vectors, so a.Mul(b) applies b first, and translation lives in
// m[3][0..2]. The memory layout matches what GL and SPIR-V expect for a
// mat4 uploaded without transposition.
type Mat4 [4][4]float32

// MinScale is the smallest scale component TRS composition will accept.
const MinScale = 1e-6

func Mat4Identity() Mat4 {
	return Mat4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Mul returns m·b.
func (m Mat4) Mul(b Mat4) Mat4 {
	var out Mat4
	for c := range 4 {
		for r := range 4 {
			out[c][r] = m[0][r]*b[c][0] + m[1][r]*b[c][1] + m[2][r]*b[c][2] + m[3][r]*b[c][3]
		}
	}
	return out
}

func (m Mat4) MulVec(v Vec4) Vec4 {
	return Vec4{
		X: m[0][0]*v.X + m[1][0]*v.Y + m[2][0]*v.Z + m[3][0]*v.W,
		Y: m[0][1]*v.X + m[1][1]*v.Y + m[2][1]*v.Z + m[3][1]*v.W,
		Z: m[0][2]*v.X + m[1][2]*v.Y + m[2][2]*v.Z + m[3][2]*v.W,
		W: m[0][3]*v.X + m[1][3]*v.Y + m[2][3]*v.Z + m[3][3]*v.W,
	}
}

// MulVec3 transforms a point and divides by w.
func (m Mat4) MulVec3(p Vec3) Vec3 { return m.MulVec(p.ToVec4(1)).ToVec3DivW() }

// TransformPoint transforms a point by an affine matrix (no w divide).
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*p.X + m[1][0]*p.Y + m[2][0]*p.Z + m[3][0],
		Y: m[0][1]*p.X + m[1][1]*p.Y + m[2][1]*p.Z + m[3][1],
		Z: m[0][2]*p.X + m[1][2]*p.Y + m[2][2]*p.Z + m[3][2],
	}
}

// TransformDirection ignores translation.
func (m Mat4) TransformDirection(d Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*d.X + m[1][0]*d.Y + m[2][0]*d.Z,
		Y: m[0][1]*d.X + m[1][1]*d.Y + m[2][1]*d.Z,
		Z: m[0][2]*d.X + m[1][2]*d.Y + m[2][2]*d.Z,
	}
}

// Row returns row i as a Vec4.
func (m Mat4) Row(i int) Vec4 {
	return Vec4{X: m[0][i], Y: m[1][i], Z: m[2][i], W: m[3][i]}
}

func (m Mat4) Translation() Vec3 {
	return Vec3{X: m[3][0], Y: m[3][1], Z: m[3][2]}
}

func (m Mat4) Transpose() Mat4 {
	var t Mat4
	for c := range 4 {
		for r := range 4 {
			t[r][c] = m[c][r]
		}
	}
	return t
}

// Flatten returns the 16 floats in storage order.
func (m Mat4) Flatten() [16]float32 {
	var out [16]float32
	for c := 0; c < 4; c++ {
		copy(out[c*4:c*4+4], m[c][:])
	}
	return out
}

// NormalMatrix returns the inverse transpose of the upper 3x3, embedded in
// a Mat4. Falls back to m when m is singular.
func (m Mat4) NormalMatrix() Mat4 {
	upper := m
	upper[3] = [4]float32{0, 0, 0, 1}
	upper[0][3], upper[1][3], upper[2][3] = 0, 0, 0
	inv, ok := upper.Inverse()
	if !ok {
		return upper
	}
	return inv.Transpose()
}

func (m Mat4) ApproxEqual(other Mat4, eps float32) bool {
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			d := m[c][r] - other[c][r]
			if d > eps || d < -eps {
				return false
			}
		}
	}
	return true
}

func Mat4Translation(t Vec3) Mat4 {
	return Mat4{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {t.X, t.Y, t.Z, 1}}
}

func Mat4Scale(s Vec3) Mat4 {
	return Mat4{{s.X, 0, 0, 0}, {0, s.Y, 0, 0}, {0, 0, s.Z, 0}, {0, 0, 0, 1}}
}

func sincos(angle float32) (float32, float32) {
	s, c := math.Sincos(float64(angle))
	return float32(s), float32(c)
}

// The single-axis rotations are counter-clockwise looking down the axis
// toward the origin.

func Mat4RotationX(angle float32) Mat4 {
	s, c := sincos(angle)
	return Mat4{{1, 0, 0, 0}, {0, c, s, 0}, {0, -s, c, 0}, {0, 0, 0, 1}}
}

func Mat4RotationY(angle float32) Mat4 {
	s, c := sincos(angle)
	return Mat4{{c, 0, -s, 0}, {0, 1, 0, 0}, {s, 0, c, 0}, {0, 0, 0, 1}}
}

func Mat4RotationZ(angle float32) Mat4 {
	s, c := sincos(angle)
	return Mat4{{c, s, 0, 0}, {-s, c, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
}

// Mat4RotationAxis is Rodrigues' rotation about a (not necessarily unit)
// axis.
func Mat4RotationAxis(axis Vec3, angle float32) Mat4 {
	n := axis.Normalize()
	s, c := sincos(angle)
	k := 1 - c
	xy, xz, yz := k*n.X*n.Y, k*n.X*n.Z, k*n.Y*n.Z
	return Mat4{
		{k*n.X*n.X + c, xy + s*n.Z, xz - s*n.Y, 0},
		{xy - s*n.Z, k*n.Y*n.Y + c, yz + s*n.X, 0},
		{xz + s*n.Y, yz - s*n.X, k*n.Z*n.Z + c, 0},
		{0, 0, 0, 1},
	}
}

// Mat4Perspective builds a right-handed projection with GL clip depth
// (-1..1). Backends with a 0..1 depth range remap in their vertex stage.
func Mat4Perspective(fovY, aspect, near, far float32) Mat4 {
	f := 1 / float32(math.Tan(float64(fovY)/2))
	depth := near - far
	var m Mat4
	m[0][0] = f / aspect
	m[1][1] = f
	m[2][2] = (far + near) / depth
	m[2][3] = -1
	m[3][2] = 2 * far * near / depth
	return m
}

func Mat4Orthographic(left, right, bottom, top, near, far float32) Mat4 {
	w, h, d := right-left, top-bottom, far-near
	return Mat4{
		{2 / w, 0, 0, 0},
		{0, 2 / h, 0, 0},
		{0, 0, -2 / d, 0},
		{-(right + left) / w, -(top + bottom) / h, -(far + near) / d, 1},
	}
}

// Mat4LookAt is the view matrix of an eye at eye looking at target.
func Mat4LookAt(eye, target, up Vec3) Mat4 {
	back := eye.Sub(target).Normalize()
	right := up.Cross(back).Normalize()
	camUp := back.Cross(right)
	return Mat4{
		{right.X, camUp.X, back.X, 0},
		{right.Y, camUp.Y, back.Y, 0},
		{right.Z, camUp.Z, back.Z, 0},
		{-right.Dot(eye), -camUp.Dot(eye), -back.Dot(eye), 1},
	}
}

// Mat4TRS composes T·R·S. Scale components are clamped away from zero so
// the result stays invertible.
func Mat4TRS(translation, rotation, scale Vec3) Mat4 {
	return Mat4Translation(translation).Mul(Mat4Rotation(rotation)).Mul(Mat4Scale(ClampScale(scale)))
}

// Mat4Rotation builds a rotation from Euler angles (radians), applied Z,
// then X, then Y.
func Mat4Rotation(euler Vec3) Mat4 {
	return Mat4RotationY(euler.Y).Mul(Mat4RotationX(euler.X)).Mul(Mat4RotationZ(euler.Z))
}

func ClampScale(s Vec3) Vec3 {
	return Vec3{X: clampAbs(s.X), Y: clampAbs(s.Y), Z: clampAbs(s.Z)}
}

func clampAbs(v float32) float32 {
	if v >= 0 && v < MinScale {
		return MinScale
	}
	if v < 0 && v > -MinScale {
		return -MinScale
	}
	return v
}

// Inverse returns the full cofactor inverse. ok is false when the matrix
// is singular, in which case the identity is returned.
func (m Mat4) Inverse() (Mat4, bool) {
	a := m.Flatten()
	var inv [16]float32

	inv[0] = a[5]*a[10]*a[15] - a[5]*a[11]*a[14] - a[9]*a[6]*a[15] + a[9]*a[7]*a[14] + a[13]*a[6]*a[11] - a[13]*a[7]*a[10]
	inv[4] = -a[4]*a[10]*a[15] + a[4]*a[11]*a[14] + a[8]*a[6]*a[15] - a[8]*a[7]*a[14] - a[12]*a[6]*a[11] + a[12]*a[7]*a[10]
	inv[8] = a[4]*a[9]*a[15] - a[4]*a[11]*a[13] - a[8]*a[5]*a[15] + a[8]*a[7]*a[13] + a[12]*a[5]*a[11] - a[12]*a[7]*a[9]
	inv[12] = -a[4]*a[9]*a[14] + a[4]*a[10]*a[13] + a[8]*a[5]*a[14] - a[8]*a[6]*a[13] - a[12]*a[5]*a[10] + a[12]*a[6]*a[9]
	inv[1] = -a[1]*a[10]*a[15] + a[1]*a[11]*a[14] + a[9]*a[2]*a[15] - a[9]*a[3]*a[14] - a[13]*a[2]*a[11] + a[13]*a[3]*a[10]
	inv[5] = a[0]*a[10]*a[15] - a[0]*a[11]*a[14] - a[8]*a[2]*a[15] + a[8]*a[3]*a[14] + a[12]*a[2]*a[11] - a[12]*a[3]*a[10]
	inv[9] = -a[0]*a[9]*a[15] + a[0]*a[11]*a[13] + a[8]*a[1]*a[15] - a[8]*a[3]*a[13] - a[12]*a[1]*a[11] + a[12]*a[3]*a[9]
	inv[13] = a[0]*a[9]*a[14] - a[0]*a[10]*a[13] - a[8]*a[1]*a[14] + a[8]*a[2]*a[13] + a[12]*a[1]*a[10] - a[12]*a[2]*a[9]
	inv[2] = a[1]*a[6]*a[15] - a[1]*a[7]*a[14] - a[5]*a[2]*a[15] + a[5]*a[3]*a[14] + a[13]*a[2]*a[7] - a[13]*a[3]*a[6]
	inv[6] = -a[0]*a[6]*a[15] + a[0]*a[7]*a[14] + a[4]*a[2]*a[15] - a[4]*a[3]*a[14] - a[12]*a[2]*a[7] + a[12]*a[3]*a[6]
	inv[10] = a[0]*a[5]*a[15] - a[0]*a[7]*a[13] - a[4]*a[1]*a[15] + a[4]*a[3]*a[13] + a[12]*a[1]*a[7] - a[12]*a[3]*a[5]
	inv[14] = -a[0]*a[5]*a[14] + a[0]*a[6]*a[13] + a[4]*a[1]*a[14] - a[4]*a[2]*a[13] - a[12]*a[1]*a[6] + a[12]*a[2]*a[5]
	inv[3] = -a[1]*a[6]*a[11] + a[1]*a[7]*a[10] + a[5]*a[2]*a[11] - a[5]*a[3]*a[10] - a[9]*a[2]*a[7] + a[9]*a[3]*a[6]
	inv[7] = a[0]*a[6]*a[11] - a[0]*a[7]*a[10] - a[4]*a[2]*a[11] + a[4]*a[3]*a[10] + a[8]*a[2]*a[7] - a[8]*a[3]*a[6]
	inv[11] = -a[0]*a[5]*a[11] + a[0]*a[7]*a[9] + a[4]*a[1]*a[11] - a[4]*a[3]*a[9] - a[8]*a[1]*a[7] + a[8]*a[3]*a[5]
	inv[15] = a[0]*a[5]*a[10] - a[0]*a[6]*a[9] - a[4]*a[1]*a[10] + a[4]*a[2]*a[9] + a[8]*a[1]*a[6] - a[8]*a[2]*a[5]

	det := a[0]*inv[0] + a[1]*inv[4] + a[2]*inv[8] + a[3]*inv[12]
	if det == 0 {
		return Mat4Identity(), false
	}

	scale := 1 / det
	var out Mat4
	for i, v := range inv {
		out[i/4][i%4] = v * scale
	}
	return out, true
}
