package math

import "math"

// Vec2 is used for texture coordinates and screen positions.
type Vec2 struct {
	X, Y float32
}

func (a Vec2) Add(b Vec2) Vec2    { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2    { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Mul(s float32) Vec2 { return Vec2{a.X * s, a.Y * s} }
func (a Vec2) Dot(b Vec2) float32 { return a.X*b.X + a.Y*b.Y }
func (a Vec2) Length() float32    { return sqrt32(a.Dot(a)) }

type Vec3 struct {
	X, Y, Z float32
}

// World axes: +Y is up, the camera looks down -Z, Vec3Front is +Z.
var (
	Vec3Zero  = Vec3{}
	Vec3One   = Vec3{1, 1, 1}
	Vec3Up    = Vec3{Y: 1}
	Vec3Right = Vec3{X: 1}
	Vec3Front = Vec3{Z: 1}
)

func NewVec3(x, y, z float32) Vec3 { return Vec3{x, y, z} }

func Vec3FromArray(a [3]float32) Vec3 { return Vec3{a[0], a[1], a[2]} }

func (a Vec3) Add(b Vec3) Vec3    { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3    { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Mul(s float32) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Negate() Vec3       { return Vec3{-a.X, -a.Y, -a.Z} }

// MulVec multiplies component by component.
func (a Vec3) MulVec(b Vec3) Vec3 { return Vec3{a.X * b.X, a.Y * b.Y, a.Z * b.Z} }

func (a Vec3) Dot(b Vec3) float32 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) LengthSqr() float32 { return a.Dot(a) }
func (a Vec3) Length() float32    { return sqrt32(a.Dot(a)) }

// Normalize leaves the zero vector unchanged.
func (a Vec3) Normalize() Vec3 {
	if l := a.Length(); l > 0 {
		return a.Mul(1 / l)
	}
	return a
}

func (a Vec3) Distance(b Vec3) float32 { return a.Sub(b).Length() }

func (a Vec3) Lerp(b Vec3, t float32) Vec3 {
	return Vec3{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t, a.Z + (b.Z-a.Z)*t}
}

func (a Vec3) Min(b Vec3) Vec3 { return Vec3{min(a.X, b.X), min(a.Y, b.Y), min(a.Z, b.Z)} }
func (a Vec3) Max(b Vec3) Vec3 { return Vec3{max(a.X, b.X), max(a.Y, b.Y), max(a.Z, b.Z)} }

// Axis returns component i: 0 X, 1 Y, anything else Z.
func (a Vec3) Axis(i int) float32 {
	switch i {
	case 0:
		return a.X
	case 1:
		return a.Y
	}
	return a.Z
}

func (a Vec3) ToVec4(w float32) Vec4 { return Vec4{a.X, a.Y, a.Z, w} }

type Vec4 struct {
	X, Y, Z, W float32
}

func NewVec4(x, y, z, w float32) Vec4 { return Vec4{x, y, z, w} }

func (a Vec4) Add(b Vec4) Vec4    { return Vec4{a.X + b.X, a.Y + b.Y, a.Z + b.Z, a.W + b.W} }
func (a Vec4) Sub(b Vec4) Vec4    { return Vec4{a.X - b.X, a.Y - b.Y, a.Z - b.Z, a.W - b.W} }
func (a Vec4) Mul(s float32) Vec4 { return Vec4{a.X * s, a.Y * s, a.Z * s, a.W * s} }
func (a Vec4) Dot(b Vec4) float32 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z + a.W*b.W }

func (a Vec4) Lerp(b Vec4, t float32) Vec4 { return a.Add(b.Sub(a).Mul(t)) }

func (a Vec4) ToVec3() Vec3 { return Vec3{a.X, a.Y, a.Z} }

// ToVec3DivW is the perspective divide; W == 0 drops W instead.
func (a Vec4) ToVec3DivW() Vec3 {
	if a.W == 0 {
		return a.ToVec3()
	}
	inv := 1 / a.W
	return Vec3{a.X * inv, a.Y * inv, a.Z * inv}
}

func Clamp(v, lo, hi float32) float32 { return min(max(v, lo), hi) }

func sqrt32(v float32) float32 { return float32(math.Sqrt(float64(v))) }
