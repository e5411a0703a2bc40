package core

import (
	stdmath "math"

	"viewport-engine/math"
)

// Color is linear RGBA.
type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite  = Color{1, 1, 1, 1}
	ColorBlack  = Color{0, 0, 0, 1}
	ColorRed    = Color{1, 0, 0, 1}
	ColorGreen  = Color{0, 1, 0, 1}
	ColorBlue   = Color{0, 0, 1, 1}
	ColorYellow = Color{1, 1, 0, 1}
)

func (c Color) Mul(s float32) Color {
	return Color{c.R * s, c.G * s, c.B * s, c.A}
}

func (c Color) Modulate(o Color) Color {
	return Color{c.R * o.R, c.G * o.G, c.B * o.B, c.A * o.A}
}

// Lerp blends every channel, alpha included, from c to o.
func (c Color) Lerp(o Color, t float32) Color {
	return Color{
		c.R + (o.R-c.R)*t,
		c.G + (o.G-c.G)*t,
		c.B + (o.B-c.B)*t,
		c.A + (o.A-c.A)*t,
	}
}

func (c Color) Vec4() math.Vec4 { return math.Vec4{X: c.R, Y: c.G, Z: c.B, W: c.A} }

// ToSRGB8 encodes a linear colour with the sRGB transfer function. Alpha
// is stored linearly. Every backend goes through the same table so gamma
// rounding is identical.
func (c Color) ToSRGB8() [4]uint8 {
	return [4]uint8{
		LinearToSRGB8(c.R),
		LinearToSRGB8(c.G),
		LinearToSRGB8(c.B),
		uint8(math.Clamp(c.A, 0, 1)*255 + 0.5),
	}
}

func ColorFromSRGB8(r, g, b, a uint8) Color {
	return Color{srgbToLinear[r], srgbToLinear[g], srgbToLinear[b], float32(a) / 255}
}

var srgbToLinear [256]float32

func init() {
	for i := range srgbToLinear {
		srgbToLinear[i] = SRGBToLinear(float32(i) / 255)
	}
}

func LinearToSRGB(v float32) float32 {
	v = math.Clamp(v, 0, 1)
	if v <= 0.0031308 {
		return v * 12.92
	}
	return float32(1.055*stdmath.Pow(float64(v), 1/2.4) - 0.055)
}

func LinearToSRGB8(v float32) uint8 {
	return uint8(LinearToSRGB(v)*255 + 0.5)
}

func SRGBToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return float32(stdmath.Pow((float64(v)+0.055)/1.055, 2.4))
}

// SRGB8ToLinear decodes one channel through the lookup table.
func SRGB8ToLinear(v uint8) float32 { return srgbToLinear[v] }

// Vertex is the fixed 48-byte layout every backend consumes.
type Vertex struct {
	Position math.Vec3
	Normal   math.Vec3
	Color    Color
	UV       math.Vec2
}

const (
	VertexSize     = 48
	OffsetPosition = 0
	OffsetNormal   = 12
	OffsetColor    = 24
	OffsetUV       = 40
)

// Transform is the TRS representation used for local transforms. Rotation
// holds Euler angles in radians.
type Transform struct {
	Position math.Vec3
	Rotation math.Vec3
	Scale    math.Vec3
}

func NewTransform() Transform {
	return Transform{Scale: math.Vec3One}
}

func (t Transform) Matrix() math.Mat4 {
	return math.Mat4TRS(t.Position, t.Rotation, t.Scale)
}
