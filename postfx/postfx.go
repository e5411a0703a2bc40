// Package postfx applies screen-space effects to a rendered frame on the
// CPU, after readback, so every backend gets the same result.
package postfx

import (
	stdmath "math"
	"strings"

	"viewport-engine/config"
	"viewport-engine/core"
	"viewport-engine/math"
)

type FogMode uint8

const (
	FogLinear FogMode = iota
	FogExp
)

type Operator uint8

const (
	Reinhard Operator = iota
	ACES
)

// Fog blends toward Color by view distance. Linear fog ramps between
// Start and End; exponential fog uses Density.
type Fog struct {
	Enabled    bool
	Color      core.Color
	Start, End float32
	Density    float32
	Mode       FogMode
}

type Tonemap struct {
	Enabled  bool
	Exposure float32
	Operator Operator
}

// Gamma is an extra display gamma on top of the sRGB encode. 1 is the
// identity.
type Gamma struct {
	Enabled bool
	Value   float32
}

// Vignette darkens toward the corners, starting at Radius (0 centre,
// 1 corner).
type Vignette struct {
	Enabled  bool
	Strength float32
	Radius   float32
}

type Settings struct {
	Fog      Fog
	Tonemap  Tonemap
	Gamma    Gamma
	Vignette Vignette
}

func Default() Settings {
	return Settings{
		Fog:      Fog{Color: core.Color{R: 0.7, G: 0.7, B: 0.75, A: 1}, Start: 10, End: 50, Density: 0.05},
		Tonemap:  Tonemap{Exposure: 1},
		Gamma:    Gamma{Value: 1},
		Vignette: Vignette{Strength: 0.4, Radius: 0.75},
	}
}

// FromConfig converts the YAML post-processing section.
func FromConfig(c config.PostConfig) Settings {
	s := Default()
	s.Fog.Enabled = c.Fog.Enabled
	s.Fog.Color = core.Color{R: c.Fog.Color[0], G: c.Fog.Color[1], B: c.Fog.Color[2], A: 1}
	s.Fog.Start, s.Fog.End, s.Fog.Density = c.Fog.Start, c.Fog.End, c.Fog.Density
	if strings.EqualFold(c.Fog.Mode, "exp") {
		s.Fog.Mode = FogExp
	}
	s.Tonemap.Enabled = c.Tonemap.Enabled
	s.Tonemap.Exposure = c.Tonemap.Exposure
	if strings.EqualFold(c.Tonemap.Operator, "aces") {
		s.Tonemap.Operator = ACES
	}
	s.Gamma.Enabled, s.Gamma.Value = c.Gamma.Enabled, c.Gamma.Value
	s.Vignette.Enabled = c.Vignette.Enabled
	s.Vignette.Strength, s.Vignette.Radius = c.Vignette.Strength, c.Vignette.Radius
	return s
}

func (s *Settings) Active() bool {
	return s.Fog.Enabled || s.Tonemap.Enabled || s.Gamma.Enabled || s.Vignette.Enabled
}

// Frame is the input Apply works on. Pix holds RGBA8 sRGB rows top-down
// and is modified in place. Depth holds normalized window depth in the
// same order; fog is skipped when it is missing.
type Frame struct {
	Pix           []byte
	Width, Height int
	Depth         []float32
	Near, Far     float32
}

// Apply runs fog, tonemap, gamma and vignette, in that order. It does
// nothing when every effect is disabled.
func Apply(f Frame, s Settings) {
	if !s.Active() || f.Width <= 0 || f.Height <= 0 || len(f.Pix) < f.Width*f.Height*4 {
		return
	}
	fog := s.Fog.Enabled && len(f.Depth) >= f.Width*f.Height && f.Far > f.Near
	var invGamma float32 = 1
	if s.Gamma.Enabled && s.Gamma.Value > 0 {
		invGamma = 1 / s.Gamma.Value
	}
	exposure := s.Tonemap.Exposure
	if exposure <= 0 {
		exposure = 1
	}

	cx, cy := float32(f.Width)/2, float32(f.Height)/2
	norm := 1 / float32(stdmath.Hypot(float64(cx), float64(cy)))

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := y*f.Width + x
			p := f.Pix[i*4 : i*4+4 : i*4+4]
			c := [3]float32{core.SRGB8ToLinear(p[0]), core.SRGB8ToLinear(p[1]), core.SRGB8ToLinear(p[2])}

			if fog {
				dist := LinearizeDepth(f.Depth[i], f.Near, f.Far)
				k := s.Fog.visibility(dist)
				c[0] = s.Fog.Color.R + (c[0]-s.Fog.Color.R)*k
				c[1] = s.Fog.Color.G + (c[1]-s.Fog.Color.G)*k
				c[2] = s.Fog.Color.B + (c[2]-s.Fog.Color.B)*k
			}
			if s.Tonemap.Enabled {
				for k := range c {
					c[k] = s.Tonemap.Operator.apply(c[k] * exposure)
				}
			}
			if invGamma != 1 {
				for k := range c {
					c[k] = float32(stdmath.Pow(float64(max(c[k], 0)), float64(invGamma)))
				}
			}
			if s.Vignette.Enabled {
				dx, dy := float32(x)+0.5-cx, float32(y)+0.5-cy
				d := float32(stdmath.Sqrt(float64(dx*dx+dy*dy))) * norm
				v := 1 - s.Vignette.Strength*smoothstep(s.Vignette.Radius, 1, d)
				for k := range c {
					c[k] *= v
				}
			}

			p[0] = core.LinearToSRGB8(c[0])
			p[1] = core.LinearToSRGB8(c[1])
			p[2] = core.LinearToSRGB8(c[2])
		}
	}
}

// LinearizeDepth turns a normalized window depth from a perspective
// projection back into view distance.
func LinearizeDepth(d, near, far float32) float32 {
	z := d*2 - 1
	return 2 * near * far / (far + near - z*(far-near))
}

// visibility is the share of the surface colour that survives the fog.
func (f *Fog) visibility(dist float32) float32 {
	switch f.Mode {
	case FogExp:
		return math.Clamp(float32(stdmath.Exp(float64(-f.Density*dist))), 0, 1)
	default:
		if f.End <= f.Start {
			if dist >= f.End {
				return 0
			}
			return 1
		}
		return math.Clamp((f.End-dist)/(f.End-f.Start), 0, 1)
	}
}

func (o Operator) apply(v float32) float32 {
	if v <= 0 {
		return 0
	}
	switch o {
	case ACES:
		return math.Clamp(v*(2.51*v+0.03)/(v*(2.43*v+0.59)+0.14), 0, 1)
	default:
		return v / (1 + v)
	}
}

func smoothstep(e0, e1, x float32) float32 {
	if e1 <= e0 {
		if x >= e0 {
			return 1
		}
		return 0
	}
	t := math.Clamp((x-e0)/(e1-e0), 0, 1)
	return t * t * (3 - 2*t)
}
