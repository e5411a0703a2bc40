package viewport

import (
	stdmath "math"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/scene"
)

// Cross-backend agreement: at least EquivalentRatio of the pixels match
// the software reference within EquivalentTolerance on every channel, and
// no channel anywhere differs by more than MaxPixelDiff.
const (
	EquivalentTolerance = 1
	EquivalentRatio     = 0.99
	MaxPixelDiff        = 32
)

// ImageDiff summarises a per-channel comparison of two RGBA8 images of
// the same size.
type ImageDiff struct {
	Pixels  int
	Within  int
	MaxDiff int
}

// Ratio is the fraction of pixels whose channels all agree within the
// tolerance. Mismatched or empty inputs give 0.
func (d ImageDiff) Ratio() float64 {
	if d.Pixels == 0 {
		return 0
	}
	return float64(d.Within) / float64(d.Pixels)
}

// Equivalent reports whether the diff meets the cross-backend bounds.
func (d ImageDiff) Equivalent() bool {
	return d.Pixels > 0 && d.Ratio() >= EquivalentRatio && d.MaxDiff <= MaxPixelDiff
}

// CompareRGBA compares two RGBA8 buffers channel by channel.
func CompareRGBA(a, b []byte, tolerance int) ImageDiff {
	if len(a) != len(b) || len(a)%4 != 0 {
		return ImageDiff{MaxDiff: 255}
	}
	d := ImageDiff{Pixels: len(a) / 4}
	for i := 0; i < len(a); i += 4 {
		worst := 0
		for c := range 4 {
			diff := int(a[i+c]) - int(b[i+c])
			if diff < 0 {
				diff = -diff
			}
			worst = max(worst, diff)
		}
		d.MaxDiff = max(d.MaxDiff, worst)
		if worst <= tolerance {
			d.Within++
		}
	}
	return d
}

// BuildReferenceScene fills v with the cross-backend test scene: a cube
// rotated off-axis on a ground plane, lit by a directional, a point and a
// spot light, seen from a fixed orbit camera.
func BuildReferenceScene(v *Viewport) {
	if !v.alive() {
		return
	}
	w, h := v.Size()
	v.Camera = scene.NewOrbitCamera(math.Vec3{}, 4.5, 0.6, 0.45, stdmath.Pi/4, float32(w)/float32(max(h, 1)))

	cube := v.AddGeometry(scene.Cube(1.4).WithColor(core.Color{R: 0.9, G: 0.55, B: 0.3, A: 1}), 1)
	v.SetRotation(cube, math.Vec3{X: 0.4, Y: 0.7, Z: 0.1})

	ground := v.AddGeometry(scene.Plane(6, 6, 1), 2)
	v.SetPosition(ground, math.Vec3{Y: -0.9})
	mat := scene.DefaultMaterial()
	mat.BaseColor = core.Color{R: 0.35, G: 0.4, B: 0.45, A: 1}
	v.SetMaterial(ground, mat)

	v.Scene.Ambient = core.Color{R: 0.08, G: 0.08, B: 0.1, A: 1}
	v.AddLight(scene.DirectionalLight(math.Vec3{X: -0.4, Y: -1, Z: -0.3}, core.Color{R: 1, G: 0.95, B: 0.9, A: 1}, 0.8))
	v.AddLight(scene.PointLight(math.Vec3{X: 2, Y: 1.5, Z: 2}, core.Color{R: 0.3, G: 0.5, B: 1, A: 1}, 1.5, 8))
	v.AddLight(scene.SpotLight(math.Vec3{X: -2, Y: 3, Z: 1}, math.Vec3{X: 0.6, Y: -1, Z: -0.3}, core.ColorWhite, 1.2, 10, 0.3, 0.5))
}
