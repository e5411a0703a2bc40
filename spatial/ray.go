package spatial

import (
	stdmath "math"

	"github.com/go-gl/mathgl/mgl32"

	"viewport-engine/math"
)

type Ray struct {
	Origin math.Vec3
	Dir    math.Vec3
}

// NewRay normalizes dir.
func NewRay(origin, dir math.Vec3) Ray {
	return Ray{Origin: origin, Dir: dir.Normalize()}
}

func (r Ray) At(t float32) math.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// ToMgl converts an engine matrix to mathgl's layout. Both store columns
// contiguously, so this is a plain reinterpretation.
func ToMgl(m math.Mat4) mgl32.Mat4 {
	return mgl32.Mat4(m.Flatten())
}

// FromMgl is the inverse of ToMgl.
func FromMgl(m mgl32.Mat4) math.Mat4 {
	var out math.Mat4
	for c := range 4 {
		for r := range 4 {
			out[c][r] = m[c*4+r]
		}
	}
	return out
}

// ScreenToRay builds a world-space ray through window position (x, y),
// with y growing downward as in the colour readback. Pass pixel centres
// (px+0.5) to hit what the rasterizer sampled.
func ScreenToRay(x, y float32, width, height int, view, proj math.Mat4) (Ray, bool) {
	if width <= 0 || height <= 0 {
		return Ray{}, false
	}
	mv, p := ToMgl(view), ToMgl(proj)
	winY := float32(height) - y

	near, err := mgl32.UnProject(mgl32.Vec3{x, winY, 0}, mv, p, 0, 0, width, height)
	if err != nil {
		return Ray{}, false
	}
	far, err := mgl32.UnProject(mgl32.Vec3{x, winY, 1}, mv, p, 0, 0, width, height)
	if err != nil {
		return Ray{}, false
	}

	origin := math.Vec3{X: near[0], Y: near[1], Z: near[2]}
	dir := math.Vec3{X: far[0] - near[0], Y: far[1] - near[1], Z: far[2] - near[2]}
	if dir.LengthSqr() == 0 {
		return Ray{}, false
	}
	return NewRay(origin, dir), true
}

// WorldToScreen projects a world point into window coordinates with y
// growing downward. ok is false for points behind the eye.
func WorldToScreen(p math.Vec3, width, height int, view, proj math.Mat4) (x, y float32, ok bool) {
	clip := proj.Mul(view).MulVec(p.ToVec4(1))
	if clip.W <= 0 {
		return 0, 0, false
	}
	win := mgl32.Project(mgl32.Vec3{p.X, p.Y, p.Z}, ToMgl(view), ToMgl(proj), 0, 0, width, height)
	return win[0], float32(height) - win[1], true
}

// RayAABB is the slab test. tNear may be negative when the origin is
// inside the box; hit requires the exit to be in front of the origin.
func RayAABB(r Ray, b AABB) (tNear, tFar float32, hit bool) {
	tNear = float32(stdmath.Inf(-1))
	tFar = float32(stdmath.Inf(1))

	for axis := 0; axis < 3; axis++ {
		o := r.Origin.Axis(axis)
		d := r.Dir.Axis(axis)
		lo, hi := b.Min.Axis(axis), b.Max.Axis(axis)

		if d > -1e-12 && d < 1e-12 {
			if o < lo || o > hi {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / d
		t0 := (lo - o) * inv
		t1 := (hi - o) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tNear = max(tNear, t0)
		tFar = min(tFar, t1)
		if tNear > tFar {
			return 0, 0, false
		}
	}
	if tFar < 0 {
		return 0, 0, false
	}
	return tNear, tFar, true
}

// TriangleEpsilon rejects near-parallel rays and self hits.
const TriangleEpsilon = 1e-7

// RayTriangle is Möller–Trumbore. Both faces are hit. u and v weight v1
// and v2; v0 gets 1-u-v.
func RayTriangle(r Ray, v0, v1, v2 math.Vec3) (t, u, v float32, hit bool) {
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	p := r.Dir.Cross(e2)
	det := e1.Dot(p)
	if det > -TriangleEpsilon && det < TriangleEpsilon {
		return 0, 0, 0, false
	}
	inv := 1 / det

	s := r.Origin.Sub(v0)
	u = s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	q := s.Cross(e1)
	v = r.Dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = e2.Dot(q) * inv
	if t <= TriangleEpsilon {
		return 0, 0, 0, false
	}
	return t, u, v, true
}
