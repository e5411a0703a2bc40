package spatial

import "viewport-engine/math"

// Plane is the half-space Normal·p + D >= 0.
type Plane struct {
	Normal math.Vec3
	D      float32
}

// Distance is signed; positive is inside.
func (p Plane) Distance(pt math.Vec3) float32 {
	return p.Normal.Dot(pt) + p.D
}

func planeFrom(v math.Vec4) Plane {
	n := math.Vec3{X: v.X, Y: v.Y, Z: v.Z}
	l := n.Length()
	if l == 0 {
		return Plane{}
	}
	return Plane{Normal: n.Mul(1 / l), D: v.W / l}
}

// Plane order in Frustum.Planes.
const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
)

type Frustum struct {
	Planes [6]Plane
}

// Classification of a box against a frustum.
type Classification uint8

const (
	Outside Classification = iota
	Intersect
	Inside
)

func (c Classification) String() string {
	switch c {
	case Inside:
		return "inside"
	case Intersect:
		return "intersect"
	default:
		return "outside"
	}
}

// FrustumFromMatrix extracts normalized planes from a view-projection
// matrix (Gribb/Hartmann) for GL clip depth.
func FrustumFromMatrix(vp math.Mat4) Frustum {
	r0, r1, r2, r3 := vp.Row(0), vp.Row(1), vp.Row(2), vp.Row(3)

	var f Frustum
	f.Planes[PlaneLeft] = planeFrom(r3.Add(r0))
	f.Planes[PlaneRight] = planeFrom(r3.Sub(r0))
	f.Planes[PlaneBottom] = planeFrom(r3.Add(r1))
	f.Planes[PlaneTop] = planeFrom(r3.Sub(r1))
	f.Planes[PlaneNear] = planeFrom(r3.Add(r2))
	f.Planes[PlaneFar] = planeFrom(r3.Sub(r2))
	return f
}

// ClassifyAABB tests the positive and negative vertex of the box against
// each plane. It returns Outside as soon as one plane rejects the box.
func (f *Frustum) ClassifyAABB(b AABB) Classification {
	result := Inside
	for i := range f.Planes {
		p := &f.Planes[i]

		pos, neg := b.Max, b.Min
		if p.Normal.X < 0 {
			pos.X, neg.X = b.Min.X, b.Max.X
		}
		if p.Normal.Y < 0 {
			pos.Y, neg.Y = b.Min.Y, b.Max.Y
		}
		if p.Normal.Z < 0 {
			pos.Z, neg.Z = b.Min.Z, b.Max.Z
		}

		if p.Distance(pos) < 0 {
			return Outside
		}
		if p.Distance(neg) < 0 {
			result = Intersect
		}
	}
	return result
}

func (f *Frustum) ContainsPoint(pt math.Vec3) bool {
	for i := range f.Planes {
		if f.Planes[i].Distance(pt) < 0 {
			return false
		}
	}
	return true
}
