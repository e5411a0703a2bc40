// Package spatial answers geometric questions about a rendered scene:
// bounds, frustum classification, ray intersection, raycasting and
// read-only snapshots of scene geometry.
package spatial

import (
	stdmath "math"

	"viewport-engine/math"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max math.Vec3
}

// EmptyAABB returns an inverted box that any Union or Expand replaces.
func EmptyAABB() AABB {
	inf := float32(stdmath.Inf(1))
	return AABB{
		Min: math.Vec3{X: inf, Y: inf, Z: inf},
		Max: math.Vec3{X: -inf, Y: -inf, Z: -inf},
	}
}

// AABBFromPoints fits a box to points. No points gives EmptyAABB.
func AABBFromPoints(points []math.Vec3) AABB {
	box := EmptyAABB()
	for _, p := range points {
		box = box.Expand(p)
	}
	return box
}

// AABBFromCenter builds a box from its centre and half size.
func AABBFromCenter(center, extents math.Vec3) AABB {
	return AABB{Min: center.Sub(extents), Max: center.Add(extents)}
}

func (b AABB) IsValid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

func (b AABB) Center() math.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Extents returns the half size, so Max == Center + Extents.
func (b AABB) Extents() math.Vec3 {
	return b.Max.Sub(b.Min).Mul(0.5)
}

func (b AABB) Size() math.Vec3 {
	return b.Max.Sub(b.Min)
}

func (b AABB) Expand(p math.Vec3) AABB {
	return AABB{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

func (b AABB) Union(o AABB) AABB {
	if !o.IsValid() {
		return b
	}
	if !b.IsValid() {
		return o
	}
	return AABB{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

func (b AABB) Contains(p math.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b AABB) ContainsAABB(o AABB) bool {
	return b.Contains(o.Min) && b.Contains(o.Max)
}

// Corners returns the 8 corners, min corner first.
func (b AABB) Corners() [8]math.Vec3 {
	mn, mx := b.Min, b.Max
	return [8]math.Vec3{
		{X: mn.X, Y: mn.Y, Z: mn.Z},
		{X: mx.X, Y: mn.Y, Z: mn.Z},
		{X: mn.X, Y: mx.Y, Z: mn.Z},
		{X: mx.X, Y: mx.Y, Z: mn.Z},
		{X: mn.X, Y: mn.Y, Z: mx.Z},
		{X: mx.X, Y: mn.Y, Z: mx.Z},
		{X: mn.X, Y: mx.Y, Z: mx.Z},
		{X: mx.X, Y: mx.Y, Z: mx.Z},
	}
}

// Transform moves the 8 corners by m and refits an axis-aligned box
// around them. The result is not tight for rotated boxes.
func (b AABB) Transform(m math.Mat4) AABB {
	if !b.IsValid() {
		return b
	}
	out := EmptyAABB()
	for _, c := range b.Corners() {
		out = out.Expand(m.TransformPoint(c))
	}
	return out
}
