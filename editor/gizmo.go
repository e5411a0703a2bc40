package editor

import (
	stdmath "math"

	"github.com/go-gl/mathgl/mgl32"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
	"viewport-engine/scene"
	"viewport-engine/spatial"
	"viewport-engine/viewport"
)

type GizmoMode uint8

const (
	GizmoTranslate GizmoMode = iota
	GizmoRotate
	GizmoScale
	gizmoModes
)

func (m GizmoMode) String() string {
	switch m {
	case GizmoTranslate:
		return "translate"
	case GizmoRotate:
		return "rotate"
	case GizmoScale:
		return "scale"
	}
	return "unknown"
}

type Axis int8

const (
	AxisNone Axis = iota - 1
	AxisX
	AxisY
	AxisZ
)

func (a Axis) Vector() math.Vec3 {
	switch a {
	case AxisX:
		return math.Vec3{X: 1}
	case AxisY:
		return math.Vec3{Y: 1}
	case AxisZ:
		return math.Vec3{Z: 1}
	}
	return math.Vec3{}
}

const (
	// GizmoScreenFraction sizes handles relative to the camera distance so
	// they keep a constant on-screen size.
	GizmoScreenFraction = 0.15
	// HitTolerance is the screen-space pick radius for handles, in pixels.
	HitTolerance = 8
	ringSamples  = 32
)

var axisColors = [3]core.Color{
	{R: 0.9, G: 0.2, B: 0.2, A: 1},
	{R: 0.3, G: 0.85, B: 0.3, A: 1},
	{R: 0.25, G: 0.45, B: 0.95, A: 1},
}

// axisBasis turns handle geometry built along +Y onto each axis.
var axisBasis = [3]math.Mat4{
	math.Mat4RotationZ(-stdmath.Pi / 2),
	math.Mat4Identity(),
	math.Mat4RotationX(stdmath.Pi / 2),
}

// HandleID is the reserved object ID a gizmo handle writes to the ID
// buffer.
func HandleID(mode GizmoMode, axis Axis) uint32 {
	return viewport.ReservedIDBase + 1 + uint32(mode)*3 + uint32(axis)
}

func handleFromID(id uint32) (GizmoMode, Axis, bool) {
	if id <= viewport.ReservedIDBase {
		return 0, AxisNone, false
	}
	n := id - viewport.ReservedIDBase - 1
	if n >= uint32(gizmoModes)*3 {
		return 0, AxisNone, false
	}
	return GizmoMode(n / 3), Axis(n % 3), true
}

// handleGeometry builds one unit-length handle along +Y.
func handleGeometry(mode GizmoMode) scene.Geometry {
	var g scene.Geometry
	shaft := scene.Cylinder(0.03, 0.8, 12).Transform(math.Mat4Translation(math.Vec3{Y: 0.4}))
	switch mode {
	case GizmoTranslate:
		g.Append(shaft)
		g.Append(scene.Cone(0.08, 0.2, 12).Transform(math.Mat4Translation(math.Vec3{Y: 0.9})))
	case GizmoRotate:
		g.Append(scene.Torus(1, 0.025, 48, 6))
	case GizmoScale:
		g.Append(shaft)
		g.Append(scene.Cube(0.14).Transform(math.Mat4Translation(math.Vec3{Y: 0.93})))
	}
	return g.WithColor(core.ColorWhite)
}

// Gizmo draws translate, rotate and scale handles as on-top overlays with
// reserved IDs and maps pointer drags to constrained transforms.
type Gizmo struct {
	v        *viewport.Viewport
	mode     GizmoMode
	handles  [gizmoModes][3]viewport.OverlayHandle
	attached bool
	pivot    math.Vec3
	size     float32
}

func NewGizmo(v *viewport.Viewport) *Gizmo {
	g := &Gizmo{v: v, size: 1}
	for m := GizmoTranslate; m < gizmoModes; m++ {
		geom := handleGeometry(m)
		for a := AxisX; a <= AxisZ; a++ {
			g.handles[m][a] = v.AddOverlay(viewport.Overlay{
				Geometry: geom,
				Model:    math.Mat4Identity(),
				Topology: rhi.Triangles,
				Color:    axisColors[a],
				ObjectID: HandleID(m, a),
				OnTop:    true,
			})
		}
	}
	return g
}

func (g *Gizmo) Mode() GizmoMode { return g.mode }

func (g *Gizmo) SetMode(m GizmoMode) {
	if m < gizmoModes {
		g.mode = m
	}
}

func (g *Gizmo) Attach(pivot math.Vec3) {
	g.attached = true
	g.pivot = pivot
}

func (g *Gizmo) Detach() { g.attached = false }

func (g *Gizmo) Attached() bool { return g.attached }

func (g *Gizmo) Pivot() math.Vec3 { return g.pivot }

// Sync places the handles of the current mode at the pivot and hides the
// rest. Call it once per frame before rendering.
func (g *Gizmo) Sync() {
	cam := g.v.Camera
	if cam != nil {
		g.size = max(cam.Position.Distance(g.pivot)*GizmoScreenFraction, 1e-3)
	}
	place := math.Mat4Translation(g.pivot).Mul(math.Mat4Scale(math.Vec3{X: g.size, Y: g.size, Z: g.size}))
	for m := GizmoTranslate; m < gizmoModes; m++ {
		for a := AxisX; a <= AxisZ; a++ {
			h := g.handles[m][a]
			g.v.SetOverlayVisible(h, g.attached && m == g.mode)
			g.v.SetOverlayTransform(h, place.Mul(axisBasis[a]))
		}
	}
}

func (g *Gizmo) Destroy() {
	for m := range g.handles {
		for a := range g.handles[m] {
			g.v.RemoveOverlay(g.handles[m][a])
		}
	}
	g.attached = false
}

// HitTest returns the handle under pixel (x, y). The ID buffer of the last
// frame is consulted first; when it shows no handle, the projected handle
// shapes are tested within HitTolerance pixels.
func (g *Gizmo) HitTest(x, y float32) Axis {
	if !g.attached {
		return AxisNone
	}
	if r := g.v.Pick(int(x), int(y)); r.Hit {
		if m, a, ok := handleFromID(r.ObjectID); ok && m == g.mode {
			return a
		}
	}
	return g.screenHit(x, y)
}

func (g *Gizmo) screenHit(x, y float32) Axis {
	w, h := g.v.Size()
	view, proj := g.v.Camera.View(), g.v.Camera.Projection()
	project := func(p math.Vec3) (math.Vec2, bool) {
		sx, sy, ok := spatial.WorldToScreen(p, w, h, view, proj)
		return math.Vec2{X: sx, Y: sy}, ok
	}
	pt := math.Vec2{X: x, Y: y}

	best, bestDist := AxisNone, float32(HitTolerance)
	for a := AxisX; a <= AxisZ; a++ {
		var d float32 = stdmath.MaxFloat32
		if g.mode == GizmoRotate {
			basis := axisBasis[a]
			var prev math.Vec2
			prevOK := false
			for i := 0; i <= ringSamples; i++ {
				ang := float64(i) * 2 * stdmath.Pi / ringSamples
				local := math.Vec3{X: float32(stdmath.Cos(ang)), Z: float32(stdmath.Sin(ang))}
				s, ok := project(g.pivot.Add(basis.TransformDirection(local).Mul(g.size)))
				if ok && prevOK {
					d = min(d, segmentDistance(pt, prev, s))
				}
				prev, prevOK = s, ok
			}
		} else {
			a0, ok0 := project(g.pivot)
			a1, ok1 := project(g.pivot.Add(a.Vector().Mul(g.size)))
			if ok0 && ok1 {
				d = segmentDistance(pt, a0, a1)
			}
		}
		if d <= bestDist {
			best, bestDist = a, d
		}
	}
	return best
}

func segmentDistance(p, a, b math.Vec2) float32 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return p.Sub(a).Length()
	}
	t := math.Clamp(p.Sub(a).Dot(ab)/l2, 0, 1)
	return p.Sub(a.Add(ab.Mul(t))).Length()
}

// gizmoDrag is the state captured when a handle drag starts.
type gizmoDrag struct {
	mode     GizmoMode
	axis     Axis
	mesh     scene.MeshHandle
	objectID uint32
	start    Transform
	pivot    math.Vec3
	size     float32
	startS   float32
	startVec math.Vec3
}

func (g *Gizmo) beginDrag(axis Axis, r spatial.Ray, mesh scene.MeshHandle, id uint32, start Transform) (gizmoDrag, bool) {
	d := gizmoDrag{mode: g.mode, axis: axis, mesh: mesh, objectID: id, start: start, pivot: g.pivot, size: g.size}
	switch g.mode {
	case GizmoRotate:
		v, ok := planeVector(r, d.pivot, axis.Vector())
		if !ok {
			return d, false
		}
		d.startVec = v
	default:
		_, s, _, ok := closestPoints(r, d.pivot, axis.Vector())
		if !ok {
			return d, false
		}
		d.startS = s
	}
	return d, true
}

// update maps the current pointer ray to the dragged mesh's transform.
// ok is false when the ray is degenerate for the handle, e.g. parallel to
// a translate axis.
func (d *gizmoDrag) update(r spatial.Ray) (Transform, bool) {
	t := d.start
	axis := d.axis.Vector()
	switch d.mode {
	case GizmoTranslate:
		_, s, _, ok := closestPoints(r, d.pivot, axis)
		if !ok {
			return t, false
		}
		t.Position = d.start.Position.Add(axis.Mul(s - d.startS))
	case GizmoScale:
		_, s, _, ok := closestPoints(r, d.pivot, axis)
		if !ok {
			return t, false
		}
		factor := 1 + (s-d.startS)/d.size
		if d.startS > 1e-3 {
			factor = s / d.startS
		}
		factor = max(factor, 1e-3)
		switch d.axis {
		case AxisX:
			t.Scale.X *= factor
		case AxisY:
			t.Scale.Y *= factor
		case AxisZ:
			t.Scale.Z *= factor
		}
	case GizmoRotate:
		v, ok := planeVector(r, d.pivot, axis)
		if !ok {
			return t, false
		}
		cos := math.Clamp(d.startVec.Dot(v), -1, 1)
		angle := float32(stdmath.Acos(float64(cos)))
		if d.startVec.Cross(v).Dot(axis) < 0 {
			angle = -angle
		}
		switch d.axis {
		case AxisX:
			t.Rotation.X += angle
		case AxisY:
			t.Rotation.Y += angle
		case AxisZ:
			t.Rotation.Z += angle
		}
	}
	return t, true
}

func toMgl(v math.Vec3) mgl32.Vec3 { return mgl32.Vec3{v.X, v.Y, v.Z} }

// closestPoints finds the closest approach between the ray and the line
// through ao along ad: t along the ray, s along the line, and the distance
// between the two points.
func closestPoints(r spatial.Ray, ao, ad math.Vec3) (t, s, dist float32, ok bool) {
	ro, rd := toMgl(r.Origin), toMgl(r.Dir)
	o, d := toMgl(ao), toMgl(ad)
	w := ro.Sub(o)
	a := rd.Dot(rd)
	b := rd.Dot(d)
	e := d.Dot(d)
	f := d.Dot(w)
	det := a*e - b*b
	if det < 1e-4 {
		return 0, 0, w.Len(), false
	}
	c := rd.Dot(w)
	t = (b*f - c*e) / det
	s = (a*f - b*c) / det
	p1 := ro.Add(rd.Mul(t))
	p2 := o.Add(d.Mul(s))
	return t, s, p1.Sub(p2).Len(), true
}

// planeVector intersects the ray with the plane through pivot normal to
// axis and returns the unit direction from pivot to the hit.
func planeVector(r spatial.Ray, pivot, axis math.Vec3) (math.Vec3, bool) {
	denom := r.Dir.Dot(axis)
	if stdmath.Abs(float64(denom)) < 1e-6 {
		return math.Vec3{}, false
	}
	t := pivot.Sub(r.Origin).Dot(axis) / denom
	if t <= 0 {
		return math.Vec3{}, false
	}
	v := r.At(t).Sub(pivot)
	if v.LengthSqr() < 1e-12 {
		return math.Vec3{}, false
	}
	return v.Normalize(), true
}
