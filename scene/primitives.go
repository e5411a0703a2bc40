package scene

import (
	stdmath "math"

	"viewport-engine/core"
	"viewport-engine/math"
)

// Geometry is vertex and index data ready for AddMesh. Triangles wind
// counter-clockwise when seen from the side their normals point to.
type Geometry struct {
	Vertices []core.Vertex
	Indices  []uint32
}

var defaultGray = core.Color{R: 0.8, G: 0.8, B: 0.8, A: 1}

// Append merges other into g, rebasing its indices.
func (g *Geometry) Append(other Geometry) {
	base := uint32(len(g.Vertices))
	g.Vertices = append(g.Vertices, other.Vertices...)
	for _, i := range other.Indices {
		g.Indices = append(g.Indices, base+i)
	}
}

// Transform bakes m into positions and normals.
func (g Geometry) Transform(m math.Mat4) Geometry {
	nm := m.NormalMatrix()
	out := Geometry{
		Vertices: make([]core.Vertex, len(g.Vertices)),
		Indices:  append([]uint32(nil), g.Indices...),
	}
	for i, v := range g.Vertices {
		v.Position = m.TransformPoint(v.Position)
		v.Normal = nm.TransformDirection(v.Normal).Normalize()
		out.Vertices[i] = v
	}
	return out
}

// WithColor returns a copy with every vertex colour set to c.
func (g Geometry) WithColor(c core.Color) Geometry {
	out := Geometry{
		Vertices: append([]core.Vertex(nil), g.Vertices...),
		Indices:  g.Indices,
	}
	for i := range out.Vertices {
		out.Vertices[i].Color = c
	}
	return out
}

// SmoothNormals replaces every normal with the area-weighted average of
// the faces sharing the vertex. Vertices no face touches keep +Z.
func (g *Geometry) SmoothNormals() {
	acc := make([]math.Vec3, len(g.Vertices))
	for i := 0; i+2 < len(g.Indices); i += 3 {
		a, b, c := g.Indices[i], g.Indices[i+1], g.Indices[i+2]
		p0 := g.Vertices[a].Position
		n := g.Vertices[b].Position.Sub(p0).Cross(g.Vertices[c].Position.Sub(p0))
		acc[a], acc[b], acc[c] = acc[a].Add(n), acc[b].Add(n), acc[c].Add(n)
	}
	for i, n := range acc {
		if n.LengthSqr() < 1e-20 {
			n = math.Vec3{Z: 1}
		}
		g.Vertices[i].Normal = n.Normalize()
	}
}

// Cube is an axis-aligned box with the given edge length: 24 vertices so
// each face has flat normals, 36 indices.
func Cube(size float32) Geometry {
	h := size / 2
	faces := [6]math.Vec3{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
	}
	g := Geometry{
		Vertices: make([]core.Vertex, 0, 24),
		Indices:  make([]uint32, 0, 36),
	}
	uvs := [4]math.Vec2{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	for _, n := range faces {
		// u × v = n
		var u, v math.Vec3
		switch {
		case n.Y > 0:
			u, v = math.Vec3Right, math.Vec3{Z: -1}
		case n.Y < 0:
			u, v = math.Vec3Right, math.Vec3Front
		default:
			v = math.Vec3Up
			u = v.Cross(n)
		}
		corners := [4]math.Vec3{
			n.Sub(u).Sub(v),
			n.Add(u).Sub(v),
			n.Add(u).Add(v),
			n.Sub(u).Add(v),
		}
		base := uint32(len(g.Vertices))
		for k, c := range corners {
			g.Vertices = append(g.Vertices, core.Vertex{
				Position: c.Mul(h),
				Normal:   n,
				Color:    core.ColorWhite,
				UV:       uvs[k],
			})
		}
		g.Indices = append(g.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return g
}

// Plane lies in XZ facing +Y, centred on the origin.
func Plane(width, depth float32, subdivisions int) Geometry {
	if subdivisions < 1 {
		subdivisions = 1
	}
	var g Geometry
	halfW, halfD := width/2, depth/2
	for z := 0; z <= subdivisions; z++ {
		for x := 0; x <= subdivisions; x++ {
			u := float32(x) / float32(subdivisions)
			v := float32(z) / float32(subdivisions)
			g.Vertices = append(g.Vertices, core.Vertex{
				Position: math.Vec3{X: -halfW + u*width, Z: -halfD + v*depth},
				Normal:   math.Vec3Up,
				Color:    defaultGray,
				UV:       math.Vec2{X: u, Y: v},
			})
		}
	}
	row := uint32(subdivisions + 1)
	for z := 0; z < subdivisions; z++ {
		for x := 0; x < subdivisions; x++ {
			tl := uint32(z)*row + uint32(x)
			tr, bl := tl+1, tl+row
			g.Indices = append(g.Indices, tl, bl, tr, tr, bl, bl+1)
		}
	}
	return g
}

// Sphere is a UV sphere; rings run pole to pole.
func Sphere(radius float32, segments, rings int) Geometry {
	segments = max(segments, 3)
	rings = max(rings, 2)
	var g Geometry
	for r := 0; r <= rings; r++ {
		phi := float64(r) * stdmath.Pi / float64(rings)
		sp, cp := float32(stdmath.Sin(phi)), float32(stdmath.Cos(phi))
		for s := 0; s <= segments; s++ {
			theta := float64(s) * 2 * stdmath.Pi / float64(segments)
			st, ct := float32(stdmath.Sin(theta)), float32(stdmath.Cos(theta))
			n := math.Vec3{X: sp * ct, Y: cp, Z: sp * st}
			g.Vertices = append(g.Vertices, core.Vertex{
				Position: n.Mul(radius),
				Normal:   n,
				Color:    defaultGray,
				UV:       math.Vec2{X: float32(s) / float32(segments), Y: float32(r) / float32(rings)},
			})
		}
	}
	stride := uint32(segments + 1)
	for r := 0; r < rings; r++ {
		for s := 0; s < segments; s++ {
			cur := uint32(r)*stride + uint32(s)
			next := cur + stride
			g.Indices = append(g.Indices, cur, cur+1, next, cur+1, next+1, next)
		}
	}
	return g
}

// Cylinder stands on Y, centred on the origin, with capped ends.
func Cylinder(radius, height float32, segments int) Geometry {
	segments = max(segments, 3)
	var g Geometry
	h := height / 2
	for i := 0; i <= segments; i++ {
		ct, st := unitCircle(i, segments)
		n := math.Vec3{X: ct, Z: st}
		u := float32(i) / float32(segments)
		g.Vertices = append(g.Vertices,
			core.Vertex{Position: math.Vec3{X: ct * radius, Y: -h, Z: st * radius}, Normal: n, Color: defaultGray, UV: math.Vec2{X: u, Y: 1}},
			core.Vertex{Position: math.Vec3{X: ct * radius, Y: h, Z: st * radius}, Normal: n, Color: defaultGray, UV: math.Vec2{X: u}},
		)
	}
	for i := 0; i < segments; i++ {
		b := uint32(i * 2)
		g.Indices = append(g.Indices, b, b+1, b+2, b+2, b+1, b+3)
	}
	g.cap(radius, h, segments, true)
	g.cap(radius, -h, segments, false)
	return g
}

// Cone has its base at -height/2 and its tip at +height/2.
func Cone(radius, height float32, segments int) Geometry {
	segments = max(segments, 3)
	var g Geometry
	h := height / 2
	slope := stdmath.Atan2(float64(radius), float64(height))
	ny, nr := float32(stdmath.Cos(slope)), float32(stdmath.Sin(slope))

	// One tip vertex per segment so normals stay smooth around the side.
	for i := 0; i < segments; i++ {
		c0, s0 := unitCircle(i, segments)
		c1, s1 := unitCircle(i+1, segments)
		mid := (float64(i) + 0.5) * 2 * stdmath.Pi / float64(segments)
		cm, sm := float32(stdmath.Cos(mid)), float32(stdmath.Sin(mid))
		base := uint32(len(g.Vertices))
		g.Vertices = append(g.Vertices,
			core.Vertex{Position: math.Vec3{Y: h}, Normal: math.Vec3{X: cm * nr, Y: ny, Z: sm * nr}, Color: defaultGray, UV: math.Vec2{X: 0.5}},
			core.Vertex{Position: math.Vec3{X: c0 * radius, Y: -h, Z: s0 * radius}, Normal: math.Vec3{X: c0 * nr, Y: ny, Z: s0 * nr}, Color: defaultGray, UV: math.Vec2{X: float32(i) / float32(segments), Y: 1}},
			core.Vertex{Position: math.Vec3{X: c1 * radius, Y: -h, Z: s1 * radius}, Normal: math.Vec3{X: c1 * nr, Y: ny, Z: s1 * nr}, Color: defaultGray, UV: math.Vec2{X: float32(i+1) / float32(segments), Y: 1}},
		)
		g.Indices = append(g.Indices, base, base+2, base+1)
	}
	g.cap(radius, -h, segments, false)
	return g
}

// Torus lies in XZ around the Y axis.
func Torus(major, minor float32, majorSegments, minorSegments int) Geometry {
	majorSegments = max(majorSegments, 3)
	minorSegments = max(minorSegments, 3)
	var g Geometry
	for i := 0; i <= majorSegments; i++ {
		ct, st := unitCircle(i, majorSegments)
		for j := 0; j <= minorSegments; j++ {
			cp, sp := unitCircle(j, minorSegments)
			g.Vertices = append(g.Vertices, core.Vertex{
				Position: math.Vec3{X: (major + minor*cp) * ct, Y: minor * sp, Z: (major + minor*cp) * st},
				Normal:   math.Vec3{X: cp * ct, Y: sp, Z: cp * st},
				Color:    defaultGray,
				UV:       math.Vec2{X: float32(i) / float32(majorSegments), Y: float32(j) / float32(minorSegments)},
			})
		}
	}
	stride := uint32(minorSegments + 1)
	for i := 0; i < majorSegments; i++ {
		for j := 0; j < minorSegments; j++ {
			cur := uint32(i)*stride + uint32(j)
			next := cur + stride
			g.Indices = append(g.Indices, cur, cur+1, next, cur+1, next+1, next)
		}
	}
	return g
}

// cap adds a disc at height y. Angles increase clockwise seen from +Y,
// so the winding flips with the facing.
func (g *Geometry) cap(radius, y float32, segments int, up bool) {
	n := math.Vec3Up
	if !up {
		n = n.Negate()
	}
	center := uint32(len(g.Vertices))
	g.Vertices = append(g.Vertices, core.Vertex{Position: math.Vec3{Y: y}, Normal: n, Color: defaultGray, UV: math.Vec2{X: 0.5, Y: 0.5}})
	for i := 0; i <= segments; i++ {
		c, s := unitCircle(i, segments)
		g.Vertices = append(g.Vertices, core.Vertex{
			Position: math.Vec3{X: c * radius, Y: y, Z: s * radius},
			Normal:   n,
			Color:    defaultGray,
			UV:       math.Vec2{X: c*0.5 + 0.5, Y: s*0.5 + 0.5},
		})
	}
	for i := 0; i < segments; i++ {
		a, b := center+1+uint32(i), center+2+uint32(i)
		if up {
			g.Indices = append(g.Indices, center, b, a)
		} else {
			g.Indices = append(g.Indices, center, a, b)
		}
	}
}

func unitCircle(i, n int) (cos, sin float32) {
	a := float64(i) * 2 * stdmath.Pi / float64(n)
	return float32(stdmath.Cos(a)), float32(stdmath.Sin(a))
}
