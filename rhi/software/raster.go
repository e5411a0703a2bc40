package software

import (
	stdmath "math"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
)

// clipVert is a vertex after the vertex stage: clip-space position plus
// the world-space attributes the fragment stage interpolates.
type clipVert struct {
	clip   math.Vec4
	world  math.Vec3
	normal math.Vec3
	color  core.Color
	uv     math.Vec2
}

func lerpVert(a, b *clipVert, t float32) clipVert {
	return clipVert{
		clip:   a.clip.Lerp(b.clip, t),
		world:  a.world.Lerp(b.world, t),
		normal: a.normal.Lerp(b.normal, t),
		color: core.Color{
			R: a.color.R + (b.color.R-a.color.R)*t,
			G: a.color.G + (b.color.G-a.color.G)*t,
			B: a.color.B + (b.color.B-a.color.B)*t,
			A: a.color.A + (b.color.A-a.color.A)*t,
		},
		uv: math.Vec2{X: a.uv.X + (b.uv.X-a.uv.X)*t, Y: a.uv.Y + (b.uv.Y-a.uv.Y)*t},
	}
}

// screenVert is a vertex in window space. z is window depth in [0,1];
// invW is 1/w for perspective-correct interpolation.
type screenVert struct {
	x, y, z float32
	invW    float32
}

type drawContext struct {
	d        *Device
	fb       *framebuffer
	call     *rhi.DrawCall
	base     core.Color
	tex      *texture
	viewProj math.Mat4
}

func (d *Device) drawGeometry(call *rhi.DrawCall, model math.Mat4, vertices []core.Vertex, indices []uint32) {
	opacity := call.Material.Opacity
	if opacity <= 0 {
		opacity = 1
	}
	base := call.Material.BaseColor
	base.A *= opacity

	ctx := drawContext{
		d:        d,
		fb:       d.target,
		call:     call,
		base:     base,
		tex:      d.textures[call.Material.Texture],
		viewProj: d.frame.ViewProj,
	}

	normalMat := model.NormalMatrix()
	transformed := make([]clipVert, len(vertices))
	for i := range vertices {
		v := &vertices[i]
		world := model.TransformPoint(v.Position)
		transformed[i] = clipVert{
			clip:   ctx.viewProj.MulVec(world.ToVec4(1)),
			world:  world,
			normal: normalMat.TransformDirection(v.Normal),
			color:  v.Color,
			uv:     v.UV,
		}
	}

	if call.Topology == rhi.Lines {
		for i := 0; i+1 < len(indices); i += 2 {
			a, b := indices[i], indices[i+1]
			if int(a) >= len(transformed) || int(b) >= len(transformed) {
				continue
			}
			ctx.line(transformed[a], transformed[b])
		}
		return
	}

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= len(transformed) || int(i1) >= len(transformed) || int(i2) >= len(transformed) {
			continue
		}
		tri := [3]clipVert{transformed[i0], transformed[i1], transformed[i2]}
		if call.State.Wireframe {
			ctx.wireTriangle(tri)
			continue
		}
		ctx.triangle(tri)
	}
}

// nearEpsilon keeps clipped vertices strictly in front of the eye.
const nearEpsilon = 1e-5

func nearDistance(v *clipVert) float32 { return v.clip.Z + v.clip.W }

// clipNear clips a polygon against the near plane z = -w. The result has
// at most one vertex more than the input.
func clipNear(in []clipVert, out []clipVert) []clipVert {
	out = out[:0]
	for i := range in {
		a := &in[i]
		b := &in[(i+1)%len(in)]
		da, db := nearDistance(a), nearDistance(b)
		if da >= 0 {
			out = append(out, *a)
		}
		if (da >= 0) != (db >= 0) {
			t := da / (da - db)
			out = append(out, lerpVert(a, b, t))
		}
	}
	return out
}

func (c *drawContext) toScreen(v *clipVert) (screenVert, bool) {
	w := v.clip.W
	if w < nearEpsilon {
		return screenVert{}, false
	}
	inv := 1 / w
	nx, ny, nz := v.clip.X*inv, v.clip.Y*inv, v.clip.Z*inv
	return screenVert{
		x:    (nx + 1) * 0.5 * float32(c.fb.width),
		y:    (1 - ny) * 0.5 * float32(c.fb.height),
		z:    nz*0.5 + 0.5,
		invW: inv,
	}, true
}

func (c *drawContext) triangle(tri [3]clipVert) {
	var poly [4]clipVert
	verts := tri[:]
	if nearDistance(&tri[0]) < 0 || nearDistance(&tri[1]) < 0 || nearDistance(&tri[2]) < 0 {
		verts = clipNear(tri[:], poly[:0])
		if len(verts) < 3 {
			return
		}
	}
	for i := 1; i+1 < len(verts); i++ {
		c.rasterize(verts[0], verts[i], verts[i+1])
	}
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// isTopLeft reports whether edge a->b is a top or left edge of a
// triangle with positive edge area in y-down window space.
func isTopLeft(ax, ay, bx, by float32) bool {
	return (ay == by && bx > ax) || by < ay
}

func covered(w float32, topLeft bool) bool {
	return w > 0 || (w == 0 && topLeft)
}

func (c *drawContext) rasterize(v0, v1, v2 clipVert) {
	s0, ok0 := c.toScreen(&v0)
	s1, ok1 := c.toScreen(&v1)
	s2, ok2 := c.toScreen(&v2)
	if !ok0 || !ok1 || !ok2 {
		return
	}

	// Counter-clockwise in NDC is front-facing and has negative area in
	// y-down window space. Front faces are flipped so coverage always
	// works on positive area.
	area := edge(s0.x, s0.y, s1.x, s1.y, s2.x, s2.y)
	if area == 0 || stdmath.IsNaN(float64(area)) {
		return
	}
	if area > 0 && c.call.State.CullBack {
		return
	}
	if area < 0 {
		v1, v2 = v2, v1
		s1, s2 = s2, s1
		area = -area
	}

	minX := int(max(0, floor(min(s0.x, s1.x, s2.x))))
	minY := int(max(0, floor(min(s0.y, s1.y, s2.y))))
	maxX := int(min(float32(c.fb.width-1), ceil(max(s0.x, s1.x, s2.x))))
	maxY := int(min(float32(c.fb.height-1), ceil(max(s0.y, s1.y, s2.y))))
	if minX > maxX || minY > maxY {
		return
	}

	tl0 := isTopLeft(s1.x, s1.y, s2.x, s2.y)
	tl1 := isTopLeft(s2.x, s2.y, s0.x, s0.y)
	tl2 := isTopLeft(s0.x, s0.y, s1.x, s1.y)
	invArea := 1 / area

	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5
			w0 := edge(s1.x, s1.y, s2.x, s2.y, px, py)
			w1 := edge(s2.x, s2.y, s0.x, s0.y, px, py)
			w2 := edge(s0.x, s0.y, s1.x, s1.y, px, py)
			if !covered(w0, tl0) || !covered(w1, tl1) || !covered(w2, tl2) {
				continue
			}
			b0, b1, b2 := w0*invArea, w1*invArea, w2*invArea

			z := b0*s0.z + b1*s1.z + b2*s2.z
			if z < 0 || z > 1 {
				continue
			}
			idx := y*c.fb.width + x
			if c.call.State.DepthTest && !(z < c.fb.depth[idx]) {
				continue
			}

			// perspective-correct weights
			p0, p1, p2 := b0*s0.invW, b1*s1.invW, b2*s2.invW
			sum := p0 + p1 + p2
			if sum == 0 {
				continue
			}
			p0, p1, p2 = p0/sum, p1/sum, p2/sum

			c.shadeFragment(idx, z, &v0, &v1, &v2, p0, p1, p2)
		}
	}
}

func (c *drawContext) shadeFragment(idx int, z float32, v0, v1, v2 *clipVert, p0, p1, p2 float32) {
	world := v0.world.Mul(p0).Add(v1.world.Mul(p1)).Add(v2.world.Mul(p2))
	normal := v0.normal.Mul(p0).Add(v1.normal.Mul(p1)).Add(v2.normal.Mul(p2))
	vc := core.Color{
		R: v0.color.R*p0 + v1.color.R*p1 + v2.color.R*p2,
		G: v0.color.G*p0 + v1.color.G*p1 + v2.color.G*p2,
		B: v0.color.B*p0 + v1.color.B*p1 + v2.color.B*p2,
		A: v0.color.A*p0 + v1.color.A*p1 + v2.color.A*p2,
	}
	base := vc.Modulate(c.base)
	if c.tex != nil {
		u := v0.uv.X*p0 + v1.uv.X*p1 + v2.uv.X*p2
		v := v0.uv.Y*p0 + v1.uv.Y*p1 + v2.uv.Y*p2
		base = base.Modulate(c.tex.sample(u, v))
	}
	color := rhi.Shade(c.call.Shading, base, normal, world, &c.d.frame)
	c.write(idx, z, color)
}

func (c *drawContext) write(idx int, z float32, src core.Color) {
	fb := c.fb
	switch c.call.State.Blend {
	case rhi.BlendAlpha:
		a := math.Clamp(src.A, 0, 1)
		dst := fb.color[idx]
		fb.color[idx] = clampColor(core.Color{
			R: src.R*a + dst.R*(1-a),
			G: src.G*a + dst.G*(1-a),
			B: src.B*a + dst.B*(1-a),
			A: a + dst.A*(1-a),
		})
	case rhi.BlendAdditive:
		a := math.Clamp(src.A, 0, 1)
		dst := fb.color[idx]
		fb.color[idx] = clampColor(core.Color{
			R: dst.R + src.R*a,
			G: dst.G + src.G*a,
			B: dst.B + src.B*a,
			A: dst.A,
		})
	default:
		fb.color[idx] = clampColor(src)
		fb.id[idx] = c.call.ObjectID
	}
	if c.call.State.DepthWrite() {
		fb.depth[idx] = z
	}
}

// clampColor matches what an 8-bit attachment can hold.
func clampColor(c core.Color) core.Color {
	return core.Color{
		R: math.Clamp(c.R, 0, 1),
		G: math.Clamp(c.G, 0, 1),
		B: math.Clamp(c.B, 0, 1),
		A: math.Clamp(c.A, 0, 1),
	}
}

func (c *drawContext) wireTriangle(tri [3]clipVert) {
	c.line(tri[0], tri[1])
	c.line(tri[1], tri[2])
	c.line(tri[2], tri[0])
}

// line rasterizes a depth-tested segment with a DDA walk.
func (c *drawContext) line(a, b clipVert) {
	da, db := nearDistance(&a), nearDistance(&b)
	if da < 0 && db < 0 {
		return
	}
	if da < 0 {
		a = lerpVert(&a, &b, da/(da-db))
	} else if db < 0 {
		b = lerpVert(&a, &b, da/(da-db))
	}
	a.clip.Z -= rhi.LineDepthBias * a.clip.W
	b.clip.Z -= rhi.LineDepthBias * b.clip.W

	sa, okA := c.toScreen(&a)
	sb, okB := c.toScreen(&b)
	if !okA || !okB {
		return
	}

	dx, dy := sb.x-sa.x, sb.y-sa.y
	steps := int(ceil(max(abs(dx), abs(dy))))
	if steps == 0 {
		steps = 1
	}
	// Guard against pathological segments far outside the target.
	if limit := 4 * (c.fb.width + c.fb.height); steps > limit {
		steps = limit
	}

	for i := 0; i <= steps; i++ {
		t := float32(i) / float32(steps)
		x := int(floor(sa.x + dx*t))
		y := int(floor(sa.y + dy*t))
		if x < 0 || y < 0 || x >= c.fb.width || y >= c.fb.height {
			continue
		}
		z := sa.z + (sb.z-sa.z)*t
		if z < 0 || z > 1 {
			continue
		}
		idx := y*c.fb.width + x
		if c.call.State.DepthTest && !(z < c.fb.depth[idx]) {
			continue
		}

		// perspective-correct colour along the segment
		wa := (1 - t) * sa.invW
		wb := t * sb.invW
		sum := wa + wb
		if sum == 0 {
			continue
		}
		wa, wb = wa/sum, wb/sum
		col := core.Color{
			R: a.color.R*wa + b.color.R*wb,
			G: a.color.G*wa + b.color.G*wb,
			B: a.color.B*wa + b.color.B*wb,
			A: a.color.A*wa + b.color.A*wb,
		}.Modulate(c.base)
		if c.call.Shading != rhi.ShadeUnlit {
			world := a.world.Mul(wa).Add(b.world.Mul(wb))
			normal := a.normal.Mul(wa).Add(b.normal.Mul(wb))
			col = rhi.Shade(c.call.Shading, col, normal, world, &c.d.frame)
		}
		c.write(idx, z, col)
	}
}

func floor(v float32) float32 { return float32(stdmath.Floor(float64(v))) }
func ceil(v float32) float32  { return float32(stdmath.Ceil(float64(v))) }

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
