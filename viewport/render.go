package viewport

import (
	"cmp"
	"slices"
	"time"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/postfx"
	"viewport-engine/rhi"
	"viewport-engine/scene"
	"viewport-engine/spatial"
)

var (
	wireColor      = core.Color{R: 0.05, G: 0.05, B: 0.05, A: 1}
	normalColor    = core.Color{R: 0.2, G: 0.8, B: 1, A: 1}
	boundsColor    = core.Color{R: 1, G: 0.85, B: 0.2, A: 1}
	selectionColor = core.Color{R: 1, G: 0.5, B: 0.1, A: 1}
)

type drawItem struct {
	handle scene.MeshHandle
	mesh   *scene.Mesh
	gpu    *gpuMesh
	depth  float32
}

// Render draws one frame. Stages run in a fixed order with their hooks:
// PRE_RENDER, clear, POST_CLEAR, PRE_SCENE, opaque pass, POST_OPAQUE,
// transparent pass, POST_SCENE, overlays, POST_OVERLAY, readback and
// post-processing, POST_RENDER. Simulation subsystems run first and
// post-render subsystems last.
func (v *Viewport) Render() {
	if !v.alive() {
		return
	}
	start := time.Now()
	dt := 0.0
	if !v.lastTick.IsZero() {
		dt = start.Sub(v.lastTick).Seconds()
	}
	v.lastTick = start
	v.stats = Stats{}
	v.draws = 0

	v.runSubsystems(PhaseSimulate, dt)
	v.Camera.Update(dt)
	if v.preFrame != nil {
		v.preFrame(v)
	}
	v.runHooks(StagePreRender)

	view := v.Camera.View()
	proj := v.Camera.Projection()
	viewProj := proj.Mul(view)
	v.lightData = v.Scene.Lights.AppendData(v.lightData[:0])
	params := rhi.FrameParams{
		View:      view,
		Proj:      proj,
		ViewProj:  viewProj,
		CameraPos: v.Camera.Position,
		Ambient:   v.Scene.Ambient,
		Lights:    v.lightData,
		Near:      v.Camera.Near,
		Far:       v.Camera.Far,
	}

	t := time.Now()
	clearValues := rhi.ClearValues{Color: v.Settings.ClearColor, Depth: 1}
	if err := v.device.BeginFrame(v.fb, clearValues, params); err != nil {
		v.log.Error("failed to begin frame", "err", err)
		v.lines.reset()
		return
	}
	v.stats.Clear = time.Since(t)
	v.runHooks(StagePostClear)
	v.runHooks(StagePreScene)

	t = time.Now()
	v.Scene.ResolveTransforms()
	v.collect(view, viewProj)
	v.stats.Transform = time.Since(t)

	t = time.Now()
	for i := range v.opaque {
		v.drawMesh(&v.opaque[i])
	}
	v.runHooks(StagePostOpaque)

	slices.SortStableFunc(v.transparent, func(a, b drawItem) int {
		if c := cmp.Compare(a.mesh.Blend, b.mesh.Blend); c != 0 {
			return c
		}
		return cmp.Compare(b.depth, a.depth)
	})
	for i := range v.transparent {
		v.drawMesh(&v.transparent[i])
	}
	v.runHooks(StagePostScene)

	v.drawOverlays()
	v.runHooks(StagePostOverlay)

	err := v.device.EndFrame()
	v.stats.Rasterize = time.Since(t)
	if err != nil {
		v.log.Error("failed to end frame", "err", err)
		return
	}
	v.postProcess()
	v.rendered = true
	v.frame++

	v.runHooks(StagePostRender)
	v.runSubsystems(PhasePostRender, dt)
	if v.postFrame != nil {
		v.postFrame(v)
	}

	if v.stats.SkippedDraws == 0 {
		v.warned = false
	}
	v.stats.Pixels = v.width * v.height
	v.stats.Total = time.Since(start)
	v.log.Debug("frame rendered",
		"draws", v.stats.DrawCalls,
		"triangles", v.stats.Triangles,
		"culled", v.stats.CulledMeshes,
		"total", v.stats.Total)
}

// collect fills the opaque and transparent draw lists with the visible,
// unculled meshes and refreshes their device buffers.
func (v *Viewport) collect(view, viewProj math.Mat4) {
	v.opaque = v.opaque[:0]
	v.transparent = v.transparent[:0]
	frustum := spatial.FrustumFromMatrix(viewProj)

	for h, m := range v.Scene.All() {
		if !m.Visible || len(m.Indices()) == 0 {
			continue
		}
		if m.IsInstanced() && len(m.Instances()) == 0 {
			continue
		}
		bounds := m.WorldBounds()
		if !bounds.IsValid() {
			continue
		}
		if v.Settings.FrustumCulling && frustum.ClassifyAABB(bounds) == spatial.Outside {
			v.stats.CulledMeshes++
			continue
		}
		if m.Transparent() && m.Opacity <= 0 {
			continue
		}
		g := v.sync(h, m)
		if g == nil {
			continue
		}
		v.stats.VisibleMeshes++
		item := drawItem{handle: h, mesh: m, gpu: g}
		if m.Transparent() {
			item.depth = -view.TransformPoint(bounds.Center()).Z
			v.transparent = append(v.transparent, item)
		} else {
			v.opaque = append(v.opaque, item)
		}
	}
}

func (v *Viewport) meshCall(it *drawItem) rhi.DrawCall {
	m := it.mesh
	state := m.State()
	if v.Settings.Mode == RenderWireframe {
		state.Wireframe = true
	}
	shading := v.Settings.Shading
	if m.Material.Unlit && shading == rhi.ShadeLit {
		shading = rhi.ShadeUnlit
	}
	return rhi.DrawCall{
		VertexBuffer: it.gpu.vb,
		IndexBuffer:  it.gpu.ib,
		IndexCount:   len(m.Indices()),
		VertexCount:  m.VertexCount(),
		Format:       m.Format(),
		Topology:     rhi.Triangles,
		Model:        m.World(),
		ObjectID:     m.ObjectID,
		Material: rhi.Material{
			BaseColor: m.Material.BaseColor,
			Opacity:   m.Opacity,
			Texture:   m.Material.Texture,
		},
		State:   state,
		Shading: shading,
	}
}

func (v *Viewport) drawMesh(it *drawItem) {
	call := v.meshCall(it)
	if v.issue(call, it.mesh.Instances()) {
		n := it.mesh.TriangleCount()
		if it.mesh.IsInstanced() {
			n *= len(it.mesh.Instances())
		}
		v.stats.Triangles += n
	}
}

// issue submits one draw unless the per-frame budget is spent. A nil
// instance list is a plain draw.
func (v *Viewport) issue(call rhi.DrawCall, instances []math.Mat4) bool {
	if v.caps.MaxDrawsPerFrame > 0 && v.draws >= v.caps.MaxDrawsPerFrame {
		v.stats.SkippedDraws++
		if !v.warned {
			v.warned = true
			v.log.Warn("draw budget exhausted, skipping draws", "budget", v.caps.MaxDrawsPerFrame)
		}
		return false
	}
	v.draws++
	v.stats.DrawCalls++
	if instances != nil {
		v.device.DrawInstanced(call, instances)
	} else {
		v.device.Draw(call)
	}
	return true
}

// drawOverlays runs the built-in overlay passes, then the queued custom
// lines and the overlay slots. Built-in overlays are blended so they never
// touch the ID or depth buffers.
func (v *Viewport) drawOverlays() {
	ov := v.Settings.Overlays
	wire := (ov.Wireframe || v.Settings.Mode == RenderSolidWireframe) && v.Settings.Mode != RenderWireframe
	for _, list := range [][]drawItem{v.opaque, v.transparent} {
		for i := range list {
			it := &list[i]
			if wire {
				call := v.meshCall(it)
				call.State = rhi.PipelineState{Wireframe: true, DepthTest: true, Blend: rhi.BlendAlpha, CustomStride: call.State.CustomStride}
				call.Shading = rhi.ShadeUnlit
				call.Material = rhi.Material{BaseColor: wireColor, Opacity: 1}
				v.issue(call, it.mesh.Instances())
			}
			if ov.Normals {
				appendNormals(&v.lines.geom, it.mesh, v.Settings.NormalLength)
			}
			if ov.Bounds {
				scene.AppendBoxLines(&v.lines.geom, it.mesh.WorldBounds(), boundsColor)
			}
			if ov.Selection && v.IsSelected(it.mesh.ObjectID) {
				scene.AppendBoxLines(&v.lines.geom, it.mesh.WorldBounds(), selectionColor)
			}
		}
	}
	if ov.Grid {
		v.lines.geom.Append(v.grid())
	}
	v.lines.flush(v)
	v.overlays.draw(v)
}

func appendNormals(g *scene.Geometry, m *scene.Mesh, length float32) {
	if length <= 0 {
		return
	}
	worlds := []math.Mat4{m.World()}
	if m.IsInstanced() {
		worlds = worlds[:0]
		for _, inst := range m.Instances() {
			worlds = append(worlds, m.World().Mul(inst))
		}
	}
	format := m.Format()
	for _, w := range worlds {
		nm := w.NormalMatrix()
		for i := 0; i < m.VertexCount(); i++ {
			var vert core.Vertex
			if format != nil {
				vert = format.DecodeVertex(m.Raw(), i)
			} else {
				vert = m.Vertices()[i]
			}
			p := w.TransformPoint(vert.Position)
			n := nm.TransformDirection(vert.Normal).Normalize()
			scene.AppendLine(g, p, p.Add(n.Mul(length)), normalColor)
		}
	}
}

func (v *Viewport) grid() scene.Geometry {
	key := gridKey{v.Settings.GridSize, v.Settings.GridDivs}
	if key != v.gridKey || v.gridGeom.Vertices == nil {
		v.gridKey = key
		v.gridGeom = scene.Grid(key.size, key.divisions)
	}
	return v.gridGeom
}

type gridKey struct {
	size      float32
	divisions int
}

// postProcess copies the readback into viewport memory and runs the
// post effects over it.
func (v *Viewport) postProcess() {
	pix, w, h := v.device.ReadColor(v.fb)
	v.color = append(v.color[:0], pix...)
	if !v.Settings.Post.Active() {
		return
	}
	postfx.Apply(postfx.Frame{
		Pix:    v.color,
		Width:  w,
		Height: h,
		Depth:  v.device.ReadDepthBuffer(v.fb),
		Near:   v.Camera.Near,
		Far:    v.Camera.Far,
	}, v.Settings.Post)
}
