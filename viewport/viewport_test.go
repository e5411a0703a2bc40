package viewport

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
	"viewport-engine/rhi/software"
	"viewport-engine/scene"
	"viewport-engine/spatial"
)

// recorder is the software device with draw order recorded.
type recorder struct {
	*software.Device
	ids *[]uint32
}

func (r recorder) Draw(call rhi.DrawCall) {
	*r.ids = append(*r.ids, call.ObjectID)
	r.Device.Draw(call)
}

func (r recorder) DrawInstanced(call rhi.DrawCall, instances []math.Mat4) {
	*r.ids = append(*r.ids, call.ObjectID)
	r.Device.DrawInstanced(call, instances)
}

var recorded []uint32

func init() {
	rhi.Register("recorder", func(cfg rhi.DeviceConfig) (rhi.Device, error) {
		return recorder{Device: software.New(cfg), ids: &recorded}, nil
	})
}

func newTestViewport(t *testing.T, w, h int, opts ...Option) *Viewport {
	t.Helper()
	v := New(w, h, "cpu", opts...)
	require.NotNil(t, v)
	t.Cleanup(v.Destroy)
	v.Camera = scene.NewOrbitCamera(math.Vec3{}, 8, 0, 0, 0.785398, float32(w)/float32(h))
	return v
}

func addCube(t *testing.T, v *Viewport, pos math.Vec3, id uint32) scene.MeshHandle {
	t.Helper()
	h := v.AddGeometry(scene.Cube(1), id)
	require.False(t, h.IsNil())
	v.SetPosition(h, pos)
	return h
}

func TestNilViewportIsInert(t *testing.T) {
	var v *Viewport
	assert.NotPanics(t, func() {
		v.Render()
		v.Resize(10, 10)
		v.Destroy()
		v.SetSelected(1)
		v.DrawLines(scene.Grid(1, 2), math.Mat4Identity())
	})
	assert.False(t, v.Pick(0, 0).Hit)
	assert.False(t, v.RaycastPixel(0, 0).Hit)
	assert.True(t, v.AddMesh(nil, nil, 1).IsNil())
	assert.Zero(t, v.VisibleMeshCount())
	assert.Zero(t, v.AddHook(StagePreRender, func(*Viewport, Stage) {}))
	assert.False(t, v.SceneAABB().IsValid())
	pix, w, h := v.ReadColor()
	assert.Nil(t, pix)
	assert.Zero(t, w+h)
}

func TestNewRejectsInvalidArguments(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		backend       string
	}{
		{"zero width", 0, 10, "cpu"},
		{"negative height", 10, -1, "cpu"},
		{"unknown backend", 10, 10, "directx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, New(tt.width, tt.height, tt.backend))
		})
	}
}

func TestPickMissesBeforeRenderAndOutOfBounds(t *testing.T) {
	v := newTestViewport(t, 32, 24)
	addCube(t, v, math.Vec3{}, 7)
	assert.False(t, v.Pick(16, 12).Hit, "no frame yet")

	v.Render()
	assert.True(t, v.Pick(16, 12).Hit)
	assert.False(t, v.Pick(-1, 0).Hit)
	assert.False(t, v.Pick(32, 0).Hit)
	assert.False(t, v.Pick(0, 0).Hit, "background")
}

func TestRaycastMissesBeforeRender(t *testing.T) {
	v := newTestViewport(t, 64, 48)
	addCube(t, v, math.Vec3{}, 7)
	ray := spatial.NewRay(math.Vec3{Z: 10}, math.Vec3{Z: -1})

	assert.False(t, v.RaycastPixel(32, 24).Hit, "no frame yet")
	assert.False(t, v.Raycast(ray).Hit, "no frame yet")

	v.Render()
	hit := v.Raycast(ray)
	require.True(t, hit.Hit)
	assert.Equal(t, uint32(7), hit.ObjectID)
	assert.True(t, v.RaycastPixel(32, 24).Hit)

	v.Resize(32, 24)
	assert.False(t, v.Raycast(ray).Hit, "resized, no frame at the new size")
}

func TestPickAndRaycastAgree(t *testing.T) {
	const w, h = 64, 48
	v := newTestViewport(t, w, h)
	positions := []math.Vec3{{X: -2}, {}, {X: 2}, {Y: 1.5}}
	for i, p := range positions {
		addCube(t, v, p, uint32(i+1))
	}
	v.Render()

	for i, p := range positions {
		x, y, ok := spatial.WorldToScreen(p, w, h, v.Camera.View(), v.Camera.Projection())
		require.True(t, ok)
		px, py := int(x), int(y)

		pick := v.Pick(px, py)
		require.True(t, pick.Hit, "cube %d", i+1)
		assert.Equal(t, uint32(i+1), pick.ObjectID)
		assert.Greater(t, pick.Depth, float32(0))
		assert.Less(t, pick.Depth, float32(1))

		ray := v.RaycastPixel(px, py)
		require.True(t, ray.Hit)
		assert.Equal(t, pick.ObjectID, ray.ObjectID)
		assert.InDelta(t, 7.5, ray.Distance, 0.6)
	}
}

func TestHooksAndSubsystemsRunInFrameOrder(t *testing.T) {
	v := newTestViewport(t, 16, 16)
	var got []string
	for s := StagePostRender; ; s-- {
		v.AddHook(s, func(_ *Viewport, st Stage) { got = append(got, st.String()) })
		if s == StagePreRender {
			break
		}
	}
	second := v.AddHook(StagePostScene, func(*Viewport, Stage) { got = append(got, "second") })
	v.SetFrameCallback(
		func(*Viewport) { got = append(got, "pre") },
		func(*Viewport) { got = append(got, "post") },
	)
	sim := &countingSubsystem{name: "simulate", log: &got, enabled: true}
	post := &countingSubsystem{name: "post-render", log: &got, enabled: true}
	require.True(t, v.Register(PhaseSimulate, sim))
	require.True(t, v.Register(PhasePostRender, post))

	v.Render()
	assert.Equal(t, []string{
		"simulate", "pre",
		"PRE_RENDER", "POST_CLEAR", "PRE_SCENE", "POST_OPAQUE", "POST_SCENE", "second",
		"POST_OVERLAY", "POST_RENDER",
		"post-render", "post",
	}, got)

	got = got[:0]
	require.True(t, v.RemoveHook(second))
	assert.False(t, v.RemoveHook(second))
	require.True(t, v.Unregister(sim))
	v.Render()
	assert.NotContains(t, got, "second")
	assert.NotContains(t, got, "simulate")
	assert.Equal(t, 1, sim.updates)

	v.Destroy()
	assert.Equal(t, 1, post.destroyed)
	assert.Zero(t, sim.destroyed, "unregistered subsystems are not destroyed")
}

type countingSubsystem struct {
	name      string
	log       *[]string
	enabled   bool
	updates   int
	destroyed int
}

func (s *countingSubsystem) Enabled() bool { return s.enabled }

func (s *countingSubsystem) Update(*Viewport, float64) {
	s.updates++
	*s.log = append(*s.log, s.name)
}

func (s *countingSubsystem) Destroy() { s.destroyed++ }

func TestStatsAndFrustumCulling(t *testing.T) {
	v := newTestViewport(t, 40, 30)
	addCube(t, v, math.Vec3{}, 1)
	addCube(t, v, math.Vec3{Z: 50}, 2) // behind the camera
	hidden := addCube(t, v, math.Vec3{X: 1}, 3)
	v.SetVisible(hidden, false)

	v.Render()
	s := v.Stats()
	assert.Equal(t, 1, s.VisibleMeshes)
	assert.Equal(t, 1, s.CulledMeshes)
	assert.Equal(t, 12, s.Triangles)
	assert.Equal(t, 1, s.DrawCalls)
	assert.Equal(t, 40*30, s.Pixels)
	assert.Equal(t, 1, v.VisibleMeshCount())
	assert.Positive(t, s.Total)

	v.Settings.FrustumCulling = false
	v.Render()
	assert.Equal(t, 2, v.Stats().VisibleMeshes)
	assert.Zero(t, v.Stats().CulledMeshes)
}

func TestDrawBudgetSkipsExcessDraws(t *testing.T) {
	v := newTestViewport(t, 32, 32, WithDeviceConfig(rhi.DeviceConfig{DrawsPerFrame: 2}))
	for i := 0; i < 4; i++ {
		addCube(t, v, math.Vec3{X: float32(i) - 1.5}, uint32(i+1))
	}
	v.Render()
	assert.Equal(t, 2, v.Stats().DrawCalls)
	assert.Equal(t, 2, v.Stats().SkippedDraws)
}

func TestInstancedMeshIsOneDraw(t *testing.T) {
	v := newTestViewport(t, 32, 32)
	g := scene.Cube(0.5)
	h := v.AddInstanced(g.Vertices, g.Indices, []math.Mat4{
		math.Mat4Translation(math.Vec3{X: -1}),
		math.Mat4Identity(),
		math.Mat4Translation(math.Vec3{X: 1}),
	}, 9)
	require.False(t, h.IsNil())
	v.Render()
	assert.Equal(t, 1, v.Stats().DrawCalls)
	assert.Equal(t, 36, v.Stats().Triangles)
	assert.Equal(t, uint32(9), v.Pick(16, 16).ObjectID)
}

func TestTransparentDrawOrder(t *testing.T) {
	recorded = recorded[:0]
	v := New(32, 32, "recorder")
	require.NotNil(t, v)
	defer v.Destroy()
	v.Camera = scene.NewOrbitCamera(math.Vec3{}, 8, 0, 0, 0.785398, 1)

	near := v.AddGeometry(scene.Cube(0.5), 10)
	v.SetPosition(near, math.Vec3{Z: 2})
	v.SetOpacity(near, 0.5)
	far := v.AddGeometry(scene.Cube(0.5), 11)
	v.SetPosition(far, math.Vec3{Z: -2})
	v.SetOpacity(far, 0.5)
	glow := v.AddGeometry(scene.Cube(0.5), 12)
	v.SetPosition(glow, math.Vec3{Z: -3})
	v.SetBlend(glow, rhi.BlendAdditive)
	v.AddGeometry(scene.Cube(0.5), 1)

	v.Render()
	assert.Equal(t, []uint32{1, 11, 10, 12}, recorded)
	assert.Equal(t, uint32(1), v.Pick(16, 16).ObjectID, "blended meshes do not write IDs")
}

func TestResizeInvalidatesFrameResults(t *testing.T) {
	v := newTestViewport(t, 32, 32)
	addCube(t, v, math.Vec3{}, 1)
	v.Render()
	snap := v.Snapshot()
	require.True(t, snap.Valid())
	require.True(t, v.Pick(16, 16).Hit)

	v.Resize(64, 48)
	assert.False(t, snap.Valid())
	assert.False(t, v.Pick(16, 16).Hit)
	w, h := v.Size()
	assert.Equal(t, []int{64, 48}, []int{w, h})

	v.Resize(0, 48)
	w, _ = v.Size()
	assert.Equal(t, 64, w, "invalid resize is ignored")
}

func TestSnapshotViewsResolvedWorld(t *testing.T) {
	v := newTestViewport(t, 16, 16)
	parent := addCube(t, v, math.Vec3{X: 3}, 1)
	child := addCube(t, v, math.Vec3{Y: 2}, 2)
	require.True(t, v.SetParent(child, parent))

	snap := v.Snapshot()
	require.Equal(t, 2, snap.Len())
	var centers []math.Vec3
	for m := range snap.Meshes() {
		centers = append(centers, m.Bounds.Center())
	}
	assert.Contains(t, centers, math.Vec3{X: 3, Y: 2})

	tris := 0
	for range snap.Triangles() {
		tris++
	}
	assert.Equal(t, 24, tris)

	box := v.SceneAABB()
	assert.InDelta(t, 3.5, box.Max.X, 1e-5)
	assert.InDelta(t, 2.5, box.Max.Y, 1e-5)
}

func TestOverlayHandlesArePickableOnTop(t *testing.T) {
	v := newTestViewport(t, 32, 32)
	addCube(t, v, math.Vec3{}, 1)
	id := ReservedIDBase + 1
	h := v.AddOverlay(Overlay{
		Geometry: scene.Cube(0.3),
		Model:    math.Mat4Translation(math.Vec3{Z: -0.2}),
		Topology: rhi.Triangles,
		Color:    core.ColorWhite,
		ObjectID: id,
		OnTop:    true,
		Visible:  true,
	})
	require.False(t, h.IsNil())
	v.Render()
	assert.Equal(t, id, v.Pick(16, 16).ObjectID)
	assert.True(t, IsReservedID(id))

	require.True(t, v.SetOverlayVisible(h, false))
	v.Render()
	assert.Equal(t, uint32(1), v.Pick(16, 16).ObjectID)

	require.True(t, v.RemoveOverlay(h))
	assert.False(t, v.RemoveOverlay(h), "stale handle")
}

func TestSelectionOverlayAddsOneLineDraw(t *testing.T) {
	v := newTestViewport(t, 32, 32)
	addCube(t, v, math.Vec3{}, 4)
	v.Render()
	base := v.Stats().DrawCalls

	v.SetSelected(4)
	assert.True(t, v.IsSelected(4))
	assert.Equal(t, []uint32{4}, v.Selected())
	v.Render()
	assert.Equal(t, base+1, v.Stats().DrawCalls)
	assert.Equal(t, uint32(4), v.Pick(16, 16).ObjectID)
}

func TestPostEffectsApplyToReadColor(t *testing.T) {
	v := newTestViewport(t, 8, 8)
	v.Render()
	plain, _, _ := v.ReadColor()
	before := plain[0]

	v.Settings.Post.Gamma.Enabled = true
	v.Settings.Post.Gamma.Value = 2.2
	v.Render()
	pix, w, h := v.ReadColor()
	require.Len(t, pix, w*h*4)
	assert.Greater(t, pix[0], before)
}

func TestTextureLifecycle(t *testing.T) {
	v := newTestViewport(t, 8, 8)
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	tex := v.CreateTexture(img, rhi.FilterNearest)
	require.NotZero(t, tex)

	h := addCube(t, v, math.Vec3{}, 1)
	mat := scene.DefaultMaterial()
	mat.Texture = tex
	v.SetMaterial(h, mat)
	v.DestroyTexture(tex)
	assert.Zero(t, v.Mesh(h).Material.Texture)

	pix, w, hgt := RGBA8(image.NewGray(image.Rect(1, 1, 4, 3)))
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, hgt)
	assert.Len(t, pix, 3*2*4)
}

func TestLightSlotsThroughViewport(t *testing.T) {
	v := newTestViewport(t, 8, 8)
	for i := 0; i < rhi.MaxLights; i++ {
		require.False(t, v.AddLight(scene.PointLight(math.Vec3{Y: 2}, core.ColorWhite, 1, 10)).IsNil())
	}
	assert.True(t, v.AddLight(scene.PointLight(math.Vec3{}, core.ColorWhite, 1, 10)).IsNil())
	assert.NotPanics(t, v.Render)
}

func TestRemoveMeshFreesSlot(t *testing.T) {
	v := newTestViewport(t, 16, 16)
	h := addCube(t, v, math.Vec3{}, 1)
	v.Render()
	require.True(t, v.RemoveMesh(h))
	assert.False(t, v.RemoveMesh(h))
	v.Render()
	assert.False(t, v.Pick(8, 8).Hit)
	assert.Zero(t, v.Stats().DrawCalls)
}
