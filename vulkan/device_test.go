package vulkan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
	"viewport-engine/viewport"
	"viewport-engine/vulkan"
)

// newDevice skips without a loader or a device.
func newDevice(t *testing.T, cfg rhi.DeviceConfig) *vulkan.Device {
	t.Helper()
	d, err := vulkan.New(cfg)
	if err != nil {
		t.Skipf("vulkan unavailable: %v", err)
	}
	t.Cleanup(d.Destroy)
	return d
}

func quad(t *testing.T, d rhi.Device, x0, y0, x1, y1, z float32) (rhi.Buffer, rhi.Buffer) {
	t.Helper()
	verts := []core.Vertex{
		{Position: math.Vec3{X: x0, Y: y0, Z: z}, Color: core.ColorWhite},
		{Position: math.Vec3{X: x1, Y: y0, Z: z}, Color: core.ColorWhite},
		{Position: math.Vec3{X: x1, Y: y1, Z: z}, Color: core.ColorWhite},
		{Position: math.Vec3{X: x0, Y: y1, Z: z}, Color: core.ColorWhite},
	}
	vb, err := d.CreateBuffer(rhi.VertexBuffer, core.EncodeVertices(verts))
	require.NoError(t, err)
	ib, err := d.CreateBuffer(rhi.IndexBuffer, core.EncodeIndices([]uint32{0, 1, 2, 0, 2, 3}))
	require.NoError(t, err)
	return vb, ib
}

func call(vb, ib rhi.Buffer, id uint32) rhi.DrawCall {
	return rhi.DrawCall{
		VertexBuffer: vb, IndexBuffer: ib, IndexCount: 6, VertexCount: 4,
		Model:    math.Mat4Identity(),
		ObjectID: id,
		Material: rhi.Material{BaseColor: core.ColorWhite, Opacity: 1},
		State:    rhi.DefaultState(),
		Shading:  rhi.ShadeUnlit,
	}
}

var identityFrame = rhi.FrameParams{ViewProj: math.Mat4Identity()}

func TestRegistered(t *testing.T) {
	assert.True(t, rhi.IsRegistered("vk"))
	assert.Contains(t, rhi.Backends(), rhi.Vulkan)
}

func TestCaps(t *testing.T) {
	d := newDevice(t, rhi.DeviceConfig{DrawsPerFrame: 16})
	caps := d.Caps()
	assert.True(t, caps.DepthZeroToOne)
	assert.Equal(t, 16, caps.MaxDrawsPerFrame)
	assert.Positive(t, caps.UniformAlignment)
	assert.GreaterOrEqual(t, caps.MaxTextureSize, 4096)
}

func TestClearAndReadback(t *testing.T) {
	d := newDevice(t, rhi.DeviceConfig{})
	fb, err := d.CreateFramebuffer(8, 4)
	require.NoError(t, err)

	_, ok := d.ReadID(fb, 0, 0)
	assert.False(t, ok, "nothing rendered yet")

	cv := rhi.ClearValues{Color: core.Color{G: 1, A: 1}, Depth: 1, ID: 9}
	require.NoError(t, d.BeginFrame(fb, cv, identityFrame))
	require.NoError(t, d.EndFrame())

	px, w, h := d.ReadColor(fb)
	require.Equal(t, 8, w)
	require.Equal(t, 4, h)
	assert.Equal(t, []byte{0, 255, 0, 255}, px[len(px)-4:])
	id, ok := d.ReadID(fb, 7, 3)
	assert.True(t, ok)
	assert.Equal(t, uint32(9), id)
	depth, ok := d.ReadDepth(fb, 3, 2)
	assert.True(t, ok)
	assert.Equal(t, float32(1), depth)
	assert.Len(t, d.ReadDepthBuffer(fb), 32)

	assert.ErrorIs(t, d.EndFrame(), rhi.ErrNotInFrame)
	assert.ErrorIs(t, d.BeginFrame(99, cv, identityFrame), rhi.ErrInvalidHandle)
	assert.ErrorIs(t, d.ResizeFramebuffer(fb, 4, -1), rhi.ErrInvalidSize)
}

func TestTopRowComesFirst(t *testing.T) {
	d := newDevice(t, rhi.DeviceConfig{})
	fb, err := d.CreateFramebuffer(4, 4)
	require.NoError(t, err)
	vb, ib := quad(t, d, -1, 0, 1, 1, 0)

	require.NoError(t, d.BeginFrame(fb, rhi.ClearValues{Depth: 1}, identityFrame))
	d.Draw(call(vb, ib, 3))
	require.NoError(t, d.EndFrame())

	top, _ := d.ReadID(fb, 1, 0)
	bottom, _ := d.ReadID(fb, 1, 3)
	assert.Equal(t, uint32(3), top)
	assert.Zero(t, bottom)
}

func TestDepthIsZeroToOne(t *testing.T) {
	d := newDevice(t, rhi.DeviceConfig{})
	fb, err := d.CreateFramebuffer(2, 2)
	require.NoError(t, err)
	vb, ib := quad(t, d, -1, -1, 1, 1, 0)

	require.NoError(t, d.BeginFrame(fb, rhi.ClearValues{Depth: 1}, identityFrame))
	d.Draw(call(vb, ib, 1))
	require.NoError(t, d.EndFrame())

	// clip z 0 lands halfway through the depth range, as on OpenGL
	depth, ok := d.ReadDepth(fb, 0, 0)
	require.True(t, ok)
	assert.InDelta(t, 0.5, depth, 1e-4)
}

func TestUpdateAfterDrawKeepsQueuedData(t *testing.T) {
	d := newDevice(t, rhi.DeviceConfig{})
	fb, err := d.CreateFramebuffer(4, 4)
	require.NoError(t, err)
	vb, ib := quad(t, d, -1, 0, 1, 1, 0)

	require.NoError(t, d.BeginFrame(fb, rhi.ClearValues{Depth: 1}, identityFrame))
	d.Draw(call(vb, ib, 5))
	// move the quad to the lower half after its draw was queued
	lower := []core.Vertex{
		{Position: math.Vec3{X: -1, Y: -1}, Color: core.ColorWhite},
		{Position: math.Vec3{X: 1, Y: -1}, Color: core.ColorWhite},
		{Position: math.Vec3{X: 1, Y: 0}, Color: core.ColorWhite},
		{Position: math.Vec3{X: -1, Y: 0}, Color: core.ColorWhite},
	}
	require.NoError(t, d.UpdateBuffer(vb, core.EncodeVertices(lower)))
	d.Draw(call(vb, ib, 6))
	require.NoError(t, d.EndFrame())

	top, _ := d.ReadID(fb, 1, 0)
	bottom, _ := d.ReadID(fb, 1, 3)
	assert.Equal(t, uint32(5), top)
	assert.Equal(t, uint32(6), bottom)
}

func TestInstancedDraw(t *testing.T) {
	d := newDevice(t, rhi.DeviceConfig{})
	fb, err := d.CreateFramebuffer(8, 2)
	require.NoError(t, err)
	vb, ib := quad(t, d, -0.5, -1, 0.5, 1, 0)

	require.NoError(t, d.BeginFrame(fb, rhi.ClearValues{Depth: 1}, identityFrame))
	d.DrawInstanced(call(vb, ib, 2), []math.Mat4{
		math.Mat4Translation(math.Vec3{X: -0.5}),
		math.Mat4Translation(math.Vec3{X: 0.5}),
	})
	require.NoError(t, d.EndFrame())

	for _, x := range []int{0, 7} {
		id, ok := d.ReadID(fb, x, 1)
		require.True(t, ok)
		assert.Equal(t, uint32(2), id, "x=%d", x)
	}
}

func TestDrawBudget(t *testing.T) {
	d := newDevice(t, rhi.DeviceConfig{DrawsPerFrame: 1})
	fb, err := d.CreateFramebuffer(4, 4)
	require.NoError(t, err)
	top, itop := quad(t, d, -1, 0, 1, 1, 0)
	bottom, ibottom := quad(t, d, -1, -1, 1, 0, 0)

	require.NoError(t, d.BeginFrame(fb, rhi.ClearValues{Depth: 1}, identityFrame))
	d.Draw(call(top, itop, 1))
	d.Draw(call(bottom, ibottom, 2))
	require.NoError(t, d.EndFrame())

	id, _ := d.ReadID(fb, 1, 3)
	assert.Zero(t, id, "second draw exceeds the budget")
}

func TestBlendedDrawKeepsID(t *testing.T) {
	d := newDevice(t, rhi.DeviceConfig{})
	fb, err := d.CreateFramebuffer(2, 2)
	require.NoError(t, err)
	vb, ib := quad(t, d, -1, -1, 1, 1, 0)

	require.NoError(t, d.BeginFrame(fb, rhi.ClearValues{Depth: 1, ID: 4}, identityFrame))
	c := call(vb, ib, 8)
	c.State.Blend = rhi.BlendAlpha
	c.Material.Opacity = 0.5
	d.Draw(c)
	require.NoError(t, d.EndFrame())

	id, _ := d.ReadID(fb, 0, 0)
	assert.Equal(t, uint32(4), id)
	depth, _ := d.ReadDepth(fb, 0, 0)
	assert.Equal(t, float32(1), depth, "blended draws do not write depth")
}

func TestTextureRejectsShortData(t *testing.T) {
	d := newDevice(t, rhi.DeviceConfig{})
	_, err := d.CreateTexture(rhi.TextureDesc{Width: 2, Height: 2}, make([]byte, 4))
	assert.Error(t, err)
	_, err = d.CreateTexture(rhi.TextureDesc{Width: 0, Height: 2}, nil)
	assert.ErrorIs(t, err, rhi.ErrInvalidSize)

	tex, err := d.CreateTexture(rhi.TextureDesc{Width: 2, Height: 2, Filter: rhi.FilterLinear}, make([]byte, 16))
	require.NoError(t, err)
	d.DestroyTexture(tex)
}

// TestMatchesSoftware renders the reference scene on both backends.
func TestMatchesSoftware(t *testing.T) {
	if caps := newDevice(t, rhi.DeviceConfig{}).Caps(); caps.Emulated {
		t.Skipf("%s is a CPU emulator", caps.Renderer)
	}

	render := func(backend string) []byte {
		v := viewport.New(96, 64, backend)
		require.NotNil(t, v)
		defer v.Destroy()
		viewport.BuildReferenceScene(v)
		v.Render()
		px, _, _ := v.ReadColor()
		return append([]byte(nil), px...)
	}
	d := viewport.CompareRGBA(render("cpu"), render("vulkan"), viewport.EquivalentTolerance)
	t.Logf("%.2f%% within tolerance, max diff %d", 100*d.Ratio(), d.MaxDiff)
	assert.GreaterOrEqual(t, d.Ratio(), viewport.EquivalentRatio)
	assert.LessOrEqual(t, d.MaxDiff, viewport.MaxPixelDiff)
}
