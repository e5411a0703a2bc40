package software

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
)

func ndcVertex(x, y, z float32) core.Vertex {
	return core.Vertex{
		Position: math.Vec3{X: x, Y: y, Z: z},
		Normal:   math.Vec3{Z: 1},
		Color:    core.ColorWhite,
	}
}

// quad covers the whole target at NDC depth z, counter-clockwise.
func quad(z float32) ([]core.Vertex, []uint32) {
	return []core.Vertex{
		ndcVertex(-1, -1, z),
		ndcVertex(1, -1, z),
		ndcVertex(1, 1, z),
		ndcVertex(-1, 1, z),
	}, []uint32{0, 1, 2, 0, 2, 3}
}

type fixture struct {
	dev *Device
	fb  rhi.Framebuffer
}

func newFixture(t *testing.T, w, h int) *fixture {
	t.Helper()
	dev := New(rhi.DeviceConfig{})
	fb, err := dev.CreateFramebuffer(w, h)
	require.NoError(t, err)
	t.Cleanup(dev.Destroy)
	return &fixture{dev: dev, fb: fb}
}

func (f *fixture) call(t *testing.T, verts []core.Vertex, indices []uint32, id uint32, color core.Color) rhi.DrawCall {
	t.Helper()
	vb, err := f.dev.CreateBuffer(rhi.VertexBuffer, core.EncodeVertices(verts))
	require.NoError(t, err)
	ib, err := f.dev.CreateBuffer(rhi.IndexBuffer, core.EncodeIndices(indices))
	require.NoError(t, err)
	return rhi.DrawCall{
		VertexBuffer: vb,
		IndexBuffer:  ib,
		IndexCount:   len(indices),
		VertexCount:  len(verts),
		Model:        math.Mat4Identity(),
		ObjectID:     id,
		Material:     rhi.Material{BaseColor: color, Opacity: 1},
		State:        rhi.DefaultState(),
		Shading:      rhi.ShadeUnlit,
	}
}

func (f *fixture) begin(t *testing.T) {
	t.Helper()
	frame := rhi.FrameParams{
		View:     math.Mat4Identity(),
		Proj:     math.Mat4Identity(),
		ViewProj: math.Mat4Identity(),
	}
	require.NoError(t, f.dev.BeginFrame(f.fb, rhi.ClearValues{Color: core.ColorBlack, Depth: 1}, frame))
}

func TestSharedEdgeCoveredOnce(t *testing.T) {
	f := newFixture(t, 16, 16)
	verts, idx := quad(0)
	call := f.call(t, verts, idx, 1, core.Color{R: 0.25, G: 0.25, B: 0.25, A: 1})
	call.State.Blend = rhi.BlendAdditive
	call.State.DepthTest = false

	f.begin(t)
	f.dev.Draw(call)
	require.NoError(t, f.dev.EndFrame())

	want := core.LinearToSRGB8(0.25)
	pixels, w, h := f.dev.ReadColor(f.fb)
	require.Equal(t, 16, w)
	require.Equal(t, 16, h)
	for i := 0; i < w*h; i++ {
		if pixels[i*4] != want {
			t.Fatalf("pixel %d,%d = %d, want %d", i%w, i/w, pixels[i*4], want)
		}
	}
}

func TestDepthTestKeepsNearest(t *testing.T) {
	f := newFixture(t, 8, 8)
	nearV, idx := quad(-0.5)
	farV, _ := quad(0.5)
	near := f.call(t, nearV, idx, 7, core.ColorRed)
	far := f.call(t, farV, idx, 9, core.ColorBlue)

	f.begin(t)
	f.dev.Draw(near)
	f.dev.Draw(far)
	require.NoError(t, f.dev.EndFrame())

	id, ok := f.dev.ReadID(f.fb, 4, 4)
	require.True(t, ok)
	assert.Equal(t, uint32(7), id)

	depth, ok := f.dev.ReadDepth(f.fb, 4, 4)
	require.True(t, ok)
	assert.InDelta(t, 0.25, depth, 1e-6)

	pixels, _, _ := f.dev.ReadColor(f.fb)
	assert.Equal(t, []byte{255, 0, 0, 255}, pixels[(4*8+4)*4:(4*8+4)*4+4])
}

func TestBackFaceCulling(t *testing.T) {
	tests := []struct {
		name    string
		cull    bool
		wantHit bool
	}{
		{"culled", true, false},
		{"double sided", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 8, 8)
			verts, _ := quad(0)
			// clockwise winding
			call := f.call(t, verts, []uint32{0, 2, 1, 0, 3, 2}, 3, core.ColorWhite)
			call.State.CullBack = tt.cull

			f.begin(t)
			f.dev.Draw(call)
			require.NoError(t, f.dev.EndFrame())

			id, ok := f.dev.ReadID(f.fb, 4, 4)
			require.True(t, ok)
			assert.Equal(t, tt.wantHit, id == 3)
		})
	}
}

func TestNearPlaneClipping(t *testing.T) {
	f := newFixture(t, 32, 32)
	proj := math.Mat4Perspective(1.0, 1, 0.1, 100)
	view := math.Mat4LookAt(math.Vec3{Y: 1}, math.Vec3{Y: 1, Z: -1}, math.Vec3Up)

	// A floor plane that runs from behind the camera to far in front.
	verts := []core.Vertex{
		ndcVertex(-10, 0, 10),
		ndcVertex(10, 0, 10),
		ndcVertex(10, 0, -50),
		ndcVertex(-10, 0, -50),
	}
	for i := range verts {
		verts[i].Normal = math.Vec3Up
	}
	call := f.call(t, verts, []uint32{0, 1, 2, 0, 2, 3}, 5, core.ColorWhite)
	call.State.CullBack = false

	frame := rhi.FrameParams{View: view, Proj: proj, ViewProj: proj.Mul(view)}
	require.NoError(t, f.dev.BeginFrame(f.fb, rhi.ClearValues{Depth: 1}, frame))
	f.dev.Draw(call)
	require.NoError(t, f.dev.EndFrame())

	// bottom row sees the floor, top row sees the sky
	id, ok := f.dev.ReadID(f.fb, 16, 31)
	require.True(t, ok)
	assert.Equal(t, uint32(5), id)
	id, _ = f.dev.ReadID(f.fb, 16, 0)
	assert.Zero(t, id)
}

func TestInstancedDraw(t *testing.T) {
	f := newFixture(t, 16, 16)
	verts := []core.Vertex{
		ndcVertex(-0.25, -0.25, 0),
		ndcVertex(0.25, -0.25, 0),
		ndcVertex(0.25, 0.25, 0),
		ndcVertex(-0.25, 0.25, 0),
	}
	call := f.call(t, verts, []uint32{0, 1, 2, 0, 2, 3}, 11, core.ColorWhite)

	f.begin(t)
	f.dev.DrawInstanced(call, []math.Mat4{
		math.Mat4Translation(math.Vec3{X: -0.5}),
		math.Mat4Translation(math.Vec3{X: 0.5}),
	})
	require.NoError(t, f.dev.EndFrame())

	left, _ := f.dev.ReadID(f.fb, 4, 8)
	right, _ := f.dev.ReadID(f.fb, 12, 8)
	middle, _ := f.dev.ReadID(f.fb, 8, 8)
	assert.Equal(t, uint32(11), left)
	assert.Equal(t, uint32(11), right)
	assert.Zero(t, middle)
}

func TestBlendedDrawsDoNotWriteIDOrDepth(t *testing.T) {
	f := newFixture(t, 4, 4)
	verts, idx := quad(0)
	call := f.call(t, verts, idx, 2, core.Color{R: 1, G: 1, B: 1, A: 0.5})
	call.State.Blend = rhi.BlendAlpha

	f.begin(t)
	f.dev.Draw(call)
	require.NoError(t, f.dev.EndFrame())

	id, _ := f.dev.ReadID(f.fb, 1, 1)
	depth, _ := f.dev.ReadDepth(f.fb, 1, 1)
	assert.Zero(t, id)
	assert.Equal(t, float32(1), depth)

	pixels, _, _ := f.dev.ReadColor(f.fb)
	assert.Equal(t, core.LinearToSRGB8(0.5), pixels[0])
}

func TestReadbackBounds(t *testing.T) {
	f := newFixture(t, 4, 4)

	_, ok := f.dev.ReadID(f.fb, 0, 0)
	assert.False(t, ok, "nothing rendered yet")

	f.begin(t)
	require.NoError(t, f.dev.EndFrame())

	for _, p := range [][2]int{{-1, 0}, {0, -1}, {4, 0}, {0, 4}} {
		_, ok := f.dev.ReadID(f.fb, p[0], p[1])
		assert.False(t, ok, "%v", p)
	}
	_, ok = f.dev.ReadID(f.fb, 3, 3)
	assert.True(t, ok)
	assert.Len(t, f.dev.ReadDepthBuffer(f.fb), 16)
}

func TestFramebufferLifecycle(t *testing.T) {
	dev := New(rhi.DeviceConfig{})
	defer dev.Destroy()

	_, err := dev.CreateFramebuffer(0, 10)
	require.ErrorIs(t, err, rhi.ErrInvalidSize)

	fb, err := dev.CreateFramebuffer(4, 4)
	require.NoError(t, err)
	require.ErrorIs(t, dev.ResizeFramebuffer(fb, 5, -1), rhi.ErrInvalidSize)
	require.NoError(t, dev.ResizeFramebuffer(fb, 8, 2))

	_, w, h := dev.ReadColor(fb)
	assert.Equal(t, 8, w)
	assert.Equal(t, 2, h)

	require.ErrorIs(t, dev.EndFrame(), rhi.ErrNotInFrame)
	require.ErrorIs(t, dev.UpdateBuffer(999, nil), rhi.ErrInvalidHandle)
}

func TestRegisteredUnderAliases(t *testing.T) {
	for _, name := range []string{"software", "cpu", "SW"} {
		assert.True(t, rhi.IsRegistered(name), name)
	}
}

func TestTextureSampling(t *testing.T) {
	// 2x1: red, green
	pixels := []byte{255, 0, 0, 255, 0, 255, 0, 255}
	tex := newTexture(rhi.TextureDesc{Width: 2, Height: 1}, pixels)

	tests := []struct {
		u    float32
		want core.Color
	}{
		{0.25, core.ColorRed},
		{0.75, core.ColorGreen},
		{1.25, core.ColorRed},
		{-0.25, core.ColorGreen},
	}
	for _, tt := range tests {
		got := tex.sample(tt.u, 0.5)
		assert.InDelta(t, tt.want.R, got.R, 1e-6, "u=%v", tt.u)
		assert.InDelta(t, tt.want.G, got.G, 1e-6, "u=%v", tt.u)
	}
}

func TestTopLeftRule(t *testing.T) {
	tests := []struct {
		name           string
		ax, ay, bx, by float32
		want           bool
	}{
		{"top edge", 0, 0, 4, 0, true},
		{"bottom edge", 4, 4, 0, 4, false},
		{"left edge", 0, 4, 0, 0, true},
		{"right edge", 4, 0, 4, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTopLeft(tt.ax, tt.ay, tt.bx, tt.by))
		})
	}
}
