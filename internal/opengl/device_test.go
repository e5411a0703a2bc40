package opengl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewport-engine/core"
	"viewport-engine/internal/opengl"
	"viewport-engine/math"
	"viewport-engine/rhi"
	"viewport-engine/scene"
	"viewport-engine/viewport"
)

// newDevice skips on machines without a display or a 4.1 driver.
func newDevice(t *testing.T) *opengl.Device {
	t.Helper()
	d, err := opengl.New(rhi.DeviceConfig{})
	if err != nil {
		t.Skipf("opengl unavailable: %v", err)
	}
	t.Cleanup(d.Destroy)
	return d
}

func TestRegistered(t *testing.T) {
	assert.True(t, rhi.IsRegistered("gl"))
	assert.Contains(t, rhi.Backends(), rhi.OpenGL)
}

func TestClearAndReadback(t *testing.T) {
	d := newDevice(t)
	fb, err := d.CreateFramebuffer(8, 4)
	require.NoError(t, err)

	_, ok := d.ReadID(fb, 0, 0)
	assert.False(t, ok, "nothing rendered yet")

	cv := rhi.ClearValues{Color: core.Color{R: 1, A: 1}, Depth: 1, ID: 7}
	require.NoError(t, d.BeginFrame(fb, cv, rhi.FrameParams{ViewProj: math.Mat4Identity()}))
	require.NoError(t, d.EndFrame())

	px, w, h := d.ReadColor(fb)
	require.Equal(t, 8, w)
	require.Equal(t, 4, h)
	assert.Equal(t, []byte{255, 0, 0, 255}, px[:4])
	id, ok := d.ReadID(fb, 7, 3)
	assert.True(t, ok)
	assert.Equal(t, uint32(7), id)
	depth, ok := d.ReadDepth(fb, 0, 0)
	assert.True(t, ok)
	assert.Equal(t, float32(1), depth)

	assert.ErrorIs(t, d.EndFrame(), rhi.ErrNotInFrame)
	assert.ErrorIs(t, d.ResizeFramebuffer(fb, 0, 4), rhi.ErrInvalidSize)
	assert.ErrorIs(t, d.UpdateBuffer(99, nil), rhi.ErrInvalidHandle)
}

func TestTopRowComesFirst(t *testing.T) {
	d := newDevice(t)
	fb, err := d.CreateFramebuffer(4, 4)
	require.NoError(t, err)

	// a quad covering the upper half of clip space
	g := scene.Geometry{
		Vertices: []core.Vertex{
			{Position: math.Vec3{X: -1, Y: 0}, Color: core.ColorWhite},
			{Position: math.Vec3{X: 1, Y: 0}, Color: core.ColorWhite},
			{Position: math.Vec3{X: 1, Y: 1}, Color: core.ColorWhite},
			{Position: math.Vec3{X: -1, Y: 1}, Color: core.ColorWhite},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
	vb, err := d.CreateBuffer(rhi.VertexBuffer, core.EncodeVertices(g.Vertices))
	require.NoError(t, err)
	ib, err := d.CreateBuffer(rhi.IndexBuffer, core.EncodeIndices(g.Indices))
	require.NoError(t, err)

	require.NoError(t, d.BeginFrame(fb, rhi.ClearValues{Depth: 1}, rhi.FrameParams{ViewProj: math.Mat4Identity()}))
	d.Draw(rhi.DrawCall{
		VertexBuffer: vb, IndexBuffer: ib, IndexCount: 6, VertexCount: 4,
		Model:    math.Mat4Identity(),
		ObjectID: 3,
		Material: rhi.Material{BaseColor: core.ColorWhite, Opacity: 1},
		State:    rhi.DefaultState(),
		Shading:  rhi.ShadeUnlit,
	})
	require.NoError(t, d.EndFrame())

	top, _ := d.ReadID(fb, 1, 0)
	bottom, _ := d.ReadID(fb, 1, 3)
	assert.Equal(t, uint32(3), top)
	assert.Zero(t, bottom)
}

// TestMatchesSoftware renders the reference scene on both backends.
func TestMatchesSoftware(t *testing.T) {
	if caps := newDevice(t).Caps(); caps.Emulated {
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
	d := viewport.CompareRGBA(render("cpu"), render("opengl"), viewport.EquivalentTolerance)
	t.Logf("%.2f%% within tolerance, max diff %d", 100*d.Ratio(), d.MaxDiff)
	assert.GreaterOrEqual(t, d.Ratio(), viewport.EquivalentRatio)
	assert.LessOrEqual(t, d.MaxDiff, viewport.MaxPixelDiff)
}
