package effects

import (
	stdmath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewport-engine/math"
	"viewport-engine/scene"
	"viewport-engine/viewport"
)

func TestStepRespectsPool(t *testing.T) {
	e := NewFireEmitter(50, 1)
	for range 120 {
		e.Step(1.0 / 60)
		require.LessOrEqual(t, e.Count(), 50)
	}
	assert.Greater(t, e.Count(), 40, "pool stays near full at 80/s")
}

func TestInactiveEmitterDrains(t *testing.T) {
	e := NewSmokeEmitter(30, 2)
	for range 60 {
		e.Step(0.1)
	}
	require.Positive(t, e.Count())

	e.Active = false
	for range 50 {
		e.Step(0.1)
	}
	assert.Zero(t, e.Count(), "every particle outlives at most MaxLife")
}

func TestSameSeedSameParticles(t *testing.T) {
	a, b := NewFireEmitter(20, 7), NewFireEmitter(20, 7)
	for range 10 {
		a.Step(0.05)
		b.Step(0.05)
	}
	assert.Equal(t, a.Particles(), b.Particles())

	c := NewFireEmitter(20, 8)
	for range 10 {
		c.Step(0.05)
	}
	assert.NotEqual(t, a.Particles(), c.Particles())
}

func TestStepIgnoresNonPositiveDelta(t *testing.T) {
	e := NewFireEmitter(10, 1)
	e.Step(0)
	e.Step(-1)
	assert.Zero(t, e.Count())
}

func TestConeSampleStaysInCone(t *testing.T) {
	e := NewFireEmitter(0, 3)
	axes := []math.Vec3{{Y: 1}, {X: 1}, math.Vec3{X: 1, Y: 1, Z: 1}.Normalize()}
	for _, axis := range axes {
		for range 200 {
			d := coneSample(axis, 0.3, e.rng)
			assert.InDelta(t, 1, d.Length(), 1e-4)
			assert.GreaterOrEqual(t, d.Dot(axis), float32(stdmath.Cos(0.3))-1e-4)
		}
	}
}

func TestBillboardGeometry(t *testing.T) {
	e := NewFireEmitter(16, 4)
	for range 20 {
		e.Step(0.05)
	}
	require.Positive(t, e.Count())

	e.build(math.Vec3{X: 1}, math.Vec3{Z: -1})
	assert.Len(t, e.vertices, e.Count()*4)
	assert.Len(t, e.indices, len(e.vertices)*6/4)

	p := e.Particles()[0]
	v := e.vertices[2]
	assert.InDelta(t, p.Position.X+p.Size, v.Position.X, 1e-5)
	assert.InDelta(t, p.Position.Y+p.Size, v.Position.Y, 1e-5)
	assert.Equal(t, math.Vec3{Z: 1}, v.Normal)
}

func TestAttachedEmitterUploadsEachFrame(t *testing.T) {
	v := viewport.New(32, 32, "cpu")
	require.NotNil(t, v)
	t.Cleanup(v.Destroy)
	v.Camera = scene.NewOrbitCamera(math.Vec3{Y: 1}, 6, 0, 0, stdmath.Pi/4, 1)

	e := NewSmokeEmitter(40, 5)
	e.Rate = 1000
	require.True(t, e.Attach(v, 0))
	assert.False(t, e.Attach(v, 0), "already attached")

	e.Step(0.5)
	require.Positive(t, e.Count())
	v.Render()
	v.Render()
	m := v.Mesh(e.Mesh())
	require.NotNil(t, m)
	assert.True(t, m.Transparent())
	assert.Equal(t, e.Count()*4, m.VertexCount())
	assert.Len(t, m.Indices(), m.VertexCount()*6/4)

	e.Detach()
	assert.Nil(t, v.Mesh(e.Mesh()))
	assert.NotPanics(t, v.Render)
}
