package editor

import (
	stdmath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
	"viewport-engine/scene"
	"viewport-engine/spatial"
	"viewport-engine/viewport"
)

const testW, testH = 64, 48

func newTestController(t *testing.T) (*viewport.Viewport, *Controller) {
	t.Helper()
	v := viewport.New(testW, testH, "cpu")
	require.NotNil(t, v)
	t.Cleanup(v.Destroy)
	v.Camera = scene.NewOrbitCamera(math.Vec3{}, 8, 0, 0, stdmath.Pi/4, float32(testW)/testH)
	c := NewController(v)
	require.NotNil(t, c)
	return v, c
}

func addCube(t *testing.T, v *viewport.Viewport, pos math.Vec3, id uint32) scene.MeshHandle {
	t.Helper()
	h := v.AddGeometry(scene.Cube(1), id)
	require.False(t, h.IsNil())
	v.SetPosition(h, pos)
	return h
}

func screenOf(t *testing.T, v *viewport.Viewport, p math.Vec3) (float32, float32) {
	t.Helper()
	x, y, ok := spatial.WorldToScreen(p, testW, testH, v.Camera.View(), v.Camera.Projection())
	require.True(t, ok)
	return x, y
}

func click(c *Controller, x, y float32, shift bool) {
	c.Handle(InputEvent{Kind: PointerDown, X: x, Y: y, Shift: shift})
	c.Handle(InputEvent{Kind: PointerUp, X: x, Y: y, Shift: shift})
}

func kinds(events []OutputEvent) []OutputKind {
	out := make([]OutputKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestNewControllerNilViewport(t *testing.T) {
	assert.Nil(t, NewController(nil))
}

func TestClickSelectsAndBackgroundDeselects(t *testing.T) {
	v, c := newTestController(t)
	addCube(t, v, math.Vec3{}, 5)
	v.Render()

	click(c, testW/2, testH/2, false)
	events := c.PollEvents()
	require.Len(t, events, 1)
	assert.Equal(t, Selected, events[0].Kind)
	assert.Equal(t, uint32(5), events[0].ObjectID)
	assert.Empty(t, c.PollEvents(), "queue drained")

	v.Render()
	assert.True(t, c.Gizmo.Attached())
	assert.True(t, v.IsSelected(5))

	click(c, testW/2, testH/2, false)
	assert.Empty(t, c.PollEvents(), "reselecting the active object is silent")

	click(c, 2, 2, false)
	assert.Equal(t, []OutputKind{Deselected}, kinds(c.PollEvents()))
	assert.Zero(t, c.Selection.Len())

	v.Render()
	assert.False(t, c.Gizmo.Attached())
	assert.False(t, v.IsSelected(5))
}

func TestClickBeforeFirstFrameMisses(t *testing.T) {
	v, c := newTestController(t)
	addCube(t, v, math.Vec3{}, 9)

	click(c, testW/2, testH/2, false)
	assert.Empty(t, c.PollEvents())
	assert.Zero(t, c.Selection.Len())

	v.Render()
	click(c, testW/2, testH/2, false)
	events := c.PollEvents()
	require.Len(t, events, 1)
	assert.Equal(t, Selected, events[0].Kind)
	assert.Equal(t, uint32(9), events[0].ObjectID)
}

func TestShiftClickToggles(t *testing.T) {
	v, c := newTestController(t)
	addCube(t, v, math.Vec3{X: -2}, 1)
	addCube(t, v, math.Vec3{X: 2}, 2)
	v.Render()

	ax, ay := screenOf(t, v, math.Vec3{X: -2})
	bx, by := screenOf(t, v, math.Vec3{X: 2})

	click(c, ax, ay, false)
	click(c, bx, by, true)
	assert.Equal(t, []uint32{1, 2}, c.Selection.IDs())
	assert.Equal(t, uint32(2), c.Selection.Active())

	click(c, ax, ay, true)
	assert.Equal(t, []uint32{2}, c.Selection.IDs())
	assert.Equal(t, []OutputKind{Selected, Selected, Deselected}, kinds(c.PollEvents()))

	// shift-click on empty space keeps the selection
	click(c, 1, 1, true)
	assert.Equal(t, 1, c.Selection.Len())
	assert.Empty(t, c.PollEvents())

	click(c, ax, ay, false)
	assert.Equal(t, []OutputKind{Deselected, Selected}, kinds(c.PollEvents()))
	assert.Equal(t, []uint32{1}, c.Selection.IDs())
}

func TestDragThresholdSeparatesClickFromOrbit(t *testing.T) {
	v, c := newTestController(t)
	addCube(t, v, math.Vec3{}, 3)
	v.Render()
	yaw := v.Camera.Yaw()

	c.Handle(InputEvent{Kind: PointerDown, X: testW / 2, Y: testH / 2})
	c.Handle(InputEvent{Kind: PointerMove, X: testW/2 + 2, Y: testH / 2})
	assert.Equal(t, yaw, v.Camera.Yaw(), "below threshold")
	c.Handle(InputEvent{Kind: PointerUp, X: testW/2 + 2, Y: testH / 2})
	assert.Equal(t, []OutputKind{Selected}, kinds(c.PollEvents()))

	c.Handle(InputEvent{Kind: PointerDown, X: 4, Y: 4})
	c.Handle(InputEvent{Kind: PointerMove, X: 24, Y: 4})
	assert.NotEqual(t, yaw, v.Camera.Yaw(), "orbiting")
	c.Handle(InputEvent{Kind: PointerUp, X: 24, Y: 4})
	assert.Empty(t, c.PollEvents(), "an orbit is not a click")
	assert.Equal(t, 1, c.Selection.Len())
}

func TestGizmoTranslateDragRecordsUndo(t *testing.T) {
	v, c := newTestController(t)
	h := addCube(t, v, math.Vec3{}, 4)
	click(c, testW/2, testH/2, false)
	c.PollEvents()
	v.Render()
	require.True(t, c.Gizmo.Attached())
	require.Equal(t, GizmoTranslate, c.Gizmo.Mode())

	x, y := screenOf(t, v, math.Vec3{X: 0.9})
	require.Equal(t, AxisX, c.Gizmo.HitTest(x, y))

	c.Handle(InputEvent{Kind: PointerDown, X: x, Y: y})
	c.Handle(InputEvent{Kind: PointerMove, X: x + 12, Y: y})
	assert.True(t, c.Dragging())
	c.Handle(InputEvent{Kind: PointerUp, X: x + 12, Y: y})
	assert.False(t, c.Dragging())

	moved := v.Position(h)
	assert.Greater(t, moved.X, float32(1))
	assert.InDelta(t, 0, moved.Y, 1e-3)
	assert.InDelta(t, 0, moved.Z, 1e-3)

	events := c.PollEvents()
	require.Len(t, events, 1)
	assert.Equal(t, TransformChanged, events[0].Kind)
	assert.Equal(t, moved, events[0].Transform.Position)
	assert.Equal(t, 1, c.History.Len())
	assert.Equal(t, []uint32{4}, c.Selection.IDs(), "a drag does not change the selection")

	c.Handle(InputEvent{Kind: Undo})
	assert.Equal(t, math.Vec3{}, v.Position(h))
	c.Handle(InputEvent{Kind: Redo})
	assert.Equal(t, moved, v.Position(h))
	assert.Equal(t, []OutputKind{TransformChanged, TransformChanged}, kinds(c.PollEvents()))

	c.Handle(InputEvent{Kind: Redo})
	assert.Empty(t, c.PollEvents(), "nothing to redo")
}

func TestSetGizmoModeEmitsOnChange(t *testing.T) {
	_, c := newTestController(t)
	c.Handle(InputEvent{Kind: SetGizmoMode, Value: float32(GizmoRotate)})
	c.Handle(InputEvent{Kind: SetGizmoMode, Value: float32(GizmoRotate)})
	c.Handle(InputEvent{Kind: SetGizmoMode, Value: 7})

	events := c.PollEvents()
	require.Len(t, events, 1)
	assert.Equal(t, ModeChanged, events[0].Kind)
	assert.Equal(t, GizmoRotate, events[0].Mode)
	assert.Equal(t, GizmoRotate, c.Gizmo.Mode())
}

func TestCameraEvents(t *testing.T) {
	v, c := newTestController(t)
	d := v.Camera.Distance()

	c.Handle(InputEvent{Kind: Scroll, DY: 1})
	assert.InDelta(t, d*0.9, v.Camera.Distance(), 1e-4)

	c.Handle(InputEvent{Kind: CameraMove, DX: 1})
	assert.InDelta(t, 1, v.Camera.GoalTarget().X, 1e-4)

	c.Handle(InputEvent{Kind: SecondaryDown, X: 10, Y: 10})
	c.Handle(InputEvent{Kind: PointerMove, X: 10, Y: 20})
	c.Handle(InputEvent{Kind: SecondaryUp, X: 10, Y: 20})
	assert.Greater(t, v.Camera.GoalTarget().Y, float32(0), "dragging down raises the target")

	c.Handle(InputEvent{Kind: ResetView})
	assert.Equal(t, math.Vec3{}, v.Camera.GoalTarget())
	assert.InDelta(t, d, v.Camera.Distance(), 1e-4)
}

func TestSetStateAndToggleWireframe(t *testing.T) {
	v, c := newTestController(t)

	c.Handle(InputEvent{Kind: ToggleWireframe})
	assert.Equal(t, viewport.RenderWireframe, v.Settings.Mode)
	c.Handle(InputEvent{Kind: ToggleWireframe})
	assert.Equal(t, viewport.RenderSolid, v.Settings.Mode)

	tests := []struct {
		name  string
		key   StateKey
		value float32
		check func(t *testing.T, s viewport.Settings)
	}{
		{"shading", StateShading, float32(rhi.ShadeNormals), func(t *testing.T, s viewport.Settings) {
			assert.Equal(t, rhi.ShadeNormals, s.Shading)
		}},
		{"render mode", StateRenderMode, float32(viewport.RenderSolidWireframe), func(t *testing.T, s viewport.Settings) {
			assert.Equal(t, viewport.RenderSolidWireframe, s.Mode)
		}},
		{"out of range mode ignored", StateRenderMode, 9, func(t *testing.T, s viewport.Settings) {
			assert.Equal(t, viewport.RenderSolidWireframe, s.Mode)
		}},
		{"fog", StateFog, 1, func(t *testing.T, s viewport.Settings) { assert.True(t, s.Post.Fog.Enabled) }},
		{"tonemap", StateTonemap, 1, func(t *testing.T, s viewport.Settings) { assert.True(t, s.Post.Tonemap.Enabled) }},
		{"gamma", StateGamma, 2.2, func(t *testing.T, s viewport.Settings) {
			assert.True(t, s.Post.Gamma.Enabled)
			assert.InDelta(t, 2.2, s.Post.Gamma.Value, 1e-6)
		}},
		{"gamma off", StateGamma, 0, func(t *testing.T, s viewport.Settings) { assert.False(t, s.Post.Gamma.Enabled) }},
		{"vignette", StateVignette, 1, func(t *testing.T, s viewport.Settings) { assert.True(t, s.Post.Vignette.Enabled) }},
		{"grid", StateGrid, 1, func(t *testing.T, s viewport.Settings) { assert.True(t, s.Overlays.Grid) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.Handle(InputEvent{Kind: SetState, Key: tt.key, Value: tt.value})
			tt.check(t, v.Settings)
		})
	}
}

func TestUpdateLightEmitsLightChanged(t *testing.T) {
	v, c := newTestController(t)
	h := v.AddLight(scene.PointLight(math.Vec3{Y: 2}, core.ColorWhite, 1, 10))
	require.False(t, h.IsNil())

	assert.True(t, c.UpdateLight(h, scene.PointLight(math.Vec3{Y: 3}, core.ColorWhite, 2, 10)))
	events := c.PollEvents()
	require.Len(t, events, 1)
	assert.Equal(t, LightChanged, events[0].Kind)
	assert.Equal(t, h, events[0].Light)

	require.True(t, v.RemoveLight(h))
	assert.False(t, c.UpdateLight(h, scene.Light{}))
	assert.Empty(t, c.PollEvents())
}

func TestSetTransformIsUndoable(t *testing.T) {
	v, c := newTestController(t)
	h := addCube(t, v, math.Vec3{}, 8)

	want := core.Transform{Position: math.Vec3{Y: 2}, Scale: math.Vec3{X: 1, Y: 1, Z: 1}}
	require.True(t, c.SetTransform(8, want))
	assert.Equal(t, want.Position, v.Position(h))
	assert.False(t, c.SetTransform(99, want))

	c.Handle(InputEvent{Kind: Undo})
	assert.Equal(t, math.Vec3{}, v.Position(h))
}

func TestDisabledControllerLeavesGizmo(t *testing.T) {
	v, c := newTestController(t)
	addCube(t, v, math.Vec3{}, 2)
	v.Render()
	click(c, testW/2, testH/2, false)
	require.Equal(t, 1, c.Selection.Len())
	c.SetEnabled(false)
	v.Render()
	assert.False(t, c.Gizmo.Attached())
}

func TestViewportDestroyReleasesController(t *testing.T) {
	v, c := newTestController(t)
	addCube(t, v, math.Vec3{}, 2)
	v.Render()
	click(c, testW/2, testH/2, false)
	v.Render()
	assert.NotPanics(t, v.Destroy)
	assert.Empty(t, c.PollEvents())
}
