package editor

import (
	stdmath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewport-engine/math"
	"viewport-engine/spatial"
	"viewport-engine/viewport"
)

func TestHandleIDRoundTrip(t *testing.T) {
	for m := GizmoTranslate; m < gizmoModes; m++ {
		for a := AxisX; a <= AxisZ; a++ {
			id := HandleID(m, a)
			assert.True(t, viewport.IsReservedID(id))
			gm, ga, ok := handleFromID(id)
			require.True(t, ok)
			assert.Equal(t, m, gm)
			assert.Equal(t, a, ga)
		}
	}
	_, _, ok := handleFromID(viewport.ReservedIDBase)
	assert.False(t, ok)
	_, _, ok = handleFromID(42)
	assert.False(t, ok)
	_, _, ok = handleFromID(HandleID(GizmoScale, AxisZ) + 1)
	assert.False(t, ok)
}

func TestClosestPoints(t *testing.T) {
	tests := []struct {
		name     string
		ray      spatial.Ray
		origin   math.Vec3
		dir      math.Vec3
		wantS    float32
		wantDist float32
		ok       bool
	}{
		{
			name:     "perpendicular crossing",
			ray:      spatial.NewRay(math.Vec3{X: 2, Z: 5}, math.Vec3{Z: -1}),
			origin:   math.Vec3{},
			dir:      math.Vec3{X: 1},
			wantS:    2,
			wantDist: 0,
			ok:       true,
		},
		{
			name:     "skew lines",
			ray:      spatial.NewRay(math.Vec3{X: -1, Y: 3, Z: 5}, math.Vec3{Z: -1}),
			origin:   math.Vec3{},
			dir:      math.Vec3{X: 1},
			wantS:    -1,
			wantDist: 3,
			ok:       true,
		},
		{
			name:   "parallel",
			ray:    spatial.NewRay(math.Vec3{Y: 1}, math.Vec3{X: 1}),
			origin: math.Vec3{},
			dir:    math.Vec3{X: 1},
			ok:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, s, dist, ok := closestPoints(tt.ray, tt.origin, tt.dir)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.InDelta(t, tt.wantS, s, 1e-5)
			assert.InDelta(t, tt.wantDist, dist, 1e-5)
		})
	}
}

func TestDragUpdate(t *testing.T) {
	start := Transform{Scale: math.Vec3{X: 1, Y: 1, Z: 1}}
	down := func(x float32) spatial.Ray {
		return spatial.NewRay(math.Vec3{X: x, Z: 5}, math.Vec3{Z: -1})
	}

	t.Run("translate follows the axis", func(t *testing.T) {
		d := gizmoDrag{mode: GizmoTranslate, axis: AxisX, start: start, size: 1, startS: 0.5}
		got, ok := d.update(down(2))
		require.True(t, ok)
		assert.InDelta(t, 1.5, got.Position.X, 1e-5)
		assert.Zero(t, got.Position.Y)
	})

	t.Run("scale is the distance ratio", func(t *testing.T) {
		d := gizmoDrag{mode: GizmoScale, axis: AxisX, start: start, size: 1, startS: 0.5}
		got, ok := d.update(down(1.5))
		require.True(t, ok)
		assert.InDelta(t, 3, got.Scale.X, 1e-5)
		assert.Equal(t, float32(1), got.Scale.Y)
	})

	t.Run("scale never collapses", func(t *testing.T) {
		d := gizmoDrag{mode: GizmoScale, axis: AxisX, start: start, size: 1, startS: 0.5}
		got, ok := d.update(down(-4))
		require.True(t, ok)
		assert.Greater(t, got.Scale.X, float32(0))
	})

	t.Run("rotate adds a signed angle", func(t *testing.T) {
		// ring in the XZ plane around Y, viewed from above
		d := gizmoDrag{mode: GizmoRotate, axis: AxisY, start: start, size: 1, startVec: math.Vec3{X: 1}}
		r := spatial.NewRay(math.Vec3{Z: -1, Y: 5}, math.Vec3{Y: -1})
		got, ok := d.update(r)
		require.True(t, ok)
		assert.InDelta(t, stdmath.Pi/2, got.Rotation.Y, 1e-4)
	})

	t.Run("ray parallel to the axis", func(t *testing.T) {
		d := gizmoDrag{mode: GizmoTranslate, axis: AxisZ, start: start, size: 1}
		_, ok := d.update(down(0))
		assert.False(t, ok)
	})
}

func TestPlaneVectorRejectsEdgeOnRays(t *testing.T) {
	_, ok := planeVector(spatial.NewRay(math.Vec3{Y: 1}, math.Vec3{X: 1}), math.Vec3{}, math.Vec3{Y: 1})
	assert.False(t, ok, "parallel to the plane")
	_, ok = planeVector(spatial.NewRay(math.Vec3{Y: 1}, math.Vec3{Y: 1}), math.Vec3{}, math.Vec3{Y: 1})
	assert.False(t, ok, "plane behind the ray")
}

func TestSegmentDistance(t *testing.T) {
	a, b := math.Vec2{}, math.Vec2{X: 10}
	assert.InDelta(t, 3, segmentDistance(math.Vec2{X: 5, Y: 3}, a, b), 1e-6)
	assert.InDelta(t, 5, segmentDistance(math.Vec2{X: -3, Y: 4}, a, b), 1e-6)
	assert.InDelta(t, 2, segmentDistance(math.Vec2{X: 2}, a, a), 1e-6)
}

func TestHistoryBoundsAndRedo(t *testing.T) {
	var log []string
	h := NewHistory(2)
	for _, name := range []string{"a", "b", "c"} {
		h.Do(&recordingCommand{name: name, log: &log})
	}
	assert.Equal(t, 2, h.Len(), "oldest dropped")
	assert.Equal(t, []string{"do a", "do b", "do c"}, log)

	require.NotNil(t, h.Undo())
	require.NotNil(t, h.Undo())
	assert.Nil(t, h.Undo())
	assert.Equal(t, []string{"undo c", "undo b"}, log[3:])
	assert.True(t, h.CanRedo())

	require.NotNil(t, h.Redo())
	h.Record(&recordingCommand{name: "d", log: &log})
	assert.False(t, h.CanRedo(), "recording clears redo")
	assert.Equal(t, "d", h.Undo().Description())

	h.Clear()
	assert.False(t, h.CanUndo())
	assert.Zero(t, NewHistory(0).maxDepth-DefaultHistoryDepth)
}

type recordingCommand struct {
	name string
	log  *[]string
}

func (c *recordingCommand) Execute()            { *c.log = append(*c.log, "do "+c.name) }
func (c *recordingCommand) Undo()               { *c.log = append(*c.log, "undo "+c.name) }
func (c *recordingCommand) Description() string { return c.name }

func TestSelection(t *testing.T) {
	s := NewSelection()
	assert.Zero(t, s.Active())

	assert.True(t, s.Toggle(3))
	assert.True(t, s.Toggle(4))
	assert.Equal(t, uint32(4), s.Active())
	assert.False(t, s.Toggle(3))
	assert.False(t, s.IsSelected(3))

	s.SelectSingle(7)
	assert.Equal(t, []uint32{7}, s.IDs())
	s.Clear()
	assert.Zero(t, s.Len())
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "PointerDown", PointerDown.String())
	assert.Equal(t, "Unknown", EventKind(200).String())
	assert.Equal(t, "translate", GizmoTranslate.String())
}
