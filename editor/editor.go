// Package editor turns host input events into camera moves, selection and
// gizmo edits on a viewport, and reports what changed as output events.
//
// The interaction state machine lives here rather than in each host: a
// press becomes a click (pick and select) or, past DragThreshold pixels,
// a gizmo drag or camera orbit. Secondary drags pan and scroll zooms.
package editor

import (
	"log/slog"
	stdmath "math"

	"viewport-engine/rhi"
	"viewport-engine/scene"
	"viewport-engine/spatial"
	"viewport-engine/viewport"
)

// DragThreshold is how far, in pixels, the pointer must travel while
// pressed before a press stops being a click.
const DragThreshold = 4

type pointerState uint8

const (
	stateIdle pointerState = iota
	statePressed
	stateDragGizmo
	stateOrbit
	statePan
)

// Controller is the engine-owned interaction state machine for one
// viewport. It registers itself as a simulation subsystem so the gizmo
// follows the active selection every frame.
type Controller struct {
	View      *viewport.Viewport
	Gizmo     *Gizmo
	Selection *Selection
	History   *History

	// OrbitSpeed is radians per pixel; ZoomStep the distance fraction per
	// scroll unit.
	OrbitSpeed float32
	ZoomStep   float32

	state        pointerState
	downX, downY float32
	lastX, lastY float32
	shift        bool
	pressAxis    Axis
	drag         gizmoDrag
	current      Transform

	events  []OutputEvent
	enabled bool
	log     *slog.Logger
}

// NewController attaches a controller to v. It returns nil for a nil
// viewport.
func NewController(v *viewport.Viewport) *Controller {
	if v == nil {
		return nil
	}
	c := &Controller{
		View:       v,
		Gizmo:      NewGizmo(v),
		Selection:  NewSelection(),
		History:    NewHistory(DefaultHistoryDepth),
		OrbitSpeed: 0.01,
		ZoomStep:   0.1,
		pressAxis:  AxisNone,
		enabled:    true,
		log:        v.Logger().With("component", "editor"),
	}
	v.Register(viewport.PhaseSimulate, c)
	return c
}

func (c *Controller) Enabled() bool { return c.enabled }

func (c *Controller) SetEnabled(on bool) { c.enabled = on }

// Update keeps the viewport selection overlay and the gizmo in step with
// the selection.
func (c *Controller) Update(v *viewport.Viewport, _ float64) {
	v.SetSelected(c.Selection.IDs()...)
	if _, m := v.FindByObjectID(c.Selection.Active()); m != nil {
		v.Scene.ResolveTransforms()
		c.Gizmo.Attach(m.World().Translation())
	} else {
		c.Gizmo.Detach()
	}
	c.Gizmo.Sync()
}

func (c *Controller) Destroy() {
	c.Gizmo.Destroy()
	c.events = nil
}

// PollEvents drains the output events queued since the last call.
func (c *Controller) PollEvents() []OutputEvent {
	out := c.events
	c.events = nil
	return out
}

func (c *Controller) emit(e OutputEvent) {
	c.events = append(c.events, e)
}

// Handle feeds one input event through the state machine.
func (c *Controller) Handle(ev InputEvent) {
	switch ev.Kind {
	case PointerDown:
		c.state = statePressed
		c.downX, c.downY = ev.X, ev.Y
		c.lastX, c.lastY = ev.X, ev.Y
		c.shift = ev.Shift
		c.pressAxis = c.Gizmo.HitTest(ev.X, ev.Y)

	case PointerMove:
		dx, dy := ev.X-c.lastX, ev.Y-c.lastY
		c.lastX, c.lastY = ev.X, ev.Y
		switch c.state {
		case statePressed:
			if float32(stdmath.Hypot(float64(ev.X-c.downX), float64(ev.Y-c.downY))) < DragThreshold {
				return
			}
			if c.pressAxis != AxisNone && c.beginDrag() {
				c.state = stateDragGizmo
				c.dragTo(ev.X, ev.Y)
			} else {
				c.state = stateOrbit
				c.orbit(ev.X-c.downX, ev.Y-c.downY)
			}
		case stateDragGizmo:
			c.dragTo(ev.X, ev.Y)
		case stateOrbit:
			c.orbit(dx, dy)
		case statePan:
			c.pan(dx, dy)
		}

	case PointerUp:
		switch c.state {
		case statePressed:
			c.click(ev.X, ev.Y, c.shift || ev.Shift)
		case stateDragGizmo:
			c.endDrag()
		}
		c.state = stateIdle
		c.pressAxis = AxisNone

	case SecondaryDown:
		c.state = statePan
		c.lastX, c.lastY = ev.X, ev.Y

	case SecondaryUp:
		if c.state == statePan {
			c.state = stateIdle
		}

	case Scroll:
		c.View.Camera.ZoomFactor(max(1-ev.DY*c.ZoomStep, 0.1))

	case SetGizmoMode:
		m := GizmoMode(ev.Value)
		if m < gizmoModes && m != c.Gizmo.Mode() {
			c.Gizmo.SetMode(m)
			c.emit(OutputEvent{Kind: ModeChanged, Mode: m})
		}

	case Deselect:
		c.deselectAll()

	case ToggleWireframe:
		s := &c.View.Settings
		if s.Mode == viewport.RenderSolid {
			s.Mode = viewport.RenderWireframe
		} else {
			s.Mode = viewport.RenderSolid
		}

	case ResetView:
		c.View.Camera.Reset()

	case Undo:
		c.emitCommand(c.History.Undo())

	case Redo:
		c.emitCommand(c.History.Redo())

	case CameraMove:
		c.View.Camera.Move(ev.DZ, ev.DX, ev.DY)

	case SetState:
		c.setState(ev.Key, ev.Value)
	}
}

// Dragging reports whether a gizmo drag is in progress.
func (c *Controller) Dragging() bool { return c.state == stateDragGizmo }

func (c *Controller) orbit(dx, dy float32) {
	c.View.Camera.Orbit(-dx*c.OrbitSpeed, -dy*c.OrbitSpeed)
}

func (c *Controller) pan(dx, dy float32) {
	_, h := c.View.Size()
	if h <= 0 {
		return
	}
	c.View.Camera.Pan(-dx/float32(h), dy/float32(h))
}

func (c *Controller) click(x, y float32, shift bool) {
	id, ok := pickObject(c.View, x, y)
	switch {
	case !ok:
		if !shift {
			c.deselectAll()
		}
	case shift:
		if c.Selection.Toggle(id) {
			c.emit(OutputEvent{Kind: Selected, ObjectID: id})
		} else {
			c.emit(OutputEvent{Kind: Deselected, ObjectID: id})
		}
	default:
		if c.Selection.Len() == 1 && c.Selection.Active() == id {
			return
		}
		for _, old := range c.Selection.IDs() {
			if old != id {
				c.emit(OutputEvent{Kind: Deselected, ObjectID: old})
			}
		}
		c.Selection.SelectSingle(id)
		c.emit(OutputEvent{Kind: Selected, ObjectID: id})
	}
	c.log.Debug("selection changed", "active", c.Selection.Active(), "count", c.Selection.Len())
}

func (c *Controller) deselectAll() {
	for _, id := range c.Selection.IDs() {
		c.emit(OutputEvent{Kind: Deselected, ObjectID: id})
	}
	c.Selection.Clear()
}

func (c *Controller) ray(x, y float32) (spatial.Ray, bool) {
	w, h := c.View.Size()
	cam := c.View.Camera
	return spatial.ScreenToRay(x, y, w, h, cam.View(), cam.Projection())
}

func (c *Controller) beginDrag() bool {
	id := c.Selection.Active()
	h, m := c.View.FindByObjectID(id)
	if m == nil {
		return false
	}
	r, ok := c.ray(c.downX, c.downY)
	if !ok {
		return false
	}
	start := meshTransform(m)
	d, ok := c.Gizmo.beginDrag(c.pressAxis, r, h, id, start)
	if !ok {
		return false
	}
	c.drag = d
	c.current = start
	return true
}

func (c *Controller) dragTo(x, y float32) {
	r, ok := c.ray(x, y)
	if !ok {
		return
	}
	t, ok := c.drag.update(r)
	if !ok {
		return
	}
	m := c.View.Mesh(c.drag.mesh)
	if m == nil {
		return
	}
	m.SetPosition(t.Position)
	m.SetRotation(t.Rotation)
	m.SetScale(t.Scale)
	c.current = meshTransform(m)
}

func (c *Controller) endDrag() {
	if c.current == c.drag.start {
		return
	}
	c.History.Record(&TransformCommand{
		View:     c.View,
		Mesh:     c.drag.mesh,
		ObjectID: c.drag.objectID,
		Old:      c.drag.start,
		New:      c.current,
		Action:   c.drag.mode.String(),
	})
	c.emit(OutputEvent{Kind: TransformChanged, ObjectID: c.drag.objectID, Transform: c.current})
}

func (c *Controller) emitCommand(cmd Command) {
	tc, ok := cmd.(*TransformCommand)
	if !ok {
		return
	}
	if m := c.View.Mesh(tc.Mesh); m != nil {
		c.emit(OutputEvent{Kind: TransformChanged, ObjectID: tc.ObjectID, Transform: meshTransform(m)})
	}
}

// SetTransform applies t to the object through the undo history.
func (c *Controller) SetTransform(id uint32, t Transform) bool {
	h, m := c.View.FindByObjectID(id)
	if m == nil {
		return false
	}
	c.History.Do(&TransformCommand{View: c.View, Mesh: h, ObjectID: id, Old: meshTransform(m), New: t, Action: "set"})
	c.emit(OutputEvent{Kind: TransformChanged, ObjectID: id, Transform: meshTransform(m)})
	return true
}

// UpdateLight changes a light and reports it.
func (c *Controller) UpdateLight(h scene.LightHandle, l scene.Light) bool {
	if !c.View.UpdateLight(h, l) {
		return false
	}
	c.emit(OutputEvent{Kind: LightChanged, Light: h})
	return true
}

func (c *Controller) setState(key StateKey, value float32) {
	s := &c.View.Settings
	on := value != 0
	switch key {
	case StateShading:
		if value >= 0 && value <= float32(rhi.ShadeNormals) {
			s.Shading = rhi.ShadingMode(value)
		}
	case StateRenderMode:
		if value >= 0 && value <= float32(viewport.RenderSolidWireframe) {
			s.Mode = viewport.RenderMode(value)
		}
	case StateFog:
		s.Post.Fog.Enabled = on
	case StateTonemap:
		s.Post.Tonemap.Enabled = on
	case StateGamma:
		// a positive value is also the display gamma
		s.Post.Gamma.Enabled = value > 0
		if value > 0 {
			s.Post.Gamma.Value = value
		}
	case StateVignette:
		s.Post.Vignette.Enabled = on
	case StateGrid:
		s.Overlays.Grid = on
	default:
		c.log.Warn("unknown state key ignored", "key", key)
	}
}
