package editor

import (
	"viewport-engine/core"
	"viewport-engine/scene"
)

// EventKind enumerates the input vocabulary a host feeds the controller.
// Hosts translate their own window, terminal or test events into it.
type EventKind uint8

const (
	PointerDown EventKind = iota
	PointerUp
	PointerMove
	SecondaryDown
	SecondaryUp
	Scroll
	SetGizmoMode
	Deselect
	ToggleWireframe
	ResetView
	Undo
	Redo
	CameraMove
	SetState
)

var eventNames = [...]string{
	"PointerDown", "PointerUp", "PointerMove", "SecondaryDown", "SecondaryUp",
	"Scroll", "GizmoMode", "Deselect", "ToggleWireframe", "ResetView",
	"Undo", "Redo", "CameraMove", "SetState",
}

func (k EventKind) String() string {
	if int(k) >= len(eventNames) {
		return "Unknown"
	}
	return eventNames[k]
}

// StateKey selects what a SetState event changes. Value carries the new
// setting: an enum ordinal for modes, non-zero for on.
type StateKey uint8

const (
	StateShading StateKey = iota
	StateRenderMode
	StateFog
	StateTonemap
	StateGamma
	StateVignette
	StateGrid
)

// InputEvent is one host event. X and Y are pixels with y growing
// downward. For CameraMove, DX, DY and DZ move right, up and forward in
// world units. For Scroll, DY is the wheel delta.
type InputEvent struct {
	Kind   EventKind
	X, Y   float32
	DX, DY float32
	DZ     float32
	Button int
	Shift  bool
	Key    StateKey
	Value  float32
}

type OutputKind uint8

const (
	Selected OutputKind = iota
	Deselected
	TransformChanged
	ModeChanged
	LightChanged
)

func (k OutputKind) String() string {
	switch k {
	case Selected:
		return "Selected"
	case Deselected:
		return "Deselected"
	case TransformChanged:
		return "TransformChanged"
	case ModeChanged:
		return "ModeChanged"
	case LightChanged:
		return "LightChanged"
	}
	return "Unknown"
}

// OutputEvent reports a change the controller made. Hosts drain them
// once per frame with PollEvents.
type OutputEvent struct {
	Kind      OutputKind
	ObjectID  uint32
	Mode      GizmoMode
	Light     scene.LightHandle
	Transform Transform
}

// Transform is the TRS of one mesh, rotation in Euler radians.
type Transform = core.Transform
