package harness

import (
	"viewport-engine/editor"
	"viewport-engine/rhi"
	"viewport-engine/viewport"
)

// Controls is the help text every host prints.
const Controls = `left drag   orbit, or drag a gizmo handle
right drag  pan
wheel       zoom
click       select (shift adds)
w a s d     move camera   e c  up/down
1 2 3       translate / rotate / scale gizmo
x           wireframe     m  render mode   n  shading
f g t v     fog / grid / tonemap / vignette
z y         undo / redo
h           reset view    esc  deselect`

// KeyEvent maps a key name ("w", "left", "escape", ...) onto the editor
// input vocabulary. Toggles read the current settings so one key flips a
// feature either way. step is the camera move per press in world units.
func KeyEvent(key string, s *viewport.Settings, step float32) (editor.InputEvent, bool) {
	move := func(dx, dy, dz float32) (editor.InputEvent, bool) {
		return editor.InputEvent{Kind: editor.CameraMove, DX: dx * step, DY: dy * step, DZ: dz * step}, true
	}
	state := func(k editor.StateKey, v float32) (editor.InputEvent, bool) {
		return editor.InputEvent{Kind: editor.SetState, Key: k, Value: v}, true
	}
	toggle := func(k editor.StateKey, on bool) (editor.InputEvent, bool) {
		if on {
			return state(k, 0)
		}
		return state(k, 1)
	}

	switch key {
	case "w", "up":
		return move(0, 0, 1)
	case "s", "down":
		return move(0, 0, -1)
	case "a", "left":
		return move(-1, 0, 0)
	case "d", "right":
		return move(1, 0, 0)
	case "e", "pgup":
		return move(0, 1, 0)
	case "c", "pgdown":
		return move(0, -1, 0)
	case "1", "2", "3":
		return editor.InputEvent{Kind: editor.SetGizmoMode, Value: float32(key[0] - '1')}, true
	case "x":
		return editor.InputEvent{Kind: editor.ToggleWireframe}, true
	case "m":
		return state(editor.StateRenderMode, float32((s.Mode+1)%(viewport.RenderSolidWireframe+1)))
	case "n":
		return state(editor.StateShading, float32((s.Shading+1)%(rhi.ShadeNormals+1)))
	case "f":
		return toggle(editor.StateFog, s.Post.Fog.Enabled)
	case "g":
		return toggle(editor.StateGrid, s.Overlays.Grid)
	case "t":
		return toggle(editor.StateTonemap, s.Post.Tonemap.Enabled)
	case "v":
		return toggle(editor.StateVignette, s.Post.Vignette.Enabled)
	case "z":
		return editor.InputEvent{Kind: editor.Undo}, true
	case "y":
		return editor.InputEvent{Kind: editor.Redo}, true
	case "h", "home":
		return editor.InputEvent{Kind: editor.ResetView}, true
	case "escape", "esc":
		return editor.InputEvent{Kind: editor.Deselect}, true
	}
	return editor.InputEvent{}, false
}
