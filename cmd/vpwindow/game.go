package main

import (
	"fmt"
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"viewport-engine/editor"
	"viewport-engine/effects"
	"viewport-engine/internal/harness"
	"viewport-engine/viewport"
)

// keyBinding names an ebiten key in the vocabulary harness.KeyEvent
// understands. Held keys repeat every tick; the rest fire once per press.
type keyBinding struct {
	key  ebiten.Key
	name string
	held bool
}

var keyBindings = []keyBinding{
	{ebiten.KeyW, "w", true},
	{ebiten.KeyS, "s", true},
	{ebiten.KeyA, "a", true},
	{ebiten.KeyD, "d", true},
	{ebiten.KeyE, "e", true},
	{ebiten.KeyC, "c", true},
	{ebiten.KeyArrowUp, "up", true},
	{ebiten.KeyArrowDown, "down", true},
	{ebiten.KeyArrowLeft, "left", true},
	{ebiten.KeyArrowRight, "right", true},
	{ebiten.KeyPageUp, "pgup", true},
	{ebiten.KeyPageDown, "pgdown", true},
	{ebiten.KeyDigit1, "1", false},
	{ebiten.KeyDigit2, "2", false},
	{ebiten.KeyDigit3, "3", false},
	{ebiten.KeyX, "x", false},
	{ebiten.KeyM, "m", false},
	{ebiten.KeyN, "n", false},
	{ebiten.KeyF, "f", false},
	{ebiten.KeyG, "g", false},
	{ebiten.KeyT, "t", false},
	{ebiten.KeyV, "v", false},
	{ebiten.KeyZ, "z", false},
	{ebiten.KeyY, "y", false},
	{ebiten.KeyH, "h", false},
	{ebiten.KeyHome, "home", false},
	{ebiten.KeyEscape, "escape", false},
}

// mouseState is the pointer as sampled once per tick.
type mouseState struct {
	x, y        int
	left, right bool
	shift       bool
	wheel       float64
}

// mouseEvents diffs two samples into editor input: presses and releases
// of either button, a move when the cursor changed cell, and the wheel.
func mouseEvents(prev, cur mouseState) []editor.InputEvent {
	x, y := float32(cur.x), float32(cur.y)
	var out []editor.InputEvent
	add := func(k editor.EventKind) {
		out = append(out, editor.InputEvent{Kind: k, X: x, Y: y, Shift: cur.shift})
	}
	if cur.x != prev.x || cur.y != prev.y {
		add(editor.PointerMove)
	}
	switch {
	case cur.left && !prev.left:
		add(editor.PointerDown)
	case !cur.left && prev.left:
		add(editor.PointerUp)
	}
	switch {
	case cur.right && !prev.right:
		add(editor.SecondaryDown)
	case !cur.right && prev.right:
		add(editor.SecondaryUp)
	}
	if cur.wheel != 0 {
		out = append(out, editor.InputEvent{Kind: editor.Scroll, DY: float32(cur.wheel)})
	}
	return out
}

type game struct {
	v         *viewport.Viewport
	ctrl      *editor.Controller
	opts      *options
	mouse     mouseState
	triangles int
	status    string
	sky       *effects.Sky

	frame  *image.RGBA
	screen *ebiten.Image
}

func newGame(v *viewport.Viewport, ctrl *editor.Controller, o *options) *game {
	return &game{v: v, ctrl: ctrl, opts: o}
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		return ebiten.Termination
	}

	step := g.opts.speed / tps
	for _, b := range keyBindings {
		pressed := inpututil.IsKeyJustPressed(b.key)
		if b.held {
			pressed = ebiten.IsKeyPressed(b.key)
		}
		if !pressed {
			continue
		}
		if ev, ok := harness.KeyEvent(b.name, &g.v.Settings, step); ok {
			g.ctrl.Handle(ev)
		}
	}

	x, y := ebiten.CursorPosition()
	_, wheel := ebiten.Wheel()
	cur := mouseState{
		x:     x,
		y:     y,
		left:  ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft),
		right: ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight),
		shift: ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight),
		wheel: wheel,
	}
	for _, ev := range mouseEvents(g.mouse, cur) {
		g.ctrl.Handle(ev)
	}
	g.mouse = cur

	for _, out := range g.ctrl.PollEvents() {
		g.status = fmt.Sprintf("%s #%d", out.Kind, out.ObjectID)
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	g.v.Render()
	px, w, h := g.v.ReadColor()
	if g.frame == nil || g.frame.Bounds().Dx() != w || g.frame.Bounds().Dy() != h {
		g.frame = image.NewRGBA(image.Rect(0, 0, w, h))
		if g.screen != nil {
			g.screen.Deallocate()
		}
		g.screen = ebiten.NewImage(w, h)
	}
	copy(g.frame.Pix, px)

	if g.opts.hud {
		st := g.v.Stats()
		hud := &harness.HUD{}
		hud.Add("%s %dx%d  %.0f fps", g.v.Backend(), w, h, ebiten.ActualFPS())
		hud.Add("%d tris  %d draws  %d culled", g.triangles, st.DrawCalls, st.CulledMeshes)
		hud.Add("frame %.2f ms", float64(st.Total.Microseconds())/1000)
		if g.sky != nil {
			hud.Add("time %s", g.sky.Clock())
		}
		if g.status != "" {
			hud.Add("%s", g.status)
		}
		hud.Draw(g.frame)
	}

	g.screen.WritePixels(g.frame.Pix)
	screen.DrawImage(g.screen, nil)
}

// Layout follows the window: the viewport is resized to the outside size
// so one framebuffer pixel maps to one logical window pixel.
func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	w, h := g.v.Size()
	if outsideWidth > 0 && outsideHeight > 0 && (outsideWidth != w || outsideHeight != h) {
		g.v.Resize(outsideWidth, outsideHeight)
		w, h = outsideWidth, outsideHeight
	}
	return w, h
}
