package main

import (
	"fmt"
	"image/color"

	uv "github.com/charmbracelet/ultraviolet"

	"viewport-engine/editor"
)

type cellSetter interface {
	SetCell(x, y int, c *uv.Cell)
}

// pixel is the framebuffer position under the centre of a terminal cell.
func pixel(m uv.Mouse) (float32, float32) {
	return float32(m.X) + 0.5, float32(m.Y*2) + 1
}

// mouseEvent translates terminal mouse reports. Left button drives the
// pointer, right button pans and the wheel zooms.
func mouseEvent(ev uv.Event) (editor.InputEvent, bool) {
	var (
		m    uv.Mouse
		kind editor.EventKind
	)
	switch ev := ev.(type) {
	case uv.MouseClickEvent:
		m = uv.Mouse(ev)
		switch m.Button {
		case uv.MouseLeft:
			kind = editor.PointerDown
		case uv.MouseRight:
			kind = editor.SecondaryDown
		default:
			return editor.InputEvent{}, false
		}
	case uv.MouseReleaseEvent:
		m = uv.Mouse(ev)
		kind = editor.PointerUp
		if m.Button == uv.MouseRight {
			kind = editor.SecondaryUp
		}
	case uv.MouseMotionEvent:
		m = uv.Mouse(ev)
		kind = editor.PointerMove
	case uv.MouseWheelEvent:
		switch ev.Button {
		case uv.MouseWheelUp:
			return editor.InputEvent{Kind: editor.Scroll, DY: 1}, true
		case uv.MouseWheelDown:
			return editor.InputEvent{Kind: editor.Scroll, DY: -1}, true
		}
		return editor.InputEvent{}, false
	default:
		return editor.InputEvent{}, false
	}
	x, y := pixel(m)
	return editor.InputEvent{Kind: kind, X: x, Y: y, Shift: m.Mod.Contains(uv.ModShift)}, true
}

// drawFrame paints an RGBA framebuffer with rows top first, two rows per
// terminal row: the top pixel as foreground of an upper half block and
// the bottom pixel as its background.
func drawFrame(scr cellSetter, px []byte, w, h int) {
	at := func(x, y int) color.Color {
		if y >= h {
			return nil
		}
		i := (y*w + x) * 4
		return color.RGBA{R: px[i], G: px[i+1], B: px[i+2], A: 255}
	}
	for row := 0; row*2 < h; row++ {
		for col := 0; col < w; col++ {
			scr.SetCell(col, row, &uv.Cell{
				Content: "▀",
				Width:   1,
				Style:   uv.Style{Fg: at(col, row*2), Bg: at(col, row*2+1)},
			})
		}
	}
}

var (
	statusFg = color.RGBA{R: 220, G: 220, B: 220, A: 255}
	statusBg = color.RGBA{R: 20, G: 20, B: 28, A: 255}
)

// drawStatus writes line into terminal row y, padded or clipped to cols.
func drawStatus(scr cellSetter, line string, cols, y int) {
	runes := []rune(line)
	style := uv.Style{Fg: statusFg, Bg: statusBg}
	for x := range cols {
		r := ' '
		if x < len(runes) {
			r = runes[x]
		}
		scr.SetCell(x, y, &uv.Cell{Content: string(r), Width: 1, Style: style})
	}
}

func describe(out editor.OutputEvent) string {
	switch out.Kind {
	case editor.Selected, editor.Deselected:
		return fmt.Sprintf("%s #%d", out.Kind, out.ObjectID)
	case editor.ModeChanged:
		return fmt.Sprintf("gizmo %s", out.Mode)
	case editor.TransformChanged:
		t := out.Transform.Position
		return fmt.Sprintf("#%d at %.2f %.2f %.2f", out.ObjectID, t.X, t.Y, t.Z)
	}
	return out.Kind.String()
}
