package harness

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// HUD collects text lines stamped in the top-left corner of a frame.
type HUD struct {
	Lines []string
}

func (h *HUD) Add(format string, args ...any) {
	h.Lines = append(h.Lines, fmt.Sprintf(format, args...))
}

const (
	hudMargin  = 4
	hudLineGap = 2
)

// Draw paints a translucent panel behind the lines and the text over it.
func (h *HUD) Draw(dst *image.RGBA) {
	if len(h.Lines) == 0 {
		return
	}
	face := basicfont.Face7x13
	lineH := face.Metrics().Height.Ceil() + hudLineGap

	width := 0
	for _, l := range h.Lines {
		width = max(width, font.MeasureString(face, l).Ceil())
	}
	panel := image.Rect(0, 0, width+2*hudMargin, len(h.Lines)*lineH+2*hudMargin).Intersect(dst.Bounds())
	draw.Draw(dst, panel, image.NewUniform(color.NRGBA{A: 160}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{R: 230, G: 230, B: 230, A: 255}),
		Face: face,
	}
	ascent := face.Metrics().Ascent.Ceil()
	for i, l := range h.Lines {
		d.Dot = fixed.P(hudMargin, hudMargin+ascent+i*lineH)
		d.DrawString(l)
	}
}
