package software

import (
	"viewport-engine/core"
	"viewport-engine/rhi"
)

// texture keeps texels decoded to linear colour, which is what an sRGB
// texture sampler returns on the GPU.
type texture struct {
	width, height int
	filter        rhi.TextureFilter
	texels        []core.Color
}

func newTexture(desc rhi.TextureDesc, pixels []byte) *texture {
	t := &texture{
		width:  desc.Width,
		height: desc.Height,
		filter: desc.Filter,
		texels: make([]core.Color, desc.Width*desc.Height),
	}
	for i := range t.texels {
		p := pixels[i*4 : i*4+4]
		t.texels[i] = core.ColorFromSRGB8(p[0], p[1], p[2], p[3])
	}
	return t
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func (t *texture) texel(x, y int) core.Color {
	return t.texels[wrap(y, t.height)*t.width+wrap(x, t.width)]
}

// sample uses repeat wrapping with v = 0 at the first row.
func (t *texture) sample(u, v float32) core.Color {
	fx := u*float32(t.width) - 0.5
	fy := v*float32(t.height) - 0.5

	if t.filter == rhi.FilterNearest {
		return t.texel(int(floor(fx+0.5)), int(floor(fy+0.5)))
	}

	x0, y0 := floor(fx), floor(fy)
	tx, ty := fx-x0, fy-y0
	ix, iy := int(x0), int(y0)

	c00 := t.texel(ix, iy)
	c10 := t.texel(ix+1, iy)
	c01 := t.texel(ix, iy+1)
	c11 := t.texel(ix+1, iy+1)

	lerp := func(a, b core.Color, s float32) core.Color {
		return core.Color{
			R: a.R + (b.R-a.R)*s,
			G: a.G + (b.G-a.G)*s,
			B: a.B + (b.B-a.B)*s,
			A: a.A + (b.A-a.A)*s,
		}
	}
	return lerp(lerp(c00, c10, tx), lerp(c01, c11, tx), ty)
}
