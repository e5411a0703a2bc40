package viewport

import (
	"image"

	"golang.org/x/image/draw"

	"viewport-engine/rhi"
)

// RGBA8 returns img as tightly packed, non-premultiplied-free RGBA rows,
// top row first, converting through draw.Src when img is not already an
// *image.NRGBA or *image.RGBA with a zero origin.
func RGBA8(img image.Image) (pix []byte, width, height int) {
	b := img.Bounds()
	width, height = b.Dx(), b.Dy()
	switch src := img.(type) {
	case *image.NRGBA:
		if b.Min == (image.Point{}) && src.Stride == width*4 {
			return src.Pix, width, height
		}
	case *image.RGBA:
		if b.Min == (image.Point{}) && src.Stride == width*4 && opaque(src) {
			return src.Pix, width, height
		}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst.Pix, width, height
}

func opaque(img *image.RGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xff {
			return false
		}
	}
	return true
}

// CreateTexture uploads img as an sRGB texture owned by the viewport. It
// returns 0 and logs an error on failure.
func (v *Viewport) CreateTexture(img image.Image, filter rhi.TextureFilter) rhi.Texture {
	if !v.alive() || img == nil {
		return 0
	}
	pix, w, h := RGBA8(img)
	if max := v.caps.MaxTextureSize; max > 0 && (w > max || h > max) {
		v.log.Error("failed to create texture", "width", w, "height", h, "max", max)
		return 0
	}
	t, err := v.device.CreateTexture(rhi.TextureDesc{Width: w, Height: h, Filter: filter}, pix)
	if err != nil {
		v.log.Error("failed to create texture", "width", w, "height", h, "err", err)
		return 0
	}
	v.textures[t] = struct{}{}
	return t
}

// DestroyTexture releases a texture created by this viewport. Meshes
// still referencing it draw untextured.
func (v *Viewport) DestroyTexture(t rhi.Texture) {
	if !v.alive() {
		return
	}
	if _, ok := v.textures[t]; !ok {
		return
	}
	delete(v.textures, t)
	v.device.DestroyTexture(t)
	for _, m := range v.Scene.All() {
		if m.Material.Texture == t {
			m.Material.Texture = 0
		}
	}
}
