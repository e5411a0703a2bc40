package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"viewport-engine/rhi"
)

// uploadTexture creates an sRGB texture with repeat wrapping. The first
// row of pixels lands at t = 0, which is where the software sampler puts
// v = 0.
func uploadTexture(desc rhi.TextureDesc, pixels []byte) (uint32, error) {
	if desc.Width <= 0 || desc.Height <= 0 || len(pixels) < desc.Width*desc.Height*4 {
		return 0, fmt.Errorf("invalid texture %dx%d with %d bytes", desc.Width, desc.Height, len(pixels))
	}

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)

	filter := int32(gl.NEAREST)
	if desc.Filter == rhi.FilterLinear {
		filter = gl.LINEAR
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)

	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.SRGB8_ALPHA8, int32(desc.Width), int32(desc.Height), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return id, nil
}
