package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// framebuffer is an FBO with sRGB colour, R32UI id and 32-bit float
// depth, plus the host copies EndFrame refreshes.
type framebuffer struct {
	width, height int
	fbo           uint32
	color, id     uint32
	depth         uint32

	readColor []byte
	readID    []uint32
	readDepth []float32
	rendered  bool

	// bottom-up scratch for glReadPixels
	rowColor []byte
	rowID    []uint32
	rowDepth []float32
}

func newFramebuffer(w, h int) (*framebuffer, error) {
	fb := &framebuffer{width: w, height: h}
	gl.GenFramebuffers(1, &fb.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fb.fbo)

	fb.color = attachment(w, h, gl.SRGB8_ALPHA8, gl.RGBA, gl.UNSIGNED_BYTE)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, fb.color, 0)
	fb.id = attachment(w, h, gl.R32UI, gl.RED_INTEGER, gl.UNSIGNED_INT)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT1, gl.TEXTURE_2D, fb.id, 0)
	fb.depth = attachment(w, h, gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, fb.depth, 0)

	bufs := [2]uint32{gl.COLOR_ATTACHMENT0, gl.COLOR_ATTACHMENT1}
	gl.DrawBuffers(2, &bufs[0])

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		fb.release()
		return nil, fmt.Errorf("framebuffer incomplete: 0x%x", status)
	}

	n := w * h
	fb.readColor = make([]byte, n*4)
	fb.readID = make([]uint32, n)
	fb.readDepth = make([]float32, n)
	fb.rowColor = make([]byte, n*4)
	fb.rowID = make([]uint32, n)
	fb.rowDepth = make([]float32, n)
	return fb, nil
}

func attachment(w, h int, internal int32, format, typ uint32) uint32 {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(w), int32(h), 0, format, typ, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return tex
}

func (fb *framebuffer) release() {
	if fb.fbo != 0 {
		gl.DeleteFramebuffers(1, &fb.fbo)
	}
	for _, t := range []*uint32{&fb.color, &fb.id, &fb.depth} {
		if *t != 0 {
			gl.DeleteTextures(1, t)
			*t = 0
		}
	}
	fb.fbo = 0
}

// readback copies the three attachments to the host. GL rows run bottom
// up, so each is flipped into top-down order.
func (fb *framebuffer) readback() {
	w, h := fb.width, fb.height
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, fb.fbo)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)

	gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(fb.rowColor))
	flipRows(fb.readColor, fb.rowColor, h)

	gl.ReadBuffer(gl.COLOR_ATTACHMENT1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RED_INTEGER, gl.UNSIGNED_INT, gl.Ptr(fb.rowID))
	flipRows(fb.readID, fb.rowID, h)

	gl.ReadPixels(0, 0, int32(w), int32(h), gl.DEPTH_COMPONENT, gl.FLOAT, gl.Ptr(fb.rowDepth))
	flipRows(fb.readDepth, fb.rowDepth, h)

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	fb.rendered = true
}

// flipRows copies src into dst with the row order reversed. Both hold
// h rows of len(src)/h elements.
func flipRows[T any](dst, src []T, h int) {
	row := len(src) / max(h, 1)
	for y := range h {
		copy(dst[y*row:(y+1)*row], src[(h-1-y)*row:(h-y)*row])
	}
}
