package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

const (
	colorFormat = vk.FormatR8g8b8a8Srgb
	idFormat    = vk.FormatR32Uint
	depthFormat = vk.FormatD32Sfloat
)

// framebuffer is one offscreen target: the three attachments, the
// host-visible buffer they are copied into, and the host copies read by
// the query methods.
type framebuffer struct {
	width, height int
	color, id     *image
	depth         *image
	handle        vk.Framebuffer
	readback      *buffer

	readColor []byte
	readID    []uint32
	readDepth []float32
	rendered  bool
}

func newFramebuffer(g *gpu, pass vk.RenderPass, w, h int) (*framebuffer, error) {
	fb := &framebuffer{width: w, height: h}
	var u undo
	attach := vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferSrcBit

	var err error
	if fb.color, err = newImage(g, w, h, colorFormat, attach, vk.ImageAspectColorBit); err != nil {
		return nil, fmt.Errorf("failed to create colour attachment: %w", err)
	}
	u.push(func() { fb.color.destroy(g) })
	if fb.id, err = newImage(g, w, h, idFormat, attach, vk.ImageAspectColorBit); err != nil {
		u.run()
		return nil, fmt.Errorf("failed to create id attachment: %w", err)
	}
	u.push(func() { fb.id.destroy(g) })
	fb.depth, err = newImage(g, w, h, depthFormat,
		vk.ImageUsageDepthStencilAttachmentBit|vk.ImageUsageTransferSrcBit, vk.ImageAspectDepthBit)
	if err != nil {
		u.run()
		return nil, fmt.Errorf("failed to create depth attachment: %w", err)
	}
	u.push(func() { fb.depth.destroy(g) })

	views := []vk.ImageView{fb.color.view, fb.id.view, fb.depth.view}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           uint32(w),
		Height:          uint32(h),
		Layers:          1,
	}
	if err := check(vk.CreateFramebuffer(g.device, &info, nil, &fb.handle), "vkCreateFramebuffer"); err != nil {
		u.run()
		return nil, err
	}
	u.push(func() { vk.DestroyFramebuffer(g.device, fb.handle, nil) })

	n := w * h
	if fb.readback, err = newBuffer(g, n*12, vk.BufferUsageTransferDstBit, hostVisible); err != nil {
		u.run()
		return nil, fmt.Errorf("failed to create readback buffer: %w", err)
	}
	fb.readColor = make([]byte, n*4)
	fb.readID = make([]uint32, n)
	fb.readDepth = make([]float32, n)
	return fb, nil
}

// recordCopy copies the attachments into the readback buffer: colour at
// 0, ids at 4n and depth at 8n bytes. The render pass leaves all three in
// TRANSFER_SRC_OPTIMAL.
func (fb *framebuffer) recordCopy(cb vk.CommandBuffer) {
	n := vk.DeviceSize(fb.width * fb.height)
	extent := vk.Extent3D{Width: uint32(fb.width), Height: uint32(fb.height), Depth: 1}
	for i, img := range []*image{fb.color, fb.id, fb.depth} {
		region := vk.BufferImageCopy{
			BufferOffset:     n * 4 * vk.DeviceSize(i),
			ImageSubresource: img.layers(),
			ImageExtent:      extent,
		}
		vk.CmdCopyImageToBuffer(cb, img.handle, vk.ImageLayoutTransferSrcOptimal, fb.readback.handle, 1, []vk.BufferImageCopy{region})
	}
	hostBarrier(cb)
}

// publish refreshes the host copies once the frame fence has signalled.
// Rows are already top-down because the vertex stage flips y.
func (fb *framebuffer) publish() {
	n := fb.width * fb.height
	raw := fb.readback.bytes()
	copy(fb.readColor, raw[:n*4])
	copy(fb.readID, unsafe.Slice((*uint32)(unsafe.Pointer(&raw[n*4])), n))
	copy(fb.readDepth, unsafe.Slice((*float32)(unsafe.Pointer(&raw[n*8])), n))
	fb.rendered = true
}

func (fb *framebuffer) release(g *gpu) {
	fb.readback.destroy(g)
	vk.DestroyFramebuffer(g.device, fb.handle, nil)
	fb.depth.destroy(g)
	fb.id.destroy(g)
	fb.color.destroy(g)
}
