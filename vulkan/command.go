package vulkan

import vk "github.com/goki/vulkan"

// commands owns the pool and the two primary command buffers: one
// re-recorded every frame and one for blocking upload submissions.
type commands struct {
	g     *gpu
	pool  vk.CommandPool
	frame vk.CommandBuffer
	xfer  vk.CommandBuffer

	frameFence *fence
	xferFence  *fence
}

func newCommands(g *gpu) (*commands, error) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: g.family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	c := &commands{g: g}
	if err := check(vk.CreateCommandPool(g.device, &info, nil, &c.pool), "vkCreateCommandPool"); err != nil {
		return nil, err
	}

	alloc := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 2,
	}
	bufs := make([]vk.CommandBuffer, 2)
	if err := check(vk.AllocateCommandBuffers(g.device, &alloc, bufs), "vkAllocateCommandBuffers"); err != nil {
		vk.DestroyCommandPool(g.device, c.pool, nil)
		return nil, err
	}
	c.frame, c.xfer = bufs[0], bufs[1]

	var err error
	if c.frameFence, err = newFence(g); err != nil {
		vk.DestroyCommandPool(g.device, c.pool, nil)
		return nil, err
	}
	if c.xferFence, err = newFence(g); err != nil {
		c.frameFence.destroy(g)
		vk.DestroyCommandPool(g.device, c.pool, nil)
		return nil, err
	}
	return c, nil
}

func begin(cb vk.CommandBuffer) error {
	vk.ResetCommandBuffer(cb, 0)
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return check(vk.BeginCommandBuffer(cb, &info), "vkBeginCommandBuffer")
}

// once records fn into the transfer buffer, submits it and blocks until
// the GPU has finished.
func (c *commands) once(fn func(cb vk.CommandBuffer)) error {
	if err := begin(c.xfer); err != nil {
		return err
	}
	fn(c.xfer)
	if err := check(vk.EndCommandBuffer(c.xfer), "vkEndCommandBuffer"); err != nil {
		return err
	}
	return submit(c.g, c.xfer, c.xferFence)
}

// transition moves a whole image between the layouts this backend uses.
func transition(cb vk.CommandBuffer, img *image, from, to vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.handle,
		SubresourceRange:    img.subresource(),
	}
	var src, dst vk.PipelineStageFlagBits
	switch {
	case from == vk.ImageLayoutUndefined && to == vk.ImageLayoutTransferDstOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		src, dst = vk.PipelineStageTopOfPipeBit, vk.PipelineStageTransferBit
	case from == vk.ImageLayoutTransferDstOptimal && to == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		src, dst = vk.PipelineStageTransferBit, vk.PipelineStageFragmentShaderBit
	default:
		src, dst = vk.PipelineStageTopOfPipeBit, vk.PipelineStageBottomOfPipeBit
	}
	vk.CmdPipelineBarrier(cb, vk.PipelineStageFlags(src), vk.PipelineStageFlags(dst), 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// hostBarrier makes transfer writes visible to host reads after the fence.
func hostBarrier(cb vk.CommandBuffer) {
	barrier := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessHostReadBit),
	}
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageHostBit),
		0, 1, []vk.MemoryBarrier{barrier}, 0, nil, 0, nil)
}

func (c *commands) destroy() {
	c.xferFence.destroy(c.g)
	c.frameFence.destroy(c.g)
	vk.FreeCommandBuffers(c.g.device, c.pool, 2, []vk.CommandBuffer{c.frame, c.xfer})
	vk.DestroyCommandPool(c.g.device, c.pool, nil)
}
