package vulkan

import (
	"errors"

	vk "github.com/goki/vulkan"

	"viewport-engine/rhi"
)

// fenceTimeout bounds every wait; a frame that takes longer is treated as
// a lost device.
const fenceTimeout = uint64(10e9)

var errTimeout = errors.New("fence wait timed out")

type fence struct {
	handle vk.Fence
}

func newFence(g *gpu) (*fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	f := &fence{}
	if err := check(vk.CreateFence(g.device, &info, nil, &f.handle), "vkCreateFence"); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *fence) wait(g *gpu) error {
	switch res := vk.WaitForFences(g.device, 1, []vk.Fence{f.handle}, vk.True, fenceTimeout); res {
	case vk.Success:
		return nil
	case vk.Timeout:
		return errTimeout
	default:
		return deviceError(res, "vkWaitForFences")
	}
}

func (f *fence) reset(g *gpu) {
	vk.ResetFences(g.device, 1, []vk.Fence{f.handle})
}

func (f *fence) destroy(g *gpu) {
	vk.DestroyFence(g.device, f.handle, nil)
}

// submit runs one recorded command buffer and blocks on its fence.
func submit(g *gpu, cb vk.CommandBuffer, f *fence) error {
	f.reset(g)
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb},
	}
	if res := vk.QueueSubmit(g.queue, 1, []vk.SubmitInfo{info}, f.handle); res != vk.Success {
		return deviceError(res, "vkQueueSubmit")
	}
	if err := f.wait(g); err != nil {
		if errors.Is(err, errTimeout) {
			return errors.Join(rhi.ErrDeviceLost, err)
		}
		return err
	}
	return nil
}

// deviceError maps VK_ERROR_DEVICE_LOST onto rhi.ErrDeviceLost.
func deviceError(res vk.Result, call string) error {
	if res == vk.ErrorDeviceLost {
		return errors.Join(rhi.ErrDeviceLost, check(res, call))
	}
	return check(res, call)
}
