package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

const (
	hostVisible = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	deviceLocal = vk.MemoryPropertyDeviceLocalBit
)

type buffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	size   int
	mapped unsafe.Pointer
}

// newBuffer allocates and binds a buffer. Host-visible buffers stay
// mapped for their lifetime.
func newBuffer(g *gpu, size int, usage vk.BufferUsageFlagBits, props vk.MemoryPropertyFlagBits) (*buffer, error) {
	size = max(size, 4)
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	b := &buffer{size: size}
	if err := check(vk.CreateBuffer(g.device, &info, nil, &b.handle), "vkCreateBuffer"); err != nil {
		return nil, err
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(g.device, b.handle, &req)
	req.Deref()
	memType, err := g.findMemoryType(req.MemoryTypeBits, props)
	if err != nil {
		vk.DestroyBuffer(g.device, b.handle, nil)
		return nil, err
	}
	alloc := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memType,
	}
	if err := check(vk.AllocateMemory(g.device, &alloc, nil, &b.memory), "vkAllocateMemory"); err != nil {
		vk.DestroyBuffer(g.device, b.handle, nil)
		return nil, err
	}
	vk.BindBufferMemory(g.device, b.handle, b.memory, 0)

	if props&vk.MemoryPropertyHostVisibleBit != 0 {
		var p unsafe.Pointer
		if err := check(vk.MapMemory(g.device, b.memory, 0, vk.DeviceSize(size), 0, &p), "vkMapMemory"); err != nil {
			b.destroy(g)
			return nil, err
		}
		b.mapped = p
	}
	return b, nil
}

// bytes views the mapping.
func (b *buffer) bytes() []byte {
	return unsafe.Slice((*byte)(b.mapped), b.size)
}

func (b *buffer) destroy(g *gpu) {
	if b.mapped != nil {
		vk.UnmapMemory(g.device, b.memory)
		b.mapped = nil
	}
	vk.DestroyBuffer(g.device, b.handle, nil)
	vk.FreeMemory(g.device, b.memory, nil)
}

type image struct {
	handle vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView
	format vk.Format
	aspect vk.ImageAspectFlagBits
}

func newImage(g *gpu, w, h int, format vk.Format, usage vk.ImageUsageFlagBits, aspect vk.ImageAspectFlagBits) (*image, error) {
	info := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: uint32(w), Height: uint32(h), Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	img := &image{format: format, aspect: aspect}
	if err := check(vk.CreateImage(g.device, &info, nil, &img.handle), "vkCreateImage"); err != nil {
		return nil, err
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(g.device, img.handle, &req)
	req.Deref()
	memType, err := g.findMemoryType(req.MemoryTypeBits, deviceLocal)
	if err != nil {
		vk.DestroyImage(g.device, img.handle, nil)
		return nil, err
	}
	alloc := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memType,
	}
	if err := check(vk.AllocateMemory(g.device, &alloc, nil, &img.memory), "vkAllocateMemory"); err != nil {
		vk.DestroyImage(g.device, img.handle, nil)
		return nil, err
	}
	vk.BindImageMemory(g.device, img.handle, img.memory, 0)

	viewInfo := vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            img.handle,
		ViewType:         vk.ImageViewType2d,
		Format:           format,
		SubresourceRange: img.subresource(),
	}
	if err := check(vk.CreateImageView(g.device, &viewInfo, nil, &img.view), "vkCreateImageView"); err != nil {
		vk.DestroyImage(g.device, img.handle, nil)
		vk.FreeMemory(g.device, img.memory, nil)
		return nil, err
	}
	return img, nil
}

func (img *image) subresource() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(img.aspect),
		LevelCount: 1,
		LayerCount: 1,
	}
}

func (img *image) layers() vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask: vk.ImageAspectFlags(img.aspect),
		LayerCount: 1,
	}
}

func (img *image) destroy(g *gpu) {
	vk.DestroyImageView(g.device, img.view, nil)
	vk.DestroyImage(g.device, img.handle, nil)
	vk.FreeMemory(g.device, img.memory, nil)
}

// stager moves host data into device-local memory through one fixed
// staging buffer. Uploads larger than the buffer go in chunks, each
// submitted and waited on before the next overwrites the staging memory.
type stager struct {
	g       *gpu
	staging *buffer
	cmd     *commands
}

func newStager(g *gpu, cmd *commands, size int) (*stager, error) {
	staging, err := newBuffer(g, size, vk.BufferUsageTransferSrcBit, hostVisible)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging buffer: %w", err)
	}
	return &stager{g: g, staging: staging, cmd: cmd}, nil
}

func (s *stager) toBuffer(dst *buffer, data []byte) error {
	for off := 0; off < len(data); {
		n := min(len(data)-off, s.staging.size)
		copy(s.staging.bytes(), data[off:off+n])
		region := vk.BufferCopy{SrcOffset: 0, DstOffset: vk.DeviceSize(off), Size: vk.DeviceSize(n)}
		err := s.cmd.once(func(cb vk.CommandBuffer) {
			vk.CmdCopyBuffer(cb, s.staging.handle, dst.handle, 1, []vk.BufferCopy{region})
		})
		if err != nil {
			return fmt.Errorf("failed to upload buffer: %w", err)
		}
		off += n
	}
	return nil
}

// toImage fills an RGBA8 image row band by row band and leaves it ready
// for sampling.
func (s *stager) toImage(img *image, w, h int, pixels []byte) error {
	rowBytes := w * 4
	rows := s.staging.size / rowBytes
	if rows == 0 {
		return fmt.Errorf("texture row of %d bytes exceeds staging buffer", rowBytes)
	}
	err := s.cmd.once(func(cb vk.CommandBuffer) {
		transition(cb, img, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	})
	if err != nil {
		return err
	}
	for y := 0; y < h; y += rows {
		n := min(rows, h-y)
		copy(s.staging.bytes(), pixels[y*rowBytes:(y+n)*rowBytes])
		region := vk.BufferImageCopy{
			ImageSubresource: img.layers(),
			ImageOffset:      vk.Offset3D{Y: int32(y)},
			ImageExtent:      vk.Extent3D{Width: uint32(w), Height: uint32(n), Depth: 1},
		}
		err := s.cmd.once(func(cb vk.CommandBuffer) {
			vk.CmdCopyBufferToImage(cb, s.staging.handle, img.handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
		})
		if err != nil {
			return fmt.Errorf("failed to upload texture rows %d-%d: %w", y, y+n, err)
		}
	}
	return s.cmd.once(func(cb vk.CommandBuffer) {
		transition(cb, img, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
}

func (s *stager) destroy() {
	s.staging.destroy(s.g)
}
