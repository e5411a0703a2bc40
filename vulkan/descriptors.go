package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"viewport-engine/rhi"
)

// Descriptor bindings in set 0.
const (
	frameBinding   = 0
	drawBinding    = 1 // dynamic, one aligned slot per draw
	textureBinding = 2
)

// descriptors owns the set layout and the pool that every BeginFrame
// resets. Sets are allocated per distinct texture within a frame; the
// per-draw uniforms are selected with a dynamic offset.
type descriptors struct {
	g       *gpu
	layout  vk.DescriptorSetLayout
	pool    vk.DescriptorPool
	maxSets int

	samplers [2]vk.Sampler // indexed by rhi.TextureFilter
	frameSet map[rhi.Texture]vk.DescriptorSet
}

func newDescriptors(g *gpu, maxSets int) (*descriptors, error) {
	stages := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: frameBinding, DescriptorType: vk.DescriptorTypeUniformBuffer, DescriptorCount: 1, StageFlags: stages},
		{Binding: drawBinding, DescriptorType: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: 1, StageFlags: stages},
		{Binding: textureBinding, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1,
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	d := &descriptors{g: g, maxSets: maxSets, frameSet: make(map[rhi.Texture]vk.DescriptorSet)}
	if err := check(vk.CreateDescriptorSetLayout(g.device, &layoutInfo, nil, &d.layout), "vkCreateDescriptorSetLayout"); err != nil {
		return nil, err
	}

	n := uint32(maxSets)
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: n},
		{Type: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: n},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: n},
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       n,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	if err := check(vk.CreateDescriptorPool(g.device, &poolInfo, nil, &d.pool), "vkCreateDescriptorPool"); err != nil {
		vk.DestroyDescriptorSetLayout(g.device, d.layout, nil)
		return nil, err
	}

	for i, filter := range []vk.Filter{vk.FilterNearest, vk.FilterLinear} {
		s, err := newSampler(g, filter)
		if err != nil {
			for _, prev := range d.samplers[:i] {
				vk.DestroySampler(g.device, prev, nil)
			}
			vk.DestroyDescriptorPool(g.device, d.pool, nil)
			vk.DestroyDescriptorSetLayout(g.device, d.layout, nil)
			return nil, err
		}
		d.samplers[i] = s
	}
	return d, nil
}

func newSampler(g *gpu, filter vk.Filter) (vk.Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapMode:   vk.SamplerMipmapModeNearest,
		AddressModeU: vk.SamplerAddressModeRepeat,
		AddressModeV: vk.SamplerAddressModeRepeat,
		AddressModeW: vk.SamplerAddressModeRepeat,
		MaxLod:       0,
		BorderColor:  vk.BorderColorIntOpaqueBlack,
	}
	var s vk.Sampler
	if err := check(vk.CreateSampler(g.device, &info, nil, &s), "vkCreateSampler"); err != nil {
		return s, err
	}
	return s, nil
}

// reset returns every set to the pool.
func (d *descriptors) reset() {
	vk.ResetDescriptorPool(d.g.device, d.pool, 0)
	clear(d.frameSet)
}

// set returns the frame's descriptor set for a texture, writing a new one
// on first use.
func (d *descriptors) set(key rhi.Texture, tex *texture, frame, draws *buffer) (vk.DescriptorSet, error) {
	s, ok := d.frameSet[key]
	if ok {
		return s, nil
	}
	if len(d.frameSet) >= d.maxSets {
		return s, fmt.Errorf("descriptor pool exhausted (%d sets)", d.maxSets)
	}

	alloc := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{d.layout},
	}
	if err := check(vk.AllocateDescriptorSets(d.g.device, &alloc, &s), "vkAllocateDescriptorSets"); err != nil {
		return s, err
	}

	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s,
			DstBinding:      frameBinding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo:     []vk.DescriptorBufferInfo{{Buffer: frame.handle, Range: vk.DeviceSize(rhi.FrameUniformSize)}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s,
			DstBinding:      drawBinding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
			PBufferInfo:     []vk.DescriptorBufferInfo{{Buffer: draws.handle, Range: vk.DeviceSize(rhi.DrawUniformSize)}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          s,
			DstBinding:      textureBinding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			PImageInfo: []vk.DescriptorImageInfo{{
				Sampler:     d.samplers[tex.filter],
				ImageView:   tex.img.view,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}},
		},
	}
	vk.UpdateDescriptorSets(d.g.device, uint32(len(writes)), writes, 0, nil)
	d.frameSet[key] = s
	return s, nil
}

func (d *descriptors) destroy() {
	for _, s := range d.samplers {
		vk.DestroySampler(d.g.device, s, nil)
	}
	vk.DestroyDescriptorPool(d.g.device, d.pool, nil)
	vk.DestroyDescriptorSetLayout(d.g.device, d.layout, nil)
}
