package vulkan

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	stdmath "math"
	"unsafe"

	vk "github.com/goki/vulkan"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
)

func init() {
	rhi.Register(rhi.Vulkan, func(cfg rhi.DeviceConfig) (rhi.Device, error) {
		return New(cfg)
	})
}

const (
	instanceBufferSize = 1 << 20
	maxTextureSets     = 256
)

type meshBuffer struct {
	buf      *buffer
	kind     rhi.BufferKind
	size     int
	lastUsed uint64
}

// drawOp is one queued draw. Recording is deferred to EndFrame because
// buffers may be uploaded between draws, which needs the queue.
type drawOp struct {
	pipeline   vk.Pipeline
	set        vk.DescriptorSet
	offset     uint32
	vb, ib     vk.Buffer
	count      uint32
	instOffset vk.DeviceSize
	instances  uint32
	push       [pushConstantSize]byte
}

// Device implements rhi.Device on Vulkan without a surface.
type Device struct {
	cfg    rhi.DeviceConfig
	caps   rhi.Caps
	g      *gpu
	cmd    *commands
	stage  *stager
	desc   *descriptors
	shd    *shaders
	pass   vk.RenderPass
	layout vk.PipelineLayout
	pipes  *pipelines
	nextID uint32

	buffers      map[rhi.Buffer]*meshBuffer
	textures     map[rhi.Texture]*texture
	framebuffers map[rhi.Framebuffer]*framebuffer

	frameUBO   *buffer
	drawUBO    *buffer
	drawStride int
	instBuf    *buffer
	instOff    int
	defaults   *buffer
	white      *texture

	target  *framebuffer
	clear   [3]vk.ClearValue
	ops     []drawOp
	frame   uint64
	retired []func()
	log     *slog.Logger
}

var _ rhi.Device = (*Device)(nil)

// New creates an instance, device and every shared GPU object. It fails
// when no loader, no suitable device or no shader compiler is present.
func New(cfg rhi.DeviceConfig) (*Device, error) {
	if err := loadVulkan(); err != nil {
		return nil, err
	}
	cfg = cfg.Normalize()
	icfg := defaultInstanceConfig()
	icfg.enableValidation = cfg.Validation

	instance, err := newInstance(icfg)
	if err != nil {
		return nil, err
	}
	g, err := pickPhysicalDevice(instance)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, err
	}
	if err := g.createLogicalDevice(); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, err
	}

	d := &Device{
		cfg:          cfg,
		g:            g,
		buffers:      make(map[rhi.Buffer]*meshBuffer),
		textures:     make(map[rhi.Texture]*texture),
		framebuffers: make(map[rhi.Framebuffer]*framebuffer),
		log:          core.Logger().With("backend", rhi.Vulkan),
	}
	if err := d.init(); err != nil {
		d.Destroy()
		return nil, err
	}

	d.log.Info("vulkan device created",
		"gpu", g.name,
		"type", g.deviceTypeName(),
		"ubo_align", d.caps.UniformAlignment,
		"wireframe", g.wireframe)
	return d, nil
}

// init builds the shared objects in order. Destroy tolerates a partially
// initialized device.
func (d *Device) init() error {
	g := d.g
	var err error
	if d.cmd, err = newCommands(g); err != nil {
		return err
	}
	if d.stage, err = newStager(g, d.cmd, d.cfg.StagingSize); err != nil {
		return err
	}
	if d.desc, err = newDescriptors(g, maxTextureSets); err != nil {
		return err
	}
	if d.shd, err = newShaders(g, d.log); err != nil {
		return fmt.Errorf("failed to build shaders: %w", err)
	}
	if d.pass, err = newRenderPass(g); err != nil {
		return err
	}
	if d.layout, err = newPipelineLayout(g, d.desc.layout); err != nil {
		return err
	}
	d.pipes = newPipelines(g, d.shd, d.pass, d.layout, d.cfg.PipelineCache, func(p vk.Pipeline) {
		d.later(func() { vk.DestroyPipeline(g.device, p, nil) })
	})

	align := int(max(g.limits.MinUniformBufferOffsetAlignment, 1))
	d.drawStride = rhi.AlignUp(rhi.DrawUniformSize, align)
	d.caps = rhi.Caps{
		MaxDrawsPerFrame: d.cfg.DrawsPerFrame,
		UniformAlignment: align,
		MaxTextureSize:   int(g.limits.MaxImageDimension2D),
		DepthZeroToOne:   true,
		Renderer:         g.name,
		Emulated:         g.deviceType == vk.PhysicalDeviceTypeCpu,
	}

	if d.frameUBO, err = newBuffer(g, rhi.FrameUniformSize, vk.BufferUsageUniformBufferBit, hostVisible); err != nil {
		return err
	}
	if d.drawUBO, err = newBuffer(g, d.drawStride*d.cfg.DrawsPerFrame, vk.BufferUsageUniformBufferBit, hostVisible); err != nil {
		return err
	}
	if d.instBuf, err = newBuffer(g, instanceBufferSize, vk.BufferUsageVertexBufferBit, hostVisible); err != nil {
		return err
	}
	identity := math.Mat4Identity().Flatten()
	putFloats(d.instBuf.bytes(), 0, identity[:]...)

	if d.defaults, err = newBuffer(g, len(defaultsData), vk.BufferUsageVertexBufferBit, hostVisible); err != nil {
		return err
	}
	copy(d.defaults.bytes(), defaultsData)

	white := []byte{255, 255, 255, 255}
	if d.white, err = uploadTexture(g, d.stage, rhi.TextureDesc{Width: 1, Height: 1}, white); err != nil {
		return fmt.Errorf("failed to create fallback texture: %w", err)
	}
	return nil
}

func putFloats(dst []byte, off int, vs ...float32) {
	for i, v := range vs {
		binary.LittleEndian.PutUint32(dst[off+i*4:], stdmath.Float32bits(v))
	}
}

func (d *Device) Name() string  { return rhi.Vulkan }
func (d *Device) Caps() rhi.Caps { return d.caps }

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

// later runs f once the GPU can no longer reference what it frees: at
// the end of the current frame, or immediately between frames.
func (d *Device) later(f func()) {
	if d.target != nil {
		d.retired = append(d.retired, f)
		return
	}
	f()
}

func (d *Device) flushRetired() {
	for _, f := range d.retired {
		f()
	}
	d.retired = d.retired[:0]
}

func bufferUsage(kind rhi.BufferKind) vk.BufferUsageFlagBits {
	if kind == rhi.IndexBuffer {
		return vk.BufferUsageIndexBufferBit | vk.BufferUsageTransferDstBit
	}
	return vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit
}

func (d *Device) newMeshBuffer(kind rhi.BufferKind, data []byte) (*buffer, error) {
	b, err := newBuffer(d.g, len(data), bufferUsage(kind), deviceLocal)
	if err != nil {
		return nil, err
	}
	if err := d.stage.toBuffer(b, data); err != nil {
		b.destroy(d.g)
		return nil, err
	}
	return b, nil
}

func (d *Device) CreateBuffer(kind rhi.BufferKind, data []byte) (rhi.Buffer, error) {
	b, err := d.newMeshBuffer(kind, data)
	if err != nil {
		return 0, err
	}
	h := rhi.Buffer(d.id())
	d.buffers[h] = &meshBuffer{buf: b, kind: kind, size: len(data)}
	return h, nil
}

// UpdateBuffer writes in place when the data fits and no queued draw of
// this frame reads the buffer; otherwise it swaps in a new allocation.
func (d *Device) UpdateBuffer(h rhi.Buffer, data []byte) error {
	mb, ok := d.buffers[h]
	if !ok {
		return rhi.ErrInvalidHandle
	}
	inUse := d.target != nil && mb.lastUsed == d.frame
	if len(data) <= mb.buf.size && !inUse {
		if err := d.stage.toBuffer(mb.buf, data); err != nil {
			return err
		}
		mb.size = len(data)
		return nil
	}
	b, err := d.newMeshBuffer(mb.kind, data)
	if err != nil {
		return err
	}
	old := mb.buf
	d.later(func() { old.destroy(d.g) })
	mb.buf, mb.size, mb.lastUsed = b, len(data), 0
	return nil
}

func (d *Device) DestroyBuffer(h rhi.Buffer) {
	mb, ok := d.buffers[h]
	if !ok {
		return
	}
	delete(d.buffers, h)
	d.later(func() { mb.buf.destroy(d.g) })
}

func (d *Device) CreateTexture(desc rhi.TextureDesc, pixels []byte) (rhi.Texture, error) {
	if desc.Width > d.caps.MaxTextureSize || desc.Height > d.caps.MaxTextureSize {
		return 0, fmt.Errorf("texture %dx%d exceeds %d", desc.Width, desc.Height, d.caps.MaxTextureSize)
	}
	t, err := uploadTexture(d.g, d.stage, desc, pixels)
	if err != nil {
		return 0, err
	}
	h := rhi.Texture(d.id())
	d.textures[h] = t
	return h, nil
}

func (d *Device) DestroyTexture(h rhi.Texture) {
	t, ok := d.textures[h]
	if !ok {
		return
	}
	delete(d.textures, h)
	d.later(func() { t.destroy(d.g) })
}

func (d *Device) CreateFramebuffer(w, h int) (rhi.Framebuffer, error) {
	if w <= 0 || h <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", rhi.ErrInvalidSize, w, h)
	}
	fb, err := newFramebuffer(d.g, d.pass, w, h)
	if err != nil {
		return 0, err
	}
	handle := rhi.Framebuffer(d.id())
	d.framebuffers[handle] = fb
	return handle, nil
}

func (d *Device) ResizeFramebuffer(h rhi.Framebuffer, w, hgt int) error {
	old, ok := d.framebuffers[h]
	if !ok {
		return rhi.ErrInvalidHandle
	}
	if w <= 0 || hgt <= 0 {
		return fmt.Errorf("%w: %dx%d", rhi.ErrInvalidSize, w, hgt)
	}
	fb, err := newFramebuffer(d.g, d.pass, w, hgt)
	if err != nil {
		return err
	}
	if d.target == old {
		d.abandonFrame()
	}
	old.release(d.g)
	d.framebuffers[h] = fb
	return nil
}

func (d *Device) DestroyFramebuffer(h rhi.Framebuffer) {
	fb, ok := d.framebuffers[h]
	if !ok {
		return
	}
	if d.target == fb {
		d.abandonFrame()
	}
	fb.release(d.g)
	delete(d.framebuffers, h)
}

// abandonFrame drops queued work whose target is going away.
func (d *Device) abandonFrame() {
	d.target = nil
	d.ops = d.ops[:0]
	d.flushRetired()
}

func (d *Device) BeginFrame(h rhi.Framebuffer, cv rhi.ClearValues, frame rhi.FrameParams) error {
	fb, ok := d.framebuffers[h]
	if !ok {
		return rhi.ErrInvalidHandle
	}
	if d.target != nil {
		d.log.Warn("frame begun without EndFrame; discarding queued draws")
		d.abandonFrame()
	}
	d.frame++
	d.target = fb
	d.ops = d.ops[:0]
	d.instOff = 64
	d.desc.reset()

	d.clear[0] = vk.NewClearValue([]float32{cv.Color.R, cv.Color.G, cv.Color.B, cv.Color.A})
	d.clear[1] = vk.ClearValue{}
	binary.LittleEndian.PutUint32(d.clear[1][:], cv.ID)
	d.clear[2] = vk.NewClearDepthStencil(cv.Depth, 0)

	rhi.PackFrameUniforms(d.frameUBO.bytes(), &frame, true)
	return nil
}

func (d *Device) Draw(call rhi.DrawCall) {
	d.draw(&call, nil)
}

func (d *Device) DrawInstanced(call rhi.DrawCall, instances []math.Mat4) {
	if len(instances) == 0 {
		return
	}
	d.draw(&call, instances)
}

func (d *Device) draw(call *rhi.DrawCall, instances []math.Mat4) {
	if d.target == nil {
		d.log.Warn("draw outside frame skipped")
		return
	}
	slot := len(d.ops)
	if slot >= d.cfg.DrawsPerFrame {
		d.log.Warn("draw skipped", "object", call.ObjectID, "err", rhi.ErrBudgetExceeded)
		return
	}
	vb, ok := d.buffers[call.VertexBuffer]
	if !ok {
		return
	}
	ib, ok := d.buffers[call.IndexBuffer]
	if !ok {
		return
	}
	n := ib.size / 4
	if call.IndexCount > 0 && call.IndexCount < n {
		n = call.IndexCount
	}
	if n == 0 {
		return
	}

	format := call.Format
	if format.IsStandard() {
		format = nil
	}
	pipe, err := d.pipes.get(call.State, format, call.Topology)
	if err != nil {
		d.log.Warn("draw skipped", "object", call.ObjectID, "err", err)
		return
	}

	op := drawOp{pipeline: pipe, vb: vb.buf.handle, ib: ib.buf.handle, count: uint32(n), instances: 1}
	if instances != nil {
		need := len(instances) * 64
		if d.instOff+need > d.instBuf.size {
			d.log.Warn("draw skipped", "object", call.ObjectID, "instances", len(instances), "err", rhi.ErrBudgetExceeded)
			return
		}
		dst := d.instBuf.bytes()
		for i, m := range instances {
			f := m.Flatten()
			putFloats(dst, d.instOff+i*64, f[:]...)
		}
		op.instOffset = vk.DeviceSize(d.instOff)
		op.instances = uint32(len(instances))
		d.instOff += need
	}

	tex, texKey := d.white, rhi.Texture(0)
	if t, ok := d.textures[call.Material.Texture]; ok {
		tex, texKey = t, call.Material.Texture
	}
	set, err := d.desc.set(texKey, tex, d.frameUBO, d.drawUBO)
	if err != nil {
		d.log.Warn("draw skipped", "object", call.ObjectID, "err", err)
		return
	}
	op.set = set

	off := slot * d.drawStride
	data := d.drawUBO.bytes()[off : off+rhi.DrawUniformSize]
	rhi.PackDrawUniforms(data, call)
	if texKey == 0 {
		// hasTexture flag in misc.z
		clear(data[152:156])
	}
	op.offset = uint32(off)

	lines := call.Topology == rhi.Lines || call.State.Wireframe
	if instances != nil {
		binary.LittleEndian.PutUint32(op.push[0:], 1)
	}
	if lines {
		binary.LittleEndian.PutUint32(op.push[4:], 1)
		binary.LittleEndian.PutUint32(op.push[8:], stdmath.Float32bits(rhi.LineDepthBias))
	}

	vb.lastUsed, ib.lastUsed = d.frame, d.frame
	d.ops = append(d.ops, op)
}

func (d *Device) EndFrame() error {
	fb := d.target
	if fb == nil {
		return rhi.ErrNotInFrame
	}
	defer func() {
		d.target = nil
		d.ops = d.ops[:0]
		d.flushRetired()
	}()

	cb := d.cmd.frame
	if err := begin(cb); err != nil {
		return err
	}
	d.record(cb, fb)
	fb.recordCopy(cb)
	if err := check(vk.EndCommandBuffer(cb), "vkEndCommandBuffer"); err != nil {
		return err
	}
	if err := submit(d.g, cb, d.cmd.frameFence); err != nil {
		d.log.Error("frame submission failed", "err", err)
		return err
	}
	fb.publish()
	return nil
}

func (d *Device) record(cb vk.CommandBuffer, fb *framebuffer) {
	extent := vk.Extent2D{Width: uint32(fb.width), Height: uint32(fb.height)}
	info := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      d.pass,
		Framebuffer:     fb.handle,
		RenderArea:      vk.Rect2D{Extent: extent},
		ClearValueCount: uint32(len(d.clear)),
		PClearValues:    d.clear[:],
	}
	vk.CmdBeginRenderPass(cb, &info, vk.SubpassContentsInline)
	vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{{
		Width: float32(fb.width), Height: float32(fb.height), MinDepth: 0, MaxDepth: 1,
	}})
	vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{{Extent: extent}})

	stages := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
	bound := vk.NullPipeline
	for i := range d.ops {
		op := &d.ops[i]
		if op.pipeline != bound {
			vk.CmdBindPipeline(cb, vk.PipelineBindPointGraphics, op.pipeline)
			bound = op.pipeline
		}
		vk.CmdBindDescriptorSets(cb, vk.PipelineBindPointGraphics, d.layout, 0,
			1, []vk.DescriptorSet{op.set}, 1, []uint32{op.offset})
		vk.CmdBindVertexBuffers(cb, 0, 3,
			[]vk.Buffer{op.vb, d.instBuf.handle, d.defaults.handle},
			[]vk.DeviceSize{0, op.instOffset, 0})
		vk.CmdBindIndexBuffer(cb, op.ib, 0, vk.IndexTypeUint32)
		vk.CmdPushConstants(cb, d.layout, stages, 0, pushConstantSize, unsafe.Pointer(&op.push[0]))
		vk.CmdDrawIndexed(cb, op.count, op.instances, 0, 0, 0)
	}
	vk.CmdEndRenderPass(cb)
}

func (d *Device) ReadColor(h rhi.Framebuffer) ([]byte, int, int) {
	fb, ok := d.framebuffers[h]
	if !ok {
		return nil, 0, 0
	}
	return fb.readColor, fb.width, fb.height
}

func (d *Device) ReadID(h rhi.Framebuffer, x, y int) (uint32, bool) {
	fb, ok := d.framebuffers[h]
	if !ok || !fb.rendered || x < 0 || y < 0 || x >= fb.width || y >= fb.height {
		return 0, false
	}
	return fb.readID[y*fb.width+x], true
}

func (d *Device) ReadDepth(h rhi.Framebuffer, x, y int) (float32, bool) {
	fb, ok := d.framebuffers[h]
	if !ok || !fb.rendered || x < 0 || y < 0 || x >= fb.width || y >= fb.height {
		return 1, false
	}
	return fb.readDepth[y*fb.width+x], true
}

func (d *Device) ReadDepthBuffer(h rhi.Framebuffer) []float32 {
	fb, ok := d.framebuffers[h]
	if !ok || !fb.rendered {
		return nil
	}
	return fb.readDepth
}

// Destroy waits for the device to go idle and releases everything in
// reverse creation order.
func (d *Device) Destroy() {
	if d.g == nil {
		return
	}
	g := d.g
	g.waitIdle()
	d.target = nil
	d.flushRetired()

	for _, fb := range d.framebuffers {
		fb.release(g)
	}
	for _, t := range d.textures {
		t.destroy(g)
	}
	for _, b := range d.buffers {
		b.buf.destroy(g)
	}
	clear(d.framebuffers)
	clear(d.textures)
	clear(d.buffers)

	if d.white != nil {
		d.white.destroy(g)
	}
	for _, b := range []*buffer{d.defaults, d.instBuf, d.drawUBO, d.frameUBO} {
		if b != nil {
			b.destroy(g)
		}
	}
	if d.pipes != nil {
		d.pipes.destroy()
	}
	if d.layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(g.device, d.layout, nil)
	}
	if d.pass != vk.NullRenderPass {
		vk.DestroyRenderPass(g.device, d.pass, nil)
	}
	if d.shd != nil {
		d.shd.destroy(g)
	}
	if d.desc != nil {
		d.desc.destroy()
	}
	if d.stage != nil {
		d.stage.destroy()
	}
	if d.cmd != nil {
		d.cmd.destroy()
	}
	g.destroy()
	d.g = nil
	d.log.Info("vulkan device destroyed")
}
