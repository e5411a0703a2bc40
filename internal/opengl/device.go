// Package opengl is the OpenGL 4.1 core backend. It renders offscreen into
// a framebuffer object owned by a hidden window and reads the colour, ID
// and depth attachments back after every frame.
//
// Import it for its side effect:
//
//	import _ "viewport-engine/internal/opengl"
package opengl

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/gl/v4.1-core/gl"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
)

func init() {
	rhi.Register(rhi.OpenGL, func(cfg rhi.DeviceConfig) (rhi.Device, error) {
		return New(cfg)
	})
}

type buffer struct {
	id   uint32
	kind rhi.BufferKind
	size int
}

// vaoKey pairs a vertex buffer with the layout it is read through. A nil
// format is the standard layout.
type vaoKey struct {
	vb     rhi.Buffer
	format *core.VertexFormat
}

// Device implements rhi.Device on OpenGL.
type Device struct {
	cfg    rhi.DeviceConfig
	caps   rhi.Caps
	ctx    *context
	prog   *program
	nextID uint32

	buffers      map[rhi.Buffer]*buffer
	textures     map[rhi.Texture]uint32
	framebuffers map[rhi.Framebuffer]*framebuffer
	vaos         map[vaoKey]uint32

	frameUBO    uint32
	drawUBO     uint32
	instanceVBO uint32
	frameData   []byte
	drawData    []byte
	instances   []float32

	target *framebuffer
	draws  int
	log    *slog.Logger
}

var _ rhi.Device = (*Device)(nil)

var standardFormat = core.StandardFormat()

// New creates a hidden context and the shared program. It fails when no
// 4.1 core context is available.
func New(cfg rhi.DeviceConfig) (*Device, error) {
	ctx, err := newContext()
	if err != nil {
		return nil, err
	}
	prog, err := newProgram()
	if err != nil {
		ctx.destroy()
		return nil, fmt.Errorf("failed to build shader program: %w", err)
	}

	d := &Device{
		cfg:          cfg.Normalize(),
		ctx:          ctx,
		prog:         prog,
		buffers:      make(map[rhi.Buffer]*buffer),
		textures:     make(map[rhi.Texture]uint32),
		framebuffers: make(map[rhi.Framebuffer]*framebuffer),
		vaos:         make(map[vaoKey]uint32),
		frameData:    make([]byte, rhi.FrameUniformSize),
		drawData:     make([]byte, rhi.DrawUniformSize),
		log:          core.Logger().With("backend", rhi.OpenGL),
	}

	var align, maxTex int32
	gl.GetIntegerv(gl.UNIFORM_BUFFER_OFFSET_ALIGNMENT, &align)
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &maxTex)
	renderer := glString(gl.RENDERER)
	d.caps = rhi.Caps{
		MaxDrawsPerFrame: d.cfg.DrawsPerFrame,
		UniformAlignment: int(max(align, 1)),
		MaxTextureSize:   int(maxTex),
		Renderer:         renderer,
		Emulated:         softwareRenderer(renderer),
	}

	d.frameUBO = newUniformBuffer(rhi.FrameUniformSize)
	d.drawUBO = newUniformBuffer(rhi.DrawUniformSize)
	gl.GenBuffers(1, &d.instanceVBO)

	// Values seen by attributes a layout leaves out; they match the
	// defaults of core.DecodeStandard.
	gl.VertexAttrib3f(locNormal, 0, 0, 1)
	gl.VertexAttrib4f(locColor, 1, 1, 1, 1)
	gl.VertexAttrib2f(locUV, 0, 0)

	d.log.Info("opengl device created",
		"version", glString(gl.VERSION),
		"renderer", renderer,
		"emulated", d.caps.Emulated,
		"ubo_align", d.caps.UniformAlignment)
	return d, nil
}

func newUniformBuffer(size int) uint32 {
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(gl.UNIFORM_BUFFER, id)
	gl.BufferData(gl.UNIFORM_BUFFER, size, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
	return id
}

func (d *Device) Name() string  { return rhi.OpenGL }
func (d *Device) Caps() rhi.Caps { return d.caps }

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

func (d *Device) CreateBuffer(kind rhi.BufferKind, data []byte) (rhi.Buffer, error) {
	d.ctx.makeCurrent()
	b := &buffer{kind: kind}
	gl.GenBuffers(1, &b.id)
	upload(b, data)
	h := rhi.Buffer(d.id())
	d.buffers[h] = b
	return h, nil
}

// upload replaces the store through the array target; buffer objects
// are typeless and this avoids touching VAO element bindings.
func upload(b *buffer, data []byte) {
	gl.BindBuffer(gl.ARRAY_BUFFER, b.id)
	if len(data) == 0 {
		gl.BufferData(gl.ARRAY_BUFFER, 0, nil, gl.DYNAMIC_DRAW)
	} else {
		gl.BufferData(gl.ARRAY_BUFFER, len(data), gl.Ptr(data), gl.DYNAMIC_DRAW)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	b.size = len(data)
}

func (d *Device) UpdateBuffer(h rhi.Buffer, data []byte) error {
	b, ok := d.buffers[h]
	if !ok {
		return rhi.ErrInvalidHandle
	}
	d.ctx.makeCurrent()
	upload(b, data)
	return nil
}

func (d *Device) DestroyBuffer(h rhi.Buffer) {
	b, ok := d.buffers[h]
	if !ok {
		return
	}
	d.ctx.makeCurrent()
	for k, vao := range d.vaos {
		if k.vb == h {
			gl.DeleteVertexArrays(1, &vao)
			delete(d.vaos, k)
		}
	}
	gl.DeleteBuffers(1, &b.id)
	delete(d.buffers, h)
}

func (d *Device) CreateTexture(desc rhi.TextureDesc, pixels []byte) (rhi.Texture, error) {
	if d.caps.MaxTextureSize > 0 && (desc.Width > d.caps.MaxTextureSize || desc.Height > d.caps.MaxTextureSize) {
		return 0, fmt.Errorf("texture %dx%d exceeds %d", desc.Width, desc.Height, d.caps.MaxTextureSize)
	}
	d.ctx.makeCurrent()
	id, err := uploadTexture(desc, pixels)
	if err != nil {
		return 0, err
	}
	h := rhi.Texture(d.id())
	d.textures[h] = id
	return h, nil
}

func (d *Device) DestroyTexture(h rhi.Texture) {
	id, ok := d.textures[h]
	if !ok {
		return
	}
	d.ctx.makeCurrent()
	gl.DeleteTextures(1, &id)
	delete(d.textures, h)
}

func (d *Device) CreateFramebuffer(w, h int) (rhi.Framebuffer, error) {
	if w <= 0 || h <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", rhi.ErrInvalidSize, w, h)
	}
	d.ctx.makeCurrent()
	fb, err := newFramebuffer(w, h)
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
	d.ctx.makeCurrent()
	fb, err := newFramebuffer(w, hgt)
	if err != nil {
		return err
	}
	old.release()
	if d.target == old {
		d.target = nil
	}
	d.framebuffers[h] = fb
	return nil
}

func (d *Device) DestroyFramebuffer(h rhi.Framebuffer) {
	fb, ok := d.framebuffers[h]
	if !ok {
		return
	}
	d.ctx.makeCurrent()
	if d.target == fb {
		d.target = nil
	}
	fb.release()
	delete(d.framebuffers, h)
}

func (d *Device) BeginFrame(h rhi.Framebuffer, clear rhi.ClearValues, frame rhi.FrameParams) error {
	fb, ok := d.framebuffers[h]
	if !ok {
		return rhi.ErrInvalidHandle
	}
	d.ctx.makeCurrent()
	d.target = fb
	d.draws = 0

	gl.BindFramebuffer(gl.FRAMEBUFFER, fb.fbo)
	gl.Viewport(0, 0, int32(fb.width), int32(fb.height))
	gl.Enable(gl.FRAMEBUFFER_SRGB)

	// Clears honour the write masks left by the previous frame.
	gl.ColorMask(true, true, true, true)
	gl.DepthMask(true)
	gl.Disable(gl.SCISSOR_TEST)

	c := [4]float32{clear.Color.R, clear.Color.G, clear.Color.B, clear.Color.A}
	gl.ClearBufferfv(gl.COLOR, 0, &c[0])
	id := [4]uint32{clear.ID}
	gl.ClearBufferuiv(gl.COLOR, 1, &id[0])
	depth := clear.Depth
	gl.ClearBufferfv(gl.DEPTH, 0, &depth)

	rhi.PackFrameUniforms(d.frameData, &frame, false)
	gl.BindBuffer(gl.UNIFORM_BUFFER, d.frameUBO)
	gl.BufferSubData(gl.UNIFORM_BUFFER, 0, len(d.frameData), gl.Ptr(d.frameData))
	gl.BindBufferBase(gl.UNIFORM_BUFFER, frameBinding, d.frameUBO)
	gl.BindBufferBase(gl.UNIFORM_BUFFER, drawBinding, d.drawUBO)

	gl.UseProgram(d.prog.id)
	gl.DepthFunc(gl.LESS)
	gl.FrontFace(gl.CCW)
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
	if d.draws >= d.cfg.DrawsPerFrame {
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
	d.draws++

	format := call.Format
	if format.IsStandard() {
		format = nil
	}
	vao := d.vao(call.VertexBuffer, vb, format)

	rhi.PackDrawUniforms(d.drawData, call)
	tex, hasTex := d.textures[call.Material.Texture]
	if !hasTex {
		// hasTexture flag in misc.z
		clear(d.drawData[152:156])
	}
	gl.BindBuffer(gl.UNIFORM_BUFFER, d.drawUBO)
	gl.BufferSubData(gl.UNIFORM_BUFFER, 0, len(d.drawData), gl.Ptr(d.drawData))

	lines := call.Topology == rhi.Lines || call.State.Wireframe
	d.applyState(call.State, lines)
	if hasTex {
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, tex)
	}

	var bias float32
	lineMode := int32(0)
	if lines {
		bias, lineMode = rhi.LineDepthBias, 1
	}
	gl.Uniform1f(d.prog.depthBias, bias)
	gl.Uniform1i(d.prog.lineMode, lineMode)

	mode := uint32(gl.TRIANGLES)
	if call.Topology == rhi.Lines {
		mode = gl.LINES
	}

	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, ib.id)
	if instances == nil {
		gl.Uniform1i(d.prog.instanced, 0)
		gl.DrawElements(mode, int32(n), gl.UNSIGNED_INT, nil)
	} else {
		d.uploadInstances(instances)
		gl.Uniform1i(d.prog.instanced, 1)
		for i := range uint32(4) {
			gl.EnableVertexAttribArray(locInstance + i)
		}
		gl.DrawElementsInstanced(mode, int32(n), gl.UNSIGNED_INT, nil, int32(len(instances)))
		for i := range uint32(4) {
			gl.DisableVertexAttribArray(locInstance + i)
		}
	}
	gl.BindVertexArray(0)
	if call.State.Wireframe {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
	}
}

// applyState sets the fixed-function state for one draw. Blended draws
// leave the ID attachment untouched and never write depth.
func (d *Device) applyState(s rhi.PipelineState, lines bool) {
	if s.DepthTest {
		gl.Enable(gl.DEPTH_TEST)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	gl.DepthMask(s.DepthWrite())

	if s.CullBack && !lines {
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	} else {
		gl.Disable(gl.CULL_FACE)
	}
	if s.Wireframe {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	}

	switch s.Blend {
	case rhi.BlendAlpha:
		gl.Enablei(gl.BLEND, 0)
		gl.BlendFuncSeparatei(0, gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA, gl.ONE, gl.ONE_MINUS_SRC_ALPHA)
		gl.ColorMaski(1, false, false, false, false)
	case rhi.BlendAdditive:
		gl.Enablei(gl.BLEND, 0)
		gl.BlendFuncSeparatei(0, gl.SRC_ALPHA, gl.ONE, gl.ZERO, gl.ONE)
		gl.ColorMaski(1, false, false, false, false)
	default:
		gl.Disablei(gl.BLEND, 0)
		gl.ColorMaski(1, true, true, true, true)
	}
}

var semanticLocation = map[core.Semantic]uint32{
	core.SemanticPosition: locPosition,
	core.SemanticNormal:   locNormal,
	core.SemanticColor:    locColor,
	core.SemanticTexCoord: locUV,
}

// vao returns the vertex array for a buffer read through format,
// building it on first use. Attributes the shader has no input for are
// skipped.
func (d *Device) vao(h rhi.Buffer, vb *buffer, format *core.VertexFormat) uint32 {
	key := vaoKey{vb: h, format: format}
	if id, ok := d.vaos[key]; ok {
		return id
	}
	layout := format
	if layout == nil {
		layout = standardFormat
	}

	var id uint32
	gl.GenVertexArrays(1, &id)
	gl.BindVertexArray(id)
	gl.BindBuffer(gl.ARRAY_BUFFER, vb.id)

	stride := int32(layout.Stride)
	bound := make(map[uint32]bool)
	for _, a := range layout.Attributes {
		loc, ok := semanticLocation[a.Semantic]
		if !ok || bound[loc] {
			continue
		}
		var typ uint32
		normalized := false
		switch a.Format {
		case core.Float1, core.Float2, core.Float3, core.Float4:
			typ = gl.FLOAT
		case core.UByte4Norm:
			typ, normalized = gl.UNSIGNED_BYTE, true
		default:
			continue
		}
		bound[loc] = true
		gl.EnableVertexAttribArray(loc)
		gl.VertexAttribPointer(loc, int32(a.Format.Components()), typ, normalized, stride, gl.PtrOffset(a.Offset))
	}

	gl.BindBuffer(gl.ARRAY_BUFFER, d.instanceVBO)
	for i := range uint32(4) {
		gl.VertexAttribPointer(locInstance+i, 4, gl.FLOAT, false, 64, gl.PtrOffset(int(i)*16))
		gl.VertexAttribDivisor(locInstance+i, 1)
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	d.vaos[key] = id
	return id
}

func (d *Device) uploadInstances(instances []math.Mat4) {
	d.instances = d.instances[:0]
	for _, m := range instances {
		f := m.Flatten()
		d.instances = append(d.instances, f[:]...)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, d.instanceVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(d.instances)*4, gl.Ptr(d.instances), gl.STREAM_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (d *Device) EndFrame() error {
	fb := d.target
	if fb == nil {
		return rhi.ErrNotInFrame
	}
	d.target = nil
	gl.Disable(gl.FRAMEBUFFER_SRGB)
	gl.Finish()
	fb.readback()
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	if e := gl.GetError(); e != gl.NO_ERROR {
		d.log.Error("frame finished with GL error", "code", fmt.Sprintf("0x%x", e))
		if e == gl.OUT_OF_MEMORY {
			return rhi.ErrDeviceLost
		}
	}
	return nil
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

func (d *Device) Destroy() {
	if d.ctx == nil {
		return
	}
	d.ctx.makeCurrent()
	for _, vao := range d.vaos {
		gl.DeleteVertexArrays(1, &vao)
	}
	for _, b := range d.buffers {
		gl.DeleteBuffers(1, &b.id)
	}
	for _, t := range d.textures {
		gl.DeleteTextures(1, &t)
	}
	for _, fb := range d.framebuffers {
		fb.release()
	}
	for _, id := range []*uint32{&d.frameUBO, &d.drawUBO, &d.instanceVBO} {
		gl.DeleteBuffers(1, id)
	}
	clear(d.vaos)
	clear(d.buffers)
	clear(d.textures)
	clear(d.framebuffers)
	d.target = nil
	d.prog.destroy()
	d.ctx.destroy()
	d.ctx = nil
	d.log.Info("opengl device destroyed")
}
