// Package software is the CPU reference backend. It rasterizes triangles
// straight into host memory and is the ground truth the GPU backends are
// compared against.
package software

import (
	"fmt"
	"log/slog"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
)

func init() {
	rhi.Register(rhi.Software, func(cfg rhi.DeviceConfig) (rhi.Device, error) {
		return New(cfg), nil
	})
}

type buffer struct {
	kind rhi.BufferKind
	data []byte

	// decoded caches, rebuilt after UpdateBuffer
	vertices   []core.Vertex
	decodedFor *core.VertexFormat
	indices    []uint32
}

type framebuffer struct {
	width, height int

	color []core.Color
	id    []uint32
	depth []float32

	// host-side copies refreshed by EndFrame
	readColor []byte
	readID    []uint32
	readDepth []float32
	rendered  bool
}

func newFramebuffer(w, h int) *framebuffer {
	n := w * h
	return &framebuffer{
		width:     w,
		height:    h,
		color:     make([]core.Color, n),
		id:        make([]uint32, n),
		depth:     make([]float32, n),
		readColor: make([]byte, n*4),
		readID:    make([]uint32, n),
		readDepth: make([]float32, n),
	}
}

// Device implements rhi.Device on the CPU.
type Device struct {
	cfg    rhi.DeviceConfig
	nextID uint32

	buffers      map[rhi.Buffer]*buffer
	textures     map[rhi.Texture]*texture
	framebuffers map[rhi.Framebuffer]*framebuffer

	target *framebuffer
	frame  rhi.FrameParams
	log    *slog.Logger
}

var _ rhi.Device = (*Device)(nil)

func New(cfg rhi.DeviceConfig) *Device {
	d := &Device{
		cfg:          cfg.Normalize(),
		buffers:      make(map[rhi.Buffer]*buffer),
		textures:     make(map[rhi.Texture]*texture),
		framebuffers: make(map[rhi.Framebuffer]*framebuffer),
		log:          core.Logger().With("backend", rhi.Software),
	}
	d.log.Info("software device created")
	return d
}

func (d *Device) Name() string { return rhi.Software }

func (d *Device) Caps() rhi.Caps {
	return rhi.Caps{
		MaxDrawsPerFrame: d.cfg.DrawsPerFrame,
		UniformAlignment: 1,
		MaxTextureSize:   16384,
		DepthZeroToOne:   false,
	}
}

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

func (d *Device) CreateBuffer(kind rhi.BufferKind, data []byte) (rhi.Buffer, error) {
	h := rhi.Buffer(d.id())
	d.buffers[h] = &buffer{kind: kind, data: append([]byte(nil), data...)}
	return h, nil
}

func (d *Device) UpdateBuffer(h rhi.Buffer, data []byte) error {
	b, ok := d.buffers[h]
	if !ok {
		return rhi.ErrInvalidHandle
	}
	if cap(b.data) >= len(data) {
		b.data = b.data[:len(data)]
	} else {
		b.data = make([]byte, len(data))
	}
	copy(b.data, data)
	b.vertices, b.decodedFor, b.indices = nil, nil, nil
	return nil
}

func (d *Device) DestroyBuffer(h rhi.Buffer) {
	delete(d.buffers, h)
}

func (d *Device) CreateTexture(desc rhi.TextureDesc, pixels []byte) (rhi.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 || len(pixels) < desc.Width*desc.Height*4 {
		return 0, fmt.Errorf("invalid texture %dx%d with %d bytes", desc.Width, desc.Height, len(pixels))
	}
	h := rhi.Texture(d.id())
	d.textures[h] = newTexture(desc, pixels)
	return h, nil
}

func (d *Device) DestroyTexture(h rhi.Texture) {
	delete(d.textures, h)
}

func (d *Device) CreateFramebuffer(w, h int) (rhi.Framebuffer, error) {
	if w <= 0 || h <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", rhi.ErrInvalidSize, w, h)
	}
	fb := rhi.Framebuffer(d.id())
	d.framebuffers[fb] = newFramebuffer(w, h)
	return fb, nil
}

func (d *Device) ResizeFramebuffer(h rhi.Framebuffer, w, hgt int) error {
	if _, ok := d.framebuffers[h]; !ok {
		return rhi.ErrInvalidHandle
	}
	if w <= 0 || hgt <= 0 {
		return fmt.Errorf("%w: %dx%d", rhi.ErrInvalidSize, w, hgt)
	}
	d.framebuffers[h] = newFramebuffer(w, hgt)
	return nil
}

func (d *Device) DestroyFramebuffer(h rhi.Framebuffer) {
	if fb, ok := d.framebuffers[h]; ok && d.target == fb {
		d.target = nil
	}
	delete(d.framebuffers, h)
}

func (d *Device) BeginFrame(h rhi.Framebuffer, clear rhi.ClearValues, frame rhi.FrameParams) error {
	fb, ok := d.framebuffers[h]
	if !ok {
		return rhi.ErrInvalidHandle
	}
	d.target = fb
	d.frame = frame
	if len(d.frame.Lights) > rhi.MaxLights {
		d.frame.Lights = d.frame.Lights[:rhi.MaxLights]
	}

	fillSlice(fb.color, clear.Color)
	fillSlice(fb.id, clear.ID)
	fillSlice(fb.depth, clear.Depth)
	return nil
}

// fillSlice sets every element using copy doubling.
func fillSlice[T any](s []T, v T) {
	if len(s) == 0 {
		return
	}
	s[0] = v
	for i := 1; i < len(s); i *= 2 {
		copy(s[i:], s[:i])
	}
}

func (d *Device) Draw(call rhi.DrawCall) {
	if d.target == nil {
		d.log.Warn("draw outside frame skipped")
		return
	}
	vertices, indices, ok := d.geometry(&call)
	if !ok {
		return
	}
	d.drawGeometry(&call, call.Model, vertices, indices)
}

func (d *Device) DrawInstanced(call rhi.DrawCall, instances []math.Mat4) {
	if d.target == nil {
		d.log.Warn("draw outside frame skipped")
		return
	}
	vertices, indices, ok := d.geometry(&call)
	if !ok {
		return
	}
	for _, inst := range instances {
		d.drawGeometry(&call, call.Model.Mul(inst), vertices, indices)
	}
}

func (d *Device) geometry(call *rhi.DrawCall) ([]core.Vertex, []uint32, bool) {
	vb, ok := d.buffers[call.VertexBuffer]
	if !ok {
		return nil, nil, false
	}
	ib, ok := d.buffers[call.IndexBuffer]
	if !ok {
		return nil, nil, false
	}

	format := call.Format
	if format == nil {
		format = standardFormat
	}
	if vb.vertices == nil || vb.decodedFor != format {
		count := call.VertexCount
		if max := len(vb.data) / format.Stride; count <= 0 || count > max {
			count = max
		}
		vb.vertices = core.DecodeStandard(vb.data, count, format)
		vb.decodedFor = format
	}
	if ib.indices == nil {
		ib.indices = decodeIndices(ib.data)
	}

	n := call.IndexCount
	if n <= 0 || n > len(ib.indices) {
		n = len(ib.indices)
	}
	return vb.vertices, ib.indices[:n], true
}

var standardFormat = core.StandardFormat()

func decodeIndices(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return out
}

func (d *Device) EndFrame() error {
	fb := d.target
	if fb == nil {
		return rhi.ErrNotInFrame
	}
	for i, c := range fb.color {
		px := c.ToSRGB8()
		copy(fb.readColor[i*4:i*4+4], px[:])
	}
	copy(fb.readID, fb.id)
	copy(fb.readDepth, fb.depth)
	fb.rendered = true
	d.target = nil
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
	clear(d.buffers)
	clear(d.textures)
	clear(d.framebuffers)
	d.target = nil
	d.log.Info("software device destroyed")
}
