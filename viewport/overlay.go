package viewport

import (
	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
	"viewport-engine/scene"
)

const (
	// MaxOverlays bounds the persistent overlay arena.
	MaxOverlays = 64

	// ReservedIDBase starts the object ID range kept for engine overlays
	// such as gizmo handles. Application meshes should stay below it.
	ReservedIDBase uint32 = 0xFFFF0000
)

// IsReservedID reports whether id belongs to an engine overlay.
func IsReservedID(id uint32) bool { return id >= ReservedIDBase }

// Overlay is unlit geometry drawn after the scene. Opaque overlays write
// their ObjectID so they can be picked; OnTop overlays skip the depth test.
type Overlay struct {
	Geometry scene.Geometry
	Model    math.Mat4
	Topology rhi.Topology
	Color    core.Color
	ObjectID uint32
	OnTop    bool
	Visible  bool
}

type OverlayHandle struct {
	index      uint32
	generation uint32
}

func (h OverlayHandle) IsNil() bool { return h.generation == 0 }

type overlaySlot struct {
	overlay    Overlay
	generation uint32
	used       bool
	revision   uint64
	uploaded   uint64
	vb, ib     rhi.Buffer
}

type overlaySlots struct {
	slots [MaxOverlays]overlaySlot
}

func (o *overlaySlots) get(h OverlayHandle) *overlaySlot {
	if h.IsNil() || int(h.index) >= MaxOverlays {
		return nil
	}
	s := &o.slots[h.index]
	if !s.used || s.generation != h.generation {
		return nil
	}
	return s
}

func (s *overlaySlot) releaseBuffers(d rhi.Device) {
	if s.vb != 0 {
		d.DestroyBuffer(s.vb)
	}
	if s.ib != 0 {
		d.DestroyBuffer(s.ib)
	}
	s.vb, s.ib, s.uploaded = 0, 0, 0
}

func (o *overlaySlots) release(d rhi.Device) {
	for i := range o.slots {
		o.slots[i].releaseBuffers(d)
		o.slots[i].used = false
	}
}

func (o *overlaySlots) draw(v *Viewport) {
	for pass := 0; pass < 2; pass++ {
		onTop := pass == 1
		for i := range o.slots {
			s := &o.slots[i]
			ov := &s.overlay
			if !s.used || !ov.Visible || ov.OnTop != onTop || len(ov.Geometry.Indices) == 0 {
				continue
			}
			if s.uploaded != s.revision || s.vb == 0 {
				if !o.upload(v, s) {
					continue
				}
			}
			state := rhi.PipelineState{DepthTest: !ov.OnTop, CullBack: ov.Topology == rhi.Triangles}
			v.issue(rhi.DrawCall{
				VertexBuffer: s.vb,
				IndexBuffer:  s.ib,
				IndexCount:   len(ov.Geometry.Indices),
				VertexCount:  len(ov.Geometry.Vertices),
				Topology:     ov.Topology,
				Model:        ov.Model,
				ObjectID:     ov.ObjectID,
				Material:     rhi.Material{BaseColor: ov.Color, Opacity: 1},
				State:        state,
				Shading:      rhi.ShadeUnlit,
			}, nil)
		}
	}
}

func (o *overlaySlots) upload(v *Viewport, s *overlaySlot) bool {
	v.upload = core.AppendVertices(v.upload[:0], s.overlay.Geometry.Vertices)
	if !v.storeRaw(&s.vb, rhi.VertexBuffer, v.upload) {
		return false
	}
	v.upload = core.AppendIndices(v.upload[:0], s.overlay.Geometry.Indices)
	if !v.storeRaw(&s.ib, rhi.IndexBuffer, v.upload) {
		return false
	}
	s.uploaded = s.revision
	return true
}

// AddOverlay stores a persistent overlay. It returns a zero handle and
// logs a warning when all overlay slots are taken.
func (v *Viewport) AddOverlay(ov Overlay) OverlayHandle {
	if !v.alive() {
		return OverlayHandle{}
	}
	for i := range v.overlays.slots {
		s := &v.overlays.slots[i]
		if s.used {
			continue
		}
		s.used = true
		s.generation++
		s.overlay = cloneOverlay(ov)
		s.revision = s.uploaded + 1
		return OverlayHandle{index: uint32(i), generation: s.generation}
	}
	v.log.Warn("overlay slots full, overlay ignored", "max", MaxOverlays)
	return OverlayHandle{}
}

// UpdateOverlay replaces the overlay, re-uploading its geometry.
func (v *Viewport) UpdateOverlay(h OverlayHandle, ov Overlay) bool {
	if !v.alive() {
		return false
	}
	s := v.overlays.get(h)
	if s == nil {
		return false
	}
	s.overlay = cloneOverlay(ov)
	s.revision++
	return true
}

// SetOverlayTransform moves an overlay without touching its geometry.
func (v *Viewport) SetOverlayTransform(h OverlayHandle, model math.Mat4) bool {
	if !v.alive() {
		return false
	}
	s := v.overlays.get(h)
	if s == nil {
		return false
	}
	s.overlay.Model = model
	return true
}

func (v *Viewport) SetOverlayVisible(h OverlayHandle, visible bool) bool {
	if !v.alive() {
		return false
	}
	s := v.overlays.get(h)
	if s == nil {
		return false
	}
	s.overlay.Visible = visible
	return true
}

func (v *Viewport) RemoveOverlay(h OverlayHandle) bool {
	if !v.alive() {
		return false
	}
	s := v.overlays.get(h)
	if s == nil {
		return false
	}
	s.releaseBuffers(v.device)
	s.used = false
	s.overlay = Overlay{}
	return true
}

func cloneOverlay(ov Overlay) Overlay {
	ov.Geometry = scene.Geometry{
		Vertices: append([]core.Vertex(nil), ov.Geometry.Vertices...),
		Indices:  append([]uint32(nil), ov.Geometry.Indices...),
	}
	return ov
}

// lineBatch collects line segments for one frame and draws them in a
// single blended draw during the overlay pass.
type lineBatch struct {
	geom   scene.Geometry
	vb, ib rhi.Buffer
}

func (b *lineBatch) reset() {
	b.geom.Vertices = b.geom.Vertices[:0]
	b.geom.Indices = b.geom.Indices[:0]
}

func (b *lineBatch) release(d rhi.Device) {
	if b.vb != 0 {
		d.DestroyBuffer(b.vb)
	}
	if b.ib != 0 {
		d.DestroyBuffer(b.ib)
	}
	b.vb, b.ib = 0, 0
	b.reset()
}

func (b *lineBatch) flush(v *Viewport) {
	defer b.reset()
	if len(b.geom.Indices) < 2 {
		return
	}
	v.upload = core.AppendVertices(v.upload[:0], b.geom.Vertices)
	if !v.storeRaw(&b.vb, rhi.VertexBuffer, v.upload) {
		return
	}
	v.upload = core.AppendIndices(v.upload[:0], b.geom.Indices)
	if !v.storeRaw(&b.ib, rhi.IndexBuffer, v.upload) {
		return
	}
	v.issue(rhi.DrawCall{
		VertexBuffer: b.vb,
		IndexBuffer:  b.ib,
		IndexCount:   len(b.geom.Indices),
		VertexCount:  len(b.geom.Vertices),
		Topology:     rhi.Lines,
		Model:        math.Mat4Identity(),
		Material:     rhi.Material{BaseColor: core.ColorWhite, Opacity: 1},
		State:        rhi.PipelineState{DepthTest: true, Blend: rhi.BlendAlpha},
		Shading:      rhi.ShadeUnlit,
	}, nil)
}

// DrawLines queues world-space line segments (index pairs) for the next
// overlay pass. The queue is emptied after every frame.
func (v *Viewport) DrawLines(g scene.Geometry, model math.Mat4) {
	if !v.alive() || len(g.Indices) < 2 {
		return
	}
	v.lines.geom.Append(g.Transform(model))
}

func (v *Viewport) storeRaw(b *rhi.Buffer, kind rhi.BufferKind, data []byte) bool {
	return v.store(b, kind, data, scene.MeshHandle{})
}

// SetSelected replaces the selection. Selected meshes get a highlighted
// bounding box when the selection overlay is on.
func (v *Viewport) SetSelected(ids ...uint32) {
	if !v.alive() {
		return
	}
	clear(v.selected)
	for _, id := range ids {
		if id != 0 {
			v.selected[id] = struct{}{}
		}
	}
}

func (v *Viewport) IsSelected(id uint32) bool {
	if !v.alive() || id == 0 {
		return false
	}
	_, ok := v.selected[id]
	return ok
}

func (v *Viewport) Selected() []uint32 {
	if !v.alive() {
		return nil
	}
	out := make([]uint32, 0, len(v.selected))
	for id := range v.selected {
		out = append(out, id)
	}
	return out
}
