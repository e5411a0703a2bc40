package viewport

import (
	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/rhi"
	"viewport-engine/scene"
)

// gpuMesh mirrors one scene slot on the device. Buffers are refreshed on
// the next render after the mesh revision changes.
type gpuMesh struct {
	handle   scene.MeshHandle
	vb, ib   rhi.Buffer
	revision uint64
	valid    bool
}

func (g *gpuMesh) release(d rhi.Device) {
	if g.vb != 0 {
		d.DestroyBuffer(g.vb)
	}
	if g.ib != 0 {
		d.DestroyBuffer(g.ib)
	}
	*g = gpuMesh{}
}

// AddMesh copies the geometry into the scene. It returns a zero handle
// and logs an error when the indices are invalid.
func (v *Viewport) AddMesh(vertices []core.Vertex, indices []uint32, objectID uint32) scene.MeshHandle {
	if !v.alive() {
		return scene.MeshHandle{}
	}
	h, err := v.Scene.AddMesh(vertices, indices, objectID)
	if err != nil {
		v.log.Error("failed to add mesh", "object", objectID, "err", err)
	}
	return h
}

// AddGeometry is AddMesh for a generated primitive.
func (v *Viewport) AddGeometry(g scene.Geometry, objectID uint32) scene.MeshHandle {
	return v.AddMesh(g.Vertices, g.Indices, objectID)
}

func (v *Viewport) AddMeshEx(raw []byte, vertexCount int, format *core.VertexFormat, indices []uint32, objectID uint32) scene.MeshHandle {
	if !v.alive() {
		return scene.MeshHandle{}
	}
	h, err := v.Scene.AddMeshEx(raw, vertexCount, format, indices, objectID)
	if err != nil {
		v.log.Error("failed to add mesh", "object", objectID, "err", err)
	}
	return h
}

func (v *Viewport) AddInstanced(vertices []core.Vertex, indices []uint32, transforms []math.Mat4, objectID uint32) scene.MeshHandle {
	if !v.alive() {
		return scene.MeshHandle{}
	}
	h, err := v.Scene.AddInstanced(vertices, indices, transforms, objectID)
	if err != nil {
		v.log.Error("failed to add instanced mesh", "object", objectID, "err", err)
	}
	return h
}

// RemoveMesh frees the mesh and its device buffers.
func (v *Viewport) RemoveMesh(h scene.MeshHandle) bool {
	if !v.alive() || !v.Scene.RemoveMesh(h) {
		return false
	}
	if i := h.Index(); i < len(v.gpu) && v.gpu[i].handle == h {
		v.gpu[i].release(v.device)
	}
	return true
}

// ClearMeshes removes every mesh and light.
func (v *Viewport) ClearMeshes() {
	if !v.alive() {
		return
	}
	for i := range v.gpu {
		v.gpu[i].release(v.device)
	}
	v.Scene.Clear()
}

// UpdateGeometry replaces a mesh's data in place; device buffers follow
// on the next render.
func (v *Viewport) UpdateGeometry(h scene.MeshHandle, vertices []core.Vertex, indices []uint32) bool {
	if !v.alive() {
		return false
	}
	if err := v.Scene.UpdateGeometry(h, vertices, indices); err != nil {
		v.log.Warn("geometry update ignored", "mesh", h.String(), "err", err)
		return false
	}
	return true
}

func (v *Viewport) UpdateGeometryEx(h scene.MeshHandle, raw []byte, vertexCount int, indices []uint32) bool {
	if !v.alive() {
		return false
	}
	if err := v.Scene.UpdateGeometryEx(h, raw, vertexCount, indices); err != nil {
		v.log.Warn("geometry update ignored", "mesh", h.String(), "err", err)
		return false
	}
	return true
}

// Mesh resolves a handle for direct access to transform, material and
// flags. It returns nil for stale handles.
func (v *Viewport) Mesh(h scene.MeshHandle) *scene.Mesh {
	if !v.alive() {
		return nil
	}
	return v.Scene.Mesh(h)
}

func (v *Viewport) SetPosition(h scene.MeshHandle, p math.Vec3) {
	if m := v.Mesh(h); m != nil {
		m.SetPosition(p)
	}
}

func (v *Viewport) SetRotation(h scene.MeshHandle, r math.Vec3) {
	if m := v.Mesh(h); m != nil {
		m.SetRotation(r)
	}
}

func (v *Viewport) SetScale(h scene.MeshHandle, s math.Vec3) {
	if m := v.Mesh(h); m != nil {
		m.SetScale(s)
	}
}

func (v *Viewport) SetTransform(h scene.MeshHandle, local math.Mat4) {
	if m := v.Mesh(h); m != nil {
		m.SetTransform(local)
	}
}

func (v *Viewport) Position(h scene.MeshHandle) math.Vec3 {
	if m := v.Mesh(h); m != nil {
		return m.Position()
	}
	return math.Vec3{}
}

func (v *Viewport) Rotation(h scene.MeshHandle) math.Vec3 {
	if m := v.Mesh(h); m != nil {
		return m.Rotation()
	}
	return math.Vec3{}
}

func (v *Viewport) Scale(h scene.MeshHandle) math.Vec3 {
	if m := v.Mesh(h); m != nil {
		return m.Scale()
	}
	return math.Vec3{}
}

func (v *Viewport) SetParent(child, parent scene.MeshHandle) bool {
	if !v.alive() {
		return false
	}
	return v.Scene.SetParent(child, parent)
}

func (v *Viewport) ClearParent(child scene.MeshHandle) bool {
	if !v.alive() {
		return false
	}
	return v.Scene.ClearParent(child)
}

func (v *Viewport) SetInstanceTransforms(h scene.MeshHandle, transforms []math.Mat4) bool {
	if !v.alive() {
		return false
	}
	return v.Scene.SetInstanceTransforms(h, transforms)
}

func (v *Viewport) SetMaterial(h scene.MeshHandle, mat scene.Material) {
	if m := v.Mesh(h); m != nil {
		m.Material = mat
	}
}

// SetOpacity also picks the blend mode: below 1 the mesh moves to the
// alpha pass unless it is additive.
func (v *Viewport) SetOpacity(h scene.MeshHandle, opacity float32) {
	m := v.Mesh(h)
	if m == nil {
		return
	}
	m.Opacity = math.Clamp(opacity, 0, 1)
	if m.Opacity < 1 && m.Blend == rhi.BlendOpaque {
		m.Blend = rhi.BlendAlpha
	}
}

func (v *Viewport) SetBlend(h scene.MeshHandle, b rhi.BlendMode) {
	if m := v.Mesh(h); m != nil {
		m.Blend = b
	}
}

func (v *Viewport) SetVisible(h scene.MeshHandle, visible bool) {
	if m := v.Mesh(h); m != nil {
		m.Visible = visible
	}
}

func (v *Viewport) SetWireframe(h scene.MeshHandle, on bool) {
	if m := v.Mesh(h); m != nil {
		m.Wireframe = on
	}
}

// FindByObjectID returns the first mesh carrying id.
func (v *Viewport) FindByObjectID(id uint32) (scene.MeshHandle, *scene.Mesh) {
	if !v.alive() || id == 0 {
		return scene.MeshHandle{}, nil
	}
	for h, m := range v.Scene.All() {
		if m.ObjectID == id {
			return h, m
		}
	}
	return scene.MeshHandle{}, nil
}

// sync uploads or refreshes the device buffers of m.
func (v *Viewport) sync(h scene.MeshHandle, m *scene.Mesh) *gpuMesh {
	i := h.Index()
	if i >= len(v.gpu) {
		v.gpu = append(v.gpu, make([]gpuMesh, i+1-len(v.gpu))...)
	}
	g := &v.gpu[i]
	if g.handle != h {
		g.release(v.device)
		g.handle = h
	}
	if g.valid && g.revision == m.Revision() {
		return g
	}

	v.upload = v.upload[:0]
	if m.Format() != nil {
		v.upload = append(v.upload, m.Raw()...)
	} else {
		v.upload = core.AppendVertices(v.upload, m.Vertices())
	}
	if !v.store(&g.vb, rhi.VertexBuffer, v.upload, h) {
		g.valid = false
		return nil
	}
	v.upload = core.AppendIndices(v.upload[:0], m.Indices())
	if !v.store(&g.ib, rhi.IndexBuffer, v.upload, h) {
		g.valid = false
		return nil
	}
	g.revision = m.Revision()
	g.valid = true
	return g
}

func (v *Viewport) store(b *rhi.Buffer, kind rhi.BufferKind, data []byte, h scene.MeshHandle) bool {
	if *b != 0 {
		if err := v.device.UpdateBuffer(*b, data); err == nil {
			return true
		}
		v.device.DestroyBuffer(*b)
		*b = 0
	}
	buf, err := v.device.CreateBuffer(kind, data)
	if err != nil {
		v.log.Error("failed to upload mesh", "mesh", h.String(), "err", err)
		return false
	}
	*b = buf
	return true
}

// AddLight takes the first free light slot. When all slots are in use it
// returns a zero handle and logs a warning.
func (v *Viewport) AddLight(l scene.Light) scene.LightHandle {
	if !v.alive() {
		return scene.LightHandle{}
	}
	return v.Scene.Lights.AddLight(l)
}

func (v *Viewport) UpdateLight(h scene.LightHandle, l scene.Light) bool {
	if !v.alive() {
		return false
	}
	return v.Scene.Lights.UpdateLight(h, l)
}

func (v *Viewport) RemoveLight(h scene.LightHandle) bool {
	if !v.alive() {
		return false
	}
	return v.Scene.Lights.RemoveLight(h)
}

func (v *Viewport) SetAmbient(c core.Color) {
	if v.alive() {
		v.Scene.Ambient = c
	}
}
