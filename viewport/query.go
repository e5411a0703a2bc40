package viewport

import (
	"viewport-engine/spatial"
)

// Pick reads the ID and depth buffers of the last frame at pixel (x, y),
// y growing downward. It misses before the first render, after a resize,
// outside the framebuffer and on background pixels.
func (v *Viewport) Pick(x, y int) spatial.PickResult {
	if !v.alive() || !v.rendered {
		return spatial.PickResult{}
	}
	if x < 0 || y < 0 || x >= v.width || y >= v.height {
		return spatial.PickResult{}
	}
	id, ok := v.device.ReadID(v.fb, x, y)
	if !ok || id == 0 {
		return spatial.PickResult{}
	}
	depth, _ := v.device.ReadDepth(v.fb, x, y)
	return spatial.PickResult{Hit: true, ObjectID: id, Depth: depth}
}

// Ray returns the world-space ray through the centre of pixel (x, y).
func (v *Viewport) Ray(x, y int) (spatial.Ray, bool) {
	if !v.alive() {
		return spatial.Ray{}, false
	}
	return spatial.ScreenToRay(float32(x)+0.5, float32(y)+0.5, v.width, v.height, v.Camera.View(), v.Camera.Projection())
}

// RaycastPixel casts the pixel's ray against scene geometry on the CPU.
// For pickable meshes it agrees with Pick on the frame just rendered.
func (v *Viewport) RaycastPixel(x, y int) spatial.RayHit {
	r, ok := v.Ray(x, y)
	if !ok {
		return spatial.RayHit{}
	}
	return v.Raycast(r)
}

// Raycast finds the closest pickable surface along r. Like Pick it misses
// until a frame has been rendered at the current size.
func (v *Viewport) Raycast(r spatial.Ray) spatial.RayHit {
	if !v.alive() || !v.rendered {
		return spatial.RayHit{}
	}
	v.Scene.ResolveTransforms()
	v.views = v.Scene.Views(v.views[:0])
	return spatial.Raycast(spatial.NewSnapshot(v.views, v.frame, nil), r)
}

// SceneAABB is the world bounds of all visible meshes.
func (v *Viewport) SceneAABB() spatial.AABB {
	if !v.alive() {
		return spatial.EmptyAABB()
	}
	v.Scene.ResolveTransforms()
	return v.Scene.Bounds()
}

// VisibleMeshCount is the number of meshes the last frame drew after
// culling.
func (v *Viewport) VisibleMeshCount() int {
	if v == nil {
		return 0
	}
	return v.stats.VisibleMeshes
}

// Snapshot returns borrowed views of every visible mesh with resolved
// world transforms. The views alias engine storage: they stay valid until
// the next Render, Resize, geometry update or Destroy, and Valid reports
// whether the viewport has moved to another frame since.
func (v *Viewport) Snapshot() spatial.Snapshot {
	if !v.alive() {
		return spatial.Snapshot{}
	}
	v.Scene.ResolveTransforms()
	views := v.Scene.Views(nil)
	return spatial.NewSnapshot(views, v.frame, v.currentFrame)
}

func (v *Viewport) currentFrame() uint64 { return v.frame }

// ReadColor returns the post-processed RGBA8 sRGB image of the last frame,
// top row first. The slice is reused by the next Render.
func (v *Viewport) ReadColor() (pixels []byte, width, height int) {
	if !v.alive() || !v.rendered {
		return nil, 0, 0
	}
	return v.color, v.width, v.height
}
