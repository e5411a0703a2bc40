package editor

import (
	"viewport-engine/viewport"
)

// pickObject resolves a click to an application object. The ID buffer of
// the last frame answers first; when a handle or overlay covers the pixel
// a CPU raycast through it decides. Both miss before the first frame.
func pickObject(v *viewport.Viewport, x, y float32) (uint32, bool) {
	px, py := int(x), int(y)
	if r := v.Pick(px, py); r.Hit && !viewport.IsReservedID(r.ObjectID) {
		return r.ObjectID, true
	}
	hit := v.RaycastPixel(px, py)
	if !hit.Hit || viewport.IsReservedID(hit.ObjectID) {
		return 0, false
	}
	return hit.ObjectID, true
}
