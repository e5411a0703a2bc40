// Package harness holds what the cmd/ hosts share: loading a model into
// a viewport and translating key names into editor input events.
package harness

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	vio "viewport-engine/io"
	"viewport-engine/viewport"
)

var ErrUnsupported = errors.New("unsupported model format")

// LoadModel picks the loader from the file extension.
func LoadModel(path string) (*vio.Model, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return vio.LoadOBJ(path)
	case ".gltf", ".glb":
		return vio.LoadGLTF(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
}

// Populate fills v with the model at path, or the reference scene when
// path is empty, frames the camera on it and makes that the home view.
// It returns the triangle count.
func Populate(v *viewport.Viewport, path string) (int, error) {
	if path == "" {
		viewport.BuildReferenceScene(v)
		n := 0
		for m := range v.Snapshot().Meshes() {
			n += m.TriangleCount()
		}
		v.Camera.SetHome()
		return n, nil
	}

	var tris int
	if strings.EqualFold(filepath.Ext(path), ".vmesh") {
		f, err := vio.LoadVMesh(path)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		if f.AddTo(v).IsNil() {
			return 0, fmt.Errorf("failed to upload %s", path)
		}
		tris = int(f.Header.IndexCount) / 3
	} else {
		m, err := LoadModel(path)
		if err != nil {
			return 0, err
		}
		if len(m.AddTo(v, 1)) == 0 {
			return 0, fmt.Errorf("%s has no drawable parts", path)
		}
		tris = m.TriangleCount()
	}
	v.Camera.Frame(v.SceneAABB())
	v.Camera.SetHome()
	return tris, nil
}
