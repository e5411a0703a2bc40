package io

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/spatial"
)

// LoadGLTF reads a .gltf or .glb file. Every triangle primitive becomes
// one part with the world transform of the node that references it.
// Base colour factors and textures are kept; the rest of the PBR model
// is dropped.
func LoadGLTF(path string) (*Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open glTF: %w", err)
	}
	m, err := FromGLTF(doc, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	m.Name = filepath.Base(path)
	return m, nil
}

// FromGLTF converts a parsed document. dir resolves external image URIs.
func FromGLTF(doc *gltf.Document, dir string) (*Model, error) {
	log := core.Logger().With("loader", "gltf")

	images := make([]image.Image, len(doc.Textures))
	for i, t := range doc.Textures {
		if t.Source == nil || *t.Source >= len(doc.Images) {
			continue
		}
		img, err := gltfImage(doc, doc.Images[*t.Source], dir)
		if err != nil {
			log.Warn("texture skipped", "texture", i, "err", err)
			continue
		}
		images[i] = img
	}

	meshes := make([][]Part, len(doc.Meshes))
	for mi, gm := range doc.Meshes {
		for pi, prim := range gm.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
				continue
			}
			part, err := gltfPrimitive(doc, prim)
			if err != nil {
				log.Warn("primitive skipped", "mesh", mi, "primitive", pi, "err", err)
				continue
			}
			part.Name = fmt.Sprintf("%s.%d", meshName(gm, mi), pi)
			if prim.Material != nil && *prim.Material < len(doc.Materials) {
				applyGLTFMaterial(&part, doc.Materials[*prim.Material], images)
			}
			meshes[mi] = append(meshes[mi], part)
		}
	}

	model := &Model{Name: "gltf"}
	var walk func(n int, parent math.Mat4, depth int)
	walk = func(n int, parent math.Mat4, depth int) {
		if n < 0 || n >= len(doc.Nodes) || depth > len(doc.Nodes) {
			return
		}
		node := doc.Nodes[n]
		world := parent.Mul(nodeMatrix(node))
		if node.Mesh != nil && *node.Mesh < len(meshes) {
			for _, p := range meshes[*node.Mesh] {
				p.Transform = world
				model.Parts = append(model.Parts, p)
			}
		}
		for _, c := range node.Children {
			walk(c, world, depth+1)
		}
	}
	for _, root := range sceneRoots(doc) {
		walk(root, math.Mat4Identity(), 0)
	}

	// Documents without nodes still carry drawable meshes.
	if len(doc.Nodes) == 0 {
		for _, parts := range meshes {
			model.Parts = append(model.Parts, parts...)
		}
	}
	if len(model.Parts) == 0 {
		return nil, fmt.Errorf("no triangle primitives in document")
	}
	return model, nil
}

func meshName(m *gltf.Mesh, i int) string {
	if m.Name != "" {
		return m.Name
	}
	return fmt.Sprintf("mesh%d", i)
}

func sceneRoots(doc *gltf.Document) []int {
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		return doc.Scenes[*doc.Scene].Nodes
	}
	child := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(child) {
				child[c] = true
			}
		}
	}
	var roots []int
	for i, isChild := range child {
		if !isChild {
			roots = append(roots, i)
		}
	}
	return roots
}

var identity16 = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// nodeMatrix is the node's local matrix: its explicit matrix when set,
// otherwise T·R·S from the quaternion form.
func nodeMatrix(n *gltf.Node) math.Mat4 {
	if m := n.MatrixOrDefault(); m != identity16 {
		var mg mgl32.Mat4
		for i, v := range m {
			mg[i] = float32(v)
		}
		return spatial.FromMgl(mg)
	}
	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()
	q := mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}.Normalize()
	trs := mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul4(q.Mat4()).
		Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
	return spatial.FromMgl(trs)
}

func gltfPrimitive(doc *gltf.Document, prim *gltf.Primitive) (Part, error) {
	part := newPart("")
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok || posIdx >= len(doc.Accessors) {
		return part, fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return part, fmt.Errorf("failed to read positions: %w", err)
	}

	var normals [][3]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok && idx < len(doc.Accessors) {
		if normals, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil); err != nil {
			return part, fmt.Errorf("failed to read normals: %w", err)
		}
	}
	var uvs [][2]float32
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok && idx < len(doc.Accessors) {
		if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil); err != nil {
			return part, fmt.Errorf("failed to read texcoords: %w", err)
		}
	}
	var colors [][4]uint8
	if idx, ok := prim.Attributes[gltf.COLOR_0]; ok && idx < len(doc.Accessors) {
		if colors, err = modeler.ReadColor(doc, doc.Accessors[idx], nil); err != nil {
			return part, fmt.Errorf("failed to read colours: %w", err)
		}
	}

	g := &part.Geometry
	g.Vertices = make([]core.Vertex, len(positions))
	for i, p := range positions {
		v := core.Vertex{
			Position: math.Vec3{X: p[0], Y: p[1], Z: p[2]},
			Normal:   math.Vec3{Z: 1},
			Color:    core.ColorWhite,
		}
		if i < len(normals) {
			v.Normal = math.Vec3{X: normals[i][0], Y: normals[i][1], Z: normals[i][2]}
		}
		if i < len(uvs) {
			v.UV = math.Vec2{X: uvs[i][0], Y: uvs[i][1]}
		}
		if i < len(colors) {
			c := colors[i]
			v.Color = core.Color{R: float32(c[0]) / 255, G: float32(c[1]) / 255, B: float32(c[2]) / 255, A: float32(c[3]) / 255}
		}
		g.Vertices[i] = v
	}

	if prim.Indices != nil && *prim.Indices < len(doc.Accessors) {
		if g.Indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
			return part, fmt.Errorf("failed to read indices: %w", err)
		}
	} else {
		g.Indices = make([]uint32, len(positions)/3*3)
		for i := range g.Indices {
			g.Indices[i] = uint32(i)
		}
	}
	if len(g.Indices)%3 != 0 {
		return part, fmt.Errorf("index count %d is not a multiple of 3", len(g.Indices))
	}
	for _, idx := range g.Indices {
		if int(idx) >= len(g.Vertices) {
			return part, fmt.Errorf("index %d out of range", idx)
		}
	}
	if len(normals) == 0 {
		g.SmoothNormals()
	}
	return part, nil
}

// applyGLTFMaterial copies the base colour. glTF factors are already
// linear.
func applyGLTFMaterial(p *Part, m *gltf.Material, images []image.Image) {
	pbr := m.PBRMetallicRoughness
	if pbr == nil {
		return
	}
	f := pbr.BaseColorFactorOrDefault()
	p.BaseColor = core.Color{R: float32(f[0]), G: float32(f[1]), B: float32(f[2]), A: 1}
	if m.AlphaMode == gltf.AlphaBlend {
		p.Opacity = float32(f[3])
	}
	if t := pbr.BaseColorTexture; t != nil && t.Index < len(images) {
		p.Image = images[t.Index]
	}
}

func gltfImage(doc *gltf.Document, img *gltf.Image, dir string) (image.Image, error) {
	switch {
	case img.BufferView != nil:
		if *img.BufferView >= len(doc.BufferViews) {
			return nil, fmt.Errorf("buffer view %d out of range", *img.BufferView)
		}
		raw, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
		if err != nil {
			return nil, fmt.Errorf("failed to read image buffer view: %w", err)
		}
		return DecodeImage(raw)
	case img.IsEmbeddedResource():
		raw, err := img.MarshalData()
		if err != nil {
			return nil, fmt.Errorf("failed to decode data URI: %w", err)
		}
		return DecodeImage(raw)
	case img.URI != "":
		return LoadImage(filepath.Join(dir, img.URI))
	}
	return nil, fmt.Errorf("image has no source")
}
