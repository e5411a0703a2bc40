package io

import (
	"bufio"
	"fmt"
	"image"
	stdio "io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"viewport-engine/core"
	"viewport-engine/math"
)

var objDefaultColor = core.Color{R: 0.8, G: 0.8, B: 0.8, A: 1}

// LoadOBJ reads a Wavefront .obj file. A referenced .mtl library and its
// diffuse maps are resolved relative to the file.
func LoadOBJ(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OBJ file: %w", err)
	}
	defer f.Close()

	m, err := ParseOBJ(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	m.Name = filepath.Base(path)
	return m, nil
}

// Material is the subset of an MTL entry the engine can draw.
type Material struct {
	Name      string
	Diffuse   core.Color // linear
	Opacity   float32
	DiffuseTx string // map_Kd path as written in the library
}

type objParser struct {
	dir string

	positions []math.Vec3
	colors    []core.Color
	normals   []math.Vec3
	uvs       []math.Vec2

	materials map[string]Material
	images    map[string]image.Image
	model     *Model
	cur       Part
	material  string
	seen      map[string]uint32
	hasNormal bool
}

// ParseOBJ reads OBJ text. dir resolves mtllib and texture paths; an
// empty dir skips material libraries. Polygons are fan triangulated and
// vertices are shared per object when position, uv and normal all match.
// Objects without normals get smooth ones.
func ParseOBJ(r stdio.Reader, dir string) (*Model, error) {
	p := &objParser{
		dir:       dir,
		materials: make(map[string]Material),
		images:    make(map[string]image.Image),
		model:     &Model{Name: "obj"},
	}
	p.begin("default")

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Fields(text)
		if err := p.directive(fields); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read OBJ: %w", err)
	}
	p.flush()
	if len(p.model.Parts) == 0 {
		return nil, fmt.Errorf("no faces in OBJ data")
	}
	return p.model, nil
}

func (p *objParser) directive(f []string) error {
	switch f[0] {
	case "v":
		v, err := parseFloats(f[1:], 3)
		if err != nil {
			return fmt.Errorf("bad position: %w", err)
		}
		p.positions = append(p.positions, math.Vec3{X: v[0], Y: v[1], Z: v[2]})
		c := core.ColorWhite
		// vertex colour extension: v x y z r g b
		if len(f) >= 7 {
			rgb, err := parseFloats(f[4:], 3)
			if err != nil {
				return fmt.Errorf("bad vertex colour: %w", err)
			}
			c = core.Color{R: core.SRGBToLinear(rgb[0]), G: core.SRGBToLinear(rgb[1]), B: core.SRGBToLinear(rgb[2]), A: 1}
		}
		p.colors = append(p.colors, c)
	case "vn":
		v, err := parseFloats(f[1:], 3)
		if err != nil {
			return fmt.Errorf("bad normal: %w", err)
		}
		p.normals = append(p.normals, math.Vec3{X: v[0], Y: v[1], Z: v[2]})
	case "vt":
		v, err := parseFloats(f[1:], 2)
		if err != nil {
			return fmt.Errorf("bad texcoord: %w", err)
		}
		p.uvs = append(p.uvs, math.Vec2{X: v[0], Y: 1 - v[1]})
	case "f":
		return p.face(f[1:])
	case "o", "g":
		name := "unnamed"
		if len(f) > 1 {
			name = f[1]
		}
		p.flush()
		p.begin(name)
	case "usemtl":
		if len(f) < 2 || f[1] == p.material {
			return nil
		}
		if len(p.cur.Geometry.Indices) > 0 {
			name := p.cur.Name
			p.flush()
			p.begin(name)
		}
		p.material = f[1]
		p.applyMaterial()
	case "mtllib":
		if p.dir == "" || len(f) < 2 {
			return nil
		}
		path := filepath.Join(p.dir, strings.Join(f[1:], " "))
		mtls, err := LoadMTL(path)
		if err != nil {
			core.Logger().Warn("material library skipped", "path", path, "err", err)
			return nil
		}
		for k, v := range mtls {
			p.materials[k] = v
		}
		p.applyMaterial()
	}
	return nil
}

func (p *objParser) begin(name string) {
	p.cur = newPart(name)
	p.cur.BaseColor = objDefaultColor
	p.seen = make(map[string]uint32)
	p.hasNormal = false
	p.applyMaterial()
}

func (p *objParser) applyMaterial() {
	mat, ok := p.materials[p.material]
	if !ok {
		return
	}
	p.cur.BaseColor = mat.Diffuse
	p.cur.Opacity = mat.Opacity
	p.cur.Image = nil
	if mat.DiffuseTx == "" {
		return
	}
	path := filepath.Join(p.dir, mat.DiffuseTx)
	img, ok := p.images[path]
	if !ok {
		var err error
		if img, err = LoadImage(path); err != nil {
			core.Logger().Warn("diffuse map skipped", "material", mat.Name, "err", err)
		}
		p.images[path] = img
	}
	p.cur.Image = img
}

func (p *objParser) flush() {
	g := &p.cur.Geometry
	if len(g.Indices) == 0 {
		return
	}
	if !p.hasNormal {
		g.SmoothNormals()
	}
	p.model.Parts = append(p.model.Parts, p.cur)
}

func (p *objParser) face(refs []string) error {
	if len(refs) < 3 {
		return fmt.Errorf("face needs 3 vertices, got %d", len(refs))
	}
	g := &p.cur.Geometry
	first, prev := uint32(0), uint32(0)
	for i, ref := range refs {
		idx, ok := p.seen[ref]
		if !ok {
			v, err := p.vertex(ref)
			if err != nil {
				return err
			}
			idx = uint32(len(g.Vertices))
			g.Vertices = append(g.Vertices, v)
			p.seen[ref] = idx
		}
		switch {
		case i == 0:
			first = idx
		case i >= 2:
			g.Indices = append(g.Indices, first, prev, idx)
		}
		prev = idx
	}
	return nil
}

// vertex resolves one "v", "v/vt", "v//vn" or "v/vt/vn" reference.
// Negative indices count back from the latest element.
func (p *objParser) vertex(ref string) (core.Vertex, error) {
	parts := strings.Split(ref, "/")
	v := core.Vertex{Normal: math.Vec3{Z: 1}, Color: core.ColorWhite}

	pi, err := objIndex(parts[0], len(p.positions))
	if err != nil {
		return v, fmt.Errorf("position %q: %w", ref, err)
	}
	v.Position = p.positions[pi]
	v.Color = p.colors[pi]

	if len(parts) > 1 && parts[1] != "" {
		ti, err := objIndex(parts[1], len(p.uvs))
		if err != nil {
			return v, fmt.Errorf("texcoord %q: %w", ref, err)
		}
		v.UV = p.uvs[ti]
	}
	if len(parts) > 2 && parts[2] != "" {
		ni, err := objIndex(parts[2], len(p.normals))
		if err != nil {
			return v, fmt.Errorf("normal %q: %w", ref, err)
		}
		v.Normal = p.normals[ni]
		p.hasNormal = true
	}
	return v, nil
}

func objIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i += n + 1
	}
	if i < 1 || i > n {
		return 0, fmt.Errorf("index %s out of range 1..%d", s, n)
	}
	return i - 1, nil
}

func parseFloats(f []string, n int) ([]float32, error) {
	if len(f) < n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(f))
	}
	out := make([]float32, n)
	for i := range n {
		v, err := strconv.ParseFloat(f[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

// LoadMTL reads a material library. Kd is taken as sRGB and stored
// linear; d and Tr set opacity.
func LoadMTL(path string) (map[string]Material, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseMTL(f)
}

func ParseMTL(r stdio.Reader) (map[string]Material, error) {
	out := make(map[string]Material)
	var cur *Material
	commit := func() {
		if cur != nil {
			out[cur.Name] = *cur
		}
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) == 0 || strings.HasPrefix(f[0], "#") {
			continue
		}
		if f[0] == "newmtl" {
			commit()
			name := ""
			if len(f) > 1 {
				name = f[1]
			}
			cur = &Material{Name: name, Diffuse: objDefaultColor, Opacity: 1}
			continue
		}
		if cur == nil {
			continue
		}
		switch f[0] {
		case "Kd":
			if v, err := parseFloats(f[1:], 3); err == nil {
				cur.Diffuse = core.Color{R: core.SRGBToLinear(v[0]), G: core.SRGBToLinear(v[1]), B: core.SRGBToLinear(v[2]), A: 1}
			}
		case "d":
			if v, err := parseFloats(f[1:], 1); err == nil {
				cur.Opacity = math.Clamp(v[0], 0, 1)
			}
		case "Tr":
			if v, err := parseFloats(f[1:], 1); err == nil {
				cur.Opacity = math.Clamp(1-v[0], 0, 1)
			}
		case "map_Kd":
			if len(f) > 1 {
				// options precede the file name
				cur.DiffuseTx = f[len(f)-1]
			}
		}
	}
	commit()
	return out, sc.Err()
}

// WriteOBJ writes every part with its transform baked in, one object per
// part. Texture coordinates are flipped back to OBJ's bottom-left origin.
func WriteOBJ(w stdio.Writer, m *Model) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %s\n", m.Name)
	base := 1
	for _, part := range m.Parts {
		g := part.Geometry.Transform(part.Transform)
		fmt.Fprintf(bw, "o %s\n", part.Name)
		for _, v := range g.Vertices {
			fmt.Fprintf(bw, "v %g %g %g\n", v.Position.X, v.Position.Y, v.Position.Z)
		}
		for _, v := range g.Vertices {
			fmt.Fprintf(bw, "vt %g %g\n", v.UV.X, 1-v.UV.Y)
		}
		for _, v := range g.Vertices {
			fmt.Fprintf(bw, "vn %g %g %g\n", v.Normal.X, v.Normal.Y, v.Normal.Z)
		}
		for i := 0; i+2 < len(g.Indices); i += 3 {
			a, b, c := int(g.Indices[i])+base, int(g.Indices[i+1])+base, int(g.Indices[i+2])+base
			fmt.Fprintf(bw, "f %d/%d/%d %d/%d/%d %d/%d/%d\n", a, a, a, b, b, b, c, c, c)
		}
		base += len(g.Vertices)
	}
	return bw.Flush()
}
