package scene

import (
	"viewport-engine/core"
	"viewport-engine/math"
	"viewport-engine/spatial"
)

// Line geometry uses index pairs and is drawn with rhi.Lines, so it is
// not accepted by AddMesh.

var (
	gridGray  = core.Color{R: 0.35, G: 0.35, B: 0.35, A: 1}
	gridXAxis = core.Color{R: 0.8, G: 0.15, B: 0.15, A: 1}
	gridZAxis = core.Color{R: 0.15, G: 0.35, B: 0.9, A: 1}
)

func (g *Geometry) addLine(a, b math.Vec3, c core.Color) {
	base := uint32(len(g.Vertices))
	g.Vertices = append(g.Vertices,
		core.Vertex{Position: a, Normal: math.Vec3Up, Color: c},
		core.Vertex{Position: b, Normal: math.Vec3Up, Color: c},
	)
	g.Indices = append(g.Indices, base, base+1)
}

// Grid spans -size/2..size/2 in XZ. The line along X is red and the line
// along Z blue when divisions is even.
func Grid(size float32, divisions int) Geometry {
	divisions = max(divisions, 1)
	half := size / 2
	step := size / float32(divisions)
	var g Geometry
	for i := 0; i <= divisions; i++ {
		x := -half + float32(i)*step
		c := gridGray
		if divisions%2 == 0 && i == divisions/2 {
			c = gridZAxis
		}
		g.addLine(math.Vec3{X: x, Z: -half}, math.Vec3{X: x, Z: half}, c)
	}
	for i := 0; i <= divisions; i++ {
		z := -half + float32(i)*step
		c := gridGray
		if divisions%2 == 0 && i == divisions/2 {
			c = gridXAxis
		}
		g.addLine(math.Vec3{X: -half, Z: z}, math.Vec3{X: half, Z: z}, c)
	}
	return g
}

// boxEdges indexes spatial.AABB.Corners.
var boxEdges = [12][2]int{
	{0, 1}, {1, 3}, {3, 2}, {2, 0},
	{4, 5}, {5, 7}, {7, 6}, {6, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// BoxLines outlines box with its 12 edges.
func BoxLines(box spatial.AABB, c core.Color) Geometry {
	var g Geometry
	AppendBoxLines(&g, box, c)
	return g
}

func AppendBoxLines(g *Geometry, box spatial.AABB, c core.Color) {
	if !box.IsValid() {
		return
	}
	corners := box.Corners()
	for _, e := range boxEdges {
		g.addLine(corners[e[0]], corners[e[1]], c)
	}
}

// AppendLine adds one segment to line geometry.
func AppendLine(g *Geometry, a, b math.Vec3, c core.Color) {
	g.addLine(a, b, c)
}
