package renderer

import (
	"github.com/Carmen-Shannon/oxy-ref/engine/decal"
	"github.com/Carmen-Shannon/oxy-ref/engine/scene"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/Carmen-Shannon/oxy-ref/engine/triapi"
	"github.com/go-gl/mathgl/mgl32"
)

// Topology is the list topology a batch is expanded into for drawing.
type Topology int

const (
	TopologyTriangles Topology = iota
	TopologyLines
	TopologyPoints
)

// expandPrimitive converts an immediate-mode primitive of n vertices into an index list of a
// plain topology. Trailing vertices that do not complete a primitive are dropped.
//
// Parameters:
//   - prim: the batch primitive
//   - n: the number of emitted vertices
//
// Returns:
//   - Topology: the list topology
//   - []uint32: indices into the batch vertices
func expandPrimitive(prim triapi.Primitive, n int) (Topology, []uint32) {
	var idx []uint32
	switch prim {
	case triapi.Triangles:
		for i := 0; i+2 < n; i += 3 {
			idx = append(idx, uint32(i), uint32(i+1), uint32(i+2))
		}
	case triapi.TriangleFan, triapi.Polygon:
		for i := 1; i+1 < n; i++ {
			idx = append(idx, 0, uint32(i), uint32(i+1))
		}
	case triapi.Quads:
		for i := 0; i+3 < n; i += 4 {
			idx = append(idx, uint32(i), uint32(i+1), uint32(i+2), uint32(i), uint32(i+2), uint32(i+3))
		}
	case triapi.TriangleStrip:
		for i := 0; i+2 < n; i++ {
			// Odd triangles swap their first two vertices to keep the winding.
			if i%2 == 0 {
				idx = append(idx, uint32(i), uint32(i+1), uint32(i+2))
			} else {
				idx = append(idx, uint32(i+1), uint32(i), uint32(i+2))
			}
		}
	case triapi.QuadStrip:
		for i := 0; i+3 < n; i += 2 {
			idx = append(idx, uint32(i), uint32(i+1), uint32(i+3), uint32(i), uint32(i+3), uint32(i+2))
		}
	case triapi.Lines:
		for i := 0; i+1 < n; i += 2 {
			idx = append(idx, uint32(i), uint32(i+1))
		}
		return TopologyLines, idx
	case triapi.Points:
		for i := 0; i < n; i++ {
			idx = append(idx, uint32(i))
		}
		return TopologyPoints, idx
	}
	return TopologyTriangles, idx
}

// geometryBatch is world geometry ready for upload: one texture, one blend mode, one topology.
type geometryBatch struct {
	Topology Topology
	Blend    BlendMode
	Texture  texture.Handle
	Vertices []triapi.Vertex
	Indices  []uint32
}

var white = [4]uint8{255, 255, 255, 255}

// boxEdges indexes the corners produced by boxCorners into the 12 edges of a box.
var boxEdges = [24]uint32{
	0, 1, 1, 3, 3, 2, 2, 0,
	4, 5, 5, 7, 7, 6, 6, 4,
	0, 4, 1, 5, 2, 6, 3, 7,
}

// sceneGeometry flattens a prepared scene pass into world space batches. Brush surfaces are
// drawn as textured fans, every other model as its bounding box, decals as textured quads and
// particles as points.
//
// Parameters:
//   - list: the prepared pass
//
// Returns:
//   - []geometryBatch: the batches in draw order, solid before translucent
func sceneGeometry(list scene.DrawList) []geometryBatch {
	var out []geometryBatch
	var boxes geometryBatch
	boxes.Topology = TopologyLines

	add := func(items []scene.DrawItem, blend BlendMode) {
		for _, item := range items {
			if item.Model == nil {
				continue
			}
			if item.Model.Brush != nil {
				out = append(out, brushBatches(item, blend)...)
				continue
			}
			base := uint32(len(boxes.Vertices))
			for _, p := range boxCorners(item.Model.Mins, item.Model.Maxs) {
				boxes.Vertices = append(boxes.Vertices, triapi.Vertex{Pos: transformPoint(item.Transform, p), Color: white})
			}
			for _, e := range boxEdges {
				boxes.Indices = append(boxes.Indices, base+e)
			}
		}
	}
	add(list.Statics, BlendNone)
	add(list.Solid, BlendNone)
	add(list.Trans, BlendAlpha)
	if len(boxes.Indices) > 0 {
		out = append(out, boxes)
	}

	for _, d := range list.Decals {
		out = append(out, decalBatch(d))
	}

	if len(list.Particles) > 0 {
		pts := geometryBatch{Topology: TopologyPoints, Blend: BlendAdditive}
		for i, p := range list.Particles {
			pts.Vertices = append(pts.Vertices, triapi.Vertex{Pos: p.Origin, Color: [4]uint8{p.Color, p.Color, p.Color, 255}})
			pts.Indices = append(pts.Indices, uint32(i))
		}
		out = append(out, pts)
	}
	return out
}

// decalSize is the half extent of a decal quad at scale 1.
const decalSize = 4

// decalBatch emits a decal as a blended quad facing +Z around its position.
func decalBatch(d decal.Decal) geometryBatch {
	s := d.Scale
	if s <= 0 {
		s = 1
	}
	h := decalSize * s
	p := d.Position
	return geometryBatch{
		Topology: TopologyTriangles,
		Blend:    BlendAlpha,
		Texture:  d.Texture,
		Vertices: []triapi.Vertex{
			{Pos: p.Add(mgl32.Vec3{-h, -h, 0}), UV: mgl32.Vec2{0, 1}, Color: white},
			{Pos: p.Add(mgl32.Vec3{h, -h, 0}), UV: mgl32.Vec2{1, 1}, Color: white},
			{Pos: p.Add(mgl32.Vec3{h, h, 0}), UV: mgl32.Vec2{1, 0}, Color: white},
			{Pos: p.Add(mgl32.Vec3{-h, h, 0}), UV: mgl32.Vec2{0, 0}, Color: white},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

// brushBatches emits one fan triangulated batch per brush texture used by the item.
func brushBatches(item scene.DrawItem, blend BlendMode) []geometryBatch {
	b := item.Model.Brush
	byTex := make(map[int]*geometryBatch)
	var order []int
	for _, surf := range b.Surfaces {
		if len(surf.Verts) < 3 {
			continue
		}
		gb, ok := byTex[surf.Texture]
		if !ok {
			gb = &geometryBatch{Topology: TopologyTriangles, Blend: blend}
			if surf.Texture >= 0 && surf.Texture < len(b.Textures) && b.Textures[surf.Texture] != nil {
				gb.Texture = b.Textures[surf.Texture].Texture
			}
			byTex[surf.Texture] = gb
			order = append(order, surf.Texture)
		}
		base := uint32(len(gb.Vertices))
		for _, v := range surf.Verts {
			gb.Vertices = append(gb.Vertices, triapi.Vertex{Pos: transformPoint(item.Transform, v), Color: white})
		}
		_, fan := expandPrimitive(triapi.TriangleFan, len(surf.Verts))
		for _, i := range fan {
			gb.Indices = append(gb.Indices, base+i)
		}
	}
	out := make([]geometryBatch, 0, len(order))
	for _, t := range order {
		out = append(out, *byTex[t])
	}
	return out
}

func boxCorners(mins, maxs mgl32.Vec3) [8]mgl32.Vec3 {
	var c [8]mgl32.Vec3
	for i := range c {
		c[i] = mins
		if i&1 != 0 {
			c[i][0] = maxs[0]
		}
		if i&2 != 0 {
			c[i][1] = maxs[1]
		}
		if i&4 != 0 {
			c[i][2] = maxs[2]
		}
	}
	return c
}

// transformPoint applies m to p. A zero matrix is treated as identity.
func transformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	if m == (mgl32.Mat4{}) {
		return p
	}
	return m.Mul4x1(p.Vec4(1)).Vec3()
}
