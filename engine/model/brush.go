package model

import (
	"math"
	"strings"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// SubdivideSize is the edge length warp surfaces are cut down to.
const SubdivideSize = 64

// Leaf contents.
const (
	ContentsEmpty = -1
	ContentsSolid = -2
	ContentsWater = -3
	ContentsSlime = -4
	ContentsLava  = -5
	ContentsSky   = -6
)

// SurfaceFlags classify brush surfaces for the draw passes.
type SurfaceFlags int

const (
	SurfPlaneBack SurfaceFlags = 1 << iota
	SurfDrawSky
	SurfDrawTurb
	SurfDrawTiled
	SurfUnderwater
)

// BrushTexture is one world texture. Pixels are supplied by the host and uploaded at load.
type BrushTexture struct {
	Name    string
	Width   int
	Height  int
	Pixels  *common.RGBData
	Texture texture.Handle
}

// Sky reports whether surfaces using this texture draw the sky.
func (t *BrushTexture) Sky() bool {
	return strings.HasPrefix(strings.ToLower(t.Name), "sky")
}

// Warp reports whether surfaces using this texture are turbulent liquids.
func (t *BrushTexture) Warp() bool {
	return strings.HasPrefix(t.Name, "*") || strings.HasPrefix(t.Name, "!")
}

// Poly is one convex polygon produced by SubdivideSurface.
type Poly struct {
	Verts []mgl32.Vec3
}

// Surface is one brush face.
type Surface struct {
	Texture int
	Flags   SurfaceFlags
	Verts   []mgl32.Vec3

	// Polys holds the subdivided polygons of warp surfaces.
	Polys []Poly
}

// Node is an inner node of the world tree. A child below zero addresses leaf -(child+1).
type Node struct {
	Plane    common.Plane
	Children [2]int
	Mins     mgl32.Vec3
	Maxs     mgl32.Vec3
}

// Leaf is a convex region of the world that entities register efrags in.
type Leaf struct {
	Contents int
	Mins     mgl32.Vec3
	Maxs     mgl32.Vec3
	// Ambient is the ambient light level of the leaf.
	Ambient common.ColorVec
	// Surfaces indexes the surfaces visible from this leaf.
	Surfaces []int
}

// Brush is the host-decoded data of a brush (world or inline) model.
type Brush struct {
	Textures []*BrushTexture
	Surfaces []*Surface
	Nodes    []Node
	Leafs    []Leaf
}

// PointInLeaf returns the index of the leaf containing p, or -1 when the brush has no leaves.
// Brushes without a node tree are searched by leaf bounds.
//
// Parameters:
//   - p: the point in model space
//
// Returns:
//   - int: the leaf index, or -1
func (b *Brush) PointInLeaf(p mgl32.Vec3) int {
	if b == nil || len(b.Leafs) == 0 {
		return -1
	}
	if len(b.Nodes) == 0 {
		for i := range b.Leafs {
			if common.PointInBounds(p, b.Leafs[i].Mins, b.Leafs[i].Maxs) {
				return i
			}
		}
		return -1
	}
	n := 0
	for guard := 0; guard <= len(b.Nodes); guard++ {
		node := &b.Nodes[n]
		pl := node.Plane
		d := pl.Normal[0]*p[0] + pl.Normal[1]*p[1] + pl.Normal[2]*p[2] - pl.Distance
		child := node.Children[0]
		if d < 0 {
			child = node.Children[1]
		}
		if child < 0 {
			leaf := -(child + 1)
			if leaf >= len(b.Leafs) {
				return -1
			}
			return leaf
		}
		if child >= len(b.Nodes) {
			return -1
		}
		n = child
	}
	return -1
}

// SubdivideSurface cuts a warp surface into polygons no larger than SubdivideSize on
// any axis, replacing surf.Polys.
//
// Parameters:
//   - surf: the surface to subdivide
func SubdivideSurface(surf *Surface) {
	surf.Polys = surf.Polys[:0]
	if len(surf.Verts) < 3 {
		return
	}
	surf.Polys = subdividePolygon(surf.Polys, surf.Verts)
}

func subdividePolygon(out []Poly, verts []mgl32.Vec3) []Poly {
	mins, maxs := boundPoly(verts)
	for axis := 0; axis < 3; axis++ {
		m := (mins[axis] + maxs[axis]) * 0.5
		m = SubdivideSize * float32(math.Floor(float64(m/SubdivideSize)+0.5))
		if maxs[axis]-m < 8 || m-mins[axis] < 8 {
			continue
		}

		n := len(verts)
		dist := make([]float32, n+1)
		for j, v := range verts {
			dist[j] = v[axis] - m
		}
		dist[n] = dist[0]

		var front, back []mgl32.Vec3
		for j := 0; j < n; j++ {
			v := verts[j]
			if dist[j] >= 0 {
				front = append(front, v)
			}
			if dist[j] <= 0 {
				back = append(back, v)
			}
			if dist[j] == 0 || dist[j+1] == 0 {
				continue
			}
			if (dist[j] > 0) != (dist[j+1] > 0) {
				next := verts[(j+1)%n]
				frac := dist[j] / (dist[j] - dist[j+1])
				mid := v.Add(next.Sub(v).Mul(frac))
				front = append(front, mid)
				back = append(back, mid)
			}
		}
		out = subdividePolygon(out, front)
		return subdividePolygon(out, back)
	}
	return append(out, Poly{Verts: append([]mgl32.Vec3(nil), verts...)})
}

func boundPoly(verts []mgl32.Vec3) (mins, maxs mgl32.Vec3) {
	mins = mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	maxs = mgl32.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for _, v := range verts {
		for i := 0; i < 3; i++ {
			mins[i] = min(mins[i], v[i])
			maxs[i] = max(maxs[i], v[i])
		}
	}
	return mins, maxs
}
