package model

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/go-gl/mathgl/mgl32"
)

func TestSubdivideSurface(t *testing.T) {
	tests := []struct {
		name  string
		verts []mgl32.Vec3
		polys int
	}{
		{"small stays whole", []mgl32.Vec3{{0, 0, 0}, {32, 0, 0}, {32, 32, 0}}, 1},
		{"128 square", []mgl32.Vec3{{0, 0, 0}, {128, 0, 0}, {128, 128, 0}, {0, 128, 0}}, 4},
		{"256 strip", []mgl32.Vec3{{0, 0, 0}, {256, 0, 0}, {256, 16, 0}, {0, 16, 0}}, 4},
		{"degenerate", []mgl32.Vec3{{0, 0, 0}, {1, 1, 1}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Surface{Verts: tt.verts}
			SubdivideSurface(s)
			if len(s.Polys) != tt.polys {
				t.Fatalf("polys = %d, want %d", len(s.Polys), tt.polys)
			}
			for i, p := range s.Polys {
				mins, maxs := boundPoly(p.Verts)
				for k := 0; k < 3; k++ {
					if maxs[k]-mins[k] > SubdivideSize+8 {
						t.Errorf("poly %d axis %d extent %v", i, k, maxs[k]-mins[k])
					}
				}
			}
			// Subdividing again gives the same result.
			n := len(s.Polys)
			SubdivideSurface(s)
			if len(s.Polys) != n {
				t.Errorf("second subdivision produced %d polys, want %d", len(s.Polys), n)
			}
		})
	}
}

func TestPointInLeaf(t *testing.T) {
	// One node splitting on x = 0: front (x >= 0) is leaf 0, back is leaf 1.
	b := &Brush{
		Nodes: []Node{{
			Plane:    common.Plane{Normal: [3]float32{1, 0, 0}},
			Children: [2]int{-1, -2},
		}},
		Leafs: []Leaf{
			{Contents: ContentsEmpty, Ambient: common.ColorVec{R: 10}},
			{Contents: ContentsSolid},
		},
	}
	if got := b.PointInLeaf(mgl32.Vec3{5, 0, 0}); got != 0 {
		t.Errorf("front point leaf = %d, want 0", got)
	}
	if got := b.PointInLeaf(mgl32.Vec3{-5, 0, 0}); got != 1 {
		t.Errorf("back point leaf = %d, want 1", got)
	}

	flat := &Brush{Leafs: []Leaf{{Mins: mgl32.Vec3{0, 0, 0}, Maxs: mgl32.Vec3{10, 10, 10}}}}
	if got := flat.PointInLeaf(mgl32.Vec3{5, 5, 5}); got != 0 {
		t.Errorf("bounds search = %d, want 0", got)
	}
	if got := flat.PointInLeaf(mgl32.Vec3{50, 5, 5}); got != -1 {
		t.Errorf("outside point = %d, want -1", got)
	}
	var none *Brush
	if none.PointInLeaf(mgl32.Vec3{}) != -1 {
		t.Error("nil brush must report no leaf")
	}
}

func TestTextureClassification(t *testing.T) {
	tests := []struct {
		name      string
		sky, warp bool
	}{
		{"sky4", true, false},
		{"SKY_DAY", true, false},
		{"*lava1", false, true},
		{"!water", false, true},
		{"+0button", false, false},
	}
	for _, tt := range tests {
		bt := &BrushTexture{Name: tt.name}
		if bt.Sky() != tt.sky || bt.Warp() != tt.warp {
			t.Errorf("%s: sky=%v warp=%v", tt.name, bt.Sky(), bt.Warp())
		}
	}
}

func TestStudioSequenceClamp(t *testing.T) {
	st := &Studio{Sequences: []Sequence{{Label: "idle"}, {Label: "walk"}}}
	if st.Sequence(1).Label != "walk" {
		t.Error("valid index")
	}
	if st.Sequence(7).Label != "idle" || st.Sequence(-1).Label != "idle" {
		t.Error("out of range sequences fall back to 0")
	}
	if (&Studio{}).Sequence(0) != nil {
		t.Error("no sequences gives nil")
	}
}

func TestResetKeepsHostFields(t *testing.T) {
	br := &Brush{}
	m := New("maps/a.bsp", WithBrush(br))
	m.NumFrames = 3
	m.MarkLoaded()
	m.Reset()
	if m.Loaded() || m.NumFrames != 0 {
		t.Error("Reset did not clear renderer state")
	}
	if m.Name != "maps/a.bsp" || m.Type != TypeBrush || m.Brush != br {
		t.Error("Reset dropped host-owned fields")
	}
}
