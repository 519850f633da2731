package decal

import (
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

type names map[texture.Handle]string

func (n names) Name(h texture.Handle) string { return n[h] }

var (
	texShot  = texture.Handle(1)
	texBlood = texture.Handle(2)
	texGone  = texture.Handle(3)
	texNames = names{texShot: "{shot1", texBlood: "{blood2"}
)

func TestShootRejects(t *testing.T) {
	p := NewPool(texNames)
	tests := []struct {
		name string
		tex  texture.Handle
	}{
		{"zero handle", 0},
		{"unknown texture", texGone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if p.Shoot(tt.tex, 0, 1, mgl32.Vec3{}, 0, 1) {
				t.Fatal("Shoot accepted")
			}
		})
	}
	if NewPool(nil).Shoot(texShot, 0, 1, mgl32.Vec3{}, 0, 1) {
		t.Fatal("pool without a namer accepted a decal")
	}
	if p.Count() != 0 {
		t.Fatalf("Count = %d", p.Count())
	}
}

func TestShootDepthAndScale(t *testing.T) {
	p := NewPool(texNames)
	p.Shoot(texShot, 0, 1, mgl32.Vec3{0, 0, 0}, 0, 0)
	p.Shoot(texShot, 0, 1, mgl32.Vec3{4, 0, 0}, 0, 1)
	p.Shoot(texShot, 5, 2, mgl32.Vec3{4, 0, 0}, 0, 1)
	p.Shoot(texShot, 0, 1, mgl32.Vec3{100, 0, 0}, 0, 1)

	d := p.Decals()
	if len(d) != 4 {
		t.Fatalf("Count = %d", len(d))
	}
	if d[0].Scale != 1 {
		t.Fatalf("non-positive scale stored as %v", d[0].Scale)
	}
	want := []int{0, 1, 0, 0}
	for i, w := range want {
		if d[i].Depth != w {
			t.Errorf("decal %d depth = %d, want %d", i, d[i].Depth, w)
		}
	}
	if d[0].Serial >= d[1].Serial {
		t.Fatal("serials not increasing")
	}
}

func TestRecycleOldest(t *testing.T) {
	p := NewPool(texNames, WithCapacity(3))
	p.Shoot(texShot, 1, 1, mgl32.Vec3{}, FlagPermanent, 1)
	p.Shoot(texShot, 2, 1, mgl32.Vec3{}, 0, 1)
	p.Shoot(texShot, 3, 1, mgl32.Vec3{}, 0, 1)
	if !p.Shoot(texShot, 4, 1, mgl32.Vec3{}, 0, 1) {
		t.Fatal("full pool did not recycle")
	}
	var ents []int
	for _, d := range p.Decals() {
		ents = append(ents, d.EntityIndex)
	}
	if len(ents) != 3 || ents[0] != 1 || ents[1] != 3 || ents[2] != 4 {
		t.Fatalf("entities = %v, want [1 3 4]", ents)
	}

	full := NewPool(texNames, WithCapacity(1))
	full.Shoot(texShot, 1, 1, mgl32.Vec3{}, FlagPermanent, 1)
	if full.Shoot(texShot, 2, 1, mgl32.Vec3{}, 0, 1) {
		t.Fatal("permanent decal was recycled")
	}
}

func TestCreateList(t *testing.T) {
	p := NewPool(texNames)
	p.Shoot(texShot, 0, 1, mgl32.Vec3{0, 0, 0}, 0, 1)
	p.Shoot(texShot, 0, 1, mgl32.Vec3{1, 0, 0}, 0, 1)
	p.Shoot(texBlood, 0, 1, mgl32.Vec3{500, 0, 0}, FlagDontSave, 1)
	p.Shoot(texBlood, 0, 1, mgl32.Vec3{900, 0, 0}, FlagPermanent, 2)

	list := p.CreateList()
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Depth > list[i].Depth {
			t.Fatalf("list not sorted by depth: %+v", list)
		}
	}
	for _, e := range list {
		if e.Flags&FlagDontSave != 0 {
			t.Fatal("DONTSAVE decal in list")
		}
	}
	if list[len(list)-1].Name != "{shot1" || list[len(list)-1].Depth != 1 {
		t.Fatalf("deepest entry = %+v", list[len(list)-1])
	}
}

func TestRemoval(t *testing.T) {
	p := NewPool(texNames)

	// All safe with no decals.
	if n := p.RemoveAll(texShot); n != 0 {
		t.Fatalf("RemoveAll on empty pool = %d", n)
	}
	p.ClearAll()
	if list := p.CreateList(); len(list) != 0 {
		t.Fatalf("empty pool list = %d", len(list))
	}

	p.Shoot(texShot, 1, 1, mgl32.Vec3{}, 0, 1)
	p.Shoot(texBlood, 1, 1, mgl32.Vec3{}, 0, 1)
	p.Shoot(texShot, 2, 1, mgl32.Vec3{}, 0, 1)
	p.Queue(1)
	if q := p.DrawQueue(); len(q) != 2 {
		t.Fatalf("queued %d", len(q))
	}

	if n := p.RemoveAll(texShot); n != 2 {
		t.Fatalf("RemoveAll = %d, want 2", n)
	}
	if q := p.DrawQueue(); len(q) != 1 || q[0].Texture != texBlood {
		t.Fatalf("queue after RemoveAll = %+v", q)
	}
	if n := p.RemoveEntity(1); n != 1 || p.Count() != 0 {
		t.Fatalf("RemoveEntity = %d, Count = %d", n, p.Count())
	}

	p.Shoot(texShot, 1, 1, mgl32.Vec3{}, FlagPermanent, 1)
	p.ClearAll()
	if list := p.CreateList(); len(list) != 0 {
		t.Fatalf("ClearAll then CreateList = %d entries", len(list))
	}
}

func TestDrawQueue(t *testing.T) {
	p := NewPool(texNames)
	p.Shoot(texShot, 3, 1, mgl32.Vec3{}, 0, 1)
	p.Queue(3)
	p.Queue(4)
	if q := p.DrawQueue(); len(q) != 1 {
		t.Fatalf("queue = %d", len(q))
	}
	p.ClearQueue()
	if q := p.DrawQueue(); len(q) != 0 {
		t.Fatal("ClearQueue left entries")
	}
	if p.Count() != 1 {
		t.Fatal("ClearQueue removed pool decals")
	}
}

func TestStore(t *testing.T) {
	s, err := OpenStore(filepath.Join(t.TempDir(), "decals.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	p := NewPool(texNames)
	p.Shoot(texShot, 0, 1, mgl32.Vec3{1, 2, 3}, 0, 1)
	p.Shoot(texBlood, 7, 2, mgl32.Vec3{4, 5, 6}, FlagPermanent, 0.5)
	list := p.CreateList()

	if err := s.Save("c1a0", list); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save("c1a1", list[:1]); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("c1a0")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(list) {
		t.Fatalf("loaded %d entries, want %d", len(got), len(list))
	}
	for i := range list {
		if got[i] != list[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], list[i])
		}
	}

	// Save replaces, it does not append.
	if err := s.Save("c1a0", list[1:]); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, _ := s.Load("c1a0"); len(got) != 1 || got[0].Name != "{blood2" {
		t.Fatalf("after resave = %+v", got)
	}

	levels, err := s.Levels()
	if err != nil || len(levels) != 2 || levels[0] != "c1a0" || levels[1] != "c1a1" {
		t.Fatalf("Levels = %v, %v", levels, err)
	}

	if err := s.Delete("c1a0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, err := s.Load("c1a0"); err != nil || len(got) != 0 {
		t.Fatalf("Load after Delete = %v, %v", got, err)
	}
	if got, _ := s.Load("missing"); len(got) != 0 {
		t.Fatal("unknown level returned entries")
	}
}
