package triapi

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-ref/engine/camera"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/Carmen-Shannon/oxy-ref/log"
	"github.com/go-gl/mathgl/mgl32"
)

type recordSink struct {
	batches []Data
	err     error
}

func (s *recordSink) DrawBatch(d Data) error {
	s.batches = append(s.batches, d)
	return s.err
}

type recordBinder struct {
	unit texture.Unit
	h    texture.Handle
}

func (b *recordBinder) Bind(unit texture.Unit, h texture.Handle) error {
	b.unit, b.h = unit, h
	return nil
}

type violations struct {
	ops []string
}

func (v *violations) handler(op string, err error) {
	v.ops = append(v.ops, op)
}

func TestBatchFlush(t *testing.T) {
	sink := &recordSink{}
	f := NewFacet(sink)
	f.RenderMode(refapi.RenderTransAdd)
	f.CullFace(CullNone)

	b, err := f.Begin(Quads)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	// State set after Begin applies to the next batch only.
	f.RenderMode(refapi.RenderNormal)

	b.Color4f(1, 0.5, 0, 2)
	b.TexCoord2f(0, 1)
	b.Vertex3f(0, 0, 0)
	b.Color4ub(1, 2, 3, 4)
	b.Vertex3fv(mgl32.Vec3{1, 0, 0})
	if b.Len() != 2 {
		t.Fatalf("Len = %d", b.Len())
	}
	if err := b.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	if len(sink.batches) != 1 {
		t.Fatalf("flushed %d batches", len(sink.batches))
	}
	d := sink.batches[0]
	if d.Primitive != Quads || d.State.RenderMode != refapi.RenderTransAdd || d.State.Cull != CullNone {
		t.Fatalf("batch = %+v", d)
	}
	if d.Vertices[0].Color != [4]uint8{255, 128, 0, 255} || d.Vertices[0].UV != (mgl32.Vec2{0, 1}) {
		t.Fatalf("vertex 0 = %+v", d.Vertices[0])
	}
	if d.Vertices[1].Color != [4]uint8{1, 2, 3, 4} || d.Vertices[1].UV != (mgl32.Vec2{0, 1}) {
		t.Fatalf("vertex 1 = %+v", d.Vertices[1])
	}
	if f.Flushed() != 1 || f.Open() != nil {
		t.Fatalf("Flushed = %d, open = %v", f.Flushed(), f.Open())
	}
	f.ResetStats()
	if f.Flushed() != 0 {
		t.Fatal("ResetStats kept the flush counter")
	}
}

func TestEmptyBatchNotFlushed(t *testing.T) {
	sink := &recordSink{}
	f := NewFacet(sink)
	b, _ := f.Begin(Triangles)
	if err := b.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if len(sink.batches) != 0 || f.Flushed() != 0 {
		t.Fatal("empty batch flushed")
	}
}

func TestSinkError(t *testing.T) {
	boom := errors.New("device lost")
	f := NewFacet(&recordSink{err: boom})
	b, _ := f.Begin(Lines)
	b.Vertex3f(0, 0, 0)
	if err := b.End(); !errors.Is(err, boom) {
		t.Fatalf("End = %v, want wrapped sink error", err)
	}
}

func TestStaleBatch(t *testing.T) {
	v := &violations{}
	f := NewFacet(nil, WithViolationHandler(v.handler))
	b, _ := f.Begin(Triangles)
	b.End()

	calls := []struct {
		name string
		call func() error
	}{
		{"Vertex3f", func() error { return b.Vertex3f(1, 2, 3) }},
		{"Vertex3fv", func() error { return b.Vertex3fv(mgl32.Vec3{}) }},
		{"TexCoord2f", func() error { return b.TexCoord2f(0, 0) }},
		{"Color4f", func() error { return b.Color4f(1, 1, 1, 1) }},
		{"Color4ub", func() error { return b.Color4ub(1, 1, 1, 1) }},
		{"End", b.End},
	}
	for _, c := range calls {
		t.Run(c.name, func(t *testing.T) {
			if err := c.call(); !errors.Is(err, refapi.ErrProtocolViolation) {
				t.Fatalf("%s on ended batch = %v", c.name, err)
			}
		})
	}
	if len(v.ops) != len(calls) {
		t.Fatalf("reported %d violations, want %d: %v", len(v.ops), len(calls), v.ops)
	}
	if !b.Ended() {
		t.Fatal("Ended = false")
	}
}

func TestBeginWhileOpen(t *testing.T) {
	v := &violations{}
	f := NewFacet(nil, WithViolationHandler(v.handler))
	first, _ := f.Begin(Triangles)
	if _, err := f.Begin(Lines); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Fatalf("second Begin = %v", err)
	}
	if _, err := f.Begin(Primitive(99)); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Fatalf("bad primitive = %v", err)
	}
	if f.Open() != first {
		t.Fatal("open batch changed")
	}
	if len(v.ops) != 2 {
		t.Fatalf("violations = %v", v.ops)
	}
}

func TestFailedBeginBatch(t *testing.T) {
	v := &violations{}
	f := NewFacet(nil, WithViolationHandler(v.handler))
	b, err := f.Begin(Primitive(99))
	if !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Fatalf("Begin = %v", err)
	}

	calls := []struct {
		name string
		call func() error
	}{
		{"Vertex3f", func() error { return b.Vertex3f(1, 2, 3) }},
		{"TexCoord2f", func() error { return b.TexCoord2f(0, 0) }},
		{"Color4f", func() error { return b.Color4f(1, 1, 1, 1) }},
		{"Color4ub", func() error { return b.Color4ub(1, 1, 1, 1) }},
		{"End", b.End},
	}
	for _, c := range calls {
		t.Run(c.name, func(t *testing.T) {
			if err := c.call(); !errors.Is(err, refapi.ErrProtocolViolation) {
				t.Fatalf("%s after failed Begin = %v", c.name, err)
			}
		})
	}
	if !b.Ended() || b.Len() != 0 {
		t.Fatalf("Ended = %v, Len = %d", b.Ended(), b.Len())
	}
	if len(v.ops) != 1 {
		t.Fatalf("violations = %v, want only the Begin", v.ops)
	}
	if f.Open() != nil {
		t.Fatal("failed Begin left a batch open")
	}
}

func TestViolationLogNamesOpOnce(t *testing.T) {
	var buf bytes.Buffer
	log.SetSink(&buf)
	t.Cleanup(func() { log.SetSink(os.Stderr) })

	f := NewFacet(nil)
	f.Begin(Primitive(99))
	out := buf.String()
	if !strings.Contains(out, "Begin: ") {
		t.Fatalf("violation not logged: %q", out)
	}
	if strings.Contains(out, "Begin: Begin:") {
		t.Errorf("op repeated in log line: %q", out)
	}
}

func TestDiscard(t *testing.T) {
	sink := &recordSink{}
	f := NewFacet(sink)
	if f.Discard() {
		t.Fatal("Discard with no batch reported true")
	}
	b, _ := f.Begin(Polygon)
	b.Vertex3f(0, 0, 0)
	if !f.Discard() {
		t.Fatal("Discard failed")
	}
	if err := b.Vertex3f(0, 0, 0); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Fatal("discarded batch still usable")
	}
	if len(sink.batches) != 0 {
		t.Fatal("discarded batch was flushed")
	}
	if _, err := f.Begin(Polygon); err != nil {
		t.Fatalf("Begin after Discard: %v", err)
	}
}

func viewFacet() (Facet, camera.Camera) {
	cam := camera.NewCamera()
	g := &refapi.Globals{Width: 640, Height: 480, FovX: 90}
	g.SetView(mgl32.Vec3{}, mgl32.Vec3{})
	cam.Update(g)
	f := NewFacet(nil)
	f.SetView(cam.ViewMatrix(), cam.ProjectionMatrix(), cam.Viewport())
	return f, cam
}

func TestWorldToScreen(t *testing.T) {
	f, _ := viewFacet()

	tests := []struct {
		name    string
		p       mgl32.Vec3
		clipped bool
	}{
		{"ahead", mgl32.Vec3{100, 0, 0}, false},
		{"ahead off axis", mgl32.Vec3{100, 30, -20}, false},
		{"behind", mgl32.Vec3{-100, 0, 0}, true},
		{"behind off axis", mgl32.Vec3{-5, 50, 50}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, clipped := f.WorldToScreen(tt.p)
			if clipped != tt.clipped {
				t.Fatalf("clipped = %v, want %v", clipped, tt.clipped)
			}
			if clipped {
				return
			}
			if s.X() < 0 || s.X() > 640 || s.Y() < 0 || s.Y() > 480 {
				t.Fatalf("screen %v outside the viewport", s)
			}
		})
	}

	centre, _ := f.WorldToScreen(mgl32.Vec3{100, 0, 0})
	if !centre.Vec2().ApproxEqualThreshold(mgl32.Vec2{320, 240}, 1e-2) {
		t.Fatalf("view axis projects to %v", centre)
	}
	// +Y is to the left and +Z is up, so y grows downward on screen.
	left, _ := f.WorldToScreen(mgl32.Vec3{100, 30, 0})
	up, _ := f.WorldToScreen(mgl32.Vec3{100, 0, 30})
	if left.X() >= 320 || up.Y() >= 240 {
		t.Fatalf("left = %v, up = %v", left, up)
	}
}

func TestScreenToWorldRoundTrip(t *testing.T) {
	f, _ := viewFacet()
	p := mgl32.Vec3{200, -40, 25}
	s, clipped := f.WorldToScreen(p)
	if clipped {
		t.Fatal("point clipped")
	}
	if back := f.ScreenToWorld(s); !back.ApproxEqualThreshold(p, 0.5) {
		t.Fatalf("round trip %v -> %v -> %v", p, s, back)
	}
}

func TestGetMatrixAndFog(t *testing.T) {
	f, cam := viewFacet()
	if f.GetMatrix(MatrixModelView) != cam.ViewMatrix() || f.GetMatrix(MatrixProjection) != cam.ProjectionMatrix() {
		t.Fatal("GetMatrix does not return the view matrices")
	}
	if f.GetMatrix(0) != mgl32.Ident4() {
		t.Fatal("unknown selector should give identity")
	}

	f.Fog(mgl32.Vec3{0.5, 0.5, 0.5}, 100, 2000, true)
	f.FogParams(0.25, true)
	b, _ := f.Begin(Triangles)
	fog := f.State().Fog
	if !fog.Enabled || fog.Start != 100 || fog.End != 2000 || fog.Density != 0.25 || !fog.Skybox {
		t.Fatalf("fog = %+v", fog)
	}
	f.Fog(mgl32.Vec3{}, 0, 0, false)
	if !b.state.Fog.Enabled {
		t.Fatal("fog change leaked into the open batch")
	}
}

func TestSpriteTexture(t *testing.T) {
	bind := &recordBinder{}
	f := NewFacet(nil, WithBinder(bind))

	spr := model.New("sprites/fire.spr", model.WithType(model.TypeSprite))
	spr.Sprite = &model.Sprite{Groups: []model.SpriteGroup{
		{Type: model.SpriteFrameSingle, Frames: []*model.SpriteFrame{{Texture: texture.Handle(7)}}},
		{Type: model.SpriteFrameSingle, Frames: []*model.SpriteFrame{{Texture: texture.Handle(9)}}},
	}}

	if !f.SpriteTexture(spr, 5) {
		t.Fatal("SpriteTexture failed")
	}
	if bind.h != 9 || bind.unit != texture.Unit0 || f.State().Texture != 9 {
		t.Fatalf("bound %v on unit %v, state %v", bind.h, bind.unit, f.State().Texture)
	}

	alias := model.New("models/box.mdl", model.WithType(model.TypeAlias))
	if f.SpriteTexture(alias, 0) || f.SpriteTexture(nil, 0) {
		t.Fatal("non-sprite accepted")
	}
}
