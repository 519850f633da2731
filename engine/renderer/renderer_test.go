package renderer

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/entity"
	"github.com/Carmen-Shannon/oxy-ref/engine/frame"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/Carmen-Shannon/oxy-ref/engine/triapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

type fakeEngine struct {
	mode   refapi.RenderMode
	time   float64
	images map[string]*common.RGBData
}

func (e *fakeEngine) TriGetRenderMode() refapi.RenderMode { return e.mode }
func (e *fakeEngine) ClientTime() float64                { return e.time }

func (e *fakeEngine) LoadImage(name string) (*common.RGBData, bool) {
	pic, ok := e.images[name]
	return pic, ok
}

// countingBackend records presentation on top of the software backend.
type countingBackend struct {
	*softwareRendererBackend
	presents int
}

func (b *countingBackend) Present() { b.presents++ }

type failingBackend struct {
	*softwareRendererBackend
}

func (b *failingBackend) Init(_ window.Window, width, height int) error {
	return errors.New("no device")
}

func rgba(w, h int, c [4]byte) *common.RGBData {
	buf := make([]byte, w*h*4)
	for i := 0; i < len(buf); i += 4 {
		copy(buf[i:], c[:])
	}
	return &common.RGBData{Width: w, Height: h, Type: common.PixelRGBA32, Buffer: buf}
}

// flakyBackend fails the next failBegins calls to BeginFrame.
type flakyBackend struct {
	*softwareRendererBackend
	failBegins int
}

func (b *flakyBackend) BeginFrame() error {
	if b.failBegins > 0 {
		b.failBegins--
		return errors.New("surface lost")
	}
	return b.softwareRendererBackend.BeginFrame()
}

func newTestRenderer(t *testing.T, options ...RendererBuilderOption) (*renderer, *fakeEngine, *countingBackend) {
	t.Helper()
	eng := &fakeEngine{images: map[string]*common.RGBData{}}
	b := &countingBackend{softwareRendererBackend: newSoftwareRendererBackend()}
	g := &refapi.Globals{Width: 64, Height: 48}
	g.SetView(mgl32.Vec3{}, mgl32.Vec3{})
	ref, err := GetRefAPI(refapi.Version, eng, g, append([]RendererBuilderOption{WithBackend(b)}, options...)...)
	if err != nil {
		t.Fatalf("GetRefAPI: %v", err)
	}
	if err := ref.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(ref.Shutdown)
	return ref.(*renderer), eng, b
}

func TestGetRefAPINegotiation(t *testing.T) {
	g := &refapi.Globals{}
	eng := &fakeEngine{}

	tests := []struct {
		name    string
		version int
		engine  refapi.EngineAPI
		globals *refapi.Globals
		wantErr bool
	}{
		{"matching version", refapi.Version, eng, g, false},
		{"older host", refapi.Version - 1, eng, g, true},
		{"newer host", refapi.Version + 1, eng, g, true},
		{"no engine table", refapi.Version, nil, g, true},
		{"no globals", refapi.Version, eng, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := GetRefAPI(tt.version, tt.engine, tt.globals)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetRefAPI error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && ref != nil {
				t.Error("expected a nil table on failure")
			}
		})
	}

	_, err := GetRefAPI(refapi.Version+1, eng, g)
	if !errors.Is(err, refapi.ErrVersionMismatch) {
		t.Errorf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	eng := &fakeEngine{}
	ref, err := GetRefAPI(refapi.Version, eng, &refapi.Globals{Width: 32, Height: 32})
	if err != nil {
		t.Fatalf("GetRefAPI: %v", err)
	}

	if err := ref.BeginFrame(false); !errors.Is(err, refapi.ErrNotInitialized) {
		t.Fatalf("BeginFrame before Init = %v, want ErrNotInitialized", err)
	}
	if err := ref.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := ref.Capabilities().Name; got != "software" {
		t.Errorf("backend = %q, want software", got)
	}

	if err := ref.BeginFrame(false); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if err := ref.BeginFrame(false); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Errorf("second BeginFrame = %v, want ErrProtocolViolation", err)
	}
	if err := ref.EndFrame(); err != nil {
		t.Errorf("EndFrame: %v", err)
	}
	if err := ref.RenderScene(); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Errorf("RenderScene outside a frame = %v, want ErrProtocolViolation", err)
	}

	ref.Shutdown()
	if err := ref.BeginFrame(false); !errors.Is(err, refapi.ErrShutdown) {
		t.Errorf("BeginFrame after Shutdown = %v, want ErrShutdown", err)
	}
	if ref.Capabilities().Name != "" {
		t.Error("expected capabilities to be cleared on Shutdown")
	}

	if err := ref.Init(false); err != nil {
		t.Fatalf("re-Init after Shutdown: %v", err)
	}
	if err := ref.BeginFrame(true); err != nil {
		t.Errorf("BeginFrame after re-Init: %v", err)
	}
	ref.Shutdown()
}

func TestInitFailure(t *testing.T) {
	b := &failingBackend{softwareRendererBackend: newSoftwareRendererBackend()}
	ref, err := GetRefAPI(refapi.Version, &fakeEngine{}, &refapi.Globals{}, WithBackend(b))
	if err != nil {
		t.Fatalf("GetRefAPI: %v", err)
	}
	if err := ref.Init(false); err == nil {
		t.Fatal("expected Init to fail")
	}
	if ref.InitError() == "" {
		t.Error("expected InitError to describe the failure")
	}
	if err := ref.BeginFrame(false); !errors.Is(err, refapi.ErrInitFailed) {
		t.Errorf("BeginFrame after failed Init = %v, want ErrInitFailed", err)
	}
	if h := ref.LoadTextureFromBuffer("a", rgba(1, 1, [4]byte{}), 0, false); h != 0 {
		t.Errorf("LoadTextureFromBuffer after failed Init = %s, want 0", h)
	}
	ref.Shutdown()
}

func TestEarlyEndFrameSkipsPresent(t *testing.T) {
	r, _, b := newTestRenderer(t)

	if err := r.BeginFrame(true); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if err := r.PushScene(); err != nil {
		t.Fatalf("PushScene: %v", err)
	}
	if r.IsNormalPass() {
		t.Error("expected a nested pass after PushScene")
	}
	batch, err := r.TriBegin(triapi.Triangles)
	if err != nil {
		t.Fatalf("TriBegin: %v", err)
	}
	if err := r.EndFrame(); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Fatalf("early EndFrame = %v, want ErrProtocolViolation", err)
	}
	if b.presents != 0 {
		t.Errorf("presents = %d, want 0 for a failed frame", b.presents)
	}
	if !r.IsNormalPass() {
		t.Error("expected the scene stack to be unwound")
	}
	if !batch.Ended() {
		t.Error("expected the open batch to be discarded")
	}
	if err := batch.Vertex3f(0, 0, 0); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Errorf("Vertex3f on a discarded batch = %v, want ErrProtocolViolation", err)
	}
	if r.Diagnostics().ViolationCount() == 0 {
		t.Error("expected the violations to be recorded")
	}

	if err := r.BeginFrame(false); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if b.presents != 1 {
		t.Errorf("presents = %d, want 1", b.presents)
	}
}

func TestSceneStack(t *testing.T) {
	r, _, _ := newTestRenderer(t)

	if err := r.PushScene(); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Errorf("PushScene outside a frame = %v, want ErrProtocolViolation", err)
	}
	if err := r.BeginFrame(false); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if err := r.PushScene(); err != nil {
		t.Fatalf("PushScene: %v", err)
	}
	if err := r.PushScene(); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Errorf("PushScene past the stack = %v, want ErrProtocolViolation", err)
	}
	if err := r.PopScene(); err != nil {
		t.Errorf("PopScene: %v", err)
	}
	if err := r.PopScene(); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Errorf("PopScene of the normal pass = %v, want ErrProtocolViolation", err)
	}
	r.EndFrame()
}

func TestDeeperSceneStack(t *testing.T) {
	r, _, _ := newTestRenderer(t, WithSceneStackDepth(3))
	if err := r.BeginFrame(false); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := r.PushScene(); err != nil {
			t.Fatalf("PushScene %d: %v", i, err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := r.PopScene(); err != nil {
			t.Fatalf("PopScene %d: %v", i, err)
		}
	}
	if err := r.EndFrame(); err != nil {
		t.Errorf("EndFrame: %v", err)
	}
}

func TestAddEntity(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	mod := &model.Model{
		Name: "models/box.mdl",
		Type: model.TypeAlias,
		Mins: mgl32.Vec3{-8, -8, -8},
		Maxs: mgl32.Vec3{8, 8, 8},
	}
	ahead := &entity.Entity{Index: 1, Origin: mgl32.Vec3{100, 0, 0}, Model: mod}

	if r.AddEntity(refapi.EntityNormal, ahead) {
		t.Error("expected AddEntity outside a frame to be rejected")
	}
	if err := r.BeginFrame(true); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}

	nodraw := &entity.Entity{Index: 3, Origin: mgl32.Vec3{100, 0, 0}, Model: mod}
	nodraw.CurState.Effects = refapi.EffectNoDraw

	tests := []struct {
		name string
		typ  refapi.EntityType
		ent  *entity.Entity
		want bool
	}{
		{"in front of the view", refapi.EntityNormal, ahead, true},
		{"behind the view", refapi.EntityNormal, &entity.Entity{Index: 2, Origin: mgl32.Vec3{-100, 0, 0}, Model: mod}, false},
		{"no draw effect", refapi.EntityNormal, nodraw, false},
		{"no model", refapi.EntityNormal, &entity.Entity{Index: 4}, false},
		{"nil entity", refapi.EntityNormal, nil, false},
		{"unknown type", refapi.EntityType(99), ahead, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.AddEntity(tt.typ, tt.ent); got != tt.want {
				t.Errorf("AddEntity = %v, want %v", got, tt.want)
			}
		})
	}

	if err := r.RenderScene(); err != nil {
		t.Fatalf("RenderScene: %v", err)
	}
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if got := r.Diagnostics().LastFrame().Counters["entities"]; got != 1 {
		t.Errorf("entities counter = %d, want 1", got)
	}
}

func TestTextures(t *testing.T) {
	r, _, _ := newTestRenderer(t)

	if h := r.LoadTextureFromBuffer("", rgba(2, 2, [4]byte{}), 0, false); h != 0 {
		t.Errorf("empty name = %s, want 0", h)
	}
	if h := r.LoadTextureFromBuffer("bad", nil, 0, false); h != 0 {
		t.Errorf("nil picture = %s, want 0", h)
	}

	a := r.LoadTextureFromBuffer("Decal", rgba(2, 2, [4]byte{1, 2, 3, 255}), texture.FlagKeepSource, false)
	if !a.Valid() {
		t.Fatal("expected a valid handle")
	}
	if got := r.FindTexture("decal"); got != a {
		t.Errorf("FindTexture = %s, want %s", got, a)
	}
	if got := r.TextureName(a); got != "Decal" {
		t.Errorf("TextureName = %q", got)
	}
	if data := r.TextureData(a); len(data) != 16 || data[0] != 1 {
		t.Errorf("TextureData = %v", data)
	}

	b := r.LoadTextureFromBuffer("decal", rgba(2, 2, [4]byte{9, 9, 9, 255}), texture.FlagKeepSource, true)
	if b != a {
		t.Errorf("update kept handle %s, want %s", b, a)
	}
	if data := r.TextureData(a); data[0] != 9 {
		t.Errorf("expected the update to replace the pixels, first byte %d", data[0])
	}

	r.FreeTexture(a)
	if got := r.FindTexture("decal"); got != 0 {
		t.Errorf("FindTexture after free = %s, want 0", got)
	}

	white := r.GetBuiltinTexture(texture.SharedWhite)
	if again := r.GetBuiltinTexture(texture.SharedWhite); again != white {
		t.Errorf("shared handle changed: %s != %s", again, white)
	}
	r.FreeSharedTexture(texture.SharedWhite)
	if r.TextureName(white) == "" {
		t.Error("expected the shared texture to survive while referenced")
	}
	r.FreeSharedTexture(texture.SharedWhite)
	if r.TextureName(white) != "" {
		t.Error("expected the shared texture to be destroyed with its last reference")
	}
	r.FreeSharedTexture(texture.SharedWhite)
}

func TestSetupSky(t *testing.T) {
	r, eng, _ := newTestRenderer(t)
	for _, s := range texture.SkySuffixes {
		eng.images["gfx/env/desert"+s] = rgba(4, 4, [4]byte{0, 0, 255, 255})
	}
	for _, s := range texture.SkySuffixes[:3] {
		eng.images["gfx/env/broken"+s] = rgba(4, 4, [4]byte{255, 0, 0, 255})
	}

	if !r.SetupSky("desert") {
		t.Fatal("expected the full sky to load")
	}
	if !r.FindTexture("gfx/env/desertup").Valid() {
		t.Error("expected the up side to be registered")
	}

	if r.SetupSky("broken") {
		t.Fatal("expected a partial sky to fail")
	}
	if r.FindTexture("gfx/env/brokenrt").Valid() {
		t.Error("expected the loaded sides of a partial sky to be released")
	}
	if r.FindTexture("gfx/env/desertup").Valid() {
		t.Error("expected the previous sky to be unset")
	}
}

func TestInitSkyClouds(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	pal := make([]byte, 768)
	for i := range pal {
		pal[i] = byte(i / 3)
	}
	mip := &common.RGBData{Width: 8, Height: 4, Type: common.PixelIndexed24, Palette: pal, Buffer: make([]byte, 32)}

	if !r.InitSkyClouds(mip) {
		t.Fatal("expected the sky to split")
	}
	solid := r.GetBuiltinTexture(texture.SharedSolidSky)
	if info, ok := r.textures.Lookup(solid); !ok || info.Width != 4 {
		t.Errorf("solid sky = %+v, %v", info, ok)
	}
	if r.InitSkyClouds(&common.RGBData{Width: 3, Height: 4, Type: common.PixelIndexed24, Palette: pal, Buffer: make([]byte, 12)}) {
		t.Error("expected an odd width to be rejected")
	}
}

func TestLoadWorldModel(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	world := &model.Model{Name: "maps/test.bsp", Type: model.TypeBrush, Brush: &model.Brush{}}

	if !r.LoadModel(model.TypeBrush, world, nil, 0) {
		t.Fatal("expected the brush model to load")
	}
	if r.scene.World() != world {
		t.Error("expected maps/* to become the world")
	}
	r.UnloadModel(world)
	if r.scene.World() != nil {
		t.Error("expected unloading the world to clear it")
	}
	if r.LoadModel(model.TypeStudio, &model.Model{Name: "models/empty.mdl", Type: model.TypeStudio}, nil, 0) {
		t.Error("expected an empty studio buffer to be rejected")
	}
}

func TestFog(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	color := mgl32.Vec3{0.5, 0.5, 0.5}

	r.TriFog(color, 10, 100, true)
	if !r.tri.State().Fog.Enabled {
		t.Fatal("expected fog to be enabled")
	}
	r.AllowFog(false)
	if r.tri.State().Fog.Enabled {
		t.Error("expected AllowFog(false) to suppress fog")
	}
	r.TriFog(color, 10, 100, true)
	if r.tri.State().Fog.Enabled {
		t.Error("expected fog to stay suppressed while disallowed")
	}
	r.AllowFog(true)
	if f := r.tri.State().Fog; !f.Enabled || f.End != 100 {
		t.Errorf("fog after AllowFog(true) = %+v", f)
	}
}

func TestTriBatchReachesBackend(t *testing.T) {
	r, _, b := newTestRenderer(t)

	if _, err := r.TriBegin(triapi.Quads); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Errorf("TriBegin outside a frame = %v, want ErrProtocolViolation", err)
	}
	if err := r.BeginFrame(false); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	batch, err := r.TriBegin(triapi.Quads)
	if err != nil {
		t.Fatalf("TriBegin: %v", err)
	}
	for _, p := range [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}} {
		if err := batch.Vertex3f(p[0], p[1], p[2]); err != nil {
			t.Fatalf("Vertex3f: %v", err)
		}
	}
	if err := batch.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if b.stats.Batches != 1 || b.stats.Indices != 6 {
		t.Errorf("backend stats = %+v, want 1 batch of 6 indices", b.stats)
	}
	if got := r.Diagnostics().LastFrame().Counters["batches"]; got != 1 {
		t.Errorf("batches counter = %d, want 1", got)
	}
}

func TestDraw2D(t *testing.T) {
	r, eng, _ := newTestRenderer(t)
	red := r.LoadTextureFromBuffer("red", rgba(2, 2, [4]byte{255, 0, 0, 255}), 0, false)

	r.FillRGBA(0, 0, 4, 4, 255, 0, 0, 255)
	if _, err := r.Frame(); err == nil {
		t.Error("expected no frame before the first EndFrame")
	}

	if err := r.BeginFrame(false); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	r.ClearScreen()
	r.FillRGBA(0, 0, 4, 4, 100, 0, 0, 255)
	r.FillRGBA(0, 0, 2, 2, 100, 0, 0, 255)
	r.FillRGBABlend(8, 0, 4, 4, 0, 0, 255, 255)
	eng.mode = refapi.RenderNormal
	r.DrawStretchPic(20, 20, 4, 4, 0, 0, 1, 1, red)
	r.DrawTileClear(8, 0, 2, 2)

	raw := make([]byte, 2*2*4)
	for i := 0; i < len(raw); i += 4 {
		raw[i+1], raw[i+3] = 255, 255
	}
	r.DrawStretchRaw(30, 30, 4, 4, 2, 2, raw, true)
	r.DrawStretchRaw(30, 30, 4, 4, 3, 3, raw, true)
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}

	img, err := r.Frame()
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	tests := []struct {
		name string
		x, y int
		want [4]uint8
	}{
		{"additive twice", 1, 1, [4]uint8{200, 0, 0, 255}},
		{"additive once", 3, 3, [4]uint8{100, 0, 0, 255}},
		{"alpha fill", 11, 3, [4]uint8{0, 0, 255, 255}},
		{"tile clear", 9, 1, [4]uint8{0, 0, 0, 255}},
		{"stretch pic", 21, 21, [4]uint8{255, 0, 0, 255}},
		{"stretch raw", 31, 31, [4]uint8{0, 255, 0, 255}},
		{"cleared", 50, 40, [4]uint8{0, 0, 0, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := img.RGBAAt(tt.x, tt.y)
			if got := [4]uint8{c.R, c.G, c.B, c.A}; got != tt.want {
				t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestScreenShot(t *testing.T) {
	dir := t.TempDir()
	r, _, _ := newTestRenderer(t, WithCaptureDirectory(dir))

	if r.ScreenShot("early.png", refapi.ShotScreenshot) {
		t.Error("expected a screenshot without a frame to fail")
	}
	if err := r.BeginFrame(false); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	r.FillRGBABlend(0, 0, 64, 48, 10, 20, 30, 255)
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}

	if !r.ScreenShot("shots/mini.png", refapi.ShotMinishot) {
		t.Fatal("expected the minishot to be written")
	}
	f, err := os.Open(filepath.Join(dir, "shots", "mini.png"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 160 || cfg.Height != 120 {
		t.Errorf("minishot size = %dx%d, want 160x120", cfg.Width, cfg.Height)
	}
}

func TestCubemapShot(t *testing.T) {
	dir := t.TempDir()
	r, _, _ := newTestRenderer(t, WithCaptureDirectory(dir))

	if err := r.BeginFrame(false); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if r.CubemapShot("env/cube", 16, mgl32.Vec3{}, false) {
		t.Error("expected CubemapShot inside a frame to be rejected")
	}
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}

	if !r.CubemapShot("env/cube", 16, mgl32.Vec3{}, false) {
		t.Fatal("expected the cubemap to be written")
	}
	for _, s := range texture.SkySuffixes {
		if _, err := os.Stat(filepath.Join(dir, "env", "cube"+s+".png")); err != nil {
			t.Errorf("side %s: %v", s, err)
		}
	}
	if w, h := r.currentBackend().Size(); w != 64 || h != 48 {
		t.Errorf("backend size after cubemap = %dx%d, want 64x48", w, h)
	}
}

func TestDecalsWithoutDecals(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	if got := r.CreateDecalList(); len(got) != 0 {
		t.Errorf("CreateDecalList = %v, want empty", got)
	}
	if got := r.DecalRemoveAll(1); got != 0 {
		t.Errorf("DecalRemoveAll = %d, want 0", got)
	}
	r.ClearAllDecals()

	tex := r.LoadTextureFromBuffer("{shot1", rgba(2, 2, [4]byte{0, 0, 0, 255}), 0, false)
	if !r.DecalShoot(tex, 0, 1, mgl32.Vec3{1, 2, 3}, 0, 1) {
		t.Fatal("expected DecalShoot to succeed")
	}
	if r.DecalShoot(0, 0, 1, mgl32.Vec3{}, 0, 1) {
		t.Error("expected an invalid texture to be rejected")
	}
	if got := r.CreateDecalList(); len(got) != 1 {
		t.Errorf("CreateDecalList = %d entries, want 1", len(got))
	}
	if got := r.DecalRemoveAll(tex); got != 1 {
		t.Errorf("DecalRemoveAll = %d, want 1", got)
	}
}

func TestDecalQueuePerPass(t *testing.T) {
	r, _, b := newTestRenderer(t)
	mod := &model.Model{
		Name: "models/box.mdl",
		Type: model.TypeAlias,
		Mins: mgl32.Vec3{-8, -8, -8},
		Maxs: mgl32.Vec3{8, 8, 8},
	}
	ent := &entity.Entity{Index: 5, Origin: mgl32.Vec3{100, 0, 0}, Model: mod}
	tex := r.LoadTextureFromBuffer("{blood1", rgba(2, 2, [4]byte{255, 0, 0, 255}), 0, false)
	if !r.DecalShoot(tex, ent.Index, 0, mgl32.Vec3{100, 0, 0}, 0, 1) {
		t.Fatal("DecalShoot failed")
	}

	if err := r.BeginFrame(true); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if !r.AddEntity(refapi.EntityNormal, ent) {
		t.Fatal("AddEntity failed")
	}
	for frame := 0; frame < 3; frame++ {
		if frame > 0 {
			if err := r.BeginFrame(false); err != nil {
				t.Fatalf("frame %d: BeginFrame: %v", frame, err)
			}
		}
		for pass := 0; pass < 2; pass++ {
			before := b.stats.SceneDecals
			if err := r.RenderScene(); err != nil {
				t.Fatalf("frame %d: RenderScene: %v", frame, err)
			}
			if got := b.stats.SceneDecals - before; got != 1 {
				t.Errorf("frame %d pass %d: backend got %d decals, want 1", frame, pass, got)
			}
		}
		if got := len(r.decals.DrawQueue()); got != 1 {
			t.Errorf("frame %d: queue holds %d decals, want 1", frame, got)
		}
		if err := r.EndFrame(); err != nil {
			t.Fatalf("frame %d: EndFrame: %v", frame, err)
		}
	}
}

func TestBackendBeginFailureClosesFrame(t *testing.T) {
	b := &flakyBackend{softwareRendererBackend: newSoftwareRendererBackend(), failBegins: 1}
	g := &refapi.Globals{Width: 32, Height: 32}
	g.SetView(mgl32.Vec3{}, mgl32.Vec3{})
	refIface, err := GetRefAPI(refapi.Version, &fakeEngine{}, g, WithBackend(b))
	if err != nil {
		t.Fatalf("GetRefAPI: %v", err)
	}
	if err := refIface.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(refIface.Shutdown)
	r := refIface.(*renderer)

	if err := r.BeginFrame(true); err == nil {
		t.Fatal("expected BeginFrame to report the backend failure")
	}
	if got := r.machine.State(); got != frame.StateInitialized {
		t.Fatalf("state after failed BeginFrame = %v, want initialized", got)
	}
	if !r.Diagnostics().LastFrame().Failed {
		t.Error("failed frame not recorded as failed")
	}

	before := r.Diagnostics().ViolationCount()
	if err := r.BeginFrame(true); err != nil {
		t.Fatalf("BeginFrame after recovery: %v", err)
	}
	if err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	if got := r.Diagnostics().ViolationCount() - before; got != 0 {
		t.Errorf("recovered frame reported %d violations", got)
	}
}

func TestTriBeginOutsideFrameBatch(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	b, err := r.TriBegin(triapi.Lines)
	if !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Fatalf("TriBegin outside a frame = %v", err)
	}
	if err := b.Vertex3f(1, 2, 3); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Errorf("Vertex3f on failed batch = %v", err)
	}
	if err := b.End(); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Errorf("End on failed batch = %v", err)
	}
}

func TestCallsAfterShutdownReported(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	tex := r.LoadTextureFromBuffer("{scorch", rgba(2, 2, [4]byte{0, 0, 0, 255}), 0, false)
	r.Shutdown()

	calls := []struct {
		name string
		call func()
	}{
		{"FindTexture", func() { r.FindTexture("{scorch") }},
		{"TextureName", func() { r.TextureName(tex) }},
		{"TextureData", func() { r.TextureData(tex) }},
		{"TextureOriginalBuffer", func() { r.TextureOriginalBuffer(tex) }},
		{"FreeSharedTexture", func() { r.FreeSharedTexture(texture.SharedDefault) }},
		{"DecalRemoveAll", func() { r.DecalRemoveAll(tex) }},
		{"CreateDecalList", func() { r.CreateDecalList() }},
		{"ClearAllDecals", r.ClearAllDecals},
		{"TriRenderMode", func() { r.TriRenderMode(refapi.RenderTransAdd) }},
		{"TriWorldToScreen", func() { r.TriWorldToScreen(mgl32.Vec3{}) }},
		{"TriScreenToWorld", func() { r.TriScreenToWorld(mgl32.Vec3{}) }},
		{"TriGetMatrix", func() { r.TriGetMatrix(triapi.MatrixModelView) }},
		{"TriFog", func() { r.TriFog(mgl32.Vec3{}, 0, 1, true) }},
		{"TriFogParams", func() { r.TriFogParams(1, false) }},
		{"TriCullFace", func() { r.TriCullFace(triapi.CullNone) }},
	}
	for _, c := range calls {
		t.Run(c.name, func(t *testing.T) {
			before := r.Diagnostics().ViolationCount()
			c.call()
			if r.Diagnostics().ViolationCount() != before+1 {
				t.Fatalf("%s after Shutdown was not reported", c.name)
			}
			vs := r.Diagnostics().Violations()
			if got := vs[len(vs)-1].Op; got != c.name {
				t.Errorf("last violation op = %q, want %q", got, c.name)
			}
		})
	}
	if _, clipped := r.TriWorldToScreen(mgl32.Vec3{1, 0, 0}); !clipped {
		t.Error("TriWorldToScreen after Shutdown should report clipped")
	}
}

func TestSubInterfaces(t *testing.T) {
	custom := &renderInterface{}
	r, _, _ := newTestRenderer(t, WithRenderInterface(custom))

	tests := []struct {
		name string
		got  int
		want int
	}{
		{"render api", r.RenderAPI().Version(), refapi.RenderAPIVersion},
		{"render interface", r.RenderInterface().Version(), refapi.RenderInterfaceVersion},
		{"vgui", r.VGuiAPI().Version(), refapi.VGuiAPIVersion},
		{"efx", r.EfxAPI().Version(), refapi.EfxAPIVersion},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s version = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
	if r.RenderInterface() != custom {
		t.Error("expected the host render interface to be kept")
	}
}
