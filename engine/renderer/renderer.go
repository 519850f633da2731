// Package renderer implements the swappable renderer module: version negotiation, the
// capability table the host drives each frame and the backends that own the pixels.
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/camera"
	"github.com/Carmen-Shannon/oxy-ref/engine/capture"
	"github.com/Carmen-Shannon/oxy-ref/engine/decal"
	"github.com/Carmen-Shannon/oxy-ref/engine/diag"
	"github.com/Carmen-Shannon/oxy-ref/engine/entity"
	"github.com/Carmen-Shannon/oxy-ref/engine/frame"
	"github.com/Carmen-Shannon/oxy-ref/engine/loader"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/profiler"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/scene"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/Carmen-Shannon/oxy-ref/engine/triapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/window"
	"github.com/Carmen-Shannon/oxy-ref/log"
	"github.com/go-gl/mathgl/mgl32"
)

var logger = log.New("renderer")

const (
	defaultWidth  = 640
	defaultHeight = 480
)

// renderer is the implementation of the RefInterface interface.
type renderer struct {
	mu *sync.Mutex

	engine  refapi.EngineAPI
	globals *refapi.Globals

	machine  frame.Machine
	textures texture.Registry
	models   loader.Loader
	scene    scene.Scene
	decals   decal.Pool
	tri      triapi.Facet
	camera   camera.Camera
	diag     diag.Diagnostics
	capturer capture.Capturer
	profiler *profiler.Profiler

	backend       Backend
	customBackend Backend
	backendType   RendererBackendType
	backendCfg    backendConfig
	window        window.Window
	windowOptions []window.WindowBuilderOption
	caps          Capabilities

	sky       [6]texture.Handle
	rawImage  *image.RGBA
	fogOn     bool
	fogDenied bool

	renderAPI       refapi.RenderAPI
	renderInterface refapi.RenderInterface
	vguiAPI         refapi.VGuiAPI
	efxAPI          refapi.EfxAPI

	// Pre-creation config collected from builder options.
	sceneStackDepth int
	computeWorkers  int
	maxEntities     int
	decalCapacity   int
	textureCapacity int
	palette         []byte
	captureOptions  []capture.CapturerBuilderOption
	stream          *diag.Stream
	profileInterval time.Duration
}

// RefInterface is the capability table the host drives. It is obtained through GetRefAPI and
// is only usable after a successful Init.
//
// Operations that need an open frame report a protocol violation and do nothing when called
// outside BeginFrame/EndFrame. Operations returning a bool, handle or slice reject locally
// (false, 0, nil) instead of failing.
type RefInterface interface {
	// Init initializes the renderer.
	//
	// Parameters:
	//   - context: true to create a window and a GPU surface owned by the renderer
	//
	// Returns:
	//   - error: the initialization failure, also retained by InitError
	Init(context bool) error

	// InitError returns the message of the last failed Init, "" if none.
	InitError() string

	// Shutdown releases every renderer-owned resource. An open frame is aborted.
	Shutdown()

	// InitExtensions queries the backend capabilities.
	InitExtensions()

	// ClearExtensions forgets the queried capabilities.
	ClearExtensions()

	// Capabilities returns the capabilities found by the last InitExtensions.
	Capabilities() Capabilities

	// BeginFrame opens a frame.
	//
	// Parameters:
	//   - clearScene: true to discard every entity and decal contribution of earlier frames
	//
	// Returns:
	//   - error: a protocol violation if a frame is already open
	BeginFrame(clearScene bool) error

	// RenderScene draws the current scene pass from the view in the globals.
	RenderScene() error

	// EndFrame closes the frame and presents it. An open TriAPI batch is discarded and pushed
	// scenes are unwound; either is a violation and the frame is not presented.
	EndFrame() error

	// PushScene opens a nested scene pass.
	PushScene() error

	// PopScene closes the innermost nested scene pass.
	PopScene() error

	// IsNormalPass reports whether no nested scene is pushed.
	IsNormalPass() bool

	// BackendStartFrame resets the per-frame speed counters.
	BackendStartFrame()

	// BackendEndFrame logs the speed counters in developer mode.
	BackendEndFrame()

	// ClearScreen fills the framebuffer with black.
	ClearScreen()

	// AllowFog enables or suppresses fog without changing the fog parameters.
	AllowFog(allow bool)

	// SetRenderMode sets the blend mode of following 2D and TriAPI draws.
	SetRenderMode(mode refapi.RenderMode)

	// Set2DMode switches the TriAPI projection to screen space and back.
	Set2DMode(enable bool)

	// AddEntity submits one entity to the current pass.
	//
	// Parameters:
	//   - entityType: the host entity type
	//   - ent: the entity
	//
	// Returns:
	//   - bool: false if the entity was rejected (culled, invalid, lists full)
	AddEntity(entityType refapi.EntityType, ent *entity.Entity) bool

	AddEfrags(ent *entity.Entity)
	RemoveEfrags(ent *entity.Entity)

	// Particle adds a debug particle living for life seconds of host time.
	Particle(origin mgl32.Vec3, color uint8, life float32, zpos, zvel int)

	// LightPoint returns the ambient light at p.
	LightPoint(p mgl32.Vec3) common.ColorVec

	// IncrementSpeedsCounter bumps a host-driven r_speeds counter.
	IncrementSpeedsCounter(c refapi.SpeedsCounter)

	// ShowTextures writes the table of live textures to w.
	ShowTextures(w io.Writer)

	// ShowTree writes the world leaf tree with its efrags to w.
	ShowTree(w io.Writer) error

	// LoadTextureFromBuffer registers a texture.
	//
	// Parameters:
	//   - name: the texture name, compared case-insensitively
	//   - pic: the source pixels
	//   - flags: texture flags
	//   - update: true to replace the pixels of an existing texture of the same name in place
	//
	// Returns:
	//   - texture.Handle: the handle, or 0 if the texture was rejected
	LoadTextureFromBuffer(name string, pic *common.RGBData, flags texture.Flags, update bool) texture.Handle

	FindTexture(name string) texture.Handle
	FreeTexture(h texture.Handle)
	TextureName(h texture.Handle) string
	TextureData(h texture.Handle) []byte
	TextureOriginalBuffer(h texture.Handle) []byte

	// GetBuiltinTexture acquires a reference to a shared built-in texture.
	GetBuiltinTexture(kind texture.SharedKind) texture.Handle

	// FreeSharedTexture releases a reference taken by GetBuiltinTexture.
	FreeSharedTexture(kind texture.SharedKind)

	// ProcessTexture recolours and gamma corrects a texture in place.
	//
	// Parameters:
	//   - h: a texture loaded with texture.FlagKeepSource
	//   - gamma: the gamma exponent, 1 for none
	//   - topColor: the hue for palette range 160..191, negative to keep
	//   - bottomColor: the hue for palette range 192..223, negative to keep
	//
	// Returns:
	//   - error: error if the texture has no kept source
	ProcessTexture(h texture.Handle, gamma float32, topColor, bottomColor int) error

	// SetupSky loads the six sides of a sky box from gfx/env.
	//
	// Returns:
	//   - bool: false if any side is missing; the previous sky is then unset
	SetupSky(name string) bool

	// InitSkyClouds splits an indexed two-layer sky into the shared sky textures.
	InitSkyClouds(mip *common.RGBData) bool

	// DrawStretchPic draws the s1,t1 to s2,t2 region of a texture over a screen rectangle
	// using the host's current 2D render mode.
	DrawStretchPic(x, y, w, h, s1, t1, s2, t2 float32, tex texture.Handle)

	// DrawStretchRaw draws cols x rows RGBA pixels over a screen rectangle.
	//
	// Parameters:
	//   - x, y, w, h: the destination rectangle in pixels
	//   - cols, rows: the source dimensions
	//   - data: cols*rows*4 bytes of RGBA
	//   - dirty: true if data changed since the previous call
	DrawStretchRaw(x, y, w, h float32, cols, rows int, data []byte, dirty bool)

	DrawTileClear(x, y, w, h int)
	FillRGBA(x, y, w, h int, r, g, b, a uint8)
	FillRGBABlend(x, y, w, h int, r, g, b, a uint8)

	// ScreenShot writes the last frame to name.
	ScreenShot(name string, shot refapi.ShotType) bool

	// CubemapShot renders and writes the six cube faces around vieworg.
	CubemapShot(base string, size int, vieworg mgl32.Vec3, skyshot bool) bool

	// DecalShoot places a decal on an entity surface.
	//
	// Returns:
	//   - bool: false if the texture or entity is invalid
	DecalShoot(tex texture.Handle, entityIndex, modelIndex int, pos mgl32.Vec3, flags decal.Flags, scale float32) bool

	// DecalRemoveAll removes every decal using tex, returning the number removed.
	DecalRemoveAll(tex texture.Handle) int

	// CreateDecalList snapshots the persistent decals, deepest first.
	CreateDecalList() []decal.Entry

	ClearAllDecals()

	// StudioEstimateFrame returns the animation frame of ent playing seq at host time.
	StudioEstimateFrame(ent *entity.Entity, seq *model.Sequence) float64

	// StudioLerpMovement interpolates the position of ent between its last two updates.
	StudioLerpMovement(ent *entity.Entity, time float64) (origin, angles mgl32.Vec3)

	// GetSpriteParms returns the size of a sprite frame and the frame count.
	GetSpriteParms(mod *model.Model, frame int) (width, height, numFrames int, ok bool)

	SubdivideSurface(surf *model.Surface)

	// LoadModel decodes buf into mod. Brush models named maps/* become the world.
	//
	// Parameters:
	//   - kind: the model format
	//   - mod: the host model record
	//   - buf: the file contents
	//   - flags: texture flags, honoured for sprites only
	//
	// Returns:
	//   - bool: true if the model was loaded
	LoadModel(kind model.Type, mod *model.Model, buf []byte, flags texture.Flags) bool

	LoadMapSprite(mod *model.Model, buf []byte) bool
	UnloadModel(mod *model.Model)
	StudioLoadTextures(mod *model.Model, data []byte) bool
	StudioUnloadTextures(st *model.Studio)

	// TriRenderMode sets the blend mode of following TriAPI batches.
	TriRenderMode(mode refapi.RenderMode)

	// TriBegin opens an immediate-mode batch. Only legal inside a frame.
	//
	// Returns:
	//   - *triapi.Batch: the batch, consumed by its End
	//   - error: a protocol violation
	TriBegin(prim triapi.Primitive) (*triapi.Batch, error)

	TriSpriteTexture(mod *model.Model, frame int) bool
	TriWorldToScreen(p mgl32.Vec3) (mgl32.Vec3, bool)
	TriScreenToWorld(screen mgl32.Vec3) mgl32.Vec3
	TriGetMatrix(pname int) mgl32.Mat4
	TriFog(color mgl32.Vec3, start, end float32, on bool)
	TriFogParams(density float32, skybox bool)
	TriCullFace(mode triapi.CullMode)

	RenderAPI() refapi.RenderAPI
	RenderInterface() refapi.RenderInterface
	VGuiAPI() refapi.VGuiAPI
	EfxAPI() refapi.EfxAPI

	// Diagnostics returns the diagnostics facet.
	Diagnostics() diag.Diagnostics

	// Profile returns the last profiler sample.
	Profile() profiler.Sample

	// Window returns the window created by Init(true), nil otherwise.
	Window() window.Window
}

var _ RefInterface = &renderer{}

// GetRefAPI negotiates the capability table with the host.
//
// Parameters:
//   - version: the table version the host was built against
//   - engine: the host helper table
//   - globals: the render state record the host writes
//   - options: functional options to configure the renderer
//
// Returns:
//   - RefInterface: the table, nil on failure
//   - error: refapi.ErrVersionMismatch, or an error naming the missing argument
func GetRefAPI(version int, engine refapi.EngineAPI, globals *refapi.Globals, options ...RendererBuilderOption) (RefInterface, error) {
	if version != refapi.Version {
		logger.Errorf("host requested api version %d, have %d", version, refapi.Version)
		return nil, fmt.Errorf("%w: requested %d, have %d", refapi.ErrVersionMismatch, version, refapi.Version)
	}
	if engine == nil {
		return nil, fmt.Errorf("ref: negotiation requires an engine api table")
	}
	if globals == nil {
		return nil, fmt.Errorf("ref: negotiation requires a globals record")
	}

	r := &renderer{
		mu:              &sync.Mutex{},
		engine:          engine,
		globals:         globals,
		backendType:     BackendTypeSoftware,
		backendCfg:      backendConfig{presentMode: PresentModeVSync, sampleCount: MSAAOff},
		sceneStackDepth: frame.DefaultSceneStackDepth,
		maxEntities:     scene.MaxVisibleEntities,
		decalCapacity:   decal.MaxDecals,
		textureCapacity: texture.MaxTextures,
		profileInterval: time.Second,
	}
	for _, option := range options {
		option(r)
	}

	diagOpts := []diag.DiagnosticsBuilderOption{}
	if r.stream != nil {
		diagOpts = append(diagOpts, diag.WithStream(r.stream))
	}
	r.diag = diag.New(diagOpts...)
	r.machine = frame.NewMachine(
		frame.WithSceneStackDepth(r.sceneStackDepth),
		frame.WithViolationHandler(r.diag.Violation),
	)
	r.textures = texture.NewRegistry(r, texture.WithCapacity(r.textureCapacity))

	loaderOpts := []loader.LoaderBuilderOption{}
	if r.palette != nil {
		loaderOpts = append(loaderOpts, loader.WithPalette(r.palette))
	}
	r.models = loader.NewLoader(r.textures, loaderOpts...)

	sceneOpts := []scene.SceneBuilderOption{scene.WithMaxEntities(r.maxEntities)}
	if r.computeWorkers > 0 {
		sceneOpts = append(sceneOpts, scene.WithComputeWorkers(r.computeWorkers))
	}
	r.scene = scene.NewScene(sceneOpts...)
	r.decals = decal.NewPool(r.textures, decal.WithCapacity(r.decalCapacity))
	r.tri = triapi.NewFacet(r,
		triapi.WithBinder(r.textures),
		triapi.WithViolationHandler(r.machine.Violation),
	)
	r.camera = camera.NewCamera()
	r.capturer = capture.NewCapturer(r, globals, r.captureOptions...)
	r.profiler = profiler.NewProfiler(r.profileInterval)

	r.renderAPI = &renderAPI{}
	if r.renderInterface == nil {
		r.renderInterface = &renderInterface{}
	}
	r.vguiAPI = &vguiAPI{}
	r.efxAPI = &efxAPI{}

	logger.Infof("negotiated api version %d", version)
	return r, nil
}

func (r *renderer) Init(context bool) error {
	if err := r.machine.CanInit(); err != nil {
		return err
	}
	return r.machine.Init(r.initBackend(context))
}

// initBackend creates the window when asked and brings up the backend.
func (r *renderer) initBackend(context bool) error {
	w, h := r.globals.Width, r.globals.Height
	if w <= 0 || h <= 0 {
		w, h = defaultWidth, defaultHeight
	}

	var win window.Window
	if context {
		opts := append([]window.WindowBuilderOption{
			window.WithSize(w, h),
			window.WithFullScreen(r.globals.FullScreen),
		}, r.windowOptions...)
		var err error
		if win, err = window.NewWindow(opts...); err != nil {
			return fmt.Errorf("failed to create window: %w", err)
		}
		w, h = win.Width(), win.Height()
	}

	b := r.customBackend
	if b == nil {
		t := r.backendType
		if context {
			t = BackendTypeWGPU
		}
		b = newBackend(t, r.backendCfg)
	}
	if err := b.Init(win, w, h); err != nil {
		if win != nil {
			win.Close()
		}
		return fmt.Errorf("failed to initialize backend: %w", err)
	}
	if win != nil {
		win.SetResizeCallback(b.Resize)
	}

	r.mu.Lock()
	r.backend = b
	r.window = win
	r.mu.Unlock()

	r.InitExtensions()
	logger.Noticef("backend %s ready at %dx%d", r.caps.Name, w, h)
	return nil
}

func (r *renderer) InitError() string {
	return r.machine.InitError()
}

func (r *renderer) Shutdown() {
	if r.machine.Shutdown() {
		r.tri.Discard()
		r.scene.Unwind()
	}

	r.decals.ClearAll()
	r.scene.Clear()
	r.scene.SetWorld(nil)
	r.models.UnloadAll()
	r.freeSky()
	r.textures.Clear()

	r.mu.Lock()
	b, win := r.backend, r.window
	r.backend, r.window = nil, nil
	r.rawImage = nil
	r.mu.Unlock()

	if b != nil {
		b.Shutdown()
	}
	if win != nil {
		if err := win.Close(); err != nil {
			logger.Warningf("failed to close window: %v", err)
		}
	}
	r.ClearExtensions()
}

func (r *renderer) InitExtensions() {
	b := r.currentBackend()
	if b == nil {
		return
	}
	caps := b.Capabilities()
	r.mu.Lock()
	r.caps = caps
	r.mu.Unlock()
	for _, ext := range caps.Extensions {
		logger.Infof("extension %s enabled", ext)
	}
}

func (r *renderer) ClearExtensions() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps = Capabilities{}
}

func (r *renderer) Capabilities() Capabilities {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.caps
}

func (r *renderer) Diagnostics() diag.Diagnostics {
	return r.diag
}

func (r *renderer) Profile() profiler.Sample {
	return r.profiler.Last()
}

func (r *renderer) Window() window.Window {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.window
}

func (r *renderer) currentBackend() Backend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend
}

// UploadTexture forwards registry uploads to the current backend.
func (r *renderer) UploadTexture(h texture.Handle, name string, data common.TextureStagingData) error {
	b := r.currentBackend()
	if b == nil {
		return refapi.ErrNotInitialized
	}
	if err := b.UploadTexture(h, name, data); err != nil {
		return err
	}
	r.diag.Add(diag.CounterTextureUploads, 1)
	return nil
}

func (r *renderer) ReleaseTexture(h texture.Handle) {
	if b := r.currentBackend(); b != nil {
		b.ReleaseTexture(h)
	}
}

// DrawBatch forwards flushed TriAPI batches to the current backend.
func (r *renderer) DrawBatch(d triapi.Data) error {
	b := r.currentBackend()
	if b == nil {
		return refapi.ErrNotInitialized
	}
	return b.DrawBatch(d)
}

var black = color.RGBA{0, 0, 0, 255}
