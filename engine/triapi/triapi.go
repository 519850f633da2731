// Package triapi is the immediate-mode draw facet: explicit begin/end vertex batches plus the
// projection helpers and state setters that go with them.
package triapi

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/Carmen-Shannon/oxy-ref/log"
	"github.com/go-gl/mathgl/mgl32"
)

var logger = log.New("triapi")

// clipW is the smallest clip space w still considered in front of the viewer.
const clipW = 0.001

// Matrix selectors accepted by GetMatrix, matching the GL enums the host passes.
const (
	MatrixModelView  = 0x0BA6
	MatrixProjection = 0x0BA7
)

// CullMode selects face culling (TRI_FRONT / TRI_NONE).
type CullMode int

const (
	CullFront CullMode = iota
	CullNone
)

// Fog is the fog state set by Fog and FogParams.
type Fog struct {
	Enabled bool
	Color   mgl32.Vec3
	Start   float32
	End     float32
	Density float32
	Skybox  bool
}

// State is the draw state a batch is opened with.
type State struct {
	RenderMode refapi.RenderMode
	Cull       CullMode
	Fog        Fog
	Texture    texture.Handle
}

// Sink receives flushed batches. The renderer backend implements it.
type Sink interface {
	DrawBatch(d Data) error
}

// Binder binds a texture to a unit. texture.Registry satisfies it.
type Binder interface {
	Bind(unit texture.Unit, h texture.Handle) error
}

type facet struct {
	mu *sync.Mutex

	sink        Sink
	binder      Binder
	onViolation func(op string, err error)

	state State
	open  *Batch
	next  uint64

	flushed int

	modelView  mgl32.Mat4
	projection mgl32.Mat4
	viewport   [4]int
}

// Facet is the immediate-mode draw interface.
type Facet interface {
	// RenderMode sets the blend mode used by batches opened afterwards.
	RenderMode(mode refapi.RenderMode)

	// Begin opens a batch. Only one batch may be open at a time.
	//
	// Parameters:
	//   - prim: the batch topology
	//
	// Returns:
	//   - *Batch: the open batch
	//   - error: a protocol violation if a batch is already open or prim is unknown
	Begin(prim Primitive) (*Batch, error)

	// Open returns the open batch, or nil.
	Open() *Batch

	// Discard drops the open batch without flushing it.
	//
	// Returns:
	//   - bool: true if a batch was open
	Discard() bool

	// SetView sets the matrices and viewport used by the projection helpers and GetMatrix.
	SetView(modelView, projection mgl32.Mat4, viewport [4]int)

	// WorldToScreen projects p into viewport pixel coordinates.
	//
	// Returns:
	//   - mgl32.Vec3: x, y in pixels (y down) and depth in [0, 1]
	//   - bool: true if p is behind the viewer; the coordinates are then meaningless
	WorldToScreen(p mgl32.Vec3) (mgl32.Vec3, bool)

	// ScreenToWorld unprojects pixel coordinates with depth in [0, 1] back into world space.
	ScreenToWorld(screen mgl32.Vec3) mgl32.Vec3

	// GetMatrix returns the matrix selected by pname, or identity for unknown selectors.
	GetMatrix(pname int) mgl32.Mat4

	// Fog sets the fog colour and range and toggles it.
	Fog(color mgl32.Vec3, start, end float32, on bool)

	// FogParams sets the fog density and whether the sky is fogged.
	FogParams(density float32, skybox bool)

	// CullFace sets face culling for batches opened afterwards.
	CullFace(mode CullMode)

	// SpriteTexture binds frame of a sprite model as the texture of the next batch.
	//
	// Returns:
	//   - bool: false if mod is not a loaded sprite
	SpriteTexture(mod *model.Model, frame int) bool

	// State returns the state the next batch will be opened with.
	State() State

	// Flushed returns the number of non-empty batches flushed since the last ResetStats.
	Flushed() int

	// ResetStats zeroes the counters.
	ResetStats()
}

var _ Facet = &facet{}

// NewFacet creates a Facet writing to sink.
//
// Parameters:
//   - sink: receives flushed batches; may be nil to drop them
//   - options: functional options to configure the facet
//
// Returns:
//   - Facet: the new facet
func NewFacet(sink Sink, options ...FacetBuilderOption) Facet {
	f := &facet{
		mu:         &sync.Mutex{},
		sink:       sink,
		modelView:  mgl32.Ident4(),
		projection: mgl32.Ident4(),
		viewport:   [4]int{0, 0, 640, 480},
	}
	f.state.Fog.Density = 1
	for _, option := range options {
		option(f)
	}
	return f
}

func (f *facet) reportLocked(op string, err error) {
	logger.Warning(err)
	if f.onViolation != nil {
		f.onViolation(op, err)
	}
}

func (f *facet) RenderMode(mode refapi.RenderMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.RenderMode = mode
}

func (f *facet) Begin(prim Primitive) (*Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !prim.Valid() {
		err := fmt.Errorf("Begin: %w: unknown primitive %d", refapi.ErrProtocolViolation, prim)
		f.reportLocked("Begin", err)
		return nil, err
	}
	if f.open != nil {
		err := fmt.Errorf("Begin: %w: batch %d still open", refapi.ErrProtocolViolation, f.open.id)
		f.reportLocked("Begin", err)
		return nil, err
	}
	f.next++
	b := &Batch{
		facet: f,
		id:    f.next,
		prim:  prim,
		state: f.state,
		cur:   Vertex{Color: [4]uint8{255, 255, 255, 255}},
	}
	f.open = b
	return b, nil
}

func (f *facet) Open() *Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *facet) Discard() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open == nil {
		return false
	}
	f.open.ended = true
	f.open.verts = nil
	f.open = nil
	return true
}

func (f *facet) SetView(modelView, projection mgl32.Mat4, viewport [4]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modelView = modelView
	f.projection = projection
	f.viewport = viewport
}

func (f *facet) WorldToScreen(p mgl32.Vec3) (mgl32.Vec3, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	clip := f.projection.Mul4(f.modelView).Mul4x1(p.Vec4(1))
	if clip.W() < clipW {
		return mgl32.Vec3{}, true
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	vp := f.viewport
	return mgl32.Vec3{
		float32(vp[0]) + (ndc.X()+1)*0.5*float32(vp[2]),
		float32(vp[1]) + (1-ndc.Y())*0.5*float32(vp[3]),
		(ndc.Z() + 1) * 0.5,
	}, false
}

func (f *facet) ScreenToWorld(screen mgl32.Vec3) mgl32.Vec3 {
	f.mu.Lock()
	defer f.mu.Unlock()

	vp := f.viewport
	// UnProject expects y up from the bottom of the viewport.
	win := mgl32.Vec3{screen.X(), float32(vp[1]+vp[3]) - screen.Y() + float32(vp[1]), screen.Z()}
	world, err := mgl32.UnProject(win, f.modelView, f.projection, vp[0], vp[1], vp[2], vp[3])
	if err != nil {
		return mgl32.Vec3{}
	}
	return world
}

func (f *facet) GetMatrix(pname int) mgl32.Mat4 {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch pname {
	case MatrixModelView:
		return f.modelView
	case MatrixProjection:
		return f.projection
	}
	return mgl32.Ident4()
}

func (f *facet) Fog(color mgl32.Vec3, start, end float32, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Fog.Color = color
	f.state.Fog.Start = start
	f.state.Fog.End = end
	f.state.Fog.Enabled = on
}

func (f *facet) FogParams(density float32, skybox bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Fog.Density = density
	f.state.Fog.Skybox = skybox
}

func (f *facet) CullFace(mode CullMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Cull = mode
}

func (f *facet) SpriteTexture(mod *model.Model, frame int) bool {
	if mod == nil || mod.Type != model.TypeSprite || mod.Sprite == nil {
		return false
	}
	fr := model.SpriteFrameAt(mod, frame, 0, 0, 0)
	if fr == nil || !fr.Texture.Valid() {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.binder != nil {
		if err := f.binder.Bind(texture.Unit0, fr.Texture); err != nil {
			logger.Debugf("SpriteTexture %s frame %d: %v", mod.Name, frame, err)
			return false
		}
	}
	f.state.Texture = fr.Texture
	return true
}

func (f *facet) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *facet) Flushed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushed
}

func (f *facet) ResetStats() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = 0
}
