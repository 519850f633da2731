// Package refapi holds the host-facing vocabulary of the renderer contract: the negotiated
// version, the global render state the host publishes, the engine helper table the renderer
// may call back into, the shared enumerations and the sentinel errors.
//
// The capability table itself is renderer.RefInterface; it lives with its implementation so
// that this package stays a leaf every subsystem can import.
package refapi

import (
	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Version is the only capability table version this module implements.
const Version = 1

// Globals is the shared render state record (ref_globals_t). The host is its single writer;
// the renderer reads it between Init and Shutdown.
//
// The per-submission current entity and model are deliberately absent; they are carried by
// scene.Submission for the duration of a single AddEntity call.
type Globals struct {
	Developer bool

	// Width and Height are the viewport dimensions in pixels.
	Width  int
	Height int

	FullScreen bool
	WideScreen bool

	ViewOrg    mgl32.Vec3
	ViewAngles mgl32.Vec3
	VForward   mgl32.Vec3
	VRight     mgl32.Vec3
	VUp        mgl32.Vec3

	// FovX and FovY are the horizontal and vertical field of view in degrees.
	FovX float32
	FovY float32
}

// SetView updates the view origin and angles and recomputes the basis vectors.
//
// Parameters:
//   - origin: the view origin in world space
//   - angles: pitch, yaw, roll in degrees
func (g *Globals) SetView(origin, angles mgl32.Vec3) {
	g.ViewOrg = origin
	g.ViewAngles = angles
	g.VForward, g.VRight, g.VUp = common.AngleVectors(angles)
}

// EngineAPI is the secondary table of host helpers (ref_api_t). Every method is read-only from
// the renderer's point of view and has no frame-state side effects.
type EngineAPI interface {
	// TriGetRenderMode returns the render mode the host selected for the next 2D sprite draw.
	TriGetRenderMode() RenderMode

	// ClientTime returns the host client clock in seconds.
	ClientTime() float64

	// LoadImage loads an image through the host file system.
	// Returns false when the file does not exist or cannot be decoded.
	LoadImage(name string) (*common.RGBData, bool)
}

// RenderMode is the entity/sprite blend mode (kRender*).
type RenderMode int

const (
	RenderNormal RenderMode = iota
	RenderTransColor
	RenderTransTexture
	RenderGlow
	RenderTransAlpha
	RenderTransAdd
)

// Opaque reports whether entities in this mode go into the solid draw list.
func (m RenderMode) Opaque() bool {
	return m == RenderNormal || m == RenderTransAlpha
}

// EntityType classifies a submitted entity (ET_*).
type EntityType int

const (
	EntityNormal EntityType = iota
	EntityPlayer
	EntityTempEntity
	EntityBeam
	EntityFragmented
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	return t >= EntityNormal && t <= EntityFragmented
}

// Entity effect bits read by the renderer.
const (
	EffectNoDraw = 128
)

// SpeedsCounter selects an r_speeds counter for IncrementSpeedsCounter.
type SpeedsCounter int

const (
	SpeedsActiveTempEnts SpeedsCounter = iota
)

// ShotType selects the capture mode of ScreenShot.
type ShotType int

const (
	ShotScreenshot ShotType = iota
	ShotLevelshot
	ShotMinishot
	ShotMapshot
	ShotSnapshot
)

// Sub-interface versions of the independently versioned capability blocks.
const (
	RenderAPIVersion       = 37
	RenderInterfaceVersion = 35
	VGuiAPIVersion         = 1
	EfxAPIVersion          = 1
)

// RenderAPI is the renderer's partial implementation of the extended render API block.
type RenderAPI interface {
	Version() int
}

// RenderInterface is the client render-callback block the renderer invokes on the host.
type RenderInterface interface {
	Version() int
}

// VGuiAPI is the VGUI drawing block.
type VGuiAPI interface {
	Version() int
}

// EfxAPI is the particle/effects block.
type EfxAPI interface {
	Version() int
}
