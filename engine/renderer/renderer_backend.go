package renderer

import (
	"image"
	"image/color"

	"github.com/Carmen-Shannon/oxy-ref/engine/camera"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/scene"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/Carmen-Shannon/oxy-ref/engine/triapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/window"
)

// RendererBackendType identifies the backend implementation the renderer drives.
type RendererBackendType int

const (
	// BackendTypeSoftware selects the CPU framebuffer backend. It is used whenever the host
	// keeps its own rendering context.
	BackendTypeSoftware RendererBackendType = iota

	// BackendTypeWGPU selects the WebGPU backend presenting into a renderer-owned window.
	BackendTypeWGPU
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeSoftware:
		return "software"
	case BackendTypeWGPU:
		return "wgpu"
	}
	return "unknown"
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// WebGPU guarantees support for 1 (off) and 4.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4x multisample anti-aliasing.
	MSAA4x MSAASampleCount = 4
)

// BlendMode is how a 2D draw combines with the framebuffer.
type BlendMode int

const (
	// BlendNone overwrites the destination.
	BlendNone BlendMode = iota
	// BlendAlpha composites with source alpha.
	BlendAlpha
	// BlendAdditive adds the source scaled by its alpha.
	BlendAdditive
)

func (m BlendMode) String() string {
	switch m {
	case BlendNone:
		return "none"
	case BlendAlpha:
		return "alpha"
	case BlendAdditive:
		return "additive"
	}
	return "unknown"
}

// BlendForRenderMode maps an entity render mode onto a 2D blend mode.
func BlendForRenderMode(mode refapi.RenderMode) BlendMode {
	switch mode {
	case refapi.RenderNormal:
		return BlendNone
	case refapi.RenderGlow, refapi.RenderTransAdd:
		return BlendAdditive
	}
	return BlendAlpha
}

// Capabilities describes what a backend supports, as reported by InitExtensions.
type Capabilities struct {
	Name           string
	MaxTextureSize int
	MaxUnits       int
	Extensions     []string
}

// Has reports whether the named extension is supported.
func (c Capabilities) Has(ext string) bool {
	for _, e := range c.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Backend is the device side of the renderer. The renderer owns protocol state and resource
// identity; the backend owns pixels.
//
// The backend also stores the pixels of registered textures (texture.Uploader) and receives
// flushed immediate-mode batches (triapi.Sink).
type Backend interface {
	texture.Uploader
	triapi.Sink

	// Init prepares the backend for drawing.
	//
	// Parameters:
	//   - win: the renderer-owned window to present into, nil for an offscreen target
	//   - width: the initial framebuffer width in pixels
	//   - height: the initial framebuffer height in pixels
	//
	// Returns:
	//   - error: error if the device or surface could not be created
	Init(win window.Window, width, height int) error

	// Shutdown releases every device resource, uploaded textures included.
	Shutdown()

	// Capabilities returns the supported limits and extensions.
	Capabilities() Capabilities

	// Resize changes the framebuffer size.
	Resize(width, height int)

	// Size returns the framebuffer size.
	Size() (width, height int)

	// BeginFrame starts recording a frame.
	//
	// Returns:
	//   - error: error if no target is available for this frame
	BeginFrame() error

	// Clear fills the whole framebuffer with c.
	Clear(c color.RGBA)

	// DrawScene draws a prepared scene pass from the camera's point of view.
	//
	// Parameters:
	//   - list: the prepared pass
	//   - cam: the view
	//
	// Returns:
	//   - error: error if the pass could not be recorded
	DrawScene(list scene.DrawList, cam camera.Camera) error

	// Fill draws a solid screen space rectangle.
	Fill(rect image.Rectangle, c color.RGBA, mode BlendMode)

	// Blit draws the st sub-rectangle of a texture stretched over rect, tinted by tint.
	//
	// Parameters:
	//   - rect: the destination in pixels
	//   - h: the source texture
	//   - st: s1, t1, s2, t2 in normalized texture coordinates
	//   - tint: the colour multiplied with every texel
	//   - mode: the blend mode
	//
	// Returns:
	//   - error: error if the texture was never uploaded
	Blit(rect image.Rectangle, h texture.Handle, st [4]float32, tint color.RGBA, mode BlendMode) error

	// BlitRaw draws host pixels stretched over rect without blending.
	BlitRaw(rect image.Rectangle, img *image.RGBA) error

	// EndFrame finishes recording and submits the frame.
	EndFrame() error

	// Present shows the last submitted frame.
	Present()

	// ReadPixels returns a copy of the last submitted frame.
	ReadPixels() (*image.RGBA, error)
}

// newBackend creates the backend selected by t.
func newBackend(t RendererBackendType, cfg backendConfig) Backend {
	switch t {
	case BackendTypeWGPU:
		return newWGPURendererBackend(cfg)
	default:
		return newSoftwareRendererBackend()
	}
}

// backendConfig collects the device options gathered from the builder options.
type backendConfig struct {
	forceFallbackAdapter bool
	presentMode          PresentMode
	sampleCount          MSAASampleCount
}
