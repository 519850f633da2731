package renderer

import (
	"time"

	"github.com/Carmen-Shannon/oxy-ref/engine/capture"
	"github.com/Carmen-Shannon/oxy-ref/engine/diag"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/window"
)

// RendererBuilderOption is a functional option applied to a renderer during GetRefAPI.
type RendererBuilderOption func(*renderer)

// WithBackend makes Init use b instead of creating a backend. The renderer takes ownership and
// shuts b down on Shutdown.
//
// Parameters:
//   - b: the backend to use, for both Init(false) and Init(true)
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend option to a renderer
func WithBackend(b Backend) RendererBuilderOption {
	return func(r *renderer) {
		r.customBackend = b
	}
}

// WithBackendType selects the backend created by Init(false). Init(true) always uses the wgpu
// backend unless WithBackend is given.
//
// Parameters:
//   - t: the backend type
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend type option to a renderer
func WithBackendType(t RendererBackendType) RendererBuilderOption {
	return func(r *renderer) {
		r.backendType = t
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.backendCfg.presentMode = mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count of the wgpu backend.
// When not specified, MSAA is off.
//
// Parameters:
//   - count: the MSAASampleCount to use (MSAAOff or MSAA4x)
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.backendCfg.sampleCount = count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.backendCfg.forceFallbackAdapter = force
	}
}

// WithWindowOptions adds options for the window created by Init(true).
//
// Parameters:
//   - options: window builder options, applied after the size and fullscreen flag from the globals
//
// Returns:
//   - RendererBuilderOption: a function that applies the window options to a renderer
func WithWindowOptions(options ...window.WindowBuilderOption) RendererBuilderOption {
	return func(r *renderer) {
		r.windowOptions = append(r.windowOptions, options...)
	}
}

// WithSceneStackDepth sets the number of scene stack slots, the normal pass included.
//
// Parameters:
//   - depth: the slot count, at least 1
//
// Returns:
//   - RendererBuilderOption: a function that applies the depth option to a renderer
func WithSceneStackDepth(depth int) RendererBuilderOption {
	return func(r *renderer) {
		if depth > 0 {
			r.sceneStackDepth = depth
		}
	}
}

// WithRenderInterface supplies the host's client render callback block.
func WithRenderInterface(ri refapi.RenderInterface) RendererBuilderOption {
	return func(r *renderer) {
		r.renderInterface = ri
	}
}

// WithComputeWorkers sets the worker count used to prepare entity transforms in RenderScene.
//
// Parameters:
//   - n: the number of workers
//
// Returns:
//   - RendererBuilderOption: a function that applies the worker option to a renderer
func WithComputeWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.computeWorkers = n
	}
}

// WithMaxEntities sets the capacity of each per-pass entity list.
func WithMaxEntities(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.maxEntities = n
		}
	}
}

// WithDecalCapacity sets the size of the decal pool.
func WithDecalCapacity(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.decalCapacity = n
		}
	}
}

// WithTextureCapacity sets the maximum number of live textures.
func WithTextureCapacity(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.textureCapacity = n
		}
	}
}

// WithPalette sets the 768 byte RGB palette used to expand Quake format skins.
//
// Parameters:
//   - pal: the palette
//
// Returns:
//   - RendererBuilderOption: a function that applies the palette option to a renderer
func WithPalette(pal []byte) RendererBuilderOption {
	return func(r *renderer) {
		r.palette = pal
	}
}

// WithCaptureDirectory sets the directory relative shot names are written to.
func WithCaptureDirectory(dir string) RendererBuilderOption {
	return func(r *renderer) {
		r.captureOptions = append(r.captureOptions, capture.WithDirectory(dir))
	}
}

// WithStream publishes per-frame diagnostics to s.
//
// Parameters:
//   - s: the websocket stream, served by the caller
//
// Returns:
//   - RendererBuilderOption: a function that applies the stream option to a renderer
func WithStream(s *diag.Stream) RendererBuilderOption {
	return func(r *renderer) {
		r.stream = s
	}
}

// WithProfileInterval sets the sampling window of the frame profiler.
func WithProfileInterval(d time.Duration) RendererBuilderOption {
	return func(r *renderer) {
		if d > 0 {
			r.profileInterval = d
		}
	}
}
