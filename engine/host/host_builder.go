package host

import (
	"time"

	"github.com/Carmen-Shannon/oxy-ref/engine/decal"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/renderer"
)

// HostBuilderOption is a functional option for configuring a Host.
// Use the With* functions to create options that are applied directly to the host instance.
type HostBuilderOption func(*host)

// WithTickRate sets the logic tick rate in ticks per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - HostBuilderOption: option function to apply
func WithTickRate(fps float64) HostBuilderOption {
	return func(h *host) {
		if fps <= 0 {
			fps = 60.0
		}
		h.tickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - HostBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) HostBuilderOption {
	return func(h *host) {
		if fps <= 0 {
			h.renderFrameLimit = 0
			return
		}
		h.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithMaxFrames makes Run return after n frames. 0 runs until Quit or the window closes.
func WithMaxFrames(n uint64) HostBuilderOption {
	return func(h *host) {
		h.maxFrames = n
	}
}

// WithGlobals sets the render state record handed to the renderer.
//
// Parameters:
//   - g: the globals; the host keeps writing the view and size into it
//
// Returns:
//   - HostBuilderOption: option function to apply
func WithGlobals(g *refapi.Globals) HostBuilderOption {
	return func(h *host) {
		h.globals = g
	}
}

// WithClient sets the engine helper table. Defaults to a Client reading the working directory.
func WithClient(c *Client) HostBuilderOption {
	return func(h *host) {
		h.client = c
	}
}

// WithGameDirectory makes the default client read images below dir.
func WithGameDirectory(dir string) HostBuilderOption {
	return func(h *host) {
		h.client = NewClient(dir)
	}
}

// WithContext makes Init create a window and a GPU surface.
func WithContext(context bool) HostBuilderOption {
	return func(h *host) {
		h.context = context
	}
}

// WithRendererOptions adds options passed to renderer.GetRefAPI.
//
// Parameters:
//   - options: renderer builder options, appended in order
//
// Returns:
//   - HostBuilderOption: option function to apply
func WithRendererOptions(options ...renderer.RendererBuilderOption) HostBuilderOption {
	return func(h *host) {
		h.rendererOptions = append(h.rendererOptions, options...)
	}
}

// WithDecalStore persists decal lists across ChangeLevel. The host closes the store on Shutdown.
//
// Parameters:
//   - s: an opened decal store
//
// Returns:
//   - HostBuilderOption: option function to apply
func WithDecalStore(s *decal.Store) HostBuilderOption {
	return func(h *host) {
		h.decals = s
	}
}
