// Package host is a reference host for the renderer module. It negotiates the capability
// table, initializes the renderer and drives frames the way a game client would: a fixed-rate
// tick loop for game logic and a render loop issuing BeginFrame, RenderScene and EndFrame.
package host

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ref/engine/decal"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ref/log"
	"github.com/go-gl/mathgl/mgl32"
)

var logger = log.New("host")

// FrameCallback is called inside an open frame with the renderer and the frame delta in seconds.
type FrameCallback func(ref renderer.RefInterface, dt float32)

// host implements the Host interface.
// Coordinates the tick goroutine and the render loop.
type host struct {
	mu *sync.Mutex

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	ref             renderer.RefInterface
	globals         *refapi.Globals
	client          *Client
	context         bool
	rendererOptions []renderer.RendererBuilderOption

	tickRate         time.Duration
	tickCallback     func(deltaTime float32)
	frameCallback    FrameCallback
	overlayCallback  FrameCallback
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        uint64        // 0 = until Quit or the window closes
	frames           uint64

	decals *decal.Store
	level  string
}

// Host owns one renderer and drives its frames.
type Host interface {
	// Ref returns the negotiated and initialized renderer.
	Ref() renderer.RefInterface

	// Globals returns the render state record the host writes.
	Globals() *refapi.Globals

	// Client returns the engine helper table given to the renderer.
	Client() *Client

	// SetTickRate sets the game logic tick rate in ticks per second.
	// If the host is running, the change takes effect immediately.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each logic tick. It runs on its own
	// goroutine and must not call the renderer.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetFrameCallback registers the function called after BeginFrame and before RenderScene.
	// Entities, particles and decals are submitted here.
	SetFrameCallback(callback FrameCallback)

	// SetOverlayCallback registers the function called after RenderScene and before EndFrame.
	// 2D and TriAPI overlay draws go here.
	SetOverlayCallback(callback FrameCallback)

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	SetRenderFrameLimit(fps float64)

	// Frame runs one complete frame.
	//
	// Parameters:
	//   - dt: the elapsed time in seconds, added to the client clock
	//
	// Returns:
	//   - error: the joined errors of the frame operations
	Frame(dt float32) error

	// Frames returns the number of frames run so far.
	Frames() uint64

	// Run runs the tick goroutine and the render loop on the calling goroutine. It returns
	// when Quit is called, the frame limit is reached, the window is closed or a frame fails
	// with a non-protocol error.
	Run() error

	// Quit stops Run. Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Level returns the name of the current level, "" before the first ChangeLevel.
	Level() string

	// ChangeLevel switches levels. The decals of the current level are saved to the decal store
	// and cleared; the saved decals of the new level are restored.
	//
	// Parameters:
	//   - level: the new level name
	//
	// Returns:
	//   - error: error if the decal store cannot be read or written
	ChangeLevel(level string) error

	// Shutdown stops the host and shuts the renderer down. The decal store is closed.
	Shutdown() error
}

var _ Host = &host{}

// NewHost negotiates a renderer and initializes it.
//
// Parameters:
//   - options: functional options for host configuration
//
// Returns:
//   - Host: the running-ready host
//   - error: the negotiation or initialization failure
func NewHost(options ...HostBuilderOption) (Host, error) {
	h := &host{
		mu:              &sync.Mutex{},
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		tickRate:        time.Second / 60,
	}

	for _, opt := range options {
		opt(h)
	}

	if h.globals == nil {
		h.globals = &refapi.Globals{Width: 640, Height: 480, FovX: 90}
		h.globals.SetView(mgl32.Vec3{}, mgl32.Vec3{})
	}
	if h.client == nil {
		h.client = NewClient(".")
	}

	ref, err := renderer.GetRefAPI(refapi.Version, h.client, h.globals, h.rendererOptions...)
	if err != nil {
		return nil, fmt.Errorf("host: negotiate renderer: %w", err)
	}
	if err := ref.Init(h.context); err != nil {
		return nil, fmt.Errorf("host: init renderer: %w", err)
	}
	h.ref = ref
	logger.Noticef("renderer ready (%dx%d, context %v)", h.globals.Width, h.globals.Height, h.context)

	return h, nil
}

func (h *host) Ref() renderer.RefInterface {
	return h.ref
}

func (h *host) Globals() *refapi.Globals {
	return h.globals
}

func (h *host) Client() *Client {
	return h.client
}

func (h *host) Frame(dt float32) error {
	h.client.Advance(dt)
	if w := h.ref.Window(); w != nil {
		h.globals.Width, h.globals.Height = w.Width(), w.Height()
	}

	if err := h.ref.BeginFrame(true); err != nil {
		return err
	}
	if h.frameCallback != nil {
		h.frameCallback(h.ref, dt)
	}
	renderErr := h.ref.RenderScene()
	if h.overlayCallback != nil {
		h.overlayCallback(h.ref, dt)
	}
	endErr := h.ref.EndFrame()

	h.mu.Lock()
	h.frames++
	h.mu.Unlock()

	return errors.Join(renderErr, endErr)
}

func (h *host) Frames() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}

func (h *host) Run() (err error) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return errors.New("host: already running")
	}
	h.running = true
	h.mu.Unlock()

	h.wg.Add(2)
	go h.handleTick()
	go h.handleQuit()

	defer func() {
		h.signalQuit()
		h.wg.Wait()
	}()
	// Recover from panics inside host callbacks and report them as the Run error.
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("render loop recovered from panic: %v", r)
			err = fmt.Errorf("host: render loop panic: %v", r)
		}
	}()

	return h.handleRender()
}

// Quit signals the tick goroutine and the render loop to stop.
func (h *host) Quit() {
	h.signalQuit()
}

// signalQuit closes the quit channel. Uses sync.Once to ensure the channel is only closed once.
func (h *host) signalQuit() {
	h.quitOnce.Do(func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
		close(h.quitChannel)
	})
}

// handleTick runs the fixed-rate logic tick loop in its own goroutine.
// Listens for dynamic rate changes via tickRateChannel. Exits when the quit channel is closed.
func (h *host) handleTick() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.currentTickRate())
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-h.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			h.mu.Lock()
			cb := h.tickCallback
			h.mu.Unlock()
			if cb != nil {
				cb(dt)
			}
		case newRate := <-h.tickRateChannel:
			ticker.Reset(newRate)
			h.mu.Lock()
			h.tickRate = newRate
			h.mu.Unlock()
		}
	}
}

// handleRender runs frames on the calling goroutine until the host stops.
// Protocol violations are logged and the loop continues; any other frame error ends it.
func (h *host) handleRender() error {
	lastRender := time.Now()

	for {
		select {
		case <-h.quitChannel:
			return nil
		default:
		}

		if w := h.ref.Window(); w != nil && (!w.PollEvents() || !w.IsRunning()) {
			logger.Info("window closed")
			return nil
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		if err := h.Frame(dt); err != nil {
			if !errors.Is(err, refapi.ErrProtocolViolation) {
				return err
			}
			logger.Warningf("frame %d: %v", h.Frames(), err)
		}

		if h.maxFrames > 0 && h.Frames() >= h.maxFrames {
			return nil
		}

		// Frame rate limiting
		if h.renderFrameLimit > 0 {
			elapsed := time.Since(lastRender)
			if remaining := h.renderFrameLimit - elapsed; remaining > 0 {
				select {
				case <-h.quitChannel:
					return nil
				case <-time.After(remaining):
				}
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (h *host) handleQuit() {
	defer h.wg.Done()
	<-h.quitChannel
}

func (h *host) currentTickRate() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tickRate
}

func (h *host) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	h.mu.Lock()
	running := h.running
	if !running {
		h.tickRate = newRate
	}
	h.mu.Unlock()
	if !running {
		return
	}

	// Non-blocking send - if channel is full, replace the pending value
	select {
	case h.tickRateChannel <- newRate:
	default:
		select {
		case <-h.tickRateChannel:
		default:
		}
		h.tickRateChannel <- newRate
	}
}

func (h *host) SetTickCallback(callback func(deltaTime float32)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tickCallback = callback
}

func (h *host) SetFrameCallback(callback FrameCallback) {
	h.frameCallback = callback
}

func (h *host) SetOverlayCallback(callback FrameCallback) {
	h.overlayCallback = callback
}

func (h *host) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		h.renderFrameLimit = 0
		return
	}
	h.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (h *host) Level() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

func (h *host) ChangeLevel(level string) error {
	h.mu.Lock()
	current := h.level
	h.mu.Unlock()

	if h.decals != nil && current != "" {
		if err := h.decals.Save(current, h.ref.CreateDecalList()); err != nil {
			return fmt.Errorf("host: change level: %w", err)
		}
	}
	h.ref.ClearAllDecals()

	h.mu.Lock()
	h.level = level
	h.mu.Unlock()

	if h.decals == nil {
		return nil
	}
	entries, err := h.decals.Load(level)
	if err != nil {
		return fmt.Errorf("host: change level: %w", err)
	}
	restored := 0
	for _, e := range entries {
		if h.restoreDecal(e) {
			restored++
		}
	}
	logger.Infof("level %s: restored %d of %d decals", level, restored, len(entries))
	return nil
}

// restoreDecal re-shoots one saved decal, loading its texture through the client if the
// renderer does not have it yet.
func (h *host) restoreDecal(e decal.Entry) bool {
	tex := h.ref.FindTexture(e.Name)
	if !tex.Valid() {
		pic, ok := h.client.LoadImage(e.Name)
		if !ok {
			logger.Debugf("decal texture %s not found", e.Name)
			return false
		}
		tex = h.ref.LoadTextureFromBuffer(e.Name, pic, 0, false)
	}
	return h.ref.DecalShoot(tex, e.EntityIndex, 0, e.Position, e.Flags, e.Scale)
}

func (h *host) Shutdown() error {
	h.signalQuit()
	h.ref.Shutdown()
	if h.decals == nil {
		return nil
	}
	return h.decals.Close()
}
