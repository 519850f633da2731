// Package frame implements the renderer lifecycle state machine: initialization, the
// Begin/Push/Pop/End frame bracket and shutdown.
package frame

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/log"
)

// DefaultSceneStackDepth is the number of scene slots: the outer scene plus one nested level.
const DefaultSceneStackDepth = 2

var logger = log.New("frame")

// State is a lifecycle state of the renderer.
type State int

const (
	StateUninitialized State = iota
	// StateFailed follows a failed Init; only Shutdown is legal.
	StateFailed
	StateInitialized
	// StateFrameActive covers nested scenes as well; see Machine.Depth.
	StateFrameActive
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateFailed:
		return "failed"
	case StateInitialized:
		return "initialized"
	case StateFrameActive:
		return "frame-active"
	case StateShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ViolationHandler receives every protocol violation detected by the machine.
type ViolationHandler func(op string, err error)

// machine is the implementation of the Machine interface.
type machine struct {
	mu *sync.Mutex

	state    State
	initErr  string
	depth    int
	maxDepth int
	twoD     bool

	frames      uint64
	frameFailed bool

	onViolation ViolationHandler
}

// Machine tracks the legal order of renderer calls. It holds no resources; callers perform
// the work of each transition and ask the machine whether the transition is legal first.
type Machine interface {
	// Init enters the initialized state, or the failed state when initErr is not nil.
	// Init is legal before the first initialization and again after Shutdown.
	//
	// Parameters:
	//   - initErr: the outcome of the caller's initialization work
	//
	// Returns:
	//   - error: a protocol violation when the renderer is already initialized, otherwise initErr
	Init(initErr error) error

	// CanInit reports whether Init is legal now, without changing state.
	CanInit() error

	// InitError returns the message of the last failed Init, "" if none.
	InitError() string

	// BeginFrame opens a frame.
	//
	// Returns:
	//   - error: a protocol violation unless the renderer is initialized with no open frame
	BeginFrame() error

	// EndFrame closes the open frame. When nested scenes are still pushed the frame is closed
	// anyway, the stack is unwound and a violation is returned; the caller must then skip
	// presentation.
	//
	// Returns:
	//   - unwound: the number of scenes that had to be popped
	//   - error: a protocol violation if no frame was open or scenes were left pushed
	EndFrame() (unwound int, err error)

	// PushScene opens a nested scene.
	//
	// Returns:
	//   - error: a protocol violation outside a frame or when the scene stack is full
	PushScene() error

	// PopScene closes the innermost nested scene.
	//
	// Returns:
	//   - error: a protocol violation when no scene is pushed
	PopScene() error

	// Require checks that op may run in the current state.
	//
	// Parameters:
	//   - op: the operation name for error context
	//   - needFrame: true if op is only legal inside an open frame
	//
	// Returns:
	//   - error: ErrShutdown, ErrInitFailed, ErrNotInitialized or a protocol violation
	Require(op string, needFrame bool) error

	// Shutdown enters the terminal state from any state. An open frame is aborted and reported.
	//
	// Returns:
	//   - bool: true if a frame was open and had to be aborted
	Shutdown() bool

	// Violation reports a protocol violation found by the caller and fails the current frame.
	//
	// Parameters:
	//   - op: the operation name
	//   - err: the violation
	Violation(op string, err error)

	// Set2DMode sets the orthogonal 2D projection flag. It is never reset implicitly.
	Set2DMode(enable bool)

	// Is2D returns the 2D projection flag.
	Is2D() bool

	// State returns the current lifecycle state.
	State() State

	// Depth returns the number of currently pushed nested scenes.
	Depth() int

	// Frames returns the number of frames begun since Init.
	Frames() uint64

	// FrameFailed reports whether a violation was reported during the open (or last) frame.
	FrameFailed() bool
}

var _ Machine = &machine{}

// NewMachine creates a state machine in the uninitialized state.
//
// Parameters:
//   - options: functional options to configure the machine
//
// Returns:
//   - Machine: the new state machine
func NewMachine(options ...MachineBuilderOption) Machine {
	m := &machine{
		mu:       &sync.Mutex{},
		maxDepth: DefaultSceneStackDepth,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *machine) violate(op string, format string, args ...any) error {
	err := fmt.Errorf("%w: %s: %s", refapi.ErrProtocolViolation, op, fmt.Sprintf(format, args...))
	m.frameFailed = true
	logger.Warning(err.Error())
	if m.onViolation != nil {
		m.onViolation(op, err)
	}
	return err
}

func (m *machine) Init(initErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.canInitLocked(); err != nil {
		return err
	}
	m.depth, m.frames, m.frameFailed = 0, 0, false
	if initErr != nil {
		m.state = StateFailed
		m.initErr = initErr.Error()
		logger.Errorf("Init failed: %s", m.initErr)
		return initErr
	}
	m.state = StateInitialized
	m.initErr = ""
	logger.Notice("renderer initialized")
	return nil
}

func (m *machine) CanInit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canInitLocked()
}

func (m *machine) canInitLocked() error {
	switch m.state {
	case StateUninitialized, StateShutdown:
		return nil
	case StateFailed:
		return m.violate("Init", "previous Init failed, only Shutdown is legal")
	}
	return m.violate("Init", "renderer already initialized")
}

func (m *machine) InitError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initErr
}

// requireLocked maps the lifecycle state onto the error an operation gets.
func (m *machine) requireLocked(op string, needFrame bool) error {
	switch m.state {
	case StateShutdown:
		err := fmt.Errorf("%s: %w", op, refapi.ErrShutdown)
		m.report(op, err)
		return err
	case StateFailed:
		err := fmt.Errorf("%s: %w: %s", op, refapi.ErrInitFailed, m.initErr)
		m.report(op, err)
		return err
	case StateUninitialized:
		err := fmt.Errorf("%s: %w", op, refapi.ErrNotInitialized)
		m.report(op, err)
		return err
	}
	if needFrame && m.state != StateFrameActive {
		return m.violate(op, "called outside BeginFrame/EndFrame")
	}
	return nil
}

// report forwards a lifecycle error to the violation handler.
func (m *machine) report(op string, err error) {
	logger.Warning(err.Error())
	if m.onViolation != nil {
		m.onViolation(op, err)
	}
}

func (m *machine) Require(op string, needFrame bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requireLocked(op, needFrame)
}

func (m *machine) BeginFrame() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireLocked("BeginFrame", false); err != nil {
		return err
	}
	if m.state == StateFrameActive {
		return m.violate("BeginFrame", "frame %d already active", m.frames)
	}
	m.state = StateFrameActive
	m.frames++
	m.frameFailed = false
	logger.Debugf("frame %d begin", m.frames)
	return nil
}

func (m *machine) EndFrame() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireLocked("EndFrame", true); err != nil {
		return 0, err
	}
	m.state = StateInitialized
	unwound := m.depth
	m.depth = 0
	if unwound > 0 {
		return unwound, m.violate("EndFrame", "%d scene(s) still pushed, stack unwound", unwound)
	}
	logger.Debugf("frame %d end", m.frames)
	return 0, nil
}

func (m *machine) PushScene() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireLocked("PushScene", true); err != nil {
		return err
	}
	if m.depth+1 >= m.maxDepth {
		return m.violate("PushScene", "scene stack overflow (%d slots)", m.maxDepth)
	}
	m.depth++
	return nil
}

func (m *machine) PopScene() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireLocked("PopScene", true); err != nil {
		return err
	}
	if m.depth == 0 {
		return m.violate("PopScene", "scene stack underflow")
	}
	m.depth--
	return nil
}

func (m *machine) Shutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	aborted := m.state == StateFrameActive
	if aborted {
		m.violate("Shutdown", "frame %d still active, aborted", m.frames)
	}
	m.state = StateShutdown
	m.depth = 0
	logger.Notice("renderer shut down")
	return aborted
}

func (m *machine) Violation(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frameFailed = true
	m.report(op, err)
}

func (m *machine) Set2DMode(enable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.twoD = enable
}

func (m *machine) Is2D() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.twoD
}

func (m *machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *machine) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth
}

func (m *machine) Frames() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

func (m *machine) FrameFailed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frameFailed
}
