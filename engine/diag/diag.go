// Package diag is the renderer's diagnostics facet: per-frame speed counters, the protocol
// violation log, textual dumps of textures and the world tree, and a live stats stream.
package diag

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/log"
)

var logger = log.New("diag")

// DefaultViolationCapacity is the default size of the violation ring.
const DefaultViolationCapacity = 64

// Counter selects a per-frame counter.
type Counter int

const (
	CounterTempEnts Counter = iota
	CounterEntities
	CounterStatics
	CounterDecals
	CounterParticles
	CounterBatches
	CounterTextureUploads

	numCounters
)

var counterNames = [numCounters]string{
	"tempents",
	"entities",
	"statics",
	"decals",
	"particles",
	"batches",
	"uploads",
}

// String returns the short name of the counter.
func (c Counter) String() string {
	if c < 0 || c >= numCounters {
		return "unknown"
	}
	return counterNames[c]
}

// Violation is one recorded protocol violation.
type Violation struct {
	Op    string    `json:"op"`
	Err   string    `json:"err"`
	Frame uint64    `json:"frame"`
	Time  time.Time `json:"time"`
}

// FrameStats is the summary of one finished frame, as sent on the stream.
type FrameStats struct {
	Frame      uint64         `json:"frame"`
	Failed     bool           `json:"failed"`
	Duration   time.Duration  `json:"duration_ns"`
	Counters   map[string]int `json:"counters"`
	Violations int            `json:"violations"`
}

type diagnostics struct {
	mu *sync.Mutex

	counters   [numCounters]int
	frame      uint64
	frameStart time.Time
	last       FrameStats

	ring     []Violation
	ringCap  int
	ringNext int
	total    int

	stream *Stream
}

// Diagnostics collects counters and violations and publishes frame summaries.
type Diagnostics interface {
	// IncrementSpeedsCounter bumps a host-driven r_speeds counter.
	IncrementSpeedsCounter(c refapi.SpeedsCounter)

	// Add adds n to a per-frame counter.
	Add(c Counter, n int)

	// Counter returns the current value of c.
	Counter(c Counter) int

	// StartFrame zeroes the per-frame counters.
	//
	// Parameters:
	//   - frame: the frame number that is starting
	StartFrame(frame uint64)

	// EndFrame closes the frame and publishes its summary to the stream, if any.
	//
	// Parameters:
	//   - failed: whether the frame was marked failed by a violation
	//
	// Returns:
	//   - FrameStats: the summary of the frame
	EndFrame(failed bool) FrameStats

	// LastFrame returns the summary of the most recently ended frame.
	LastFrame() FrameStats

	// Violation records a protocol violation against the current frame.
	Violation(op string, err error)

	// Violations returns the recorded violations, oldest first.
	Violations() []Violation

	// ViolationCount returns the number of violations recorded since creation, including
	// those that have fallen out of the ring.
	ViolationCount() int

	// SetStream attaches or detaches (nil) the live stats stream.
	SetStream(s *Stream)

	// WriteCounters writes the current counters as "name: value" lines.
	WriteCounters(w io.Writer) error
}

var _ Diagnostics = &diagnostics{}

// New creates a Diagnostics facet.
//
// Parameters:
//   - options: functional options to configure the facet
//
// Returns:
//   - Diagnostics: the new facet
func New(options ...DiagnosticsBuilderOption) Diagnostics {
	d := &diagnostics{
		mu:      &sync.Mutex{},
		ringCap: DefaultViolationCapacity,
	}
	for _, option := range options {
		option(d)
	}
	return d
}

func (d *diagnostics) IncrementSpeedsCounter(c refapi.SpeedsCounter) {
	switch c {
	case refapi.SpeedsActiveTempEnts:
		d.Add(CounterTempEnts, 1)
	default:
		logger.Debugf("unknown speeds counter %d", c)
	}
}

func (d *diagnostics) Add(c Counter, n int) {
	if c < 0 || c >= numCounters {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counters[c] += n
}

func (d *diagnostics) Counter(c Counter) int {
	if c < 0 || c >= numCounters {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters[c]
}

func (d *diagnostics) StartFrame(frame uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counters = [numCounters]int{}
	d.frame = frame
	d.frameStart = time.Now()
}

func (d *diagnostics) EndFrame(failed bool) FrameStats {
	d.mu.Lock()
	st := FrameStats{
		Frame:      d.frame,
		Failed:     failed,
		Counters:   make(map[string]int, numCounters),
		Violations: d.total,
	}
	if !d.frameStart.IsZero() {
		st.Duration = time.Since(d.frameStart)
	}
	for i, v := range d.counters {
		st.Counters[counterNames[i]] = v
	}
	d.last = st
	stream := d.stream
	d.mu.Unlock()

	if stream != nil {
		stream.Publish(st)
	}
	return st
}

func (d *diagnostics) LastFrame() FrameStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func (d *diagnostics) Violation(op string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	v := Violation{Op: op, Err: msg, Frame: d.frame, Time: time.Now()}
	if len(d.ring) < d.ringCap {
		d.ring = append(d.ring, v)
	} else {
		d.ring[d.ringNext] = v
	}
	d.ringNext = (d.ringNext + 1) % d.ringCap
	d.total++
	logger.Debugf("recorded violation in %s (frame %d)", op, d.frame)
}

func (d *diagnostics) Violations() []Violation {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.ring) < d.ringCap {
		return append([]Violation(nil), d.ring...)
	}
	out := make([]Violation, 0, d.ringCap)
	out = append(out, d.ring[d.ringNext:]...)
	return append(out, d.ring[:d.ringNext]...)
}

func (d *diagnostics) ViolationCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.total
}

func (d *diagnostics) SetStream(s *Stream) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stream = s
}

func (d *diagnostics) WriteCounters(w io.Writer) error {
	d.mu.Lock()
	counters := d.counters
	d.mu.Unlock()
	for i, v := range counters {
		if _, err := fmt.Fprintf(w, "%s: %d\n", counterNames[i], v); err != nil {
			return err
		}
	}
	return nil
}
