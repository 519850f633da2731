package triapi

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/go-gl/mathgl/mgl32"
)

// Primitive is the topology of a batch (TRI_*).
type Primitive int

const (
	Triangles Primitive = iota
	TriangleFan
	Quads
	Polygon
	Lines
	TriangleStrip
	QuadStrip
	Points
)

// Valid reports whether p is a known primitive.
func (p Primitive) Valid() bool {
	return p >= Triangles && p <= Points
}

// String returns the short name of the primitive.
func (p Primitive) String() string {
	switch p {
	case Triangles:
		return "triangles"
	case TriangleFan:
		return "fan"
	case Quads:
		return "quads"
	case Polygon:
		return "polygon"
	case Lines:
		return "lines"
	case TriangleStrip:
		return "strip"
	case QuadStrip:
		return "quadstrip"
	case Points:
		return "points"
	}
	return "unknown"
}

// Vertex is one emitted vertex with the attributes current when it was emitted.
type Vertex struct {
	Pos   mgl32.Vec3
	UV    mgl32.Vec2
	Color [4]uint8
}

// Batch is the builder returned by Begin. It is consumed by End; every call on an ended batch
// is a protocol violation.
type Batch struct {
	facet *facet
	id    uint64
	ended bool

	prim  Primitive
	state State
	cur   Vertex
	verts []Vertex
}

// Data is a flushed batch as handed to the sink.
type Data struct {
	Primitive Primitive
	State     State
	Vertices  []Vertex
}

// Primitive returns the topology the batch was opened with. A nil batch reports -1.
func (b *Batch) Primitive() Primitive {
	if b == nil {
		return -1
	}
	return b.prim
}

// Len returns the number of vertices emitted so far.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	b.facet.mu.Lock()
	defer b.facet.mu.Unlock()
	return len(b.verts)
}

// Ended reports whether End was called or the batch was discarded. A nil batch, as returned by
// a failed Begin, is always ended.
func (b *Batch) Ended() bool {
	if b == nil {
		return true
	}
	b.facet.mu.Lock()
	defer b.facet.mu.Unlock()
	return b.ended
}

// nilBatch is the error for calls on the nil batch of a failed Begin. There is no facet to
// report to; the failed Begin already was.
func nilBatch(op string) error {
	err := fmt.Errorf("%s: %w: no batch open", op, refapi.ErrProtocolViolation)
	logger.Warning(err)
	return err
}

// checkLocked rejects calls on a batch that is no longer the open one.
func (b *Batch) checkLocked(op string) error {
	if b.ended || b.facet.open != b {
		err := fmt.Errorf("%s: %w: batch %d is not open", op, refapi.ErrProtocolViolation, b.id)
		b.facet.reportLocked(op, err)
		return err
	}
	return nil
}

// Color4f sets the current colour from floats in [0, 1].
func (b *Batch) Color4f(r, g, bl, a float32) error {
	if b == nil {
		return nilBatch("Color4f")
	}
	b.facet.mu.Lock()
	defer b.facet.mu.Unlock()
	if err := b.checkLocked("Color4f"); err != nil {
		return err
	}
	b.cur.Color = [4]uint8{unitByte(r), unitByte(g), unitByte(bl), unitByte(a)}
	return nil
}

// Color4ub sets the current colour from bytes.
func (b *Batch) Color4ub(r, g, bl, a uint8) error {
	if b == nil {
		return nilBatch("Color4ub")
	}
	b.facet.mu.Lock()
	defer b.facet.mu.Unlock()
	if err := b.checkLocked("Color4ub"); err != nil {
		return err
	}
	b.cur.Color = [4]uint8{r, g, bl, a}
	return nil
}

// TexCoord2f sets the current texture coordinate.
func (b *Batch) TexCoord2f(u, v float32) error {
	if b == nil {
		return nilBatch("TexCoord2f")
	}
	b.facet.mu.Lock()
	defer b.facet.mu.Unlock()
	if err := b.checkLocked("TexCoord2f"); err != nil {
		return err
	}
	b.cur.UV = mgl32.Vec2{u, v}
	return nil
}

// Vertex3f emits a vertex with the current colour and texture coordinate.
func (b *Batch) Vertex3f(x, y, z float32) error {
	return b.Vertex3fv(mgl32.Vec3{x, y, z})
}

// Vertex3fv emits a vertex with the current colour and texture coordinate.
func (b *Batch) Vertex3fv(p mgl32.Vec3) error {
	if b == nil {
		return nilBatch("Vertex3f")
	}
	b.facet.mu.Lock()
	defer b.facet.mu.Unlock()
	if err := b.checkLocked("Vertex3f"); err != nil {
		return err
	}
	v := b.cur
	v.Pos = p
	b.verts = append(b.verts, v)
	return nil
}

// End closes the batch and flushes it to the sink. Batches with no vertices are closed without
// a flush.
//
// Returns:
//   - error: a protocol violation if the batch is stale, or the sink's error
func (b *Batch) End() error {
	if b == nil {
		return nilBatch("End")
	}
	b.facet.mu.Lock()
	if err := b.checkLocked("End"); err != nil {
		b.facet.mu.Unlock()
		return err
	}
	b.ended = true
	b.facet.open = nil
	sink := b.facet.sink
	data := Data{Primitive: b.prim, State: b.state, Vertices: b.verts}
	b.verts = nil
	if len(data.Vertices) > 0 {
		b.facet.flushed++
	}
	b.facet.mu.Unlock()

	if sink == nil || len(data.Vertices) == 0 {
		return nil
	}
	if err := sink.DrawBatch(data); err != nil {
		return fmt.Errorf("triapi: flush %s batch: %w", data.Primitive, err)
	}
	return nil
}

func unitByte(f float32) uint8 {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(f*255 + 0.5)
}
