// Package decal owns the renderer's decal pool: projected impact images attached to world or
// entity surfaces, their per-frame draw queue, and snapshots the host saves with a level.
package decal

import (
	"slices"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/Carmen-Shannon/oxy-ref/log"
	"github.com/go-gl/mathgl/mgl32"
)

var logger = log.New("decal")

// MaxDecals is the default pool capacity.
const MaxDecals = 4096

// Flags are the FDECAL_* bits passed to Shoot and kept in snapshots.
type Flags int

const (
	FlagPermanent Flags = 1 << iota
	FlagUseLandmark
	FlagDontSave
	FlagCustom
	FlagHasUV
	FlagClipTest
	FlagNoClip
	FlagUsesAxis
	FlagStudio
	FlagLocalSpace
)

// overlapRadius is the distance, scaled by the decal scale, within which decals on the same
// entity stack on top of each other.
const overlapRadius = 8

// Decal is one live decal in the pool.
type Decal struct {
	// Serial orders decals by creation; larger is newer.
	Serial uint64

	Texture     texture.Handle
	TextureName string
	EntityIndex int
	ModelIndex  int
	Position    mgl32.Vec3
	Flags       Flags
	Scale       float32

	// Depth counts the older decals this one overlaps on the same entity.
	Depth int
}

// Entry is one element of a decal list snapshot (decallist_t).
type Entry struct {
	Position    mgl32.Vec3
	Name        string
	EntityIndex int
	Depth       int
	Flags       Flags
	Scale       float32
}

// TextureNamer resolves a texture handle to its registered name. texture.Registry satisfies it.
type TextureNamer interface {
	Name(h texture.Handle) string
}

type pool struct {
	mu *sync.Mutex

	textures TextureNamer
	capacity int
	serial   uint64

	decals []*Decal
	queue  []*Decal
}

// Pool is the fixed-capacity decal store.
type Pool interface {
	// Shoot adds a decal. When the pool is full the oldest non-permanent decal is recycled.
	//
	// Parameters:
	//   - tex: the decal texture
	//   - entityIndex: the entity whose surface is hit, 0 for the world
	//   - modelIndex: the model index of that entity
	//   - pos: the impact point in world space
	//   - flags: FDECAL bits
	//   - scale: the decal scale; values <= 0 mean 1
	//
	// Returns:
	//   - bool: false if the texture is unknown or every slot holds a permanent decal
	Shoot(tex texture.Handle, entityIndex, modelIndex int, pos mgl32.Vec3, flags Flags, scale float32) bool

	// CreateList snapshots every decal that may be saved, sorted by depth so that replaying the
	// list in order rebuilds the same stacking.
	CreateList() []Entry

	// RemoveAll removes every decal using tex and returns how many were removed.
	RemoveAll(tex texture.Handle) int

	// RemoveEntity removes every decal attached to entityIndex.
	RemoveEntity(entityIndex int) int

	// ClearAll removes every decal.
	ClearAll()

	// Decals returns the live decals, oldest first.
	Decals() []Decal

	// Count returns the number of live decals.
	Count() int

	// Queue adds the decals of entityIndex to the draw queue of the current pass.
	Queue(entityIndex int)

	// DrawQueue returns the queued decals in the order they were queued.
	DrawQueue() []Decal

	// ClearQueue empties the draw queue.
	ClearQueue()
}

var _ Pool = &pool{}

// NewPool creates an empty decal pool.
//
// Parameters:
//   - textures: resolves decal texture names; Shoot rejects handles it cannot name
//   - options: functional options to configure the pool
//
// Returns:
//   - Pool: the new pool
func NewPool(textures TextureNamer, options ...PoolBuilderOption) Pool {
	p := &pool{
		mu:       &sync.Mutex{},
		textures: textures,
		capacity: MaxDecals,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *pool) Shoot(tex texture.Handle, entityIndex, modelIndex int, pos mgl32.Vec3, flags Flags, scale float32) bool {
	if !tex.Valid() || p.textures == nil {
		return false
	}
	name := p.textures.Name(tex)
	if name == "" {
		return false
	}
	if scale <= 0 {
		scale = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.decals) >= p.capacity && !p.recycleLocked() {
		logger.Debugf("decal pool full of permanent decals, dropping %s", name)
		return false
	}

	d := &Decal{
		Texture:     tex,
		TextureName: name,
		EntityIndex: entityIndex,
		ModelIndex:  modelIndex,
		Position:    pos,
		Flags:       flags,
		Scale:       scale,
	}
	r := overlapRadius * scale
	for _, o := range p.decals {
		if o.EntityIndex == entityIndex && o.Position.Sub(pos).Len() <= r {
			d.Depth++
		}
	}
	p.serial++
	d.Serial = p.serial
	p.decals = append(p.decals, d)
	return true
}

// recycleLocked drops the oldest non-permanent decal.
func (p *pool) recycleLocked() bool {
	for i, d := range p.decals {
		if d.Flags&FlagPermanent == 0 {
			p.removeAtLocked(i)
			return true
		}
	}
	return false
}

func (p *pool) removeAtLocked(i int) {
	d := p.decals[i]
	p.decals = slices.Delete(p.decals, i, i+1)
	p.dequeueLocked(func(q *Decal) bool { return q == d })
}

func (p *pool) dequeueLocked(drop func(*Decal) bool) {
	kept := p.queue[:0]
	for _, q := range p.queue {
		if !drop(q) {
			kept = append(kept, q)
		}
	}
	clear(p.queue[len(kept):])
	p.queue = kept
}

func (p *pool) removeLocked(drop func(*Decal) bool) int {
	kept := p.decals[:0]
	for _, d := range p.decals {
		if !drop(d) {
			kept = append(kept, d)
		}
	}
	n := len(p.decals) - len(kept)
	clear(p.decals[len(kept):])
	p.decals = kept
	p.dequeueLocked(drop)
	return n
}

func (p *pool) CreateList() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Entry, 0, len(p.decals))
	for _, d := range p.decals {
		if d.Flags&FlagDontSave != 0 {
			continue
		}
		out = append(out, Entry{
			Position:    d.Position,
			Name:        d.TextureName,
			EntityIndex: d.EntityIndex,
			Depth:       d.Depth,
			Flags:       d.Flags,
			Scale:       d.Scale,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Depth < out[j].Depth })
	return out
}

func (p *pool) RemoveAll(tex texture.Handle) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(func(d *Decal) bool { return d.Texture == tex })
}

func (p *pool) RemoveEntity(entityIndex int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(func(d *Decal) bool { return d.EntityIndex == entityIndex })
}

func (p *pool) ClearAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.decals)
	p.decals = p.decals[:0]
	clear(p.queue)
	p.queue = p.queue[:0]
}

func (p *pool) Decals() []Decal {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Decal, len(p.decals))
	for i, d := range p.decals {
		out[i] = *d
	}
	return out
}

func (p *pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.decals)
}

func (p *pool) Queue(entityIndex int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range p.decals {
		if d.EntityIndex == entityIndex {
			p.queue = append(p.queue, d)
		}
	}
}

func (p *pool) DrawQueue() []Decal {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Decal, len(p.queue))
	for i, d := range p.queue {
		out[i] = *d
	}
	return out
}

func (p *pool) ClearQueue() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.queue)
	p.queue = p.queue[:0]
}
