// Package scene collects what the host contributes to a frame: entities classified into draw
// lists per scene stack level, static entity fragments in world leaves, and debug particles.
package scene

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/decal"
	"github.com/Carmen-Shannon/oxy-ref/engine/entity"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/log"
	"github.com/go-gl/mathgl/mgl32"
)

var logger = log.New("scene")

// MaxVisibleEntities is the default capacity of each per-frame entity list.
const MaxVisibleEntities = 512

// List identifies one of the per-frame entity draw lists.
type List int

const (
	ListSolid List = iota
	ListBeam
	ListTrans
)

// String returns the short name of the list.
func (l List) String() string {
	switch l {
	case ListSolid:
		return "solid"
	case ListBeam:
		return "beam"
	case ListTrans:
		return "trans"
	}
	return "unknown"
}

// DrawItem is one queued entity with its prepared per-frame state.
type DrawItem struct {
	Entity *entity.Entity
	Model  *model.Model
	Type   refapi.EntityType
	List   List

	// Transform is the model-to-world matrix filled in by Render.
	Transform mgl32.Mat4
	// Distance is the squared distance from the view origin, filled in by Render.
	Distance float32
}

// Particle is a debug particle added by the host.
type Particle struct {
	Origin mgl32.Vec3
	Color  uint8
	ZPos   int
	ZVel   int
	// Die is the host clock time after which the particle is discarded.
	Die float64
}

// DrawList is the prepared content of one scene pass, handed to the backend.
type DrawList struct {
	// Depth is the scene stack level the list was built at, 0 for the normal pass.
	Depth int

	Solid   []DrawItem
	Beams   []DrawItem
	Trans   []DrawItem
	Statics []DrawItem

	Particles []Particle

	// Decals are the decals on the world and the listed entities. The renderer fills them in
	// for each pass.
	Decals []decal.Decal
}

// Len returns the number of entity draws in the list.
func (d DrawList) Len() int {
	return len(d.Solid) + len(d.Beams) + len(d.Trans) + len(d.Statics)
}

// Stats is a snapshot of the current pass contents for the speeds counters.
type Stats struct {
	Solid     int
	Beams     int
	Trans     int
	Efrags    int
	Particles int
	Rejected  int
}

// level holds the entity lists of one scene stack level.
type level struct {
	solid []DrawItem
	beams []DrawItem
	trans []DrawItem
}

func (l *level) reset() {
	l.solid = l.solid[:0]
	l.beams = l.beams[:0]
	l.trans = l.trans[:0]
}

type scene struct {
	mu *sync.Mutex

	levels      []*level
	maxEntities int
	rejected    int

	frustum    common.Frustum
	hasFrustum bool

	world *model.Model

	// efrags maps an entity to the world leaves it occupies; leafEnts is the reverse index.
	efrags   map[*entity.Entity][]int
	leafEnts map[int][]*entity.Entity

	particles []Particle

	// computePool prepares per-entity transforms during Render. Workers persist across frames.
	computePool    worker.DynamicWorkerPool
	computeWorkers int
}

// Scene is the per-frame contribution store of the renderer.
type Scene interface {
	// AddEntity classifies and queues one entity for the current pass.
	// Rejection is a normal outcome and never an error.
	//
	// Parameters:
	//   - entityType: the host entity type
	//   - ent: the entity to submit
	//
	// Returns:
	//   - bool: true if the entity was accepted (queued, or invisible and skipped)
	AddEntity(entityType refapi.EntityType, ent *entity.Entity) bool

	// SetFrustum sets the planes AddEntity culls against. Until it is called nothing is culled.
	SetFrustum(f common.Frustum)

	// ClearFrustum disables culling.
	ClearFrustum()

	// SetWorld sets the world brush model used for efrags and light sampling.
	// All efrags are dropped.
	SetWorld(world *model.Model)

	// World returns the current world model or nil.
	World() *model.Model

	// Push opens a new, empty scene level on top of the current one.
	Push()

	// Pop discards the top scene level. Popping the base level is a no-op.
	//
	// Returns:
	//   - bool: true if a level was removed
	Pop() bool

	// Unwind discards every pushed level, returning the number removed.
	Unwind() int

	// Depth returns the number of pushed levels above the base level.
	Depth() int

	// IsNormalPass reports whether the current pass is the base level.
	IsNormalPass() bool

	// Clear discards the entity lists of every level.
	Clear()

	// AddEfrags links ent into every world leaf its bounds touch, replacing any previous links.
	AddEfrags(ent *entity.Entity)

	// RemoveEfrags unlinks ent from all leaves. Removing an unlinked entity is a no-op.
	RemoveEfrags(ent *entity.Entity)

	// EfragLeaves returns the leaves ent is linked into, in ascending order.
	EfragLeaves(ent *entity.Entity) []int

	// LeafEntities returns the entities linked into leaf.
	LeafEntities(leaf int) []*entity.Entity

	// AddParticle queues a debug particle that lives until now+life.
	AddParticle(origin mgl32.Vec3, color uint8, life float32, zpos, zvel int, now float64)

	// LightPoint samples the ambient light of the world leaf containing p.
	//
	// Returns:
	//   - common.ColorVec: the leaf ambient light, zero when there is no world or leaf
	LightPoint(p mgl32.Vec3) common.ColorVec

	// Render prepares the current pass for drawing: transparent entities sorted back to front,
	// statics gathered from visible leaves, transforms computed and expired particles pruned.
	//
	// Parameters:
	//   - viewOrg: the view origin for sorting
	//   - now: the host clock in seconds
	//
	// Returns:
	//   - DrawList: the prepared pass
	Render(viewOrg mgl32.Vec3, now float64) DrawList

	// Stats returns the counters of the current pass.
	Stats() Stats
}

var _ Scene = &scene{}

// NewScene creates an empty Scene with a single base level.
//
// Parameters:
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the new scene
func NewScene(options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:             &sync.Mutex{},
		levels:         []*level{{}},
		maxEntities:    MaxVisibleEntities,
		efrags:         make(map[*entity.Entity][]int),
		leafEnts:       make(map[int][]*entity.Entity),
		computeWorkers: max(runtime.NumCPU()-1, 1),
	}

	for _, option := range options {
		option(s)
	}

	// Created after options so WithComputeWorkers can override the default.
	s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)
	return s
}

// Submission is the scoped context of one AddEntity call. It stands in for a process-wide
// "current entity" and is only valid until AddEntity returns.
type Submission struct {
	Type   refapi.EntityType
	Entity *entity.Entity
	Model  *model.Model

	// Mins and Maxs are the world space bounds of the entity.
	Mins mgl32.Vec3
	Maxs mgl32.Vec3
}

// newSubmission builds the context for ent, or returns nil if it can never be drawn.
func newSubmission(entityType refapi.EntityType, ent *entity.Entity) *Submission {
	if ent == nil || ent.Model == nil || !entityType.Valid() {
		return nil
	}
	if ent.CurState.Effects&refapi.EffectNoDraw != 0 {
		return nil
	}
	if ent.Model.Type == model.TypeBad {
		return nil
	}
	sub := &Submission{Type: entityType, Entity: ent, Model: ent.Model}
	sub.Mins, sub.Maxs = ent.Bounds()
	return sub
}

// List returns the draw list the submission belongs in.
func (s *Submission) List() List {
	switch {
	case s.Type == refapi.EntityBeam:
		return ListBeam
	case s.Entity.Translucent():
		return ListTrans
	}
	return ListSolid
}

// Culled reports whether the submission's bounds fall outside f. Beams span two points and are
// never culled by their model bounds.
func (s *Submission) Culled(f *common.Frustum) bool {
	if f == nil || s.Type == refapi.EntityBeam {
		return false
	}
	return f.CullBox(s.Mins, s.Maxs)
}

func (s *scene) AddEntity(entityType refapi.EntityType, ent *entity.Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := newSubmission(entityType, ent)
	if sub == nil {
		s.rejected++
		return false
	}

	var f *common.Frustum
	if s.hasFrustum {
		f = &s.frustum
	}
	if sub.Culled(f) {
		s.rejected++
		return false
	}

	list := sub.List()
	if list == ListTrans && ent.Invisible() {
		return true
	}

	top := s.levels[len(s.levels)-1]
	dst := &top.solid
	switch list {
	case ListBeam:
		dst = &top.beams
	case ListTrans:
		dst = &top.trans
	}
	if len(*dst) >= s.maxEntities {
		logger.Debugf("%s list full, dropping entity %d", list, ent.Index)
		s.rejected++
		return false
	}
	*dst = append(*dst, DrawItem{Entity: ent, Model: sub.Model, Type: entityType, List: list})
	return true
}

func (s *scene) SetFrustum(f common.Frustum) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frustum = f
	s.hasFrustum = true
}

func (s *scene) ClearFrustum() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasFrustum = false
}

func (s *scene) SetWorld(world *model.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.world = world
	clear(s.efrags)
	clear(s.leafEnts)
}

func (s *scene) World() *model.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world
}

func (s *scene) Push() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels = append(s.levels, &level{})
}

func (s *scene) Pop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.levels) == 1 {
		return false
	}
	s.levels = s.levels[:len(s.levels)-1]
	return true
}

func (s *scene) Unwind() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.levels) - 1
	s.levels = s.levels[:1]
	return n
}

func (s *scene) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.levels) - 1
}

func (s *scene) IsNormalPass() bool {
	return s.Depth() == 0
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.levels {
		l.reset()
	}
	s.rejected = 0
}

func (s *scene) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	top := s.levels[len(s.levels)-1]
	return Stats{
		Solid:     len(top.solid),
		Beams:     len(top.beams),
		Trans:     len(top.trans),
		Efrags:    len(s.efrags),
		Particles: len(s.particles),
		Rejected:  s.rejected,
	}
}

// Render copies the top level so later AddEntity calls do not alias the returned slices.
func (s *scene) Render(viewOrg mgl32.Vec3, now float64) DrawList {
	s.mu.Lock()
	top := s.levels[len(s.levels)-1]
	dl := DrawList{
		Depth:   len(s.levels) - 1,
		Solid:   append([]DrawItem(nil), top.solid...),
		Beams:   append([]DrawItem(nil), top.beams...),
		Trans:   append([]DrawItem(nil), top.trans...),
		Statics: s.visibleStaticsLocked(),
	}
	s.pruneParticlesLocked(now)
	dl.Particles = append([]Particle(nil), s.particles...)
	s.mu.Unlock()

	s.prepare(viewOrg, dl.Solid, dl.Beams, dl.Trans, dl.Statics)

	// Back to front; ties keep submission order.
	sort.SliceStable(dl.Trans, func(i, j int) bool {
		return dl.Trans[i].Distance > dl.Trans[j].Distance
	})
	return dl
}

// prepare fills Transform and Distance for every item, splitting the work across the compute
// pool. pool.Wait() blocks until workers idle out, so a WaitGroup is the per-frame barrier.
func (s *scene) prepare(viewOrg mgl32.Vec3, lists ...[]DrawItem) {
	var items []*DrawItem
	for _, l := range lists {
		for i := range l {
			items = append(items, &l[i])
		}
	}
	if len(items) == 0 {
		return
	}

	chunk := (len(items) + s.computeWorkers - 1) / s.computeWorkers
	var wg sync.WaitGroup
	taskID := 0
	for start := 0; start < len(items); start += chunk {
		part := items[start:min(start+chunk, len(items))]
		wg.Add(1)
		id := taskID
		taskID++
		s.computePool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for _, it := range part {
					it.Transform = EntityTransform(it.Entity)
					d := itemCenter(it).Sub(viewOrg)
					it.Distance = d.Dot(d)
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// itemCenter is the sort reference point of an item. Brush models are placed by their bounds
// centre since their origin is usually the world origin.
func itemCenter(it *DrawItem) mgl32.Vec3 {
	e := it.Entity
	if it.Model != nil && it.Model.Type == model.TypeBrush {
		return e.Origin.Add(it.Model.Mins.Add(it.Model.Maxs).Mul(0.5))
	}
	return e.Origin
}

// EntityTransform builds the model-to-world matrix of an entity from its origin, angles and scale.
// Angles are engine convention: yaw about Z, pitch about Y (positive looks down), roll about X.
//
// Parameters:
//   - e: the entity
//
// Returns:
//   - mgl32.Mat4: translate * yaw * pitch * roll * scale
func EntityTransform(e *entity.Entity) mgl32.Mat4 {
	m := mgl32.Translate3D(e.Origin[0], e.Origin[1], e.Origin[2])
	m = m.Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(e.Angles[common.Yaw])))
	m = m.Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(-e.Angles[common.Pitch])))
	m = m.Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(e.Angles[common.Roll])))
	if sc := e.CurState.Scale; sc > 0 && sc != 1 {
		m = m.Mul4(mgl32.Scale3D(sc, sc, sc))
	}
	return m
}

func (s *scene) AddParticle(origin mgl32.Vec3, color uint8, life float32, zpos, zvel int, now float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.particles = append(s.particles, Particle{
		Origin: origin,
		Color:  color,
		ZPos:   zpos,
		ZVel:   zvel,
		Die:    now + float64(life),
	})
}

func (s *scene) pruneParticlesLocked(now float64) {
	alive := s.particles[:0]
	for _, p := range s.particles {
		if p.Die >= now {
			alive = append(alive, p)
		}
	}
	clear(s.particles[len(alive):])
	s.particles = alive
}

func (s *scene) LightPoint(p mgl32.Vec3) common.ColorVec {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.world == nil || s.world.Brush == nil {
		return common.ColorVec{}
	}
	leaf := s.world.Brush.PointInLeaf(p)
	if leaf < 0 {
		return common.ColorVec{}
	}
	return s.world.Brush.Leafs[leaf].Ambient
}
