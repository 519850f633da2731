package scene

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/entity"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
)

func (s *scene) AddEfrags(ent *entity.Entity) {
	if ent == nil || ent.Model == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.world == nil || s.world.Brush == nil {
		return
	}

	s.removeEfragsLocked(ent)

	mins, maxs := ent.Bounds()
	var leaves []int
	for i, leaf := range s.world.Brush.Leafs {
		if leaf.Contents == model.ContentsSolid {
			continue
		}
		if common.BoundsIntersect(mins, maxs, leaf.Mins, leaf.Maxs) {
			leaves = append(leaves, i)
		}
	}
	if len(leaves) == 0 {
		return
	}
	s.efrags[ent] = leaves
	for _, l := range leaves {
		s.leafEnts[l] = append(s.leafEnts[l], ent)
	}
}

func (s *scene) RemoveEfrags(ent *entity.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeEfragsLocked(ent)
}

func (s *scene) removeEfragsLocked(ent *entity.Entity) {
	leaves, ok := s.efrags[ent]
	if !ok {
		return
	}
	for _, l := range leaves {
		ents := slices.DeleteFunc(s.leafEnts[l], func(e *entity.Entity) bool { return e == ent })
		if len(ents) == 0 {
			delete(s.leafEnts, l)
		} else {
			s.leafEnts[l] = ents
		}
	}
	delete(s.efrags, ent)
}

func (s *scene) EfragLeaves(ent *entity.Entity) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.efrags[ent])
}

func (s *scene) LeafEntities(leaf int) []*entity.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.leafEnts[leaf])
}

// visibleStaticsLocked gathers each linked entity once if any of its leaves is inside the frustum.
func (s *scene) visibleStaticsLocked() []DrawItem {
	if len(s.efrags) == 0 {
		return nil
	}
	leafs := s.world.Brush.Leafs
	seen := make(map[*entity.Entity]bool, len(s.efrags))
	var out []DrawItem

	ids := make([]int, 0, len(s.leafEnts))
	for l := range s.leafEnts {
		ids = append(ids, l)
	}
	slices.Sort(ids)

	for _, l := range ids {
		if s.hasFrustum && s.frustum.CullBox(leafs[l].Mins, leafs[l].Maxs) {
			continue
		}
		for _, e := range s.leafEnts[l] {
			if seen[e] || e.CurState.Effects&refapi.EffectNoDraw != 0 {
				continue
			}
			seen[e] = true
			list := ListSolid
			if e.Translucent() {
				list = ListTrans
			}
			out = append(out, DrawItem{Entity: e, Model: e.Model, List: list})
		}
	}
	return out
}
