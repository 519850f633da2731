package renderer

import (
	"io"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/decal"
	"github.com/Carmen-Shannon/oxy-ref/engine/diag"
	"github.com/Carmen-Shannon/oxy-ref/engine/entity"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/Carmen-Shannon/oxy-ref/engine/triapi"
	"github.com/go-gl/mathgl/mgl32"
)

func (r *renderer) AddEntity(entityType refapi.EntityType, ent *entity.Entity) bool {
	if r.machine.Require("AddEntity", true) != nil {
		return false
	}
	return r.scene.AddEntity(entityType, ent)
}

func (r *renderer) AddEfrags(ent *entity.Entity) {
	if r.machine.Require("AddEfrags", false) != nil {
		return
	}
	r.scene.AddEfrags(ent)
}

func (r *renderer) RemoveEfrags(ent *entity.Entity) {
	if r.machine.Require("RemoveEfrags", false) != nil {
		return
	}
	r.scene.RemoveEfrags(ent)
}

func (r *renderer) Particle(origin mgl32.Vec3, color uint8, life float32, zpos, zvel int) {
	if r.machine.Require("Particle", false) != nil {
		return
	}
	r.scene.AddParticle(origin, color, life, zpos, zvel, r.engine.ClientTime())
}

func (r *renderer) LightPoint(p mgl32.Vec3) common.ColorVec {
	return r.scene.LightPoint(p)
}

func (r *renderer) ShowTextures(w io.Writer) {
	diag.ShowTextures(w, r.textures.List())
}

func (r *renderer) ShowTree(w io.Writer) error {
	return diag.ShowTree(w, r.scene.World(), r.scene)
}

func (r *renderer) DecalShoot(tex texture.Handle, entityIndex, modelIndex int, pos mgl32.Vec3, flags decal.Flags, scale float32) bool {
	if r.machine.Require("DecalShoot", false) != nil {
		return false
	}
	return r.decals.Shoot(tex, entityIndex, modelIndex, pos, flags, scale)
}

func (r *renderer) DecalRemoveAll(tex texture.Handle) int {
	if r.machine.Require("DecalRemoveAll", false) != nil {
		return 0
	}
	return r.decals.RemoveAll(tex)
}

func (r *renderer) CreateDecalList() []decal.Entry {
	if r.machine.Require("CreateDecalList", false) != nil {
		return nil
	}
	return r.decals.CreateList()
}

func (r *renderer) ClearAllDecals() {
	if r.machine.Require("ClearAllDecals", false) != nil {
		return
	}
	r.decals.ClearAll()
}

func (r *renderer) StudioEstimateFrame(ent *entity.Entity, seq *model.Sequence) float64 {
	return entity.StudioEstimateFrame(ent, seq, r.engine.ClientTime())
}

func (r *renderer) StudioLerpMovement(ent *entity.Entity, time float64) (origin, angles mgl32.Vec3) {
	return entity.StudioLerpMovement(ent, time)
}

func (r *renderer) TriRenderMode(mode refapi.RenderMode) {
	if r.machine.Require("TriRenderMode", false) != nil {
		return
	}
	r.tri.RenderMode(mode)
}

func (r *renderer) TriBegin(prim triapi.Primitive) (*triapi.Batch, error) {
	if err := r.machine.Require("TriBegin", true); err != nil {
		return nil, err
	}
	return r.tri.Begin(prim)
}

func (r *renderer) TriSpriteTexture(mod *model.Model, frame int) bool {
	if r.machine.Require("TriSpriteTexture", false) != nil {
		return false
	}
	return r.tri.SpriteTexture(mod, frame)
}

func (r *renderer) TriWorldToScreen(p mgl32.Vec3) (mgl32.Vec3, bool) {
	if r.machine.Require("TriWorldToScreen", false) != nil {
		return mgl32.Vec3{}, true
	}
	return r.tri.WorldToScreen(p)
}

func (r *renderer) TriScreenToWorld(screen mgl32.Vec3) mgl32.Vec3 {
	if r.machine.Require("TriScreenToWorld", false) != nil {
		return mgl32.Vec3{}
	}
	return r.tri.ScreenToWorld(screen)
}

func (r *renderer) TriGetMatrix(pname int) mgl32.Mat4 {
	if r.machine.Require("TriGetMatrix", false) != nil {
		return mgl32.Ident4()
	}
	return r.tri.GetMatrix(pname)
}

// TriFog records the requested fog and applies it unless AllowFog(false) is in effect.
func (r *renderer) TriFog(color mgl32.Vec3, start, end float32, on bool) {
	if r.machine.Require("TriFog", false) != nil {
		return
	}
	r.mu.Lock()
	r.fogOn = on
	denied := r.fogDenied
	r.mu.Unlock()
	r.tri.Fog(color, start, end, on && !denied)
}

func (r *renderer) TriFogParams(density float32, skybox bool) {
	if r.machine.Require("TriFogParams", false) != nil {
		return
	}
	r.tri.FogParams(density, skybox)
}

func (r *renderer) TriCullFace(mode triapi.CullMode) {
	if r.machine.Require("TriCullFace", false) != nil {
		return
	}
	r.tri.CullFace(mode)
}

func (r *renderer) RenderAPI() refapi.RenderAPI {
	return r.renderAPI
}

func (r *renderer) RenderInterface() refapi.RenderInterface {
	return r.renderInterface
}

func (r *renderer) VGuiAPI() refapi.VGuiAPI {
	return r.vguiAPI
}

func (r *renderer) EfxAPI() refapi.EfxAPI {
	return r.efxAPI
}
