package renderer

import (
	"strings"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
)

// skyPath is the directory sky box sides are loaded from.
const skyPath = "gfx/env/"

func (r *renderer) LoadTextureFromBuffer(name string, pic *common.RGBData, flags texture.Flags, update bool) texture.Handle {
	if r.machine.Require("LoadTextureFromBuffer", false) != nil {
		return 0
	}
	return r.textures.Load(name, pic, flags, update)
}

func (r *renderer) FindTexture(name string) texture.Handle {
	if r.machine.Require("FindTexture", false) != nil {
		return 0
	}
	return r.textures.Find(name)
}

func (r *renderer) FreeTexture(h texture.Handle) {
	if r.machine.Require("FreeTexture", false) != nil {
		return
	}
	if !r.textures.Free(h) {
		logger.Debugf("FreeTexture: %s is not a free-able texture", h)
	}
}

func (r *renderer) TextureName(h texture.Handle) string {
	if r.machine.Require("TextureName", false) != nil {
		return ""
	}
	return r.textures.Name(h)
}

func (r *renderer) TextureData(h texture.Handle) []byte {
	if r.machine.Require("TextureData", false) != nil {
		return nil
	}
	return r.textures.Data(h)
}

func (r *renderer) TextureOriginalBuffer(h texture.Handle) []byte {
	if r.machine.Require("TextureOriginalBuffer", false) != nil {
		return nil
	}
	return r.textures.OriginalBuffer(h)
}

func (r *renderer) GetBuiltinTexture(kind texture.SharedKind) texture.Handle {
	if r.machine.Require("GetBuiltinTexture", false) != nil {
		return 0
	}
	return r.textures.AcquireShared(kind)
}

func (r *renderer) FreeSharedTexture(kind texture.SharedKind) {
	if r.machine.Require("FreeSharedTexture", false) != nil {
		return
	}
	r.textures.ReleaseShared(kind)
}

func (r *renderer) ProcessTexture(h texture.Handle, gamma float32, topColor, bottomColor int) error {
	if err := r.machine.Require("ProcessTexture", false); err != nil {
		return err
	}
	if err := r.textures.Process(h, gamma, topColor, bottomColor); err != nil {
		logger.Warningf("ProcessTexture: %v", err)
		return err
	}
	return nil
}

func (r *renderer) SetupSky(name string) bool {
	if r.machine.Require("SetupSky", false) != nil {
		return false
	}
	r.freeSky()
	if name == "" {
		return false
	}

	var sides [6]texture.Handle
	for i, suffix := range texture.SkySuffixes {
		path := skyPath + name + suffix
		pic, ok := r.engine.LoadImage(path)
		if ok {
			sides[i] = r.textures.Load(path, pic, texture.FlagSkySide|texture.FlagClamp, false)
		}
		if !sides[i].Valid() {
			logger.Warningf("SetupSky: missing side %s", path)
			for _, h := range sides[:i] {
				r.textures.Free(h)
			}
			return false
		}
	}

	r.mu.Lock()
	r.sky = sides
	r.mu.Unlock()
	logger.Infof("sky %s loaded", name)
	return true
}

// freeSky releases the current sky box sides.
func (r *renderer) freeSky() {
	r.mu.Lock()
	sides := r.sky
	r.sky = [6]texture.Handle{}
	r.mu.Unlock()
	for _, h := range sides {
		if h.Valid() {
			r.textures.Free(h)
		}
	}
}

func (r *renderer) InitSkyClouds(mip *common.RGBData) bool {
	if r.machine.Require("InitSkyClouds", false) != nil {
		return false
	}
	solid, alpha, err := texture.SplitSkyClouds(mip)
	if err != nil {
		logger.Warningf("InitSkyClouds: %v", err)
		return false
	}
	if !r.textures.ReplaceShared(texture.SharedSolidSky, solid).Valid() {
		return false
	}
	return r.textures.ReplaceShared(texture.SharedAlphaSky, alpha).Valid()
}

// isWorldModel reports whether mod is a map; maps become the world of the scene.
func isWorldModel(kind model.Type, mod *model.Model) bool {
	return kind == model.TypeBrush && strings.HasPrefix(strings.ToLower(mod.Name), "maps/")
}

func (r *renderer) LoadModel(kind model.Type, mod *model.Model, buf []byte, flags texture.Flags) bool {
	if r.machine.Require("LoadModel", false) != nil || mod == nil {
		return false
	}
	if !r.models.Load(kind, mod, buf, flags) {
		return false
	}
	if isWorldModel(kind, mod) {
		r.scene.SetWorld(mod)
		logger.Infof("world set to %s", mod.Name)
		for _, bt := range mod.Brush.Textures {
			if bt != nil && bt.Sky() && bt.Pixels != nil {
				r.InitSkyClouds(bt.Pixels)
				break
			}
		}
	}
	return true
}

func (r *renderer) LoadMapSprite(mod *model.Model, buf []byte) bool {
	if r.machine.Require("LoadMapSprite", false) != nil {
		return false
	}
	return r.models.LoadMapSprite(mod, buf)
}

func (r *renderer) UnloadModel(mod *model.Model) {
	if mod == nil || r.machine.Require("UnloadModel", false) != nil {
		return
	}
	if r.scene.World() == mod {
		r.scene.SetWorld(nil)
		r.decals.RemoveEntity(0)
	}
	r.models.Unload(mod)
}

func (r *renderer) StudioLoadTextures(mod *model.Model, data []byte) bool {
	if r.machine.Require("StudioLoadTextures", false) != nil {
		return false
	}
	return r.models.StudioLoadTextures(mod, data)
}

func (r *renderer) StudioUnloadTextures(st *model.Studio) {
	r.models.StudioUnloadTextures(st)
}

func (r *renderer) GetSpriteParms(mod *model.Model, frame int) (width, height, numFrames int, ok bool) {
	return model.GetSpriteParms(mod, frame)
}

func (r *renderer) SubdivideSurface(surf *model.Surface) {
	if surf == nil {
		return
	}
	model.SubdivideSurface(surf)
}
