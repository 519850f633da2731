package loader

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// brushLoaderBackend prepares host-decoded brush models: world textures are uploaded, sky and
// liquid surfaces are classified and liquid surfaces are subdivided for warping.
type brushLoaderBackend struct {
	textures texture.Registry
}

var _ loaderBackend = &brushLoaderBackend{}

func newBrushLoaderBackend(textures texture.Registry) *brushLoaderBackend {
	return &brushLoaderBackend{textures: textures}
}

func (b *brushLoaderBackend) Decode(mod *model.Model, _ []byte, _ texture.Flags) error {
	br := mod.Brush
	if br == nil {
		return fmt.Errorf("%s: brush model has no host data", mod.Name)
	}

	for i, bt := range br.Textures {
		if bt == nil || bt.Pixels == nil || bt.Sky() {
			// Sky pixels are split into the shared sky layers by the renderer.
			continue
		}
		th := b.textures.Load(bt.Name, bt.Pixels, 0, false)
		if th == texture.None {
			b.release(br)
			return fmt.Errorf("%s: world texture %d (%s) rejected", mod.Name, i, bt.Name)
		}
		bt.Texture = th
	}

	mins := mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	maxs := mins.Mul(-1)
	for i, s := range br.Surfaces {
		if s == nil {
			continue
		}
		if s.Texture < 0 || s.Texture >= len(br.Textures) || br.Textures[s.Texture] == nil {
			b.release(br)
			return fmt.Errorf("%s: surface %d references missing texture %d", mod.Name, i, s.Texture)
		}
		bt := br.Textures[s.Texture]
		s.Flags &^= model.SurfDrawSky | model.SurfDrawTurb | model.SurfDrawTiled
		switch {
		case bt.Sky():
			s.Flags |= model.SurfDrawSky | model.SurfDrawTiled
		case bt.Warp():
			s.Flags |= model.SurfDrawTurb | model.SurfDrawTiled
			model.SubdivideSurface(s)
		}
		for _, v := range s.Verts {
			for k := 0; k < 3; k++ {
				mins[k] = min(mins[k], v[k])
				maxs[k] = max(maxs[k], v[k])
			}
		}
	}
	for _, l := range br.Leafs {
		for k := 0; k < 3; k++ {
			mins[k] = min(mins[k], l.Mins[k])
			maxs[k] = max(maxs[k], l.Maxs[k])
		}
	}
	if mins[0] > maxs[0] {
		mins, maxs = mgl32.Vec3{}, mgl32.Vec3{}
	}

	mod.Type = model.TypeBrush
	mod.NumFrames = 1
	mod.Mins, mod.Maxs = mins, maxs
	mod.Radius = common.RadiusFromBounds(mins, maxs)
	return nil
}

// release frees uploaded world textures and drops subdivided polygons.
func (b *brushLoaderBackend) release(br *model.Brush) {
	for _, bt := range br.Textures {
		if bt != nil && bt.Texture != texture.None {
			b.textures.Free(bt.Texture)
			bt.Texture = texture.None
		}
	}
	for _, s := range br.Surfaces {
		if s != nil {
			s.Polys = nil
		}
	}
}
