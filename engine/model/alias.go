package model

import (
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// AliasFrame is one decoded alias frame (or the first pose of a frame group).
type AliasFrame struct {
	Name string
	Mins mgl32.Vec3
	Maxs mgl32.Vec3

	// Poses is the number of poses, 1 for single frames.
	Poses     int
	Intervals []float32
}

// AliasSkin is one skin entry; group skins animate over several textures.
type AliasSkin struct {
	Textures  []texture.Handle
	Intervals []float32
}

// Alias is the renderer-side cache of a Quake alias model.
type Alias struct {
	Scale       mgl32.Vec3
	ScaleOrigin mgl32.Vec3
	EyePosition mgl32.Vec3

	SkinWidth  int
	SkinHeight int
	Skins      []AliasSkin

	NumVerts int
	NumTris  int
	Frames   []AliasFrame
}

// Textures returns every texture handle the alias model owns.
func (a *Alias) Textures() []texture.Handle {
	var out []texture.Handle
	for _, s := range a.Skins {
		for _, h := range s.Textures {
			if h != texture.None {
				out = append(out, h)
			}
		}
	}
	return out
}
