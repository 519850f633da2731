package model

import (
	"math"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
)

// SpriteFrameType tags each entry of the sprite frame table.
type SpriteFrameType int

const (
	SpriteFrameSingle SpriteFrameType = 0
	SpriteFrameGroup  SpriteFrameType = 1
	SpriteFrameAngled SpriteFrameType = 2
)

// Sprite orientation types.
const (
	SpriteVPParallelUpright  = 0
	SpriteFacingUpright      = 1
	SpriteVPParallel         = 2
	SpriteOriented           = 3
	SpriteVPParallelOriented = 4
)

// Sprite texture formats (Half-Life sprites only).
const (
	SpriteTexNormal     = 0
	SpriteTexAdditive   = 1
	SpriteTexIndexAlpha = 2
	SpriteTexAlphaTest  = 3
)

// SpriteFrame is one decoded sprite image.
type SpriteFrame struct {
	Width  int
	Height int

	// Up, Down, Left and Right are the quad extents relative to the sprite origin.
	Up, Down, Left, Right float32

	Texture texture.Handle
}

// SpriteGroup is one entry of the frame table. Single entries hold exactly one frame, angled
// entries eight frames and group entries an animated sequence with cumulative intervals.
type SpriteGroup struct {
	Type      SpriteFrameType
	Intervals []float32
	Frames    []*SpriteFrame
}

// Sprite is the renderer-side cache of a sprite or map sprite model.
type Sprite struct {
	Version    int
	Type       int
	TexFormat  int
	Width      int
	Height     int
	BeamLength float32
	Groups     []SpriteGroup

	// MapSprite is set for sprites cut out of a plain image.
	MapSprite bool
}

// Textures returns every texture handle the sprite owns.
func (s *Sprite) Textures() []texture.Handle {
	var out []texture.Handle
	for _, g := range s.Groups {
		for _, f := range g.Frames {
			if f != nil && f.Texture != texture.None {
				out = append(out, f.Texture)
			}
		}
	}
	return out
}

// SpriteFrameAt selects the frame image to draw. The frame index is clamped to the frame
// table; group frames are picked by time, angled frames by the yaw of the viewer relative to
// the sprite.
//
// Parameters:
//   - mod: a loaded sprite model
//   - frame: the frame index
//   - time: the host time used to animate group frames
//   - yaw: the sprite yaw in degrees
//   - viewYaw: the viewer yaw in degrees
//
// Returns:
//   - *SpriteFrame: the frame, or nil when mod is not a loaded sprite
func SpriteFrameAt(mod *Model, frame int, time float64, yaw, viewYaw float32) *SpriteFrame {
	if mod == nil || mod.Type != TypeSprite || mod.Sprite == nil || len(mod.Sprite.Groups) == 0 {
		return nil
	}
	groups := mod.Sprite.Groups
	g := groups[common.ClampInt(frame, 0, len(groups)-1)]
	if len(g.Frames) == 0 {
		return nil
	}

	switch g.Type {
	case SpriteFrameGroup:
		full := g.Intervals[len(g.Intervals)-1]
		if full <= 0 {
			return g.Frames[0]
		}
		t := float32(math.Mod(time, float64(full)))
		if t < 0 {
			t += full
		}
		for i, iv := range g.Intervals {
			if iv > t {
				return g.Frames[i]
			}
		}
		return g.Frames[len(g.Frames)-1]
	case SpriteFrameAngled:
		idx := int(math.Round(float64(viewYaw-yaw+45)/360*8)-4) & 7
		if idx >= len(g.Frames) {
			idx = 0
		}
		return g.Frames[idx]
	}
	return g.Frames[0]
}

// GetSpriteParms reports the frame dimensions and frame count of a sprite. It is pure: the
// same model and frame always give the same answer.
//
// Parameters:
//   - mod: the sprite model
//   - frame: the frame index, clamped into the frame table
//
// Returns:
//   - width, height: the selected frame size in pixels
//   - numFrames: the number of frame table entries
//   - ok: false if mod is not a loaded sprite
func GetSpriteParms(mod *Model, frame int) (width, height, numFrames int, ok bool) {
	f := SpriteFrameAt(mod, frame, 0, 0, 0)
	if f == nil {
		return 0, 0, 0, false
	}
	return f.Width, f.Height, mod.NumFrames, true
}
