package model

import (
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// Studio sequence flags.
const (
	StudioLooping = 0x0001
)

// Studio texture flags.
const (
	StudioNFFlatShade  = 0x0001
	StudioNFChrome     = 0x0002
	StudioNFFullBright = 0x0004
	StudioNFNoMips     = 0x0008
	StudioNFAlpha      = 0x0010
	StudioNFAdditive   = 0x0020
	StudioNFMasked     = 0x0040
)

// Sequence is one studio animation sequence.
type Sequence struct {
	Label          string
	FPS            float32
	Flags          int
	Activity       int
	NumFrames      int
	LinearMovement mgl32.Vec3
	Mins           mgl32.Vec3
	Maxs           mgl32.Vec3
}

// Looping reports whether the sequence wraps around at its last frame.
func (s *Sequence) Looping() bool {
	return s.Flags&StudioLooping != 0
}

// StudioTexture is one embedded studio skin.
type StudioTexture struct {
	Name    string
	Flags   int
	Width   int
	Height  int
	Texture texture.Handle
}

// Studio is the renderer-side cache of a Half-Life studio model. Its textures have their own
// lifecycle: they can be unloaded and reloaded while the geometry stays loaded.
type Studio struct {
	Name        string
	Length      int
	EyePosition mgl32.Vec3
	Mins        mgl32.Vec3
	Maxs        mgl32.Vec3
	Flags       int

	NumBones      int
	NumBodyParts  int
	NumSkinRef    int
	NumSkinFamily int
	Sequences     []Sequence
	Textures      []StudioTexture

	// TexturesLoaded is set between StudioLoadTextures and StudioUnloadTextures.
	TexturesLoaded bool
}

// Sequence returns the sequence at index seq clamped into the sequence table, or nil when the
// model has no sequences.
func (s *Studio) Sequence(seq int) *Sequence {
	if s == nil || len(s.Sequences) == 0 {
		return nil
	}
	if seq < 0 || seq >= len(s.Sequences) {
		seq = 0
	}
	return &s.Sequences[seq]
}
