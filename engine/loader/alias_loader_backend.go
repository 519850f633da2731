package loader

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	aliasVersion  = 6
	maxAliasVerts = 2048
	maxAliasTris  = 4096

	aliasSingle = 0
	aliasGroup  = 1
)

type aliasHeader struct { // mdl_t
	Ident          int32
	Version        int32
	Scale          [3]float32
	ScaleOrigin    [3]float32
	BoundingRadius float32
	EyePosition    [3]float32
	NumSkins       int32
	SkinWidth      int32
	SkinHeight     int32
	NumVerts       int32
	NumTris        int32
	NumFrames      int32
	SyncType       int32
	Flags          int32
	Size           float32
}

type aliasFrameHeader struct { // daliasframe_t
	BBoxMin [4]byte
	BBoxMax [4]byte
	Name    [16]byte
}

type aliasGroupHeader struct { // daliasgroup_t
	NumFrames int32
	BBoxMin   [4]byte
	BBoxMax   [4]byte
}

// aliasLoaderBackend decodes Quake IDPO alias models and registers their skins.
type aliasLoaderBackend struct {
	textures texture.Registry
	palette  []byte
}

var _ loaderBackend = &aliasLoaderBackend{}

func newAliasLoaderBackend(textures texture.Registry, palette []byte) *aliasLoaderBackend {
	return &aliasLoaderBackend{textures: textures, palette: palette}
}

func (b *aliasLoaderBackend) Decode(mod *model.Model, buf []byte, _ texture.Flags) error {
	c := newCursor(buf)
	var h aliasHeader
	if err := c.read(&h); err != nil {
		return err
	}
	if h.Ident != ident("IDPO") {
		return fmt.Errorf("%s: not an alias model", mod.Name)
	}
	if h.Version != aliasVersion {
		return fmt.Errorf("%s: has wrong version number (%d should be %d)", mod.Name, h.Version, aliasVersion)
	}
	switch {
	case h.SkinWidth <= 0 || h.SkinHeight <= 0:
		return fmt.Errorf("%s: invalid skin size %dx%d", mod.Name, h.SkinWidth, h.SkinHeight)
	case h.NumVerts <= 0 || h.NumVerts > maxAliasVerts:
		return fmt.Errorf("%s: invalid number of vertices %d", mod.Name, h.NumVerts)
	case h.NumTris <= 0 || h.NumTris > maxAliasTris:
		return fmt.Errorf("%s: invalid number of triangles %d", mod.Name, h.NumTris)
	case h.NumFrames < 1:
		return fmt.Errorf("%s: invalid number of frames %d", mod.Name, h.NumFrames)
	case h.NumSkins < 1:
		return fmt.Errorf("%s: invalid number of skins %d", mod.Name, h.NumSkins)
	}

	alias := &model.Alias{
		Scale:       h.Scale,
		ScaleOrigin: h.ScaleOrigin,
		EyePosition: h.EyePosition,
		SkinWidth:   int(h.SkinWidth),
		SkinHeight:  int(h.SkinHeight),
		NumVerts:    int(h.NumVerts),
		NumTris:     int(h.NumTris),
	}

	fail := func(err error) error {
		for _, th := range alias.Textures() {
			b.textures.Free(th)
		}
		return err
	}

	skinSize := int(h.SkinWidth * h.SkinHeight)
	loadSkin := func(i, j int) (texture.Handle, error) {
		pixels, err := c.bytes(skinSize)
		if err != nil {
			return texture.None, err
		}
		pic := &common.RGBData{
			Width:   int(h.SkinWidth),
			Height:  int(h.SkinHeight),
			Type:    common.PixelIndexed24,
			Palette: b.palette,
			Buffer:  append([]byte(nil), pixels...),
		}
		th := b.textures.Load(fmt.Sprintf("#%s_%d_%d", mod.Name, i, j), pic, texture.FlagKeepSource, false)
		if th == texture.None {
			return th, fmt.Errorf("%s: skin %d.%d: texture rejected", mod.Name, i, j)
		}
		return th, nil
	}

	if err := c.fits(int(h.NumSkins), 4); err != nil {
		return fail(fmt.Errorf("%s: skins: %w", mod.Name, err))
	}
	alias.Skins = make([]model.AliasSkin, h.NumSkins)
	for i := range alias.Skins {
		var skinType int32
		if err := c.read(&skinType); err != nil {
			return fail(err)
		}
		skin := &alias.Skins[i]
		switch skinType {
		case aliasSingle:
			th, err := loadSkin(i, 0)
			if err != nil {
				return fail(err)
			}
			skin.Textures = []texture.Handle{th}
		case aliasGroup:
			var n int32
			if err := c.read(&n); err != nil {
				return fail(err)
			}
			if n < 1 {
				return fail(fmt.Errorf("%s: skin group %d is empty", mod.Name, i))
			}
			if err := c.fits(int(n), 4); err != nil {
				return fail(fmt.Errorf("%s: skin group %d: %w", mod.Name, i, err))
			}
			skin.Intervals = make([]float32, n)
			if err := c.read(skin.Intervals); err != nil {
				return fail(err)
			}
			for j := 0; j < int(n); j++ {
				th, err := loadSkin(i, j)
				if err != nil {
					return fail(err)
				}
				skin.Textures = append(skin.Textures, th)
			}
		default:
			return fail(fmt.Errorf("%s: unknown skin type %d", mod.Name, skinType))
		}
	}

	// Texture coordinates and triangles are consumed by the backend draw path only.
	if _, err := c.bytes(int(h.NumVerts) * 12); err != nil {
		return fail(err)
	}
	if _, err := c.bytes(int(h.NumTris) * 16); err != nil {
		return fail(err)
	}

	mins := mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	maxs := mins.Mul(-1)
	bounds := func(frame *model.AliasFrame, bmin, bmax [4]byte) {
		for k := 0; k < 3; k++ {
			frame.Mins[k] = h.Scale[k]*float32(bmin[k]) + h.ScaleOrigin[k]
			frame.Maxs[k] = h.Scale[k]*float32(bmax[k]) + h.ScaleOrigin[k]
			mins[k] = min(mins[k], frame.Mins[k])
			maxs[k] = max(maxs[k], frame.Maxs[k])
		}
	}
	vertBytes := int(h.NumVerts) * 4

	if err := c.fits(int(h.NumFrames), 4); err != nil {
		return fail(fmt.Errorf("%s: frames: %w", mod.Name, err))
	}
	alias.Frames = make([]model.AliasFrame, h.NumFrames)
	for i := range alias.Frames {
		var frameType int32
		if err := c.read(&frameType); err != nil {
			return fail(err)
		}
		frame := &alias.Frames[i]
		switch frameType {
		case aliasSingle:
			var fh aliasFrameHeader
			if err := c.read(&fh); err != nil {
				return fail(err)
			}
			if _, err := c.bytes(vertBytes); err != nil {
				return fail(err)
			}
			frame.Name, frame.Poses = cstring(fh.Name[:]), 1
			bounds(frame, fh.BBoxMin, fh.BBoxMax)
		case aliasGroup:
			var gh aliasGroupHeader
			if err := c.read(&gh); err != nil {
				return fail(err)
			}
			if gh.NumFrames < 1 {
				return fail(fmt.Errorf("%s: frame group %d is empty", mod.Name, i))
			}
			frame.Poses = int(gh.NumFrames)
			if err := c.fits(int(gh.NumFrames), 4); err != nil {
				return fail(fmt.Errorf("%s: frame group %d: %w", mod.Name, i, err))
			}
			frame.Intervals = make([]float32, gh.NumFrames)
			if err := c.read(frame.Intervals); err != nil {
				return fail(err)
			}
			bounds(frame, gh.BBoxMin, gh.BBoxMax)
			for j := 0; j < int(gh.NumFrames); j++ {
				var fh aliasFrameHeader
				if err := c.read(&fh); err != nil {
					return fail(err)
				}
				if _, err := c.bytes(vertBytes); err != nil {
					return fail(err)
				}
				if j == 0 {
					frame.Name = cstring(fh.Name[:])
				}
			}
		default:
			return fail(fmt.Errorf("%s: unknown frame type %d", mod.Name, frameType))
		}
	}

	mod.Type = model.TypeAlias
	mod.Alias = alias
	mod.Flags = int(h.Flags)
	mod.NumFrames = int(h.NumFrames)
	mod.SyncType = int(h.SyncType)
	mod.Radius = h.BoundingRadius
	mod.Mins, mod.Maxs = mins, maxs
	return nil
}
