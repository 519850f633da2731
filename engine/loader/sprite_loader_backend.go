package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	spriteVersionQ1 = 1
	spriteVersionHL = 2

	// angledFrames is the number of views stored in an angled frame entry.
	angledFrames = 8
)

type spriteHeaderQ1 struct { // dsprite_q1_t
	Ident          int32
	Version        int32
	Type           int32
	BoundingRadius float32
	Width          int32
	Height         int32
	NumFrames      int32
	BeamLength     float32
	SyncType       int32
}

type spriteHeaderHL struct { // dsprite_hl_t
	Ident          int32
	Version        int32
	Type           int32
	TexFormat      int32
	BoundingRadius float32
	Width          int32
	Height         int32
	NumFrames      int32
	BeamLength     float32
	SyncType       int32
}

type spriteFrameHeader struct { // dspriteframe_t
	Origin [2]int32
	Width  int32
	Height int32
}

// spriteLoaderBackend decodes IDSP sprites, Quake (version 1) and Half-Life (version 2).
type spriteLoaderBackend struct {
	textures texture.Registry
	// palette is used for version 1 sprites, which carry none of their own.
	palette []byte
}

var _ loaderBackend = &spriteLoaderBackend{}

func newSpriteLoaderBackend(textures texture.Registry, palette []byte) *spriteLoaderBackend {
	return &spriteLoaderBackend{textures: textures, palette: palette}
}

func (b *spriteLoaderBackend) Decode(mod *model.Model, buf []byte, flags texture.Flags) error {
	c := newCursor(buf)
	var head struct{ Ident, Version int32 }
	if err := c.read(&head); err != nil {
		return err
	}
	if head.Ident != ident("IDSP") {
		return fmt.Errorf("%s: not a sprite file", mod.Name)
	}
	if err := c.seek(0); err != nil {
		return err
	}

	spr := &model.Sprite{Version: int(head.Version)}
	var numFrames, syncType int
	var radius float32
	palette := b.palette

	switch head.Version {
	case spriteVersionQ1:
		var h spriteHeaderQ1
		if err := c.read(&h); err != nil {
			return err
		}
		spr.Type, spr.Width, spr.Height, spr.BeamLength = int(h.Type), int(h.Width), int(h.Height), h.BeamLength
		spr.TexFormat = model.SpriteTexAlphaTest
		numFrames, syncType, radius = int(h.NumFrames), int(h.SyncType), h.BoundingRadius
	case spriteVersionHL:
		var h spriteHeaderHL
		if err := c.read(&h); err != nil {
			return err
		}
		spr.Type, spr.Width, spr.Height, spr.BeamLength = int(h.Type), int(h.Width), int(h.Height), h.BeamLength
		spr.TexFormat = int(h.TexFormat)
		numFrames, syncType, radius = int(h.NumFrames), int(h.SyncType), h.BoundingRadius

		var numColors int16
		if err := c.read(&numColors); err != nil {
			return err
		}
		if numColors <= 0 || numColors > 256 {
			return fmt.Errorf("%s: invalid palette size %d", mod.Name, numColors)
		}
		pal, err := c.bytes(int(numColors) * 3)
		if err != nil {
			return err
		}
		palette = make([]byte, 768)
		copy(palette, pal)
	default:
		return fmt.Errorf("%s: unsupported sprite version %d (want %d or %d)", mod.Name, head.Version, spriteVersionQ1, spriteVersionHL)
	}
	if numFrames < 1 {
		return fmt.Errorf("%s: invalid number of frames %d", mod.Name, numFrames)
	}

	var owned []texture.Handle
	fail := func(err error) error {
		for _, h := range owned {
			b.textures.Free(h)
		}
		return err
	}

	readFrame := func(group, index int) (*model.SpriteFrame, error) {
		var fh spriteFrameHeader
		if err := c.read(&fh); err != nil {
			return nil, err
		}
		if fh.Width <= 0 || fh.Height <= 0 {
			return nil, fmt.Errorf("%s: frame %d.%d has invalid size %dx%d", mod.Name, group, index, fh.Width, fh.Height)
		}
		pixels, err := c.bytes(int(fh.Width * fh.Height))
		if err != nil {
			return nil, err
		}
		pic := spritePicture(int(fh.Width), int(fh.Height), pixels, palette, spr.TexFormat)
		name := fmt.Sprintf("#%s_%d_%d", mod.Name, group, index)
		h := b.textures.Load(name, pic, flags|texture.FlagClamp, false)
		if h == texture.None {
			return nil, fmt.Errorf("%s: frame %d.%d: texture rejected", mod.Name, group, index)
		}
		owned = append(owned, h)
		return &model.SpriteFrame{
			Width:   int(fh.Width),
			Height:  int(fh.Height),
			Up:      float32(fh.Origin[1]),
			Down:    float32(fh.Origin[1] - fh.Height),
			Left:    float32(fh.Origin[0]),
			Right:   float32(fh.Width + fh.Origin[0]),
			Texture: h,
		}, nil
	}

	if err := c.fits(numFrames, 4); err != nil {
		return fail(fmt.Errorf("%s: frames: %w", mod.Name, err))
	}
	spr.Groups = make([]model.SpriteGroup, numFrames)
	for i := 0; i < numFrames; i++ {
		var frameType int32
		if err := c.read(&frameType); err != nil {
			return fail(err)
		}
		g := &spr.Groups[i]
		g.Type = model.SpriteFrameType(frameType)

		switch g.Type {
		case model.SpriteFrameSingle:
			f, err := readFrame(i, 0)
			if err != nil {
				return fail(err)
			}
			g.Frames = []*model.SpriteFrame{f}
		case model.SpriteFrameGroup, model.SpriteFrameAngled:
			var count int32
			if err := c.read(&count); err != nil {
				return fail(err)
			}
			if count < 1 {
				return fail(fmt.Errorf("%s: frame group %d is empty", mod.Name, i))
			}
			if g.Type == model.SpriteFrameAngled && count != angledFrames {
				return fail(fmt.Errorf("%s: angled frame %d has %d views, want %d", mod.Name, i, count, angledFrames))
			}
			if err := c.fits(int(count), 4); err != nil {
				return fail(fmt.Errorf("%s: frame group %d: %w", mod.Name, i, err))
			}
			g.Intervals = make([]float32, count)
			if err := c.read(g.Intervals); err != nil {
				return fail(err)
			}
			for j, iv := range g.Intervals {
				if iv <= 0 {
					return fail(fmt.Errorf("%s: frame group %d has interval %v at %d", mod.Name, i, iv, j))
				}
			}
			g.Frames = make([]*model.SpriteFrame, count)
			for j := range g.Frames {
				f, err := readFrame(i, j)
				if err != nil {
					return fail(err)
				}
				g.Frames[j] = f
			}
		default:
			return fail(fmt.Errorf("%s: unknown frame type %d", mod.Name, frameType))
		}
	}

	mod.Type = model.TypeSprite
	mod.Sprite = spr
	mod.NumFrames = numFrames
	mod.SyncType = syncType
	mod.Radius = radius
	w, h := float32(spr.Width)*0.5, float32(spr.Height)*0.5
	mod.Mins = mgl32.Vec3{-w, -w, -h}
	mod.Maxs = mgl32.Vec3{w, w, h}
	return nil
}

// spritePicture builds the upload picture of one frame according to the sprite texture format.
func spritePicture(w, h int, pixels, palette []byte, texFormat int) *common.RGBData {
	if texFormat == model.SpriteTexIndexAlpha {
		// Colour comes from the last palette entry, the index is the alpha.
		rgba := make([]byte, w*h*4)
		r, g, bl := palette[765], palette[766], palette[767]
		for i, idx := range pixels {
			rgba[i*4], rgba[i*4+1], rgba[i*4+2], rgba[i*4+3] = r, g, bl, idx
		}
		return &common.RGBData{Width: w, Height: h, Type: common.PixelRGBA32, Flags: common.ImageHasAlpha, Buffer: rgba}
	}
	pic := &common.RGBData{
		Width:   w,
		Height:  h,
		Type:    common.PixelIndexed24,
		Palette: palette,
		Buffer:  append([]byte(nil), pixels...),
	}
	if texFormat == model.SpriteTexAlphaTest {
		pic.Flags |= common.ImageHasAlpha
	}
	return pic
}
