package loader

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// MapSpriteSize is the edge length of one map sprite tile.
const MapSpriteSize = 128

// mapSpriteLoaderBackend cuts a plain image into MapSpriteSize tiles, one sprite frame each.
type mapSpriteLoaderBackend struct {
	textures texture.Registry
}

var _ loaderBackend = &mapSpriteLoaderBackend{}

func newMapSpriteLoaderBackend(textures texture.Registry) *mapSpriteLoaderBackend {
	return &mapSpriteLoaderBackend{textures: textures}
}

func (b *mapSpriteLoaderBackend) Decode(mod *model.Model, buf []byte, flags texture.Flags) error {
	img, format, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("%s: decode map sprite: %w", mod.Name, err)
	}
	logger.Debugf("map sprite %s: %s %dx%d", mod.Name, format, img.Bounds().Dx(), img.Bounds().Dy())

	// Images smaller than a tile are stretched up to one tile.
	w := max(img.Bounds().Dx(), MapSpriteSize)
	h := max(img.Bounds().Dy(), MapSpriteSize)
	src := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w != img.Bounds().Dx() || h != img.Bounds().Dy() {
		draw.CatmullRom.Scale(src, src.Bounds(), img, img.Bounds(), draw.Src, nil)
	} else {
		draw.Draw(src, src.Bounds(), img, img.Bounds().Min, draw.Src)
	}

	cols, rows := w/MapSpriteSize, h/MapSpriteSize
	spr := &model.Sprite{
		Version:   spriteVersionHL,
		Type:      model.SpriteVPParallelOriented,
		TexFormat: model.SpriteTexAlphaTest,
		Width:     MapSpriteSize,
		Height:    MapSpriteSize,
		Groups:    make([]model.SpriteGroup, 0, cols*rows),
		MapSprite: true,
	}

	half := float32(MapSpriteSize / 2)
	tile := image.NewNRGBA(image.Rect(0, 0, MapSpriteSize, MapSpriteSize))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r := image.Rect(x*MapSpriteSize, y*MapSpriteSize, (x+1)*MapSpriteSize, (y+1)*MapSpriteSize)
			draw.Draw(tile, tile.Bounds(), src, r.Min, draw.Src)

			name := fmt.Sprintf("#MAP/%s_%d_%d", mod.Name, x, y)
			th := b.textures.Load(name, common.FromImage(tile), flags|texture.FlagClamp, false)
			if th == texture.None {
				for _, owned := range spr.Textures() {
					b.textures.Free(owned)
				}
				return fmt.Errorf("%s: tile %d,%d: texture rejected", mod.Name, x, y)
			}
			spr.Groups = append(spr.Groups, model.SpriteGroup{
				Type: model.SpriteFrameSingle,
				Frames: []*model.SpriteFrame{{
					Width:   MapSpriteSize,
					Height:  MapSpriteSize,
					Up:      half,
					Down:    half - MapSpriteSize,
					Left:    -half,
					Right:   MapSpriteSize - half,
					Texture: th,
				}},
			})
		}
	}

	mod.Type = model.TypeSprite
	mod.Sprite = spr
	mod.NumFrames = len(spr.Groups)
	mod.Radius = float32(math.Sqrt(float64(half*half + half*half)))
	mod.Mins = mgl32.Vec3{-half, -half, -half}
	mod.Maxs = mgl32.Vec3{half, half, half}
	return nil
}
