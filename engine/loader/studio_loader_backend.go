package loader

import (
	"encoding/binary"
	"fmt"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

const studioVersion = 10

type studioHeader struct { // studiohdr_t
	Ident       int32
	Version     int32
	Name        [64]byte
	Length      int32
	EyePosition [3]float32
	Min         [3]float32
	Max         [3]float32
	BBMin       [3]float32
	BBMax       [3]float32
	Flags       int32

	NumBones            int32
	BoneIndex           int32
	NumBoneControllers  int32
	BoneControllerIndex int32
	NumHitboxes         int32
	HitboxIndex         int32
	NumSeq              int32
	SeqIndex            int32
	NumSeqGroups        int32
	SeqGroupIndex       int32
	NumTextures         int32
	TextureIndex        int32
	TextureDataIndex    int32
	NumSkinRef          int32
	NumSkinFamilies     int32
	SkinIndex           int32
	NumBodyParts        int32
	BodyPartIndex       int32
	NumAttachments      int32
	AttachmentIndex     int32
	SoundTable          int32
	SoundIndex          int32
	SoundGroups         int32
	SoundGroupIndex     int32
	NumTransitions      int32
	TransitionIndex     int32
}

type studioSeqDesc struct { // mstudioseqdesc_t
	Label              [32]byte
	FPS                float32
	Flags              int32
	Activity           int32
	ActWeight          int32
	NumEvents          int32
	EventIndex         int32
	NumFrames          int32
	NumPivots          int32
	PivotIndex         int32
	MotionType         int32
	MotionBone         int32
	LinearMovement     [3]float32
	AutomovePosIndex   int32
	AutomoveAngleIndex int32
	BBMin              [3]float32
	BBMax              [3]float32
	NumBlends          int32
	AnimIndex          int32
	BlendType          [2]int32
	BlendStart         [2]float32
	BlendEnd           [2]float32
	BlendParent        int32
	SeqGroup           int32
	EntryNode          int32
	ExitNode           int32
	NodeFlags          int32
	NextSeq            int32
}

type studioTextureDesc struct { // mstudiotexture_t
	Name   [64]byte
	Flags  int32
	Width  int32
	Height int32
	Index  int32
}

// studioLoaderBackend decodes Half-Life IDST studio models. Texture extraction is exposed
// separately so skins can be reloaded without touching the geometry.
type studioLoaderBackend struct {
	textures texture.Registry
}

var _ loaderBackend = &studioLoaderBackend{}

func newStudioLoaderBackend(textures texture.Registry) *studioLoaderBackend {
	return &studioLoaderBackend{textures: textures}
}

func readStudioHeader(name string, buf []byte) (*cursor, *studioHeader, error) {
	c := newCursor(buf)
	var h studioHeader
	if err := c.read(&h); err != nil {
		return nil, nil, err
	}
	if h.Ident != ident("IDST") {
		return nil, nil, fmt.Errorf("%s: not a studio model", name)
	}
	if h.Version != studioVersion {
		return nil, nil, fmt.Errorf("%s: has wrong version number (%d should be %d)", name, h.Version, studioVersion)
	}
	if int(h.Length) > len(buf) {
		return nil, nil, fmt.Errorf("%s: header length %d exceeds file size %d", name, h.Length, len(buf))
	}
	return c, &h, nil
}

func (b *studioLoaderBackend) Decode(mod *model.Model, buf []byte, _ texture.Flags) error {
	c, h, err := readStudioHeader(mod.Name, buf)
	if err != nil {
		return err
	}
	if h.NumSeq < 0 || h.NumTextures < 0 {
		return fmt.Errorf("%s: corrupt header", mod.Name)
	}

	st := &model.Studio{
		Name:          cstring(h.Name[:]),
		Length:        int(h.Length),
		EyePosition:   h.EyePosition,
		Mins:          h.Min,
		Maxs:          h.Max,
		Flags:         int(h.Flags),
		NumBones:      int(h.NumBones),
		NumBodyParts:  int(h.NumBodyParts),
		NumSkinRef:    int(h.NumSkinRef),
		NumSkinFamily: int(h.NumSkinFamilies),
	}

	if h.NumSeq > 0 {
		if err := c.seek(int(h.SeqIndex)); err != nil {
			return fmt.Errorf("%s: sequences: %w", mod.Name, err)
		}
		if err := c.fits(int(h.NumSeq), binary.Size(studioSeqDesc{})); err != nil {
			return fmt.Errorf("%s: sequences: %w", mod.Name, err)
		}
		descs := make([]studioSeqDesc, h.NumSeq)
		if err := c.read(descs); err != nil {
			return fmt.Errorf("%s: sequences: %w", mod.Name, err)
		}
		st.Sequences = make([]model.Sequence, len(descs))
		for i, d := range descs {
			st.Sequences[i] = model.Sequence{
				Label:          cstring(d.Label[:]),
				FPS:            d.FPS,
				Flags:          int(d.Flags),
				Activity:       int(d.Activity),
				NumFrames:      int(d.NumFrames),
				LinearMovement: d.LinearMovement,
				Mins:           d.BBMin,
				Maxs:           d.BBMax,
			}
		}
	}

	if h.NumTextures > 0 {
		if err := b.LoadTextures(mod.Name, st, buf); err != nil {
			return err
		}
	}

	mins, maxs := mgl32.Vec3(h.Min), mgl32.Vec3(h.Max)
	if mins == (mgl32.Vec3{}) && maxs == (mgl32.Vec3{}) {
		mins, maxs = h.BBMin, h.BBMax
	}
	mod.Type = model.TypeStudio
	mod.Studio = st
	mod.Flags = int(h.Flags)
	mod.NumFrames = len(st.Sequences)
	mod.Mins, mod.Maxs = mins, maxs
	mod.Radius = common.RadiusFromBounds(mins, maxs)
	return nil
}

// LoadTextures registers the skins stored in buf for st, replacing any previously loaded set.
//
// Parameters:
//   - name: the model name, used to derive texture names
//   - st: the studio cache to fill
//   - buf: a studio file carrying the textures (the model itself or its texture file)
//
// Returns:
//   - error: error if the texture table cannot be decoded
func (b *studioLoaderBackend) LoadTextures(name string, st *model.Studio, buf []byte) error {
	c, h, err := readStudioHeader(name, buf)
	if err != nil {
		return err
	}
	if h.NumTextures <= 0 {
		return fmt.Errorf("%s: file has no textures", name)
	}
	if err := c.seek(int(h.TextureIndex)); err != nil {
		return fmt.Errorf("%s: textures: %w", name, err)
	}
	if err := c.fits(int(h.NumTextures), binary.Size(studioTextureDesc{})); err != nil {
		return fmt.Errorf("%s: textures: %w", name, err)
	}
	descs := make([]studioTextureDesc, h.NumTextures)
	if err := c.read(descs); err != nil {
		return fmt.Errorf("%s: textures: %w", name, err)
	}

	b.UnloadTextures(st)
	loaded := make([]model.StudioTexture, 0, len(descs))
	fail := func(err error) error {
		for _, t := range loaded {
			b.textures.Free(t.Texture)
		}
		return err
	}
	for _, d := range descs {
		texName := cstring(d.Name[:])
		if d.Width <= 0 || d.Height <= 0 {
			return fail(fmt.Errorf("%s: texture %s has invalid size %dx%d", name, texName, d.Width, d.Height))
		}
		size := int(d.Width * d.Height)
		if err := c.seek(int(d.Index)); err != nil {
			return fail(fmt.Errorf("%s: texture %s: %w", name, texName, err))
		}
		data, err := c.bytes(size + 768)
		if err != nil {
			return fail(fmt.Errorf("%s: texture %s: %w", name, texName, err))
		}
		pic := &common.RGBData{
			Width:   int(d.Width),
			Height:  int(d.Height),
			Type:    common.PixelIndexed24,
			Buffer:  append([]byte(nil), data[:size]...),
			Palette: append([]byte(nil), data[size:]...),
		}
		var flags texture.Flags = texture.FlagKeepSource
		if d.Flags&model.StudioNFMasked != 0 {
			pic.Flags |= common.ImageHasAlpha
		}
		if d.Flags&model.StudioNFNoMips != 0 {
			flags |= texture.FlagNoMipmap
		}
		th := b.textures.Load(fmt.Sprintf("#%s/%s", name, texName), pic, flags, false)
		if th == texture.None {
			return fail(fmt.Errorf("%s: texture %s rejected", name, texName))
		}
		loaded = append(loaded, model.StudioTexture{
			Name:    texName,
			Flags:   int(d.Flags),
			Width:   int(d.Width),
			Height:  int(d.Height),
			Texture: th,
		})
	}
	st.Textures = loaded
	st.TexturesLoaded = true
	return nil
}

// UnloadTextures releases the skins of st and keeps the rest of the cache intact.
func (b *studioLoaderBackend) UnloadTextures(st *model.Studio) {
	if st == nil {
		return
	}
	for i := range st.Textures {
		b.textures.Free(st.Textures[i].Texture)
		st.Textures[i].Texture = texture.None
	}
	st.TexturesLoaded = false
}
