package texture

import (
	"github.com/Carmen-Shannon/oxy-ref/common"
)

// SharedKind enumerates the built-in shared textures (ref_shared_texture_e).
type SharedKind int

const (
	SharedDefault SharedKind = iota
	SharedGray
	SharedWhite
	SharedSolidSky
	SharedAlphaSky

	numShared
	SharedNone SharedKind = -1
)

// Valid reports whether k names a built-in texture.
func (k SharedKind) Valid() bool {
	return k >= SharedDefault && k < numShared
}

func (k SharedKind) String() string {
	switch k {
	case SharedDefault:
		return "default"
	case SharedGray:
		return "gray"
	case SharedWhite:
		return "white"
	case SharedSolidSky:
		return "solid_sky"
	case SharedAlphaSky:
		return "alpha_sky"
	}
	return ""
}

type sharedSlot struct {
	handle Handle
	refs   int
}

// builtinPicture generates the initial pixels of a built-in texture.
func builtinPicture(kind SharedKind) (*common.RGBData, Flags) {
	fill := func(size int, px func(x, y int) [4]byte) *common.RGBData {
		pic := &common.RGBData{Width: size, Height: size, Type: common.PixelRGBA32, Buffer: make([]byte, size*size*4)}
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				c := px(x, y)
				copy(pic.Buffer[(y*size+x)*4:], c[:])
			}
		}
		return pic
	}
	switch kind {
	case SharedDefault:
		return fill(16, func(x, y int) [4]byte {
			if (x < 8) != (y < 8) {
				return [4]byte{255, 0, 255, 255}
			}
			return [4]byte{0, 0, 0, 255}
		}), FlagNoMipmap | FlagNearest
	case SharedGray:
		return fill(8, func(int, int) [4]byte { return [4]byte{127, 127, 127, 255} }), FlagNoMipmap
	case SharedWhite:
		return fill(8, func(int, int) [4]byte { return [4]byte{255, 255, 255, 255} }), FlagNoMipmap
	case SharedSolidSky:
		return fill(8, func(int, int) [4]byte { return [4]byte{128, 128, 128, 255} }), FlagNoMipmap
	case SharedAlphaSky:
		pic := fill(8, func(int, int) [4]byte { return [4]byte{0, 0, 0, 0} })
		pic.Flags |= common.ImageHasAlpha
		return pic, FlagNoMipmap
	}
	return nil, 0
}

func (r *registry) AcquireShared(kind SharedKind) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !kind.Valid() {
		logger.Warningf("GetBuiltinTexture: unknown kind %d", kind)
		return None
	}
	s := &r.shared[kind]
	if s.refs == 0 || r.resolveLocked(s.handle) == nil {
		pic, flags := builtinPicture(kind)
		h := r.createLocked("*"+kind.String(), pic, flags, kind)
		if h == None {
			return None
		}
		s.handle, s.refs = h, 0
	}
	s.refs++
	return s.handle
}

func (r *registry) ReleaseShared(kind SharedKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !kind.Valid() {
		return
	}
	s := &r.shared[kind]
	if s.refs == 0 {
		return
	}
	s.refs--
	if s.refs == 0 {
		r.destroyLocked(s.handle)
		s.handle = None
	}
}

func (r *registry) ReplaceShared(kind SharedKind, pic *common.RGBData) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !kind.Valid() {
		return None
	}
	if err := pic.Validate(); err != nil {
		logger.Warningf("shared %s: %v", kind, err)
		return None
	}
	s := &r.shared[kind]
	if rec := r.resolveLocked(s.handle); s.refs > 0 && rec != nil {
		if err := r.uploadLocked(s.handle, rec, pic, rec.flags); err != nil {
			logger.Warningf("shared %s: %v", kind, err)
			return None
		}
		return s.handle
	}
	h := r.createLocked("*"+kind.String(), pic, FlagNoMipmap, kind)
	if h == None {
		return None
	}
	s.handle, s.refs = h, 1
	return h
}

func (r *registry) SharedRefs(kind SharedKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !kind.Valid() {
		return 0
	}
	return r.shared[kind].refs
}
