package texture

import "fmt"

// Handle is an opaque texture identity handed across the host/renderer boundary.
// The low 16 bits address a registry slot (never 0), the high 16 bits carry the slot
// generation so that a handle kept past FreeTexture resolves to nothing instead of
// aliasing whatever texture later reuses the slot.
type Handle uint32

// None is the zero handle. It never denotes a real texture.
const None Handle = 0

const indexBits = 16

func makeHandle(index int, gen uint16) Handle {
	return Handle(uint32(gen)<<indexBits | uint32(index))
}

// Index returns the slot index encoded in the handle.
func (h Handle) Index() int {
	return int(uint32(h) & (1<<indexBits - 1))
}

// Generation returns the slot generation encoded in the handle.
func (h Handle) Generation() uint16 {
	return uint16(uint32(h) >> indexBits)
}

// Valid reports whether the handle is structurally valid. It does not prove the texture is live.
func (h Handle) Valid() bool {
	return h.Index() != 0
}

func (h Handle) String() string {
	if !h.Valid() {
		return "tex(none)"
	}
	return fmt.Sprintf("tex(%d#%d)", h.Index(), h.Generation())
}
