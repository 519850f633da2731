package texture

import "strings"

// Flags alter the filtering, mip and source-retention policy of a texture (texFlags_t).
// They never participate in texture identity.
type Flags uint32

const (
	// FlagNearest selects point filtering.
	FlagNearest Flags = 1 << iota
	// FlagKeepSource retains the original and processed pixel buffers on the CPU.
	FlagKeepSource
	// FlagNoFlipTGA is accepted for contract parity and has no effect here.
	FlagNoFlipTGA
	// FlagExpandSource expands an indexed source to RGBA before keeping it.
	FlagExpandSource
	// FlagCubemap marks one face of a cubemap.
	FlagCubemap
	// FlagSkySide marks a sky box side; implies clamping.
	FlagSkySide
	// FlagClamp selects clamp-to-edge addressing.
	FlagClamp
	// FlagNoMipmap disables the mip chain.
	FlagNoMipmap
	// FlagHasLuma marks a fullbright companion texture.
	FlagHasLuma
	// FlagHasAlpha marks a texture whose alpha channel is significant.
	FlagHasAlpha
	// FlagForceColor converts luminance sources to gray RGB.
	FlagForceColor
	// FlagBorder selects clamp-to-border addressing.
	FlagBorder
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{FlagNearest, "nearest"},
	{FlagKeepSource, "keep"},
	{FlagNoFlipTGA, "noflip"},
	{FlagExpandSource, "expand"},
	{FlagCubemap, "cube"},
	{FlagSkySide, "sky"},
	{FlagClamp, "clamp"},
	{FlagNoMipmap, "nomip"},
	{FlagHasLuma, "luma"},
	{FlagHasAlpha, "alpha"},
	{FlagForceColor, "color"},
	{FlagBorder, "border"},
}

func (f Flags) String() string {
	if f == 0 {
		return "-"
	}
	var parts []string
	for _, n := range flagNames {
		if f&n.f != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Has reports whether all bits of other are set.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}
