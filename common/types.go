// package common contains common types that are used throughout the renderer. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types shared between the host and the renderer.
package common

import (
	"fmt"
	"image"
	"image/color"
)

// PixelFormat identifies the layout of the pixel buffer in an RGBData.
type PixelFormat int

const (
	// PixelUnknown is an unset or unsupported layout.
	PixelUnknown PixelFormat = iota
	// PixelIndexed24 is one palette index per pixel with a 256*3 byte RGB palette.
	PixelIndexed24
	// PixelIndexed32 is one palette index per pixel with a 256*4 byte RGBA palette.
	PixelIndexed32
	// PixelRGBA32 is 4 bytes per pixel, R G B A.
	PixelRGBA32
	// PixelBGRA32 is 4 bytes per pixel, B G R A.
	PixelBGRA32
	// PixelRGB24 is 3 bytes per pixel, R G B.
	PixelRGB24
	// PixelBGR24 is 3 bytes per pixel, B G R.
	PixelBGR24
	// PixelLuminance is 1 byte of intensity per pixel.
	PixelLuminance
)

// ImageFlags describe content properties of an RGBData.
type ImageFlags uint32

const (
	// ImageHasAlpha marks an image with a meaningful alpha channel.
	ImageHasAlpha ImageFlags = 1 << iota
	// ImageHasColor marks an image that is not grayscale.
	ImageHasColor
	// ImageHasLuma marks an indexed image using fullbright palette entries.
	ImageHasLuma
)

// String returns the short name of the pixel format.
func (f PixelFormat) String() string {
	switch f {
	case PixelIndexed24:
		return "indexed24"
	case PixelIndexed32:
		return "indexed32"
	case PixelRGBA32:
		return "rgba"
	case PixelBGRA32:
		return "bgra"
	case PixelRGB24:
		return "rgb"
	case PixelBGR24:
		return "bgr"
	case PixelLuminance:
		return "luminance"
	}
	return "unknown"
}

// BytesPerPixel returns the size in bytes of one pixel in the buffer, or 0 for unknown formats.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelIndexed24, PixelIndexed32, PixelLuminance:
		return 1
	case PixelRGB24, PixelBGR24:
		return 3
	case PixelRGBA32, PixelBGRA32:
		return 4
	}
	return 0
}

// Indexed reports whether the format needs a palette to be expanded.
func (f PixelFormat) Indexed() bool {
	return f == PixelIndexed24 || f == PixelIndexed32
}

// RGBData is the host-supplied picture handed to texture creation (rgbdata_t).
type RGBData struct {
	// Width and Height are the image dimensions in pixels.
	Width, Height int
	// Type is the layout of Buffer.
	Type PixelFormat
	// Flags carries content hints.
	Flags ImageFlags
	// Palette is required for indexed formats: 768 bytes for PixelIndexed24, 1024 for PixelIndexed32.
	Palette []byte
	// Buffer holds Width*Height*Type.BytesPerPixel() bytes.
	Buffer []byte
}

// Validate checks that the buffer and palette sizes agree with the declared format.
//
// Returns:
//   - error: a description of the first inconsistency, or nil
func (p *RGBData) Validate() error {
	if p == nil {
		return fmt.Errorf("picture is nil")
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", p.Width, p.Height)
	}
	bpp := p.Type.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("unsupported pixel format %d", p.Type)
	}
	if want := p.Width * p.Height * bpp; len(p.Buffer) < want {
		return fmt.Errorf("buffer holds %d bytes, %s %dx%d needs %d", len(p.Buffer), p.Type, p.Width, p.Height, want)
	}
	switch p.Type {
	case PixelIndexed24:
		if len(p.Palette) < 768 {
			return fmt.Errorf("indexed24 palette holds %d bytes, needs 768", len(p.Palette))
		}
	case PixelIndexed32:
		if len(p.Palette) < 1024 {
			return fmt.Errorf("indexed32 palette holds %d bytes, needs 1024", len(p.Palette))
		}
	}
	return nil
}

// Clone returns a deep copy of the picture.
func (p *RGBData) Clone() *RGBData {
	if p == nil {
		return nil
	}
	c := *p
	c.Buffer = append([]byte(nil), p.Buffer...)
	if p.Palette != nil {
		c.Palette = append([]byte(nil), p.Palette...)
	}
	return &c
}

// ToRGBA expands the picture into tightly packed RGBA bytes.
// For indexed pictures with PixelIndexed24, palette index 255 becomes transparent when the
// picture carries ImageHasAlpha.
//
// Returns:
//   - []byte: Width*Height*4 bytes of RGBA
//   - error: error if the picture is invalid
func (p *RGBData) ToRGBA() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := p.Width * p.Height
	out := make([]byte, n*4)
	src := p.Buffer
	for i := 0; i < n; i++ {
		o := out[i*4 : i*4+4]
		switch p.Type {
		case PixelRGBA32:
			copy(o, src[i*4:i*4+4])
		case PixelBGRA32:
			o[0], o[1], o[2], o[3] = src[i*4+2], src[i*4+1], src[i*4], src[i*4+3]
		case PixelRGB24:
			o[0], o[1], o[2], o[3] = src[i*3], src[i*3+1], src[i*3+2], 255
		case PixelBGR24:
			o[0], o[1], o[2], o[3] = src[i*3+2], src[i*3+1], src[i*3], 255
		case PixelLuminance:
			o[0], o[1], o[2], o[3] = src[i], src[i], src[i], 255
		case PixelIndexed24:
			idx := int(src[i])
			o[0], o[1], o[2], o[3] = p.Palette[idx*3], p.Palette[idx*3+1], p.Palette[idx*3+2], 255
			if idx == 255 && p.Flags&ImageHasAlpha != 0 {
				o[3] = 0
			}
		case PixelIndexed32:
			idx := int(src[i])
			copy(o, p.Palette[idx*4:idx*4+4])
		}
	}
	return out, nil
}

// FromImage converts any decoded image into an RGBA32 picture.
//
// Parameters:
//   - img: the decoded image
//
// Returns:
//   - *RGBData: a PixelRGBA32 picture of the same size
func FromImage(img image.Image) *RGBData {
	b := img.Bounds()
	pic := &RGBData{
		Width:  b.Dx(),
		Height: b.Dy(),
		Type:   PixelRGBA32,
		Buffer: make([]byte, b.Dx()*b.Dy()*4),
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := (y*b.Dx() + x) * 4
			pic.Buffer[i], pic.Buffer[i+1], pic.Buffer[i+2], pic.Buffer[i+3] = c.R, c.G, c.B, c.A
			if c.A != 255 {
				pic.Flags |= ImageHasAlpha
			}
		}
	}
	return pic
}

// ColorVec is a light sample (colorVec): 0..255 per channel, plus an unused slot kept for layout parity.
type ColorVec struct {
	R, G, B, A uint32
}

// TextureStagingData holds RGBA pixel data for a texture pending backend upload.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
	// Nearest selects point filtering instead of linear.
	Nearest bool
	// Clamp selects clamp-to-edge addressing instead of repeat.
	Clamp bool
	// Mipmaps requests a mip chain.
	Mipmaps bool
}
