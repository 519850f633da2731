package texture

import (
	"math"
)

// Palette ranges remapped by ProcessTexture for player colours.
const (
	TopHueStart    = 160
	TopHueEnd      = 191
	BottomHueStart = 192
	BottomHueEnd   = 223
)

// PaletteHueReplace rewrites palette entries start..end so they keep their value and
// saturation but take the given hue. The hue is given on the 0..255 scale of the host's
// colour sliders and mapped onto 0..360 degrees.
//
// Parameters:
//   - pal: the palette bytes, modified in place
//   - stride: 3 for RGB palettes, 4 for RGBA palettes
//   - hue: the new hue, 0..255
//   - start, end: inclusive palette index range
func PaletteHueReplace(pal []byte, stride, hue, start, end int) {
	newHue := float32(hue) * 360 / 255
	for i := start; i <= end; i++ {
		o := i * stride
		if o+2 >= len(pal) {
			return
		}
		r, g, b := float32(pal[o]), float32(pal[o+1]), float32(pal[o+2])
		maxcol := max(r, g, b) / 255
		mincol := min(r, g, b) / 255
		if maxcol == 0 {
			continue
		}
		val := maxcol
		sat := (maxcol - mincol) / maxcol
		mincol = val * (1 - sat)

		switch {
		case newHue <= 120:
			b = mincol
			if newHue < 60 {
				r = val
				g = (newHue/60)*(val-mincol) + mincol
			} else {
				g = val
				r = ((120-newHue)/60)*(val-mincol) + mincol
			}
		case newHue <= 240:
			r = mincol
			if newHue < 180 {
				g = val
				b = ((newHue-120)/60)*(val-mincol) + mincol
			} else {
				b = val
				g = ((240-newHue)/60)*(val-mincol) + mincol
			}
		default:
			g = mincol
			if newHue < 300 {
				b = val
				r = ((newHue-240)/60)*(val-mincol) + mincol
			} else {
				r = val
				b = ((360-newHue)/60)*(val-mincol) + mincol
			}
		}
		pal[o] = byte(r * 255)
		pal[o+1] = byte(g * 255)
		pal[o+2] = byte(b * 255)
	}
}

// ApplyGamma applies out = 255 * (in/255)^(1/gamma) to the RGB channels of packed RGBA pixels.
// A gamma of 1 or below zero leaves the pixels untouched.
//
// Parameters:
//   - rgba: packed RGBA pixels, modified in place
//   - gamma: the gamma exponent
func ApplyGamma(rgba []byte, gamma float32) {
	if gamma <= 0 || gamma == 1 {
		return
	}
	var table [256]byte
	inv := 1 / float64(gamma)
	for i := range table {
		v := 255 * math.Pow(float64(i)/255, inv)
		table[i] = byte(math.Min(255, math.Round(v)))
	}
	for i := 0; i+3 < len(rgba); i += 4 {
		rgba[i] = table[rgba[i]]
		rgba[i+1] = table[rgba[i+1]]
		rgba[i+2] = table[rgba[i+2]]
	}
}
