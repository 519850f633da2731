package texture

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-ref/common"
)

// SkySuffixes are the six sky box side suffixes in upload order.
var SkySuffixes = [6]string{"rt", "bk", "lf", "ft", "up", "dn"}

// SplitSkyClouds cuts a two-layer indexed sky (typically 256x128) into its opaque back layer
// (right half) and its cloud layer (left half). Palette index 0 in the cloud layer becomes
// transparent and takes the average colour of the back layer to avoid fringes.
//
// Parameters:
//   - mip: an indexed picture whose width is even
//
// Returns:
//   - solid: the back layer as RGBA
//   - alpha: the cloud layer as RGBA with transparency
//   - error: error if the picture is not a valid indexed sky
func SplitSkyClouds(mip *common.RGBData) (solid, alpha *common.RGBData, err error) {
	if err := mip.Validate(); err != nil {
		return nil, nil, err
	}
	if !mip.Type.Indexed() {
		return nil, nil, fmt.Errorf("sky texture must be indexed, got %s", mip.Type)
	}
	if mip.Width%2 != 0 {
		return nil, nil, fmt.Errorf("sky texture width %d is not even", mip.Width)
	}
	rgba, err := mip.ToRGBA()
	if err != nil {
		return nil, nil, err
	}

	half := mip.Width / 2
	solid = &common.RGBData{Width: half, Height: mip.Height, Type: common.PixelRGBA32, Buffer: make([]byte, half*mip.Height*4)}
	alpha = &common.RGBData{Width: half, Height: mip.Height, Type: common.PixelRGBA32, Flags: common.ImageHasAlpha, Buffer: make([]byte, half*mip.Height*4)}

	var sum [3]int
	for y := 0; y < mip.Height; y++ {
		for x := 0; x < half; x++ {
			src := rgba[(y*mip.Width+x+half)*4:]
			dst := solid.Buffer[(y*half+x)*4:]
			copy(dst[:4], src[:4])
			dst[3] = 255
			sum[0] += int(src[0])
			sum[1] += int(src[1])
			sum[2] += int(src[2])
		}
	}
	n := half * mip.Height
	avg := [4]byte{byte(sum[0] / n), byte(sum[1] / n), byte(sum[2] / n), 0}

	for y := 0; y < mip.Height; y++ {
		for x := 0; x < half; x++ {
			dst := alpha.Buffer[(y*half+x)*4:]
			if mip.Buffer[y*mip.Width+x] == 0 {
				copy(dst[:4], avg[:])
				continue
			}
			copy(dst[:4], rgba[(y*mip.Width+x)*4:(y*mip.Width+x)*4+4])
			dst[3] = 255
		}
	}
	return solid, alpha, nil
}
