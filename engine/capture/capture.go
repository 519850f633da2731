// Package capture writes screenshots and cubemap shots of the rendered scene to image files.
package capture

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/Carmen-Shannon/oxy-ref/log"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

var logger = log.New("capture")

// DefaultExt is appended to names without a recognised image extension.
const DefaultExt = ".png"

// Source produces the images a Capturer writes.
type Source interface {
	// Frame returns a copy of the most recently finished frame.
	//
	// Returns:
	//   - *image.RGBA: the frame
	//   - error: error if no frame is available
	Frame() (*image.RGBA, error)

	// View renders the scene from origin along angles with a 90 degree field of view into a
	// size x size image.
	//
	// Parameters:
	//   - origin: the view origin
	//   - angles: pitch, yaw, roll in degrees
	//   - size: the face edge length in pixels
	//   - skyOnly: draw only the sky, no world or entities
	//
	// Returns:
	//   - *image.RGBA: the rendered face
	//   - error: error if the view could not be rendered
	View(origin, angles mgl32.Vec3, size int, skyOnly bool) (*image.RGBA, error)
}

// Face is one cubemap side.
type Face struct {
	Suffix string
	Angles mgl32.Vec3
}

// CubemapFaces lists the cubemap sides in the order and naming of sky box files.
var CubemapFaces = [6]Face{
	{texture.SkySuffixes[0], mgl32.Vec3{0, 270, 0}},
	{texture.SkySuffixes[1], mgl32.Vec3{0, 180, 0}},
	{texture.SkySuffixes[2], mgl32.Vec3{0, 90, 0}},
	{texture.SkySuffixes[3], mgl32.Vec3{0, 0, 0}},
	{texture.SkySuffixes[4], mgl32.Vec3{-90, 0, 0}},
	{texture.SkySuffixes[5], mgl32.Vec3{90, 0, 0}},
}

type capturer struct {
	src     Source
	globals *refapi.Globals
	dir     string
	scaler  draw.Scaler
}

// Capturer writes screenshots and cubemap shots.
type Capturer interface {
	// ScreenShot writes the current frame, resized for the shot type.
	//
	// Parameters:
	//   - name: the output file; the extension selects png, bmp or tiff
	//   - shot: the shot type
	//
	// Returns:
	//   - bool: true if the file was written
	ScreenShot(name string, shot refapi.ShotType) bool

	// CubemapShot renders and writes the six sides of a cubemap around vieworg.
	//
	// Parameters:
	//   - base: the output base name, each side appends its suffix
	//   - size: the face edge length in pixels
	//   - vieworg: the cubemap centre
	//   - skyshot: render only the sky
	//
	// Returns:
	//   - bool: true if all six files were written
	CubemapShot(base string, size int, vieworg mgl32.Vec3, skyshot bool) bool
}

var _ Capturer = &capturer{}

// NewCapturer creates a Capturer reading frames from src.
//
// Parameters:
//   - src: the image source, usually the renderer backend
//   - globals: the shared render state, read for the widescreen flag
//   - options: functional options to configure the capturer
//
// Returns:
//   - Capturer: the new capturer
func NewCapturer(src Source, globals *refapi.Globals, options ...CapturerBuilderOption) Capturer {
	c := &capturer{
		src:     src,
		globals: globals,
		scaler:  draw.BiLinear,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// ShotSize returns the output dimensions of a shot type, or 0, 0 to keep the frame size.
//
// Parameters:
//   - shot: the shot type
//   - wide: whether the display is widescreen
//
// Returns:
//   - w, h: the target size
func ShotSize(shot refapi.ShotType, wide bool) (w, h int) {
	switch shot {
	case refapi.ShotLevelshot:
		if wide {
			return 854, 480
		}
		return 640, 480
	case refapi.ShotMinishot:
		return 160, 120
	case refapi.ShotMapshot:
		return 512, 512
	}
	return 0, 0
}

func (c *capturer) ScreenShot(name string, shot refapi.ShotType) bool {
	if c.src == nil || name == "" {
		return false
	}
	if shot < refapi.ShotScreenshot || shot > refapi.ShotSnapshot {
		logger.Warningf("ScreenShot: unknown shot type %d", shot)
		return false
	}
	img, err := c.src.Frame()
	if err != nil {
		logger.Warningf("ScreenShot: %v", err)
		return false
	}

	wide := c.globals != nil && c.globals.WideScreen
	if w, h := ShotSize(shot, wide); w > 0 {
		img = c.resize(img, w, h)
	}
	path, err := c.write(name, img)
	if err != nil {
		logger.Warningf("ScreenShot: %v", err)
		return false
	}
	logger.Infof("wrote %s", path)
	return true
}

func (c *capturer) CubemapShot(base string, size int, vieworg mgl32.Vec3, skyshot bool) bool {
	if c.src == nil || base == "" || size <= 0 {
		return false
	}
	ext := imageExt(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = DefaultExt
	}

	for _, f := range CubemapFaces {
		img, err := c.src.View(vieworg, f.Angles, size, skyshot)
		if err != nil {
			logger.Warningf("CubemapShot: side %s: %v", f.Suffix, err)
			return false
		}
		if b := img.Bounds(); b.Dx() != size || b.Dy() != size {
			img = c.resize(img, size, size)
		}
		if _, err := c.write(stem+f.Suffix+ext, img); err != nil {
			logger.Warningf("CubemapShot: %v", err)
			return false
		}
	}
	logger.Infof("wrote cubemap %s (%dx%d)", stem, size, size)
	return true
}

func (c *capturer) resize(src *image.RGBA, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	c.scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func (c *capturer) write(name string, img image.Image) (string, error) {
	if imageExt(name) == "" {
		name += DefaultExt
	}
	path := name
	if c.dir != "" && !filepath.IsAbs(name) {
		path = filepath.Join(c.dir, name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Encode(f, img, filepath.Ext(path)); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return path, f.Close()
}

// imageExt returns the extension of name when it is one Encode understands, "" otherwise.
func imageExt(name string) string {
	ext := filepath.Ext(name)
	switch strings.ToLower(ext) {
	case ".png", ".bmp", ".tif", ".tiff":
		return ext
	}
	return ""
}

// Encode writes img in the format selected by ext.
//
// Parameters:
//   - w: the destination
//   - img: the image
//   - ext: ".png", ".bmp", ".tif" or ".tiff" in any case
//
// Returns:
//   - error: error if the format is unknown or encoding fails
func Encode(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("unsupported image format %q", ext)
}
