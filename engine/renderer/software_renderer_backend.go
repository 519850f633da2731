package renderer

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/camera"
	"github.com/Carmen-Shannon/oxy-ref/engine/scene"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/Carmen-Shannon/oxy-ref/engine/triapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/window"
	"golang.org/x/image/draw"
)

const softwareMaxTextureSize = 4096

var errNoFrame = errors.New("no frame has been submitted")

// softwareStats counts what the software backend was asked to draw. 3D submissions are
// recorded but not rasterized.
type softwareStats struct {
	Frames        int
	Batches       int
	Vertices      int
	Indices       int
	ScenePasses   int
	SceneItems    int
	SceneVertices int
	SceneDecals   int
	Fills         int
	Blits         int
}

// softwareRendererBackend draws the 2D facet into an RGBA framebuffer with x/image/draw.
type softwareRendererBackend struct {
	mu *sync.Mutex

	back     *image.RGBA
	front    *image.RGBA
	textures map[texture.Handle]*image.NRGBA
	inFrame  bool
	scaler   draw.Scaler

	stats softwareStats
}

var _ Backend = &softwareRendererBackend{}

func newSoftwareRendererBackend() *softwareRendererBackend {
	return &softwareRendererBackend{
		mu:       &sync.Mutex{},
		textures: make(map[texture.Handle]*image.NRGBA),
		scaler:   draw.NearestNeighbor,
	}
}

func (b *softwareRendererBackend) Init(win window.Window, width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid framebuffer size %dx%d", width, height)
	}
	b.back = image.NewRGBA(image.Rect(0, 0, width, height))
	b.front = nil
	b.stats = softwareStats{}
	return nil
}

func (b *softwareRendererBackend) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.textures)
	b.back, b.front = nil, nil
	b.inFrame = false
}

func (b *softwareRendererBackend) Capabilities() Capabilities {
	return Capabilities{
		Name:           "software",
		MaxTextureSize: softwareMaxTextureSize,
		MaxUnits:       texture.MaxUnits,
		Extensions:     []string{"npot", "texture_clamp", "readback"},
	}
}

func (b *softwareRendererBackend) Resize(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if width <= 0 || height <= 0 {
		return
	}
	b.back = image.NewRGBA(image.Rect(0, 0, width, height))
}

func (b *softwareRendererBackend) Size() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.back == nil {
		return 0, 0
	}
	return b.back.Rect.Dx(), b.back.Rect.Dy()
}

func (b *softwareRendererBackend) UploadTexture(h texture.Handle, name string, data common.TextureStagingData) error {
	w, ht := int(data.Width), int(data.Height)
	if w <= 0 || ht <= 0 || w > softwareMaxTextureSize || ht > softwareMaxTextureSize {
		return fmt.Errorf("texture %s: unsupported size %dx%d", name, w, ht)
	}
	if len(data.Pixels) != w*ht*4 {
		return fmt.Errorf("texture %s: expected %d bytes, got %d", name, w*ht*4, len(data.Pixels))
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, ht))
	copy(img.Pix, data.Pixels)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.textures[h] = img
	return nil
}

func (b *softwareRendererBackend) ReleaseTexture(h texture.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.textures, h)
}

func (b *softwareRendererBackend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.back == nil {
		return errors.New("software backend is not initialized")
	}
	b.inFrame = true
	return nil
}

func (b *softwareRendererBackend) Clear(c color.RGBA) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.back == nil {
		return
	}
	draw.Draw(b.back, b.back.Rect, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func (b *softwareRendererBackend) DrawScene(list scene.DrawList, cam camera.Camera) error {
	batches := sceneGeometry(list)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.ScenePasses++
	b.stats.SceneItems += list.Len()
	b.stats.SceneDecals += len(list.Decals)
	for _, gb := range batches {
		b.stats.SceneVertices += len(gb.Vertices)
	}
	return nil
}

func (b *softwareRendererBackend) DrawBatch(d triapi.Data) error {
	_, idx := expandPrimitive(d.Primitive, len(d.Vertices))
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.Batches++
	b.stats.Vertices += len(d.Vertices)
	b.stats.Indices += len(idx)
	return nil
}

func (b *softwareRendererBackend) Fill(rect image.Rectangle, c color.RGBA, mode BlendMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.back == nil {
		return
	}
	rect = rect.Intersect(b.back.Rect)
	if rect.Empty() {
		return
	}
	b.stats.Fills++
	src := color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
	switch mode {
	case BlendNone:
		draw.Draw(b.back, rect, &image.Uniform{C: src}, image.Point{}, draw.Src)
	case BlendAlpha:
		draw.Draw(b.back, rect, &image.Uniform{C: src}, image.Point{}, draw.Over)
	case BlendAdditive:
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				addPixel(b.back, x, y, src)
			}
		}
	}
}

func (b *softwareRendererBackend) Blit(rect image.Rectangle, h texture.Handle, st [4]float32, tint color.RGBA, mode BlendMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.back == nil {
		return errors.New("software backend is not initialized")
	}
	tex, ok := b.textures[h]
	if !ok {
		return fmt.Errorf("texture %s was never uploaded", h)
	}
	b.stats.Blits++

	tw, th := float32(tex.Rect.Dx()), float32(tex.Rect.Dy())
	sr := image.Rect(int(st[0]*tw), int(st[1]*th), int(st[2]*tw), int(st[3]*th)).Intersect(tex.Rect)
	if sr.Empty() {
		sr = tex.Rect
	}

	var src image.Image = tex
	if tint != (color.RGBA{255, 255, 255, 255}) {
		src = tinted(tex, sr, tint)
	}

	switch mode {
	case BlendNone:
		b.scaler.Scale(b.back, rect, src, sr, draw.Src, nil)
	case BlendAlpha:
		b.scaler.Scale(b.back, rect, src, sr, draw.Over, nil)
	case BlendAdditive:
		tmp := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		b.scaler.Scale(tmp, tmp.Rect, src, sr, draw.Src, nil)
		clip := rect.Intersect(b.back.Rect)
		for y := clip.Min.Y; y < clip.Max.Y; y++ {
			for x := clip.Min.X; x < clip.Max.X; x++ {
				addPixel(b.back, x, y, tmp.NRGBAAt(x-rect.Min.X, y-rect.Min.Y))
			}
		}
	}
	return nil
}

func (b *softwareRendererBackend) BlitRaw(rect image.Rectangle, img *image.RGBA) error {
	if img == nil {
		return errors.New("nil raw image")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.back == nil {
		return errors.New("software backend is not initialized")
	}
	b.stats.Blits++
	b.scaler.Scale(b.back, rect, img, img.Rect, draw.Src, nil)
	return nil
}

func (b *softwareRendererBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.inFrame {
		return errors.New("software backend: EndFrame without BeginFrame")
	}
	b.inFrame = false
	b.stats.Frames++
	b.front = cloneRGBA(b.back)
	return nil
}

func (b *softwareRendererBackend) Present() {}

func (b *softwareRendererBackend) ReadPixels() (*image.RGBA, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.front == nil {
		return nil, errNoFrame
	}
	return cloneRGBA(b.front), nil
}

// addPixel adds src scaled by its alpha to the pixel at x, y, saturating each channel.
func addPixel(dst *image.RGBA, x, y int, src color.NRGBA) {
	i := dst.PixOffset(x, y)
	a := uint32(src.A)
	for c, v := range [3]uint8{src.R, src.G, src.B} {
		sum := uint32(dst.Pix[i+c]) + uint32(v)*a/255
		if sum > 255 {
			sum = 255
		}
		dst.Pix[i+c] = uint8(sum)
	}
	dst.Pix[i+3] = 255
}

// tinted returns the sr region of tex with every channel multiplied by tint.
func tinted(tex *image.NRGBA, sr image.Rectangle, tint color.RGBA) *image.NRGBA {
	out := image.NewNRGBA(sr)
	for y := sr.Min.Y; y < sr.Max.Y; y++ {
		for x := sr.Min.X; x < sr.Max.X; x++ {
			c := tex.NRGBAAt(x, y)
			out.SetNRGBA(x, y, color.NRGBA{
				R: uint8(uint32(c.R) * uint32(tint.R) / 255),
				G: uint8(uint32(c.G) * uint32(tint.G) / 255),
				B: uint8(uint32(c.B) * uint32(tint.B) / 255),
				A: uint8(uint32(c.A) * uint32(tint.A) / 255),
			})
		}
	}
	return out
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	if src == nil {
		return nil
	}
	out := image.NewRGBA(src.Rect)
	copy(out.Pix, src.Pix)
	return out
}
