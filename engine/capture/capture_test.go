package capture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

type fakeSource struct {
	w, h   int
	err    error
	views  []mgl32.Vec3
	skyArg []bool
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func (f *fakeSource) Frame() (*image.RGBA, error) {
	if f.err != nil {
		return nil, f.err
	}
	return solid(f.w, f.h, color.RGBA{200, 10, 10, 255}), nil
}

func (f *fakeSource) View(origin, angles mgl32.Vec3, size int, skyOnly bool) (*image.RGBA, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.views = append(f.views, angles)
	f.skyArg = append(f.skyArg, skyOnly)
	// Deliberately the wrong size so the capturer has to resample.
	return solid(size/2, size/2, color.RGBA{0, 0, 255, 255}), nil
}

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var cfg image.Config
	switch filepath.Ext(path) {
	case ".png":
		cfg, err = png.DecodeConfig(bytes.NewReader(data))
	case ".bmp":
		cfg, err = bmp.DecodeConfig(bytes.NewReader(data))
	case ".tif":
		cfg, err = tiff.DecodeConfig(bytes.NewReader(data))
	}
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return cfg.Width, cfg.Height
}

func TestScreenShotSizes(t *testing.T) {
	dir := t.TempDir()
	globals := &refapi.Globals{}
	c := NewCapturer(&fakeSource{w: 320, h: 200}, globals, WithDirectory(dir))

	tests := []struct {
		name  string
		shot  refapi.ShotType
		wide  bool
		file  string
		wantW int
		wantH int
	}{
		{"screenshot keeps size", refapi.ShotScreenshot, false, "shot.png", 320, 200},
		{"snapshot keeps size", refapi.ShotSnapshot, false, "snap.bmp", 320, 200},
		{"levelshot", refapi.ShotLevelshot, false, "levelshots/a.png", 640, 480},
		{"levelshot widescreen", refapi.ShotLevelshot, true, "levelshots/b.tif", 854, 480},
		{"minishot", refapi.ShotMinishot, false, "mini.bmp", 160, 120},
		{"mapshot", refapi.ShotMapshot, false, "map.png", 512, 512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			globals.WideScreen = tt.wide
			if !c.ScreenShot(tt.file, tt.shot) {
				t.Fatal("ScreenShot failed")
			}
			w, h := decodeSize(t, filepath.Join(dir, tt.file))
			if w != tt.wantW || h != tt.wantH {
				t.Fatalf("size = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestScreenShotRejects(t *testing.T) {
	dir := t.TempDir()
	ok := NewCapturer(&fakeSource{w: 4, h: 4}, nil, WithDirectory(dir))
	if ok.ScreenShot("", refapi.ShotScreenshot) {
		t.Error("empty name accepted")
	}
	if ok.ScreenShot("x.png", refapi.ShotType(42)) {
		t.Error("unknown shot type accepted")
	}
	failing := NewCapturer(&fakeSource{err: errors.New("no frame")}, nil, WithDirectory(dir))
	if failing.ScreenShot("x.png", refapi.ShotScreenshot) {
		t.Error("source error ignored")
	}
	if NewCapturer(nil, nil).ScreenShot("x.png", refapi.ShotScreenshot) {
		t.Error("nil source accepted")
	}
}

func TestScreenShotDefaultExtension(t *testing.T) {
	dir := t.TempDir()
	c := NewCapturer(&fakeSource{w: 8, h: 8}, nil, WithDirectory(dir))
	if !c.ScreenShot("noext", refapi.ShotScreenshot) {
		t.Fatal("ScreenShot failed")
	}
	if _, err := os.Stat(filepath.Join(dir, "noext.png")); err != nil {
		t.Fatal(err)
	}
}

func TestCubemapShot(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{}
	c := NewCapturer(src, nil, WithDirectory(dir))

	if c.CubemapShot("env/test.bmp", 0, mgl32.Vec3{}, false) {
		t.Fatal("zero size accepted")
	}
	if !c.CubemapShot("env/test.bmp", 64, mgl32.Vec3{1, 2, 3}, true) {
		t.Fatal("CubemapShot failed")
	}
	if len(src.views) != 6 {
		t.Fatalf("rendered %d views", len(src.views))
	}
	for i, f := range CubemapFaces {
		if src.views[i] != f.Angles || !src.skyArg[i] {
			t.Errorf("view %d = %v sky=%v", i, src.views[i], src.skyArg[i])
		}
		w, h := decodeSize(t, filepath.Join(dir, "env", "test"+f.Suffix+".bmp"))
		if w != 64 || h != 64 {
			t.Errorf("%s size = %dx%d", f.Suffix, w, h)
		}
	}
}

func TestEncodeUnknown(t *testing.T) {
	if err := Encode(&bytes.Buffer{}, image.NewRGBA(image.Rect(0, 0, 1, 1)), ".gif"); err == nil {
		t.Fatal("gif accepted")
	}
}
