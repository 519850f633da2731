package texture

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
)

type fakeUploader struct {
	uploads  map[Handle]int
	released map[Handle]int
	last     map[Handle][]byte
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{
		uploads:  make(map[Handle]int),
		released: make(map[Handle]int),
		last:     make(map[Handle][]byte),
	}
}

func (f *fakeUploader) UploadTexture(h Handle, _ string, data common.TextureStagingData) error {
	f.uploads[h]++
	f.last[h] = data.Pixels
	return nil
}

func (f *fakeUploader) ReleaseTexture(h Handle) {
	f.released[h]++
}

func solid(w, h int, c [4]byte) *common.RGBData {
	pic := &common.RGBData{Width: w, Height: h, Type: common.PixelRGBA32, Buffer: make([]byte, w*h*4)}
	for i := 0; i < w*h; i++ {
		copy(pic.Buffer[i*4:], c[:])
	}
	return pic
}

func indexed(w, h int, idx byte) *common.RGBData {
	pal := make([]byte, 768)
	for i := 0; i < 256; i++ {
		pal[i*3], pal[i*3+1], pal[i*3+2] = byte(i), byte(i/2), 200
	}
	buf := bytes.Repeat([]byte{idx}, w*h)
	return &common.RGBData{Width: w, Height: h, Type: common.PixelIndexed24, Palette: pal, Buffer: buf}
}

func TestLoadWithoutUpdateYieldsDistinctHandles(t *testing.T) {
	r := NewRegistry(newFakeUploader())

	a := r.Load("wall", solid(2, 2, [4]byte{1, 2, 3, 255}), 0, false)
	b := r.Load("wall", solid(2, 2, [4]byte{4, 5, 6, 255}), 0, false)

	if a == None || b == None {
		t.Fatalf("Load returned None: a=%v b=%v", a, b)
	}
	if a == b {
		t.Fatalf("expected distinct handles, both are %v", a)
	}
	if got := r.Find("WALL"); got != b {
		t.Errorf("Find(WALL) = %v, want newest %v", got, b)
	}
}

func TestLoadWithUpdateKeepsHandle(t *testing.T) {
	up := newFakeUploader()
	r := NewRegistry(up)

	a := r.Load("skin", solid(2, 2, [4]byte{1, 1, 1, 255}), FlagKeepSource, false)
	b := r.Load("Skin", solid(4, 4, [4]byte{9, 9, 9, 255}), FlagKeepSource, true)

	if a != b {
		t.Fatalf("update changed identity: %v -> %v", a, b)
	}
	info, ok := r.Lookup(a)
	if !ok {
		t.Fatal("Lookup failed after update")
	}
	if info.Width != 4 || info.Height != 4 {
		t.Errorf("size after update = %dx%d, want 4x4", info.Width, info.Height)
	}
	if data := r.Data(a); len(data) != 64 || data[0] != 9 {
		t.Errorf("Data after update not refreshed: len=%d first=%v", len(data), data[:1])
	}
	if up.uploads[a] != 2 {
		t.Errorf("uploads = %d, want 2", up.uploads[a])
	}
}

func TestUpdateWithUnknownNameCreates(t *testing.T) {
	r := NewRegistry(newFakeUploader())
	if h := r.Load("fresh", solid(1, 1, [4]byte{}), 0, true); h == None {
		t.Fatal("update of unknown name should create a texture")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
}

func TestLoadRejectsInvalidInput(t *testing.T) {
	r := NewRegistry(newFakeUploader())
	tests := []struct {
		name string
		tex  string
		pic  *common.RGBData
	}{
		{"empty name", "", solid(1, 1, [4]byte{})},
		{"nil picture", "a", nil},
		{"short buffer", "b", &common.RGBData{Width: 4, Height: 4, Type: common.PixelRGBA32, Buffer: make([]byte, 3)}},
		{"indexed without palette", "c", &common.RGBData{Width: 1, Height: 1, Type: common.PixelIndexed24, Buffer: []byte{0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if h := r.Load(tt.tex, tt.pic, 0, false); h != None {
				t.Errorf("Load = %v, want None", h)
			}
		})
	}
}

func TestStaleHandleDoesNotResolve(t *testing.T) {
	r := NewRegistry(newFakeUploader())
	a := r.Load("first", solid(1, 1, [4]byte{}), 0, false)
	if !r.Free(a) {
		t.Fatal("Free returned false for a live texture")
	}
	b := r.Load("second", solid(1, 1, [4]byte{}), 0, false)

	if a.Index() != b.Index() {
		t.Fatalf("expected slot reuse, got %d and %d", a.Index(), b.Index())
	}
	if _, ok := r.Lookup(a); ok {
		t.Error("stale handle resolved after slot reuse")
	}
	if name := r.Name(a); name != "" {
		t.Errorf("Name(stale) = %q, want empty", name)
	}
	if r.Free(a) {
		t.Error("Free(stale) returned true")
	}
	if err := r.Bind(Unit0, a); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Errorf("Bind(stale) error = %v, want ErrProtocolViolation", err)
	}
}

func TestIntrospectionWithoutKeepSource(t *testing.T) {
	r := NewRegistry(newFakeUploader())
	h := r.Load("plain", solid(1, 1, [4]byte{}), 0, false)
	if r.Data(h) != nil {
		t.Error("Data should be nil without FlagKeepSource")
	}
	if r.OriginalBuffer(h) != nil {
		t.Error("OriginalBuffer should be nil without FlagKeepSource")
	}
	if r.Name(h) != "plain" {
		t.Errorf("Name = %q, want plain", r.Name(h))
	}
	if r.Name(None) != "" || r.Data(None) != nil {
		t.Error("None must not resolve")
	}
}

func TestIntrospectionReturnsCopies(t *testing.T) {
	r := NewRegistry(newFakeUploader())
	h := r.Load("player", indexed(2, 2, TopHueStart), FlagKeepSource, false)

	data := r.Data(h)
	original := r.OriginalBuffer(h)
	if len(data) == 0 || len(original) == 0 {
		t.Fatalf("Data = %d bytes, OriginalBuffer = %d bytes", len(data), len(original))
	}
	clear(data)
	for i := range original {
		original[i] = 0
	}

	if bytes.Equal(r.Data(h), data) {
		t.Error("writing the Data result changed the registry pixels")
	}
	if got := r.OriginalBuffer(h); got[0] != TopHueStart {
		t.Errorf("original buffer starts with %d after caller write, want %d", got[0], TopHueStart)
	}
}

func TestSharedReferenceCounting(t *testing.T) {
	up := newFakeUploader()
	r := NewRegistry(up)

	const n = 5
	var h Handle
	for i := 0; i < n; i++ {
		got := r.AcquireShared(SharedWhite)
		if i == 0 {
			h = got
		}
		if got != h {
			t.Fatalf("acquire %d returned %v, want %v", i, got, h)
		}
	}
	if r.SharedRefs(SharedWhite) != n {
		t.Fatalf("refs = %d, want %d", r.SharedRefs(SharedWhite), n)
	}
	if up.uploads[h] != 1 {
		t.Errorf("built-in uploaded %d times, want 1", up.uploads[h])
	}

	for i := 0; i < n-1; i++ {
		r.ReleaseShared(SharedWhite)
		if up.released[h] != 0 {
			t.Fatalf("released early after %d frees", i+1)
		}
	}
	r.ReleaseShared(SharedWhite)
	if up.released[h] != 1 {
		t.Fatalf("released %d times, want exactly 1", up.released[h])
	}

	// Extra frees are no-ops.
	r.ReleaseShared(SharedWhite)
	r.ReleaseShared(SharedGray)
	if up.released[h] != 1 {
		t.Errorf("released %d times after extra frees, want 1", up.released[h])
	}
	if _, ok := r.Lookup(h); ok {
		t.Error("shared texture still resolves after last release")
	}
}

func TestSharedCannotBeFreedDirectly(t *testing.T) {
	r := NewRegistry(newFakeUploader())
	h := r.AcquireShared(SharedDefault)
	if r.Free(h) {
		t.Error("Free on a shared texture should be refused")
	}
	if _, ok := r.Lookup(h); !ok {
		t.Error("shared texture vanished after refused Free")
	}
}

func TestReplaceSharedKeepsHandle(t *testing.T) {
	r := NewRegistry(newFakeUploader())
	first := r.ReplaceShared(SharedSolidSky, solid(2, 2, [4]byte{1, 2, 3, 255}))
	if first == None || r.SharedRefs(SharedSolidSky) != 1 {
		t.Fatalf("ReplaceShared on empty slot: h=%v refs=%d", first, r.SharedRefs(SharedSolidSky))
	}
	second := r.ReplaceShared(SharedSolidSky, solid(4, 4, [4]byte{4, 5, 6, 255}))
	if second != first {
		t.Fatalf("ReplaceShared changed handle %v -> %v", first, second)
	}
	if info, _ := r.Lookup(first); info.Width != 4 {
		t.Errorf("width = %d, want 4", info.Width)
	}
}

func TestProcessRemapsInPlace(t *testing.T) {
	up := newFakeUploader()
	r := NewRegistry(up)
	h := r.Load("player", indexed(2, 2, TopHueStart), FlagKeepSource, false)
	before := append([]byte(nil), r.Data(h)...)
	original := append([]byte(nil), r.OriginalBuffer(h)...)

	if err := r.Process(h, 1, 0, -1); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if r.Find("player") != h {
		t.Error("Process created a new identity")
	}
	after := r.Data(h)
	if bytes.Equal(before, after) {
		t.Error("remap did not change pixels in the top range")
	}
	if !bytes.Equal(original, r.OriginalBuffer(h)) {
		t.Error("original buffer must stay untouched by Process")
	}
	if up.uploads[h] != 2 {
		t.Errorf("uploads = %d, want 2", up.uploads[h])
	}
}

func TestProcessRequiresSource(t *testing.T) {
	r := NewRegistry(newFakeUploader())
	h := r.Load("nosrc", indexed(1, 1, 0), 0, false)
	if err := r.Process(h, 2, -1, -1); err == nil {
		t.Error("Process without a kept source should fail")
	}
	if err := r.Process(None, 1, -1, -1); err == nil {
		t.Error("Process on None should fail")
	}
}

func TestApplyGamma(t *testing.T) {
	px := []byte{64, 128, 255, 10}
	ApplyGamma(px, 1)
	if px[0] != 64 {
		t.Fatalf("gamma 1 changed pixels: %v", px)
	}
	ApplyGamma(px, 2)
	if px[0] <= 64 || px[2] != 255 || px[3] != 10 {
		t.Errorf("gamma 2 result %v: expected brighter RGB and untouched alpha", px)
	}
}

func TestBindUnits(t *testing.T) {
	r := NewRegistry(newFakeUploader())
	h := r.Load("t", solid(1, 1, [4]byte{}), 0, false)

	if err := r.Bind(Unit2, h); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if r.ActiveUnit() != Unit2 || r.Bound(KeepUnit) != h {
		t.Errorf("active=%d bound=%v", r.ActiveUnit(), r.Bound(KeepUnit))
	}
	if err := r.Bind(MaxUnits, h); !errors.Is(err, refapi.ErrProtocolViolation) {
		t.Errorf("Bind(MaxUnits) error = %v, want ErrProtocolViolation", err)
	}
	r.Free(h)
	if r.Bound(Unit2) != None {
		t.Error("Free must unbind the texture")
	}
}

func TestClearReleasesEverything(t *testing.T) {
	up := newFakeUploader()
	r := NewRegistry(up)
	r.Load("a", solid(1, 1, [4]byte{}), 0, false)
	r.AcquireShared(SharedGray)
	r.AcquireShared(SharedGray)

	r.Clear()
	if r.Count() != 0 {
		t.Errorf("Count after Clear = %d", r.Count())
	}
	if r.SharedRefs(SharedGray) != 0 {
		t.Errorf("shared refs after Clear = %d", r.SharedRefs(SharedGray))
	}
	if r.Released() != 2 {
		t.Errorf("Released = %d, want 2", r.Released())
	}
}

func TestSplitSkyClouds(t *testing.T) {
	mip := indexed(4, 2, 7)
	// Left half index 0 becomes transparent.
	mip.Buffer[0] = 0
	solidLayer, alphaLayer, err := SplitSkyClouds(mip)
	if err != nil {
		t.Fatalf("SplitSkyClouds: %v", err)
	}
	if solidLayer.Width != 2 || alphaLayer.Width != 2 {
		t.Fatalf("widths %d/%d, want 2", solidLayer.Width, alphaLayer.Width)
	}
	if alphaLayer.Buffer[3] != 0 {
		t.Errorf("index 0 alpha = %d, want 0", alphaLayer.Buffer[3])
	}
	if alphaLayer.Buffer[7] != 255 {
		t.Errorf("opaque cloud alpha = %d, want 255", alphaLayer.Buffer[7])
	}
	if _, _, err := SplitSkyClouds(solid(2, 2, [4]byte{})); err == nil {
		t.Error("non-indexed sky should be rejected")
	}
}
