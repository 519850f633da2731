package texture

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-ref/common"
	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/log"
	"golang.org/x/text/cases"
)

// MaxTextures is the default registry capacity.
const MaxTextures = 4096

var logger = log.New("texture")

// Uploader is the backend side of texture storage. The registry owns identity and lifetime;
// the uploader owns the GPU (or software) copy of the pixels.
type Uploader interface {
	UploadTexture(h Handle, name string, data common.TextureStagingData) error
	ReleaseTexture(h Handle)
}

// Info describes a live texture for introspection and diagnostics.
type Info struct {
	Handle Handle
	Name   string
	Width  int
	Height int
	Format common.PixelFormat
	Flags  Flags
	Shared SharedKind
	// Refs is the outstanding reference count for shared textures, 0 otherwise.
	Refs int
}

type record struct {
	name   string
	key    string
	width  int
	height int
	flags  Flags
	shared SharedKind

	// source is the picture as supplied, kept only with FlagKeepSource.
	source *common.RGBData
	// rgba is the last uploaded pixel data, kept only with FlagKeepSource.
	rgba []byte
}

type slot struct {
	gen uint16
	rec *record
}

// registry is the implementation of the Registry interface.
type registry struct {
	mu *sync.Mutex

	up       Uploader
	capacity int

	slots  []slot // slots[0] is never used
	free   []int
	byName map[string][]Handle

	shared [numShared]sharedSlot
	units  units

	fold cases.Caser

	released int
}

// Registry owns texture identity, lookup and lifetime.
//
// Handles are generation checked: once a texture is freed every copy of its handle stops
// resolving, even after the slot is reused.
type Registry interface {
	// Load creates a texture from a host picture, or with update set replaces the pixels of
	// the newest texture with the same (case-insensitive) name in place, keeping its handle.
	//
	// Parameters:
	//   - name: the texture name, must not be empty
	//   - pic: the source picture
	//   - flags: filtering, mip and retention policy
	//   - update: replace an existing texture of the same name instead of creating a new one
	//
	// Returns:
	//   - Handle: the texture handle, or None when the picture is rejected
	Load(name string, pic *common.RGBData, flags Flags, update bool) Handle

	// Free releases a non-shared texture. Shared textures are only released through ReleaseShared.
	//
	// Parameters:
	//   - h: the texture to free
	//
	// Returns:
	//   - bool: true if a live texture was released
	Free(h Handle) bool

	// Find returns the newest live texture with the given name.
	//
	// Parameters:
	//   - name: the texture name (case-insensitive)
	//
	// Returns:
	//   - Handle: the texture handle, or None if no such texture exists
	Find(name string) Handle

	// Lookup returns the description of a live texture.
	//
	// Parameters:
	//   - h: the texture handle
	//
	// Returns:
	//   - Info: the texture description
	//   - bool: false if the handle is stale or invalid
	Lookup(h Handle) (Info, bool)

	// Name returns the texture name, or "" when the handle does not resolve.
	Name(h Handle) string

	// Data returns a copy of the uploaded RGBA pixels when the texture keeps its source, nil
	// otherwise.
	Data(h Handle) []byte

	// OriginalBuffer returns a copy of the pixel buffer as the host supplied it when the
	// texture keeps its source, nil otherwise.
	OriginalBuffer(h Handle) []byte

	// Process remaps the palette of an indexed source and applies gamma, re-uploading the
	// result under the same handle.
	//
	// Parameters:
	//   - h: the texture handle
	//   - gamma: gamma exponent, 1 leaves intensities unchanged
	//   - topColor: hue (0..255) for the top remap range, negative to skip
	//   - bottomColor: hue (0..255) for the bottom remap range, negative to skip
	//
	// Returns:
	//   - error: error if the texture cannot be processed
	Process(h Handle, gamma float32, topColor, bottomColor int) error

	// AcquireShared returns the handle of a built-in texture, creating it on first use, and
	// adds one reference.
	//
	// Parameters:
	//   - kind: the built-in texture kind
	//
	// Returns:
	//   - Handle: the shared texture, or None for an unknown kind
	AcquireShared(kind SharedKind) Handle

	// ReleaseShared drops one reference; the texture is destroyed when the last reference goes.
	// Releasing a kind without references is a no-op.
	//
	// Parameters:
	//   - kind: the built-in texture kind
	ReleaseShared(kind SharedKind)

	// ReplaceShared overwrites the pixels of a built-in texture in place. When the texture is not
	// live it is created and the caller adopts one reference.
	//
	// Parameters:
	//   - kind: the built-in texture kind
	//   - pic: the new picture
	//
	// Returns:
	//   - Handle: the shared texture handle, or None if the picture is rejected
	ReplaceShared(kind SharedKind, pic *common.RGBData) Handle

	// SharedRefs returns the outstanding references of a built-in texture.
	SharedRefs(kind SharedKind) int

	// Bind records h as bound on the given unit and makes that unit active.
	//
	// Parameters:
	//   - unit: the texture unit, or KeepUnit for the active one
	//   - h: the texture to bind
	//
	// Returns:
	//   - error: ErrProtocolViolation for a unit out of range
	Bind(unit Unit, h Handle) error

	// Bound returns the texture bound on a unit, None if nothing is bound.
	Bound(unit Unit) Handle

	// ActiveUnit returns the most recently selected unit.
	ActiveUnit() Unit

	// List returns every live texture ordered by slot.
	List() []Info

	// Count returns the number of live textures.
	Count() int

	// Released returns the number of textures destroyed over the registry's lifetime.
	Released() int

	// Clear releases every texture, shared ones included, and resets all reference counts.
	Clear()
}

var _ Registry = &registry{}

// NewRegistry creates an empty texture registry backed by the given uploader.
//
// Parameters:
//   - up: the backend receiving uploads and releases
//   - options: functional options to configure the registry
//
// Returns:
//   - Registry: the newly created registry
func NewRegistry(up Uploader, options ...RegistryBuilderOption) Registry {
	r := &registry{
		mu:       &sync.Mutex{},
		up:       up,
		capacity: MaxTextures,
		byName:   make(map[string][]Handle),
		fold:     cases.Fold(),
	}
	for _, opt := range options {
		opt(r)
	}
	r.slots = make([]slot, 1, r.capacity+1)
	return r
}

func (r *registry) Load(name string, pic *common.RGBData, flags Flags, update bool) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		logger.Warning("LoadTexture: empty texture name")
		return None
	}
	if err := pic.Validate(); err != nil {
		logger.Warningf("LoadTexture: %s: %v", name, err)
		return None
	}

	if update {
		if h := r.findLocked(name); h != None {
			rec := r.slots[h.Index()].rec
			if err := r.uploadLocked(h, rec, pic, flags); err != nil {
				logger.Warningf("LoadTexture: update %s: %v", name, err)
				return None
			}
			return h
		}
	}

	return r.createLocked(name, pic, flags, SharedNone)
}

func (r *registry) createLocked(name string, pic *common.RGBData, flags Flags, kind SharedKind) Handle {
	index := 0
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		if len(r.slots) > r.capacity {
			logger.Errorf("LoadTexture: %s: registry full (%d textures)", name, r.capacity)
			return None
		}
		r.slots = append(r.slots, slot{})
		index = len(r.slots) - 1
	}

	s := &r.slots[index]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	h := makeHandle(index, s.gen)
	rec := &record{
		name:   name,
		key:    r.fold.String(name),
		shared: kind,
	}
	if err := r.uploadLocked(h, rec, pic, flags); err != nil {
		logger.Warningf("LoadTexture: %s: %v", name, err)
		r.free = append(r.free, index)
		return None
	}
	s.rec = rec
	r.byName[rec.key] = append(r.byName[rec.key], h)
	logger.Debugf("created %s %q %dx%d", h, name, pic.Width, pic.Height)
	return h
}

// uploadLocked converts pic, pushes it to the backend under h and refreshes rec.
func (r *registry) uploadLocked(h Handle, rec *record, pic *common.RGBData, flags Flags) error {
	rgba, err := pic.ToRGBA()
	if err != nil {
		return err
	}
	if pic.Flags&common.ImageHasAlpha != 0 {
		flags |= FlagHasAlpha
	}
	staging := common.TextureStagingData{
		Pixels:  rgba,
		Width:   uint32(pic.Width),
		Height:  uint32(pic.Height),
		Nearest: flags&FlagNearest != 0,
		Clamp:   flags&(FlagClamp|FlagSkySide|FlagBorder) != 0,
		Mipmaps: flags&FlagNoMipmap == 0,
	}
	if r.up != nil {
		if err := r.up.UploadTexture(h, rec.name, staging); err != nil {
			return fmt.Errorf("upload: %w", err)
		}
	}
	rec.width, rec.height, rec.flags = pic.Width, pic.Height, flags
	rec.source, rec.rgba = nil, nil
	if flags&FlagKeepSource != 0 {
		rec.source = pic.Clone()
		if flags&FlagExpandSource != 0 && pic.Type.Indexed() {
			rec.source = &common.RGBData{
				Width: pic.Width, Height: pic.Height, Type: common.PixelRGBA32,
				Flags: pic.Flags, Buffer: append([]byte(nil), rgba...),
			}
		}
		rec.rgba = rgba
	}
	return nil
}

// resolveLocked returns the record of a live handle.
func (r *registry) resolveLocked(h Handle) *record {
	i := h.Index()
	if i <= 0 || i >= len(r.slots) {
		return nil
	}
	s := r.slots[i]
	if s.rec == nil || s.gen != h.Generation() {
		return nil
	}
	return s.rec
}

func (r *registry) findLocked(name string) Handle {
	list := r.byName[r.fold.String(name)]
	if len(list) == 0 {
		return None
	}
	return list[len(list)-1]
}

func (r *registry) destroyLocked(h Handle) {
	rec := r.resolveLocked(h)
	if rec == nil {
		return
	}
	if r.up != nil {
		r.up.ReleaseTexture(h)
	}
	list := r.byName[rec.key]
	for i, other := range list {
		if other == h {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.byName, rec.key)
	} else {
		r.byName[rec.key] = list
	}
	r.units.unbindAll(h)
	r.slots[h.Index()].rec = nil
	r.free = append(r.free, h.Index())
	r.released++
	logger.Debugf("released %s %q", h, rec.name)
}

func (r *registry) Free(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.resolveLocked(h)
	if rec == nil {
		return false
	}
	if rec.shared != SharedNone {
		logger.Warningf("FreeTexture: %s is shared, use FreeSharedTexture", rec.name)
		return false
	}
	r.destroyLocked(h)
	return true
}

func (r *registry) Find(name string) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(name)
}

func (r *registry) Lookup(h Handle) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.resolveLocked(h)
	if rec == nil {
		return Info{}, false
	}
	return r.infoLocked(h, rec), true
}

func (r *registry) infoLocked(h Handle, rec *record) Info {
	info := Info{
		Handle: h,
		Name:   rec.name,
		Width:  rec.width,
		Height: rec.height,
		Flags:  rec.flags,
		Shared: rec.shared,
	}
	if rec.source != nil {
		info.Format = rec.source.Type
	}
	if rec.shared != SharedNone {
		info.Refs = r.shared[rec.shared].refs
	}
	return info
}

func (r *registry) Name(h Handle) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec := r.resolveLocked(h); rec != nil {
		return rec.name
	}
	return ""
}

func (r *registry) Data(h Handle) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec := r.resolveLocked(h); rec != nil {
		return slices.Clone(rec.rgba)
	}
	return nil
}

func (r *registry) OriginalBuffer(h Handle) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec := r.resolveLocked(h); rec != nil && rec.source != nil {
		return slices.Clone(rec.source.Buffer)
	}
	return nil
}

func (r *registry) Process(h Handle, gamma float32, topColor, bottomColor int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.resolveLocked(h)
	if rec == nil {
		return fmt.Errorf("process %s: no such texture", h)
	}
	if rec.source == nil {
		return fmt.Errorf("process %q: no input data, texture was not loaded with FlagKeepSource", rec.name)
	}
	pic := rec.source.Clone()
	if pic.Type.Indexed() {
		stride := 3
		if pic.Type == common.PixelIndexed32 {
			stride = 4
		}
		if topColor >= 0 {
			PaletteHueReplace(pic.Palette, stride, topColor, TopHueStart, TopHueEnd)
		}
		if bottomColor >= 0 {
			PaletteHueReplace(pic.Palette, stride, bottomColor, BottomHueStart, BottomHueEnd)
		}
	}
	source := rec.source
	if err := r.uploadProcessedLocked(h, rec, pic, gamma); err != nil {
		return fmt.Errorf("process %q: %w", rec.name, err)
	}
	// The source is kept untouched so repeated remaps always start from the host's original.
	rec.source = source
	return nil
}

func (r *registry) uploadProcessedLocked(h Handle, rec *record, pic *common.RGBData, gamma float32) error {
	rgba, err := pic.ToRGBA()
	if err != nil {
		return err
	}
	ApplyGamma(rgba, gamma)
	processed := &common.RGBData{
		Width: pic.Width, Height: pic.Height, Type: common.PixelRGBA32,
		Flags: pic.Flags, Buffer: rgba,
	}
	return r.uploadLocked(h, rec, processed, rec.flags)
}

func (r *registry) Bind(unit Unit, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h != None && r.resolveLocked(h) == nil {
		return errStale("Bind", h)
	}
	return r.units.bind(unit, h)
}

func (r *registry) Bound(unit Unit) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if unit == KeepUnit {
		unit = r.units.active
	}
	if unit < 0 || unit >= MaxUnits {
		return None
	}
	return r.units.bound[unit]
}

func (r *registry) ActiveUnit() Unit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.units.active
}

func (r *registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Info, 0, len(r.slots))
	for i := 1; i < len(r.slots); i++ {
		s := r.slots[i]
		if s.rec == nil {
			continue
		}
		out = append(out, r.infoLocked(makeHandle(i, s.gen), s.rec))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Handle.Index() < out[b].Handle.Index() })
	return out
}

func (r *registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := 1; i < len(r.slots); i++ {
		if r.slots[i].rec != nil {
			n++
		}
	}
	return n
}

func (r *registry) Released() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

func (r *registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 1; i < len(r.slots); i++ {
		s := r.slots[i]
		if s.rec != nil {
			r.destroyLocked(makeHandle(i, s.gen))
		}
	}
	for k := range r.shared {
		r.shared[k] = sharedSlot{}
	}
	r.units = units{}
}

// errStale wraps a protocol violation for a handle that no longer resolves.
func errStale(op string, h Handle) error {
	return fmt.Errorf("%w: %s: stale texture handle %s", refapi.ErrProtocolViolation, op, h)
}
