// Package loader decodes model files into model records and registers the textures they carry.
package loader

import (
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
	"github.com/Carmen-Shannon/oxy-ref/log"
)

var logger = log.New("loader")

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	textures texture.Registry
	palette  []byte

	modelCache map[string]*model.Model

	backends  map[model.Type]loaderBackend
	mapSprite loaderBackend
	studio    *studioLoaderBackend
	brush     *brushLoaderBackend
}

// Loader decodes host-supplied model files into host-allocated model records. Every load
// reports plain success; the reason for a failure is logged.
type Loader interface {
	// Load decodes buf as a model of the given kind into mod. A model that is already loaded
	// is unloaded first.
	//
	// Parameters:
	//   - kind: the model type the host expects
	//   - mod: the host-allocated model record
	//   - buf: the raw file contents (ignored for brush models, which the host decodes)
	//   - flags: texture flags, honoured for sprites only
	//
	// Returns:
	//   - bool: true if the model was loaded
	Load(kind model.Type, mod *model.Model, buf []byte, flags texture.Flags) bool

	// LoadMapSprite cuts an image file into map sprite tiles.
	//
	// Parameters:
	//   - mod: the host-allocated model record
	//   - buf: an encoded png, jpeg, bmp or tiff image
	//
	// Returns:
	//   - bool: true if the sprite was created
	LoadMapSprite(mod *model.Model, buf []byte) bool

	// Unload frees the renderer-side caches and textures of mod. Unloading an unloaded model
	// is a no-op.
	//
	// Parameters:
	//   - mod: the model to unload
	Unload(mod *model.Model)

	// StudioLoadTextures (re)loads the skins of a loaded studio model from data without
	// touching its geometry.
	//
	// Parameters:
	//   - mod: a loaded studio model
	//   - data: the studio file carrying the textures
	//
	// Returns:
	//   - bool: true if the textures were loaded
	StudioLoadTextures(mod *model.Model, data []byte) bool

	// StudioUnloadTextures releases the skins of a studio model, keeping its geometry.
	//
	// Parameters:
	//   - st: the studio cache whose textures are released
	StudioUnloadTextures(st *model.Studio)

	// Get retrieves a loaded model by name. Returns nil if not found.
	Get(name string) *model.Model

	// Models returns every loaded model ordered by name.
	Models() []*model.Model

	// UnloadAll unloads every loaded model.
	UnloadAll()
}

var _ Loader = &loader{}

// NewLoader creates a Loader registering textures with the given registry.
//
// Parameters:
//   - textures: the texture registry extracted images are loaded into
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided options
func NewLoader(textures texture.Registry, options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:         sync.RWMutex{},
		textures:   textures,
		palette:    defaultPalette(),
		modelCache: make(map[string]*model.Model),
	}
	for _, option := range options {
		option(l)
	}

	l.studio = newStudioLoaderBackend(textures)
	l.brush = newBrushLoaderBackend(textures)
	l.mapSprite = newMapSpriteLoaderBackend(textures)
	l.backends = map[model.Type]loaderBackend{
		model.TypeSprite: newSpriteLoaderBackend(textures, l.palette),
		model.TypeAlias:  newAliasLoaderBackend(textures, l.palette),
		model.TypeStudio: l.studio,
		model.TypeBrush:  l.brush,
	}
	return l
}

func (l *loader) Load(kind model.Type, mod *model.Model, buf []byte, flags texture.Flags) bool {
	if mod == nil {
		logger.Warning("LoadModel: nil model")
		return false
	}
	backend, ok := l.backends[kind]
	if !ok {
		logger.Warningf("LoadModel: %s: unsupported model type %d", mod.Name, kind)
		return false
	}
	if kind != model.TypeSprite {
		flags = 0
	}
	return l.decode(backend, kind, mod, buf, flags)
}

func (l *loader) LoadMapSprite(mod *model.Model, buf []byte) bool {
	if mod == nil {
		logger.Warning("LoadMapSprite: nil model")
		return false
	}
	return l.decode(l.mapSprite, model.TypeSprite, mod, buf, 0)
}

func (l *loader) decode(backend loaderBackend, kind model.Type, mod *model.Model, buf []byte, flags texture.Flags) bool {
	if mod.Loaded() {
		l.Unload(mod)
	}
	if kind != model.TypeBrush && len(buf) == 0 {
		logger.Warningf("LoadModel: %s: empty buffer", mod.Name)
		return false
	}
	if err := backend.Decode(mod, buf, flags); err != nil {
		logger.Warningf("LoadModel: %v", err)
		mod.Reset()
		mod.Type = model.TypeBad
		return false
	}
	mod.Type = kind
	mod.MarkLoaded()

	l.mu.Lock()
	l.modelCache[mod.Name] = mod
	l.mu.Unlock()
	logger.Debugf("loaded %s model %s (%d frames)", kind, mod.Name, mod.NumFrames)
	return true
}

func (l *loader) Unload(mod *model.Model) {
	if !mod.Loaded() {
		return
	}
	switch mod.Type {
	case model.TypeSprite:
		if mod.Sprite != nil {
			for _, h := range mod.Sprite.Textures() {
				l.textures.Free(h)
			}
		}
	case model.TypeAlias:
		if mod.Alias != nil {
			for _, h := range mod.Alias.Textures() {
				l.textures.Free(h)
			}
		}
	case model.TypeStudio:
		l.studio.UnloadTextures(mod.Studio)
	case model.TypeBrush:
		if mod.Brush != nil {
			l.brush.release(mod.Brush)
		}
	}
	mod.Reset()

	l.mu.Lock()
	if l.modelCache[mod.Name] == mod {
		delete(l.modelCache, mod.Name)
	}
	l.mu.Unlock()
	logger.Debugf("unloaded %s", mod.Name)
}

func (l *loader) StudioLoadTextures(mod *model.Model, data []byte) bool {
	if !mod.Loaded() || mod.Type != model.TypeStudio || mod.Studio == nil {
		logger.Warning("StudioLoadTextures: not a loaded studio model")
		return false
	}
	if err := l.studio.LoadTextures(mod.Name, mod.Studio, data); err != nil {
		logger.Warningf("StudioLoadTextures: %v", err)
		return false
	}
	return true
}

func (l *loader) StudioUnloadTextures(st *model.Studio) {
	l.studio.UnloadTextures(st)
}

func (l *loader) Get(name string) *model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.modelCache[name]
}

func (l *loader) Models() []*model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*model.Model, 0, len(l.modelCache))
	for _, m := range l.modelCache {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (l *loader) UnloadAll() {
	for _, m := range l.Models() {
		l.Unload(m)
	}
}

// defaultPalette is a grey ramp used when the host supplies no palette for Quake formats.
func defaultPalette() []byte {
	pal := make([]byte, 768)
	for i := 0; i < 256; i++ {
		pal[i*3], pal[i*3+1], pal[i*3+2] = byte(i), byte(i), byte(i)
	}
	return pal
}
