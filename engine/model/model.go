// Package model holds the model records shared by the host and the renderer. The host
// pre-allocates a Model with its name, the loader decodes the raw file into the renderer-side
// caches and reports success as a boolean.
package model

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Type is the host-supplied model type tag (modtype_t).
type Type int

const (
	TypeBad    Type = -1
	TypeBrush  Type = 0
	TypeSprite Type = 1
	TypeAlias  Type = 2
	TypeStudio Type = 3
)

func (t Type) String() string {
	switch t {
	case TypeBrush:
		return "brush"
	case TypeSprite:
		return "sprite"
	case TypeAlias:
		return "alias"
	case TypeStudio:
		return "studio"
	}
	return "bad"
}

// Sync types shared by sprites and alias models.
const (
	SyncSync   = 0
	SyncRandom = 1
)

// Model is one loaded model. Name and Type come from the host; everything else is filled by
// the loader and cleared again by Unload.
type Model struct {
	Name string
	Type Type

	// Flags are the format specific model flags (alias effects, studio flags).
	Flags int

	// NumFrames is the number of sprite frames, alias frames or studio sequences.
	NumFrames int
	SyncType  int

	Mins   mgl32.Vec3
	Maxs   mgl32.Vec3
	Radius float32

	// Exactly one of the caches below is set on a loaded model.
	Sprite *Sprite
	Alias  *Alias
	Studio *Studio
	Brush  *Brush

	loaded bool
}

// New creates a model record with the given name and options applied.
//
// Parameters:
//   - name: the model name as the host knows it
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - *Model: the new model record, not yet loaded
func New(name string, options ...ModelBuilderOption) *Model {
	m := &Model{Name: name, Type: TypeBad}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Loaded reports whether the renderer-side caches are populated.
func (m *Model) Loaded() bool {
	return m != nil && m.loaded
}

// MarkLoaded sets the loaded flag. Used by decoders once every cache is in place.
func (m *Model) MarkLoaded() {
	m.loaded = true
}

// Reset drops the renderer-side caches and returns the record to its unloaded state, keeping
// the host-owned name and type. Host-decoded brush data is kept.
func (m *Model) Reset() {
	m.Flags = 0
	m.NumFrames = 0
	m.SyncType = 0
	m.Mins, m.Maxs = mgl32.Vec3{}, mgl32.Vec3{}
	m.Radius = 0
	m.Sprite = nil
	m.Alias = nil
	m.Studio = nil
	m.loaded = false
}
