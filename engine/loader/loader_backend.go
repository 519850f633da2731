package loader

import (
	"github.com/Carmen-Shannon/oxy-ref/engine/model"
	"github.com/Carmen-Shannon/oxy-ref/engine/texture"
)

// loaderBackend decodes one model format into the renderer-side caches of a model record.
// Concrete implementations register the textures they extract with the texture registry.
type loaderBackend interface {
	// Decode parses buf and fills mod.
	//
	// Parameters:
	//   - mod: the host-allocated model record
	//   - buf: the raw file contents
	//   - flags: texture flags for the extracted images
	//
	// Returns:
	//   - error: error if the file cannot be decoded; mod is left unloaded
	Decode(mod *model.Model, buf []byte, flags texture.Flags) error
}
