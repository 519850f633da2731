package loader

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithPalette is an option builder that sets the 256 colour palette used by formats that do
// not carry one (Quake sprites and alias models).
//
// Parameters:
//   - pal: 768 bytes of RGB palette; shorter palettes are ignored
//
// Returns:
//   - LoaderBuilderOption: a function that applies the palette option to a loader
func WithPalette(pal []byte) LoaderBuilderOption {
	return func(l *loader) {
		if len(pal) >= 768 {
			l.palette = append([]byte(nil), pal[:768]...)
		}
	}
}
