package triapi

// FacetBuilderOption is a functional option for configuring a Facet.
type FacetBuilderOption func(*facet)

// WithBinder sets the texture binder SpriteTexture binds through.
//
// Parameters:
//   - b: the binder, usually the texture registry
//
// Returns:
//   - FacetBuilderOption: option function to apply
func WithBinder(b Binder) FacetBuilderOption {
	return func(f *facet) {
		f.binder = b
	}
}

// WithViolationHandler sets the function every batch protocol violation is reported to.
//
// Parameters:
//   - h: the handler
//
// Returns:
//   - FacetBuilderOption: option function to apply
func WithViolationHandler(h func(op string, err error)) FacetBuilderOption {
	return func(f *facet) {
		f.onViolation = h
	}
}
