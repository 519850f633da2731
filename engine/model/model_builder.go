package model

// ModelBuilderOption is a functional option for configuring a Model via New.
type ModelBuilderOption func(*Model)

// WithType is an option builder that sets the host type tag of the Model.
//
// Parameters:
//   - t: the model type
//
// Returns:
//   - ModelBuilderOption: a function that applies the type option to a model
func WithType(t Type) ModelBuilderOption {
	return func(m *Model) {
		m.Type = t
	}
}

// WithBrush is an option builder that attaches host-decoded brush data to the Model.
// Brush models are decoded by the host; the loader only prepares their surfaces and textures.
//
// Parameters:
//   - b: the brush data
//
// Returns:
//   - ModelBuilderOption: a function that applies the brush option to a model
func WithBrush(b *Brush) ModelBuilderOption {
	return func(m *Model) {
		m.Type = TypeBrush
		m.Brush = b
	}
}
