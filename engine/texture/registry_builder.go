package texture

// RegistryBuilderOption is a functional option applied to a registry during construction via NewRegistry.
type RegistryBuilderOption func(*registry)

// WithCapacity sets the maximum number of live textures.
// Values <= 0 or above the handle index range keep the default (MaxTextures).
//
// Parameters:
//   - n: the maximum number of live textures
//
// Returns:
//   - RegistryBuilderOption: a function that applies the capacity option to a registry
func WithCapacity(n int) RegistryBuilderOption {
	return func(r *registry) {
		if n > 0 && n < 1<<indexBits {
			r.capacity = n
		}
	}
}
