package scene

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithComputeWorkers sets the number of worker goroutines used to prepare entity transforms in
// Render. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of compute workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithComputeWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.computeWorkers = n
	}
}

// WithMaxEntities sets the capacity of each entity draw list. Defaults to MaxVisibleEntities.
//
// Parameters:
//   - n: the list capacity (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithMaxEntities(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.maxEntities = n
	}
}
