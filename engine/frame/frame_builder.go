package frame

// MachineBuilderOption is a functional option for configuring a Machine via NewMachine.
type MachineBuilderOption func(*machine)

// WithSceneStackDepth sets the number of scene slots, the outer scene included.
// Values below 1 are ignored.
//
// Parameters:
//   - depth: the scene stack capacity
//
// Returns:
//   - MachineBuilderOption: a function that applies the depth option to a machine
func WithSceneStackDepth(depth int) MachineBuilderOption {
	return func(m *machine) {
		if depth >= 1 {
			m.maxDepth = depth
		}
	}
}

// WithViolationHandler registers the callback receiving every protocol violation.
//
// Parameters:
//   - h: the handler
//
// Returns:
//   - MachineBuilderOption: a function that applies the handler option to a machine
func WithViolationHandler(h ViolationHandler) MachineBuilderOption {
	return func(m *machine) {
		m.onViolation = h
	}
}
