package diag

// DiagnosticsBuilderOption is a functional option for configuring Diagnostics.
type DiagnosticsBuilderOption func(*diagnostics)

// WithViolationCapacity sets how many violations the ring keeps.
//
// Parameters:
//   - n: the ring size (minimum 1)
//
// Returns:
//   - DiagnosticsBuilderOption: option function to apply
func WithViolationCapacity(n int) DiagnosticsBuilderOption {
	return func(d *diagnostics) {
		if n < 1 {
			n = 1
		}
		d.ringCap = n
	}
}

// WithStream attaches a live stats stream at creation.
//
// Parameters:
//   - s: the stream
//
// Returns:
//   - DiagnosticsBuilderOption: option function to apply
func WithStream(s *Stream) DiagnosticsBuilderOption {
	return func(d *diagnostics) {
		d.stream = s
	}
}
