package decal

// PoolBuilderOption is a functional option for configuring a Pool.
type PoolBuilderOption func(*pool)

// WithCapacity sets the maximum number of live decals. Defaults to MaxDecals.
//
// Parameters:
//   - n: the capacity (minimum 1)
//
// Returns:
//   - PoolBuilderOption: option function to apply
func WithCapacity(n int) PoolBuilderOption {
	return func(p *pool) {
		if n < 1 {
			n = 1
		}
		p.capacity = n
	}
}
