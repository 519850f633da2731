package capture

import "golang.org/x/image/draw"

// CapturerBuilderOption is a functional option for configuring a Capturer.
type CapturerBuilderOption func(*capturer)

// WithDirectory resolves relative output names against dir.
//
// Parameters:
//   - dir: the output directory
//
// Returns:
//   - CapturerBuilderOption: option function to apply
func WithDirectory(dir string) CapturerBuilderOption {
	return func(c *capturer) {
		c.dir = dir
	}
}

// WithScaler sets the resampling kernel used for resized shots.
//
// Parameters:
//   - s: the scaler, e.g. draw.NearestNeighbor or draw.CatmullRom
//
// Returns:
//   - CapturerBuilderOption: option function to apply
func WithScaler(s draw.Scaler) CapturerBuilderOption {
	return func(c *capturer) {
		if s != nil {
			c.scaler = s
		}
	}
}
