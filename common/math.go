package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Axis indices used by angle triples (pitch, yaw, roll) in engine convention.
const (
	Pitch = 0
	Yaw   = 1
	Roll  = 2
)

// AngleVectors converts engine-convention Euler angles in degrees into forward, right and up basis vectors.
// The world is Z-up, X-forward; positive pitch looks down.
//
// Parameters:
//   - angles: pitch, yaw, roll in degrees
//
// Returns:
//   - forward, right, up: unit basis vectors of the view
func AngleVectors(angles mgl32.Vec3) (forward, right, up mgl32.Vec3) {
	sy, cy := sincos(angles[Yaw])
	sp, cp := sincos(angles[Pitch])
	sr, cr := sincos(angles[Roll])

	forward = mgl32.Vec3{cp * cy, cp * sy, -sp}
	right = mgl32.Vec3{
		-1*sr*sp*cy + -1*cr*-sy,
		-1*sr*sp*sy + -1*cr*cy,
		-1 * sr * cp,
	}
	up = mgl32.Vec3{
		cr*sp*cy + -sr*-sy,
		cr*sp*sy + -sr*cy,
		cr * cp,
	}
	return forward, right, up
}

// sincos returns the sine and cosine of an angle given in degrees.
func sincos(deg float32) (float32, float32) {
	s, c := math.Sincos(float64(deg) * (math.Pi / 180.0))
	return float32(s), float32(c)
}

// AngleDelta returns the shortest signed difference a-b in degrees, wrapped into [-180, 180].
//
// Parameters:
//   - a: the target angle in degrees
//   - b: the source angle in degrees
//
// Returns:
//   - float32: the wrapped difference
func AngleDelta(a, b float32) float32 {
	d := a - b
	for d > 180 {
		d -= 360
	}
	for d < -180 {
		d += 360
	}
	return d
}

// BoundsIntersect reports whether two axis-aligned boxes overlap (touching counts as overlapping).
//
// Parameters:
//   - mins1, maxs1: the first box
//   - mins2, maxs2: the second box
//
// Returns:
//   - bool: true if the boxes overlap
func BoundsIntersect(mins1, maxs1, mins2, maxs2 mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if mins1[i] > maxs2[i] || maxs1[i] < mins2[i] {
			return false
		}
	}
	return true
}

// PointInBounds reports whether p lies inside the box, inclusive.
func PointInBounds(p, mins, maxs mgl32.Vec3) bool {
	return BoundsIntersect(p, p, mins, maxs)
}

// RadiusFromBounds returns the radius of the sphere centred at the origin enclosing the box.
//
// Parameters:
//   - mins, maxs: the box
//
// Returns:
//   - float32: the enclosing radius
func RadiusFromBounds(mins, maxs mgl32.Vec3) float32 {
	var corner mgl32.Vec3
	for i := 0; i < 3; i++ {
		corner[i] = float32(math.Max(math.Abs(float64(mins[i])), math.Abs(float64(maxs[i]))))
	}
	return corner.Len()
}

// ClampInt clamps v into [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Coalesce returns the first of values that is not the zero value of T.
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
