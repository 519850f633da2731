package common

import (
	"math"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustumFromMatrix extracts frustum planes from a view-projection matrix.
// The matrix should be the combined Projection * View matrix.
// Uses the Gribb/Hartmann method for plane extraction with an OpenGL [-1, 1] depth range.
//
// Parameters:
//   - viewProj: 16 float32 values representing the view-projection matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustumFromMatrix(viewProj []float32) Frustum {
	var f Frustum

	// M[row][col] is at index col*4 + row.
	row := func(r int) [4]float32 {
		return [4]float32{viewProj[r], viewProj[4+r], viewProj[8+r], viewProj[12+r]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	set := func(idx int, sign float32, r [4]float32) {
		f.Planes[idx].Normal[0] = r3[0] + sign*r[0]
		f.Planes[idx].Normal[1] = r3[1] + sign*r[1]
		f.Planes[idx].Normal[2] = r3[2] + sign*r[2]
		f.Planes[idx].Distance = r3[3] + sign*r[3]
	}
	set(FrustumLeft, 1, r0)
	set(FrustumRight, -1, r0)
	set(FrustumBottom, 1, r1)
	set(FrustumTop, -1, r1)
	set(FrustumNear, 1, r2)
	set(FrustumFar, -1, r2)

	for i := range f.Planes {
		f.normalizePlane(i)
	}

	return f
}

// normalizePlane normalizes a frustum plane so that the normal has unit length.
func (f *Frustum) normalizePlane(index int) {
	p := &f.Planes[index]
	length := float32(math.Sqrt(float64(
		p.Normal[0]*p.Normal[0] +
			p.Normal[1]*p.Normal[1] +
			p.Normal[2]*p.Normal[2],
	)))

	if length > 0 {
		invLen := 1.0 / length
		p.Normal[0] *= invLen
		p.Normal[1] *= invLen
		p.Normal[2] *= invLen
		p.Distance *= invLen
	}
}

// CullBox reports whether the axis-aligned box lies completely outside any frustum plane.
// The far plane is ignored so that distant entities are never rejected by depth alone.
//
// Parameters:
//   - mins, maxs: the box corners in world space
//
// Returns:
//   - bool: true if the box is outside the frustum and can be culled
func (f *Frustum) CullBox(mins, maxs [3]float32) bool {
	for i := 0; i < FrustumFar; i++ {
		p := &f.Planes[i]
		// Pick the box corner furthest along the plane normal.
		var v [3]float32
		for k := 0; k < 3; k++ {
			if p.Normal[k] >= 0 {
				v[k] = maxs[k]
			} else {
				v[k] = mins[k]
			}
		}
		if p.Normal[0]*v[0]+p.Normal[1]*v[1]+p.Normal[2]*v[2]+p.Distance < 0 {
			return true
		}
	}
	return false
}
