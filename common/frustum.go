package common

import (
	"math"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   [3]float64
	Distance float64
}

// Frustum represents the six planes of a view frustum.
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
// Uses the Gribb/Hartmann method for plane extraction with clip-space depth in [0, 1].
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: 16 values representing the view-projection matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustumFromMatrix(viewProj []float64) Frustum {
	var f Frustum

	// For column-major matrix M, row i is (M[i], M[4+i], M[8+i], M[12+i]).
	row := func(i int) [4]float64 {
		return [4]float64{viewProj[i], viewProj[4+i], viewProj[8+i], viewProj[12+i]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	set := func(idx int, a, b [4]float64, sign float64) {
		f.Planes[idx].Normal = [3]float64{a[0] + sign*b[0], a[1] + sign*b[1], a[2] + sign*b[2]}
		f.Planes[idx].Distance = a[3] + sign*b[3]
	}

	set(FrustumLeft, r3, r0, 1)
	set(FrustumRight, r3, r0, -1)
	set(FrustumBottom, r3, r1, 1)
	set(FrustumTop, r3, r1, -1)
	// Depth in [0, 1]: the near plane is row2 alone.
	f.Planes[FrustumNear].Normal = [3]float64{r2[0], r2[1], r2[2]}
	f.Planes[FrustumNear].Distance = r2[3]
	set(FrustumFar, r3, r2, -1)

	for i := range f.Planes {
		f.normalizePlane(i)
	}

	return f
}

// normalizePlane normalizes a frustum plane so that the normal has unit length.
func (f *Frustum) normalizePlane(index int) {
	p := &f.Planes[index]
	length := math.Sqrt(Dot(p.Normal, p.Normal))

	if length > 0 {
		invLen := 1.0 / length
		p.Normal = Scale(p.Normal, invLen)
		p.Distance *= invLen
	}
}

// ContainsPoint reports whether the point lies inside all six planes.
// The far plane is ignored when its normal is degenerate (infinite projections).
//
// Parameters:
//   - p: world-space point
//
// Returns:
//   - bool: true if the point is inside the frustum
func (f *Frustum) ContainsPoint(p [3]float64) bool {
	for i, plane := range f.Planes {
		if i == FrustumFar && Dot(plane.Normal, plane.Normal) == 0 {
			continue
		}
		if Dot(plane.Normal, p)+plane.Distance < 0 {
			return false
		}
	}
	return true
}
