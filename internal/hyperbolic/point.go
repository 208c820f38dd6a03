// Package hyperbolic implements the Poincaré ball model: exact
// hyperbolic distance and an in-memory point index with exact
// nearest-neighbor ordering.
package hyperbolic

import "math"

// Point is a coordinate in the open unit ball, norm strictly below 1.
type Point = []float64

// MaxNorm is the largest norm the engine places a point at, keeping a
// margin from the boundary where the metric blows up.
const MaxNorm = 0.999

// NormSq returns the squared Euclidean norm of p.
func NormSq(p Point) float64 {
	var s float64
	for _, x := range p {
		s += x * x
	}
	return s
}

// Norm returns the Euclidean norm of p.
func Norm(p Point) float64 {
	return math.Sqrt(NormSq(p))
}

// Inside reports whether p lies strictly inside the unit ball.
func Inside(p Point) bool {
	return NormSq(p) < 1
}

// Distance returns the exact hyperbolic distance between u and v:
//
//	d(u,v) = arccosh(1 + 2‖u−v‖² / ((1−‖u‖²)(1−‖v‖²)))
func Distance(u, v Point) float64 {
	var diff float64
	for i := range u {
		d := u[i] - v[i]
		diff += d * d
	}
	den := (1 - NormSq(u)) * (1 - NormSq(v))
	arg := 1 + 2*diff/den
	if arg < 1 {
		// Floating-point noise can dip just below the domain boundary.
		arg = 1
	}
	return math.Acosh(arg)
}

// Scale returns p scaled so its norm does not exceed maxNorm.
func Scale(p Point, maxNorm float64) Point {
	out := append(Point(nil), p...)
	n := Norm(p)
	if n <= maxNorm || n == 0 {
		return out
	}
	f := maxNorm / n
	for i := range out {
		out[i] *= f
	}
	return out
}

// WeightedCentroid returns the weighted Euclidean mean of the points,
// clamped back inside the ball. The ball is convex, so a mean of
// interior points stays interior; the clamp guards the MaxNorm margin.
func WeightedCentroid(points []Point, weights []float64) Point {
	if len(points) == 0 {
		return nil
	}
	dim := len(points[0])
	out := make(Point, dim)
	var total float64
	for i, p := range points {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		if w <= 0 {
			w = 1e-9
		}
		total += w
		for j := range p {
			out[j] += w * p[j]
		}
	}
	for j := range out {
		out[j] /= total
	}
	return Scale(out, MaxNorm)
}
