package pose

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

const degenerateEps = 1e-12

// Angle returns the angle at vertex formed by a and c, in degrees within [0,180].
// It is symmetric in a and c. If a or c coincides with vertex the angle is 0.
func Angle(a, vertex, c Point2D) float64 {
	u := r2.Sub(a.vec(), vertex.vec())
	v := r2.Sub(c.vec(), vertex.vec())
	if r2.Norm(u) < degenerateEps || r2.Norm(v) < degenerateEps {
		return 0
	}

	rad := math.Atan2(v.Y, v.X) - math.Atan2(u.Y, u.X)
	deg := math.Abs(rad * 180 / math.Pi)
	if deg > 180 {
		deg = 360 - deg
	}
	return deg
}

// UnderAngle returns the angle at vertex measured on the side facing the
// bottom of the image, in degrees within [0,360). A straight line gives 180.
// A vertex sagging below the a-c chord gives less than 180 and one pushed
// above it gives more. The result does not depend on which way the body faces.
func UnderAngle(a, vertex, c Point2D) float64 {
	deg := Angle(a, vertex, c)
	dx := c.X - a.X
	if math.Abs(dx) < degenerateEps {
		return deg
	}
	chordY := a.Y + (c.Y-a.Y)*(vertex.X-a.X)/dx
	if vertex.Y < chordY {
		return 360 - deg
	}
	return deg
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point2D) float64 {
	return r2.Norm(r2.Sub(a.vec(), b.vec()))
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point2D) Point2D {
	m := r2.Scale(0.5, r2.Add(a.vec(), b.vec()))
	return Point2D{X: m.X, Y: m.Y}
}

// JointAngle is Angle over three joints of s. It reports false if any is missing.
func (s LandmarkSet) JointAngle(a, vertex, c Joint) (float64, bool) {
	pts, ok := s.Points(a, vertex, c)
	if !ok {
		return 0, false
	}
	return Angle(pts[0], pts[1], pts[2]), true
}

// JointDistance is Distance over two joints of s.
func (s LandmarkSet) JointDistance(a, b Joint) (float64, bool) {
	pts, ok := s.Points(a, b)
	if !ok {
		return 0, false
	}
	return Distance(pts[0], pts[1]), true
}
