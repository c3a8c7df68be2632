package pose

import (
	"math"
	"time"
)

// Synthetic poses for tests, demos and the mock provider. Coordinates follow the
// image convention: x grows to the right and y grows downwards.

// bend places the far end of a limb so that the angle at vertex between anchor
// and the returned point is deg. sign picks the rotation direction.
func bend(anchor, vertex Point2D, deg, length, sign float64) Point2D {
	dx, dy := anchor.X-vertex.X, anchor.Y-vertex.Y
	n := math.Hypot(dx, dy)
	if n == 0 {
		return vertex
	}
	dx, dy = dx/n, dy/n

	a := sign * deg * math.Pi / 180
	rx := dx*math.Cos(a) - dy*math.Sin(a)
	ry := dx*math.Sin(a) + dy*math.Cos(a)
	return Point2D{X: vertex.X + length*rx, Y: vertex.Y + length*ry}
}

// CurlPose returns a frontal pose with both upper arms hanging along the torso and
// each elbow bent to the given angle.
func CurlPose(leftElbow, rightElbow float64) LandmarkSet {
	s := NewLandmarkSet(0)
	s.Set(Nose, Point2D{X: 0.5, Y: 0.15})

	ls, rs := Point2D{X: 0.4, Y: 0.3}, Point2D{X: 0.6, Y: 0.3}
	le, re := Point2D{X: 0.4, Y: 0.45}, Point2D{X: 0.6, Y: 0.45}
	s.Set(LeftShoulder, ls)
	s.Set(RightShoulder, rs)
	s.Set(LeftElbow, le)
	s.Set(RightElbow, re)
	s.Set(LeftWrist, bend(ls, le, leftElbow, 0.15, -1))
	s.Set(RightWrist, bend(rs, re, rightElbow, 0.15, 1))
	s.Set(LeftHip, Point2D{X: 0.4, Y: 0.6})
	s.Set(RightHip, Point2D{X: 0.6, Y: 0.6})
	return s
}

// CurlAtAngle is CurlPose with both elbows at deg.
func CurlAtAngle(deg float64) LandmarkSet {
	return CurlPose(deg, deg)
}

// SquatPose returns a frontal pose with the feet shoulder-width apart, each knee
// directly above its ankle and bent to the given angle.
func SquatPose(leftKnee, rightKnee float64) LandmarkSet {
	s := NewLandmarkSet(0)
	la, ra := Point2D{X: 0.4, Y: 0.9}, Point2D{X: 0.6, Y: 0.9}
	lk, rk := Point2D{X: 0.4, Y: 0.7}, Point2D{X: 0.6, Y: 0.7}
	lh := bend(la, lk, leftKnee, 0.2, 1)
	rh := bend(ra, rk, rightKnee, 0.2, -1)

	s.Set(LeftAnkle, la)
	s.Set(RightAnkle, ra)
	s.Set(LeftKnee, lk)
	s.Set(RightKnee, rk)
	s.Set(LeftHip, lh)
	s.Set(RightHip, rh)
	s.Set(LeftShoulder, Point2D{X: 0.4, Y: math.Min(lh.Y, rh.Y) - 0.25})
	s.Set(RightShoulder, Point2D{X: 0.6, Y: math.Min(lh.Y, rh.Y) - 0.25})
	return s
}

// SquatAtAngle is SquatPose with both knees at deg.
func SquatAtAngle(deg float64) LandmarkSet {
	return SquatPose(deg, deg)
}

// LungePose returns a side-on pose where lead's ankle is lower in the frame.
// Both knees sit directly above their ankles.
func LungePose(leftKnee, rightKnee float64, lead Side) LandmarkSet {
	s := NewLandmarkSet(0)
	la, ra := Point2D{X: 0.35, Y: 0.85}, Point2D{X: 0.65, Y: 0.85}
	if lead == Left {
		la.Y = 0.9
	} else {
		ra.Y = 0.9
	}
	lk := Point2D{X: la.X, Y: la.Y - 0.2}
	rk := Point2D{X: ra.X, Y: ra.Y - 0.2}

	s.Set(LeftAnkle, la)
	s.Set(RightAnkle, ra)
	s.Set(LeftKnee, lk)
	s.Set(RightKnee, rk)
	s.Set(LeftHip, bend(la, lk, leftKnee, 0.2, 1))
	s.Set(RightHip, bend(ra, rk, rightKnee, 0.2, -1))
	s.Set(LeftShoulder, Point2D{X: 0.48, Y: 0.25})
	s.Set(RightShoulder, Point2D{X: 0.52, Y: 0.25})
	return s
}

// PlankPose returns a side-on plank facing left with wrists under the shoulders.
// hipDrop moves the hips down (positive) or up (negative) from the straight line.
func PlankPose(hipDrop float64) LandmarkSet {
	s := NewLandmarkSet(0)
	pts := map[Joint]Point2D{
		LeftShoulder: {X: 0.3, Y: 0.5},
		LeftElbow:    {X: 0.3, Y: 0.6},
		LeftWrist:    {X: 0.3, Y: 0.7},
		LeftHip:      {X: 0.55, Y: 0.5 + hipDrop},
		LeftKnee:     {X: 0.7, Y: 0.5 + hipDrop/2},
		LeftAnkle:    {X: 0.85, Y: 0.5},
	}
	mirror := map[Joint]Joint{
		LeftShoulder: RightShoulder,
		LeftElbow:    RightElbow,
		LeftWrist:    RightWrist,
		LeftHip:      RightHip,
		LeftKnee:     RightKnee,
		LeftAnkle:    RightAnkle,
	}
	for j, p := range pts {
		s.Set(j, p)
		s.Set(mirror[j], p)
	}
	return s
}

// StandingPose returns an upright frontal pose with straight arms and legs.
func StandingPose() LandmarkSet {
	s := SquatAtAngle(180)
	arms := CurlAtAngle(180)
	for _, j := range []Joint{Nose, LeftElbow, RightElbow, LeftWrist, RightWrist} {
		p, _ := arms.Point(j)
		s.Set(j, p)
	}
	return s
}

// At returns a copy of s stamped with ts.
func (s LandmarkSet) At(ts time.Duration) LandmarkSet {
	return LandmarkSet{
		Landmarks: append([]Landmark(nil), s.Landmarks...),
		Timestamp: ts,
	}
}

// Without returns a copy of s with the given joints missing.
func (s LandmarkSet) Without(js ...Joint) LandmarkSet {
	out := s.At(s.Timestamp)
	for _, j := range js {
		out.Clear(j)
	}
	return out
}
