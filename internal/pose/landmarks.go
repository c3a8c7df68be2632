// Package pose holds body landmark types, the geometry used to reason about them,
// and the providers that turn camera frames into landmark sets.
package pose

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// Joint indexes a body landmark following the MediaPipe pose convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
type Joint int

const (
	Nose Joint = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
	NumJoints
)

// Side selects the left or right half of the body.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Point2D is a normalized image coordinate.
type Point2D struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Point3D is a normalized coordinate with relative depth.
type Point3D struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// XY drops the depth component.
func (p Point3D) XY() Point2D {
	return Point2D{X: p.X, Y: p.Y}
}

func (p Point2D) vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// Landmark is one joint entry of a LandmarkSet. A joint the provider could not
// see has Present set to false; its coordinates are meaningless.
type Landmark struct {
	Point3D
	Visibility float64 `json:"visibility"`
	Present    bool    `json:"present"`
}

// LandmarkSet is the per-frame output of a pose provider, indexed by Joint.
// Timestamp increases monotonically for a given source.
type LandmarkSet struct {
	Landmarks []Landmark    `json:"landmarks"`
	Timestamp time.Duration `json:"timestamp"`
}

// NewLandmarkSet returns a set with room for every joint, all missing.
func NewLandmarkSet(ts time.Duration) LandmarkSet {
	return LandmarkSet{
		Landmarks: make([]Landmark, NumJoints),
		Timestamp: ts,
	}
}

// Set marks joint j as present at p. It grows the set when needed.
func (s *LandmarkSet) Set(j Joint, p Point2D) {
	if j < 0 || j >= NumJoints {
		return
	}
	if len(s.Landmarks) < int(NumJoints) {
		grown := make([]Landmark, NumJoints)
		copy(grown, s.Landmarks)
		s.Landmarks = grown
	}
	s.Landmarks[j] = Landmark{
		Point3D:    Point3D{X: p.X, Y: p.Y},
		Visibility: 1,
		Present:    true,
	}
}

// Clear marks joint j as missing.
func (s *LandmarkSet) Clear(j Joint) {
	if j < 0 || int(j) >= len(s.Landmarks) {
		return
	}
	s.Landmarks[j] = Landmark{}
}

// Empty reports whether the set carries no usable joint.
func (s LandmarkSet) Empty() bool {
	for _, lm := range s.Landmarks {
		if lm.Present {
			return false
		}
	}
	return true
}

// Point returns the image coordinate of joint j. It reports false when the set
// is empty, j is out of range or the joint is missing.
func (s LandmarkSet) Point(j Joint) (Point2D, bool) {
	p, ok := s.Point3D(j)
	if !ok {
		return Point2D{}, false
	}
	return p.XY(), true
}

// Point3D is Point with depth.
func (s LandmarkSet) Point3D(j Joint) (Point3D, bool) {
	if j < 0 || int(j) >= len(s.Landmarks) {
		return Point3D{}, false
	}
	lm := s.Landmarks[j]
	if !lm.Present {
		return Point3D{}, false
	}
	return lm.Point3D, true
}

// Points looks up every joint in js. It reports false if any one is missing.
func (s LandmarkSet) Points(js ...Joint) ([]Point2D, bool) {
	pts := make([]Point2D, len(js))
	for i, j := range js {
		p, ok := s.Point(j)
		if !ok {
			return nil, false
		}
		pts[i] = p
	}
	return pts, true
}

// Normalize translates the set so the hip midpoint is the origin and scales it
// so the distance from hip midpoint to shoulder midpoint is 1.0. Sets without
// both shoulders and hips are returned unchanged.
func (s LandmarkSet) Normalize() LandmarkSet {
	pts, ok := s.Points(LeftShoulder, RightShoulder, LeftHip, RightHip)
	if !ok {
		return s
	}
	shoulders := Midpoint(pts[0], pts[1])
	hips := Midpoint(pts[2], pts[3])

	scale := Distance(shoulders, hips)
	if scale < 1e-10 {
		scale = 1
	}

	out := LandmarkSet{
		Landmarks: make([]Landmark, len(s.Landmarks)),
		Timestamp: s.Timestamp,
	}
	for i, lm := range s.Landmarks {
		if !lm.Present {
			continue
		}
		out.Landmarks[i] = Landmark{
			Point3D: Point3D{
				X: (lm.X - hips.X) / scale,
				Y: (lm.Y - hips.Y) / scale,
				Z: lm.Z / scale,
			},
			Visibility: lm.Visibility,
			Present:    true,
		}
	}
	return out
}
