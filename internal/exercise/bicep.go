package exercise

import (
	"math"

	"github.com/alignify/formcoach/internal/pose"
)

const (
	msgCurlReposition  = "Position yourself in frame"
	msgCurlUpperArm    = "Keep upper arm still"
	msgCurlWeak        = "Weak contraction - curl higher"
	msgCurlLowerSlowly = "Good curl! Now lower slowly"
	msgCurlWithControl = "Curl up with control"
)

type curlState struct {
	stage Stage
	count int
	// minAngle is the smallest elbow angle since the arm was last extended.
	minAngle float64
}

// BicepCurl counts curls on the arm that is more flexed.
type BicepCurl struct {
	*base
	th    CurlThresholds
	h     hysteresis
	state curlState
}

func newBicepCurl(b *base, th CurlThresholds) *BicepCurl {
	d := &BicepCurl{
		base: b,
		th:   th,
		h:    hysteresis{open: th.Open, closed: th.Closed},
	}
	d.Reset()
	return d
}

// Name returns the display name.
func (d *BicepCurl) Name() string { return "Bicep Curl" }

// Count returns completed curls.
func (d *BicepCurl) Count() int { return d.state.count }

// Reset clears the count and stage.
func (d *BicepCurl) Reset() {
	d.state = curlState{stage: StageRest, minAngle: math.Inf(1)}
}

// Detect advances the curl stage machine by one frame.
func (d *BicepCurl) Detect(set pose.LandmarkSet) Result {
	angle, side, ok := d.elbowAngle(set)
	if !ok {
		return reposition(msgCurlReposition, d.state.count, d.state.stage)
	}

	var errs []string
	prev := d.state.stage
	stage, completed := d.h.next(prev, angle)
	d.state.minAngle = math.Min(d.state.minAngle, angle)

	// The arm is back at full extension: close out whatever attempt preceded it.
	if angle > d.th.Open {
		attempted := d.state.minAngle < d.th.AttemptAngle && prev != StageRest
		if attempted && d.state.minAngle > d.th.WeakContraction {
			errs = append(errs, msgCurlWeak)
		}
		if completed {
			d.state.count++
		}
		d.state.minAngle = angle
	}
	d.state.stage = stage

	if drift, ok := d.upperArmAngle(set, side); ok && drift > d.th.UpperArmDrift {
		errs = append(errs, msgCurlUpperArm)
	}
	errs = d.withClassifier(errs, set)

	encourage := msgCurlWithControl
	if stage == StageClosed {
		encourage = msgCurlLowerSlowly
	}
	return judge(errs, encourage, d.state.count, stage)
}

// elbowAngle returns the smaller elbow angle of the visible arms and its side.
func (d *BicepCurl) elbowAngle(set pose.LandmarkSet) (float64, pose.Side, bool) {
	left, lok := set.JointAngle(pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist)
	right, rok := set.JointAngle(pose.RightShoulder, pose.RightElbow, pose.RightWrist)
	switch {
	case lok && rok:
		if right < left {
			return right, pose.Right, true
		}
		return left, pose.Left, true
	case lok:
		return left, pose.Left, true
	case rok:
		return right, pose.Right, true
	}
	return 0, pose.Left, false
}

func (d *BicepCurl) upperArmAngle(set pose.LandmarkSet, side pose.Side) (float64, bool) {
	if side == pose.Right {
		return set.JointAngle(pose.RightHip, pose.RightShoulder, pose.RightElbow)
	}
	return set.JointAngle(pose.LeftHip, pose.LeftShoulder, pose.LeftElbow)
}
