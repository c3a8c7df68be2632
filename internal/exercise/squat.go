package exercise

import (
	"github.com/alignify/formcoach/internal/pose"
)

const (
	msgSquatReposition = "Position yourself in frame"
	msgSquatWiden      = "Widen your stance"
	msgSquatNarrow     = "Narrow your stance"
	msgSquatKneesOut   = "Push knees outward"
	msgSquatGoodDepth  = "Good depth! Push through heels"
	msgSquatDown       = "Squat down with control"
)

type squatState struct {
	stage Stage
	count int
}

// Squat counts squats from the average knee angle of both legs, or the one
// visible leg when the other is hidden.
type Squat struct {
	*base
	th    SquatThresholds
	h     hysteresis
	state squatState
}

func newSquat(b *base, th SquatThresholds) *Squat {
	d := &Squat{
		base: b,
		th:   th,
		h:    hysteresis{open: th.Open, closed: th.Closed},
	}
	d.Reset()
	return d
}

// Name returns the display name.
func (d *Squat) Name() string { return "Squat" }

// Count returns completed squats.
func (d *Squat) Count() int { return d.state.count }

// Reset clears the count and stage.
func (d *Squat) Reset() {
	d.state = squatState{stage: StageRest}
}

// Detect advances the squat stage machine by one frame.
func (d *Squat) Detect(set pose.LandmarkSet) Result {
	left, lok := set.JointAngle(pose.LeftHip, pose.LeftKnee, pose.LeftAnkle)
	right, rok := set.JointAngle(pose.RightHip, pose.RightKnee, pose.RightAnkle)
	var angle float64
	switch {
	case lok && rok:
		angle = (left + right) / 2
	case lok:
		angle = left
	case rok:
		angle = right
	default:
		return reposition(msgSquatReposition, d.state.count, d.state.stage)
	}

	stage, completed := d.h.next(d.state.stage, angle)
	if completed {
		d.state.count++
	}
	d.state.stage = stage

	var errs []string
	if stance, ok := distanceRatio(set, pose.LeftAnkle, pose.RightAnkle, pose.LeftShoulder, pose.RightShoulder); ok {
		switch {
		case stance < d.th.StanceMin:
			errs = append(errs, msgSquatWiden)
		case stance > d.th.StanceMax:
			errs = append(errs, msgSquatNarrow)
		}
	}
	if stage == StageClosed {
		if knees, ok := distanceRatio(set, pose.LeftKnee, pose.RightKnee, pose.LeftAnkle, pose.RightAnkle); ok && knees < d.th.KneeCollapse {
			errs = append(errs, msgSquatKneesOut)
		}
	}
	errs = d.withClassifier(errs, set)

	encourage := msgSquatDown
	if stage == StageClosed {
		encourage = msgSquatGoodDepth
	}
	return judge(errs, encourage, d.state.count, stage)
}

// distanceRatio returns dist(a1,a2)/dist(b1,b2). It reports false when a joint is
// missing or the denominator is zero.
func distanceRatio(set pose.LandmarkSet, a1, a2, b1, b2 pose.Joint) (float64, bool) {
	num, ok := set.JointDistance(a1, a2)
	if !ok {
		return 0, false
	}
	den, ok := set.JointDistance(b1, b2)
	if !ok || den < 1e-9 {
		return 0, false
	}
	return num / den, true
}
