package exercise

import (
	"math"

	"github.com/alignify/formcoach/internal/pose"
)

const (
	msgLungeReposition = "Position yourself sideways"
	msgLungeKneeToes   = "Keep knee behind toes"
	msgLungeGood       = "Good lunge! Push back up"
	msgLungeDown       = "Step forward and lunge down"
)

type lungeState struct {
	stage Stage
	count int
	lead  pose.Side
}

// Lunge counts lunges on the lead leg, which is picked again on every frame
// both ankles are visible. Otherwise the previous lead leg is kept.
type Lunge struct {
	*base
	th    LungeThresholds
	h     hysteresis
	state lungeState
}

func newLunge(b *base, th LungeThresholds) *Lunge {
	d := &Lunge{
		base: b,
		th:   th,
		h:    hysteresis{open: th.Open, closed: th.Closed},
	}
	d.Reset()
	return d
}

// Name returns the display name.
func (d *Lunge) Name() string { return "Lunge" }

// Count returns completed lunges.
func (d *Lunge) Count() int { return d.state.count }

// Reset clears the count and stage.
func (d *Lunge) Reset() {
	d.state = lungeState{stage: StageRest, lead: pose.Left}
}

type legJoints struct {
	hip, knee, ankle pose.Joint
}

var legs = map[pose.Side]legJoints{
	pose.Left:  {pose.LeftHip, pose.LeftKnee, pose.LeftAnkle},
	pose.Right: {pose.RightHip, pose.RightKnee, pose.RightAnkle},
}

// LeadLeg returns the leg whose ankle is lower in the frame. Ties go to the
// right leg. It reports false unless both ankles are visible.
func LeadLeg(set pose.LandmarkSet) (pose.Side, bool) {
	la, lok := set.Point(pose.LeftAnkle)
	ra, rok := set.Point(pose.RightAnkle)
	if !lok || !rok {
		return pose.Left, false
	}
	if la.Y > ra.Y {
		return pose.Left, true
	}
	return pose.Right, true
}

// Detect advances the lunge stage machine by one frame.
func (d *Lunge) Detect(set pose.LandmarkSet) Result {
	if lead, ok := LeadLeg(set); ok {
		d.state.lead = lead
	}
	lead := d.state.lead
	leg := legs[lead]
	pts, ok := set.Points(leg.hip, leg.knee, leg.ankle)
	if !ok {
		return reposition(msgLungeReposition, d.state.count, d.state.stage)
	}
	hip, knee, ankle := pts[0], pts[1], pts[2]

	stage, completed := d.h.next(d.state.stage, pose.Angle(hip, knee, ankle))
	if completed {
		d.state.count++
	}
	d.state.stage = stage

	var errs []string
	if stage == StageClosed && kneePastToes(knee, ankle, lead, d.th.KneeOverToe) {
		errs = append(errs, msgLungeKneeToes)
	}
	errs = d.withClassifier(errs, set)

	encourage := msgLungeDown
	if stage == StageClosed {
		encourage = msgLungeGood
	}
	return judge(errs, encourage, d.state.count, stage)
}

// kneePastToes reports whether the knee has travelled beyond the ankle by more
// than margin in the direction the lead leg points.
func kneePastToes(knee, ankle pose.Point2D, lead pose.Side, margin float64) bool {
	diff := knee.X - ankle.X
	if math.Abs(diff) <= margin {
		return false
	}
	if lead == pose.Left {
		return diff < 0
	}
	return diff > 0
}
