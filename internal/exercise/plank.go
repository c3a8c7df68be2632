package exercise

import (
	"fmt"
	"math"
	"time"

	"github.com/alignify/formcoach/internal/pose"
)

const (
	msgPlankGetInto  = "Get into plank position"
	msgPlankRaiseHip = "Raise your hips"
	msgPlankLowerHip = "Lower your hips"
	msgPlankStack    = "Stack shoulders over wrists"
)

type plankState struct {
	stage Stage
	held  time.Duration
	// lastValid is the timestamp of the previous frame in valid posture.
	lastValid time.Duration
	inWindow  bool
}

// Plank accumulates time held in valid posture. The timer pauses while the
// posture is invalid and resumes from where it stopped.
type Plank struct {
	*base
	th    PlankThresholds
	state plankState
}

func newPlank(b *base, th PlankThresholds) *Plank {
	d := &Plank{base: b, th: th}
	d.Reset()
	return d
}

// Name returns the display name.
func (d *Plank) Name() string { return "Plank" }

// Count returns whole seconds held.
func (d *Plank) Count() int { return int(d.state.held / time.Second) }

// HoldDuration returns the exact time held.
func (d *Plank) HoldDuration() time.Duration { return d.state.held }

// Reset zeroes the timer.
func (d *Plank) Reset() {
	d.state = plankState{stage: StageRest}
}

type plankSide struct {
	shoulder, wrist, hip, ankle pose.Joint
}

var plankSides = []plankSide{
	{pose.LeftShoulder, pose.LeftWrist, pose.LeftHip, pose.LeftAnkle},
	{pose.RightShoulder, pose.RightWrist, pose.RightHip, pose.RightAnkle},
}

// Detect advances the hold timer by one frame, using the set's timestamp.
func (d *Plank) Detect(set pose.LandmarkSet) Result {
	side, line, ok := d.bodyLine(set)
	if !ok || !d.aligned(line) {
		d.state.inWindow = false
		d.state.stage = StageRest
		return reposition(msgPlankGetInto, d.Count(), StageRest)
	}

	switch {
	case !d.state.inWindow:
		d.state.lastValid = set.Timestamp
		d.state.inWindow = true
	case set.Timestamp > d.state.lastValid:
		d.state.held += set.Timestamp - d.state.lastValid
		d.state.lastValid = set.Timestamp
	}
	d.state.stage = StageHolding

	var errs []string
	shoulder, hip, ankle := line[0], line[1], line[2]
	hipAngle := pose.UnderAngle(shoulder, hip, ankle)
	switch {
	case hipAngle < d.th.HipLow:
		errs = append(errs, msgPlankRaiseHip)
	case hipAngle > d.th.HipHigh:
		errs = append(errs, msgPlankLowerHip)
	}
	if wrist, ok := set.Point(side.wrist); ok && math.Abs(shoulder.X-wrist.X) > d.th.StackMargin {
		errs = append(errs, msgPlankStack)
	}
	errs = d.withClassifier(errs, set)

	return judge(errs, fmt.Sprintf("Good form! Hold: %ds", d.Count()), d.Count(), StageHolding)
}

// bodyLine returns shoulder, hip and ankle of the first side that has all three.
func (d *Plank) bodyLine(set pose.LandmarkSet) (plankSide, []pose.Point2D, bool) {
	for _, side := range plankSides {
		if pts, ok := set.Points(side.shoulder, side.hip, side.ankle); ok {
			return side, pts, true
		}
	}
	return plankSide{}, nil, false
}

// aligned is the rough horizontal-body check that separates a plank from standing.
func (d *Plank) aligned(line []pose.Point2D) bool {
	tol := d.th.AlignmentTolerance
	return math.Abs(line[0].Y-line[1].Y) < tol && math.Abs(line[1].Y-line[2].Y) < tol
}
