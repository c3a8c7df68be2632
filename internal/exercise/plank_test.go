package exercise

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alignify/formcoach/internal/pose"
)

// window describes a stretch of frames sampled every 100ms.
type window struct {
	from, to time.Duration
	valid    bool
}

func plankFrames(windows ...window) []pose.LandmarkSet {
	var sets []pose.LandmarkSet
	for _, w := range windows {
		base := pose.StandingPose()
		if w.valid {
			base = pose.PlankPose(0)
		}
		for ts := w.from; ts <= w.to; ts += 100 * time.Millisecond {
			sets = append(sets, base.At(ts))
		}
	}
	return sets
}

func newPlankDetector(t *testing.T) *Plank {
	t.Helper()
	return mustNew(t, pose.Plank, Options{}).(*Plank)
}

func TestPlank_HoldPausesOnInvalidPosture(t *testing.T) {
	t.Parallel()

	d := newPlankDetector(t)
	r := feed(d, plankFrames(
		window{0, 3 * time.Second, true},
		window{3100 * time.Millisecond, 5 * time.Second, false},
		window{5100 * time.Millisecond, 7100 * time.Millisecond, true},
		window{7200 * time.Millisecond, 8 * time.Second, false},
		window{8100 * time.Millisecond, 8600 * time.Millisecond, true},
	)...)

	assert.Equal(t, 5500*time.Millisecond, d.HoldDuration())
	assert.Equal(t, 5, d.Count())
	assert.Equal(t, 5, r.Count)
	assert.Equal(t, StageHolding, r.Stage)
}

func TestPlank_InvalidPosture(t *testing.T) {
	t.Parallel()

	d := newPlankDetector(t)
	feed(d, plankFrames(window{0, 2 * time.Second, true})...)

	r := d.Detect(pose.StandingPose().At(2100 * time.Millisecond))
	assert.True(t, r.IsCorrect)
	assert.Equal(t, "Get into plank position", r.FeedbackText)
	assert.Equal(t, StageRest, r.Stage)
	assert.Equal(t, 2, r.Count, "pausing keeps the accumulated time")

	r = d.Detect(pose.NewLandmarkSet(2200 * time.Millisecond))
	assert.True(t, r.IsCorrect)
	assert.Equal(t, 2, r.Count)
}

func TestPlank_Form(t *testing.T) {
	t.Parallel()

	wristsForward := func(set pose.LandmarkSet) pose.LandmarkSet {
		set.Set(pose.LeftWrist, pose.Point2D{X: 0.1, Y: 0.7})
		set.Set(pose.RightWrist, pose.Point2D{X: 0.1, Y: 0.7})
		return set
	}

	tests := []struct {
		name string
		set  pose.LandmarkSet
		want []string
	}{
		{"straight", pose.PlankPose(0), nil},
		{"sagging hips", pose.PlankPose(0.08), []string{"Raise your hips"}},
		{"piked hips", pose.PlankPose(-0.08), []string{"Lower your hips"}},
		{"small sag tolerated", pose.PlankPose(0.02), nil},
		{"wrists not stacked", wristsForward(pose.PlankPose(0)), []string{"Stack shoulders over wrists"}},
		{"sag and wrists", wristsForward(pose.PlankPose(0.08)), []string{"Raise your hips", "Stack shoulders over wrists"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newPlankDetector(t)
			r := d.Detect(tt.set)
			require.Equal(t, StageHolding, r.Stage)
			if diff := cmp.Diff(tt.want, r.Errors); diff != "" {
				t.Errorf("errors mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, len(tt.want) == 0, r.IsCorrect)
		})
	}
}

func TestPlank_Feedback(t *testing.T) {
	t.Parallel()

	d := newPlankDetector(t)
	r := feed(d, plankFrames(window{0, 3 * time.Second, true})...)
	assert.Equal(t, "Good form! Hold: 3s", r.FeedbackText)
}

func TestPlank_OutOfOrderTimestamps(t *testing.T) {
	t.Parallel()

	d := newPlankDetector(t)
	set := pose.PlankPose(0)
	feed(d, set.At(time.Second), set.At(2*time.Second), set.At(1500*time.Millisecond), set.At(3*time.Second))
	assert.Equal(t, 2*time.Second, d.HoldDuration())
}

func TestPlank_ClassifierDeduplicates(t *testing.T) {
	t.Parallel()

	for _, class := range []int{1, 2} {
		spy := &spyClassifier{class: class, size: 24}
		d := mustNew(t, pose.Plank, Options{Classifier: spy})
		r := d.Detect(pose.PlankPose(0))
		assert.Equal(t, []string{"Adjust form"}, r.Errors, "class %d", class)
	}
}

func TestPlank_Reset(t *testing.T) {
	t.Parallel()

	d := newPlankDetector(t)
	feed(d, plankFrames(window{0, 4 * time.Second, true})...)
	require.Equal(t, 4, d.Count())

	d.Reset()
	assert.Equal(t, 0, d.Count())
	assert.Equal(t, time.Duration(0), d.HoldDuration())
}
