package exercise

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alignify/formcoach/internal/classifier"
	"github.com/alignify/formcoach/internal/pose"
)

func curlFrames(angles ...float64) []pose.LandmarkSet {
	sets := make([]pose.LandmarkSet, len(angles))
	for i, a := range angles {
		sets[i] = pose.CurlAtAngle(a)
	}
	return sets
}

func TestBicepCurl_SingleRep(t *testing.T) {
	t.Parallel()

	d := mustNew(t, pose.BicepCurl, Options{})
	frames := curlFrames(170, 150, 120, 90, 60, 35, 60, 90, 120, 150, 170)

	for i, f := range frames {
		r := d.Detect(f)
		want := 0
		if i == len(frames)-1 {
			want = 1
		}
		require.Equal(t, want, r.Count, "frame %d", i)
		assert.True(t, r.IsCorrect, "frame %d: %v", i, r.Errors)
	}
	assert.Equal(t, 1, d.Count())
}

func TestBicepCurl_StagesAndFeedback(t *testing.T) {
	t.Parallel()

	d := mustNew(t, pose.BicepCurl, Options{})

	r := d.Detect(pose.CurlAtAngle(170))
	assert.Equal(t, StageOpen, r.Stage)
	assert.Equal(t, "Curl up with control", r.FeedbackText)

	r = d.Detect(pose.CurlAtAngle(30))
	assert.Equal(t, StageClosed, r.Stage)
	assert.Equal(t, "Good curl! Now lower slowly", r.FeedbackText)
}

func TestBicepCurl_Idempotent(t *testing.T) {
	t.Parallel()

	d := mustNew(t, pose.BicepCurl, Options{})
	feed(d, curlFrames(170, 30, 170)...)
	require.Equal(t, 1, d.Count())

	for _, angle := range []float64{170, 100, 30} {
		set := pose.CurlAtAngle(angle)
		for i := 0; i < 20; i++ {
			d.Detect(set)
		}
	}
	// 170 held, 100 held, 30 held: one stage change to closed, no return.
	assert.Equal(t, 1, d.Count())
}

func TestBicepCurl_HysteresisNoDoubleCount(t *testing.T) {
	t.Parallel()

	t.Run("jitter around closed threshold", func(t *testing.T) {
		d := mustNew(t, pose.BicepCurl, Options{})
		feed(d, curlFrames(170, 39, 41, 39, 41, 39, 170)...)
		assert.Equal(t, 1, d.Count())
	})

	t.Run("jitter around open threshold", func(t *testing.T) {
		d := mustNew(t, pose.BicepCurl, Options{})
		feed(d, curlFrames(170, 30, 161, 159, 161, 159, 161)...)
		assert.Equal(t, 1, d.Count())
	})
}

func TestBicepCurl_WeakContraction(t *testing.T) {
	t.Parallel()

	d := mustNew(t, pose.BicepCurl, Options{})
	r := feed(d, curlFrames(170, 120, 90, 75, 90, 120, 170)...)

	assert.False(t, r.IsCorrect)
	assert.Contains(t, r.Errors, "Weak contraction - curl higher")
	assert.Equal(t, "Weak contraction - curl higher", r.PrimaryTip)
	assert.Equal(t, 0, r.Count)

	// The warning belongs to the rep that ended, not the next frame.
	r = d.Detect(pose.CurlAtAngle(170))
	assert.True(t, r.IsCorrect)
}

func TestBicepCurl_ShallowStartIsNotWeak(t *testing.T) {
	t.Parallel()

	d := mustNew(t, pose.BicepCurl, Options{})
	r := feed(d, curlFrames(100, 90, 170)...)
	assert.True(t, r.IsCorrect)
}

func TestBicepCurl_MissingLandmarks(t *testing.T) {
	t.Parallel()

	d := mustNew(t, pose.BicepCurl, Options{})
	feed(d, curlFrames(170, 30)...)

	r := d.Detect(pose.CurlAtAngle(30).Without(pose.LeftElbow, pose.RightElbow))
	assert.True(t, r.IsCorrect)
	assert.Equal(t, "Position yourself in frame", r.FeedbackText)
	assert.Equal(t, StageClosed, r.Stage, "stage survives a dropped frame")

	r = d.Detect(pose.CurlAtAngle(170).Without(pose.LeftWrist))
	assert.Equal(t, 1, r.Count, "one visible arm is enough")
}

func TestBicepCurl_UpperArmDrift(t *testing.T) {
	t.Parallel()

	set := pose.NewLandmarkSet(0)
	set.Set(pose.LeftShoulder, pose.Point2D{X: 0.4, Y: 0.3})
	set.Set(pose.LeftHip, pose.Point2D{X: 0.4, Y: 0.6})
	// Upper arm swung 60 degrees forward, forearm in line with it.
	set.Set(pose.LeftElbow, pose.Point2D{X: 0.53, Y: 0.375})
	set.Set(pose.LeftWrist, pose.Point2D{X: 0.66, Y: 0.45})

	d := mustNew(t, pose.BicepCurl, Options{})
	r := d.Detect(set)
	assert.False(t, r.IsCorrect)
	if diff := cmp.Diff([]string{"Keep upper arm still"}, r.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestBicepCurl_Classifier(t *testing.T) {
	t.Parallel()

	t.Run("positive class is appended after rules", func(t *testing.T) {
		spy := &spyClassifier{class: 1, size: 18}
		d := mustNew(t, pose.BicepCurl, Options{Classifier: spy})

		r := feed(d, curlFrames(170, 120, 75, 170)...)
		want := []string{"Weak contraction - curl higher", "Leaning back - keep torso straight"}
		if diff := cmp.Diff(want, r.Errors); diff != "" {
			t.Errorf("errors mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, 4, spy.calls)
	})

	t.Run("good class adds nothing", func(t *testing.T) {
		d := mustNew(t, pose.BicepCurl, Options{Classifier: &classifier.Static{Class: 0, Size: 18}})
		r := d.Detect(pose.CurlAtAngle(170))
		assert.True(t, r.IsCorrect)
	})

	t.Run("inference failure drops the signal", func(t *testing.T) {
		d := mustNew(t, pose.BicepCurl, Options{Classifier: &classifier.Static{Class: 1, Err: classifier.ErrInference, Size: 18}})
		r := feed(d, curlFrames(170, 30, 170)...)
		assert.True(t, r.IsCorrect)
		assert.Equal(t, 1, r.Count)
	})

	t.Run("release closes classifier once", func(t *testing.T) {
		spy := &spyClassifier{class: 1, size: 18}
		d := mustNew(t, pose.BicepCurl, Options{Classifier: spy})
		require.NoError(t, d.Release())
		assert.True(t, spy.closed)
		require.NoError(t, d.Release())

		r := d.Detect(pose.CurlAtAngle(170))
		assert.True(t, r.IsCorrect, "rule-only after release")
	})
}

func TestBicepCurl_Reset(t *testing.T) {
	t.Parallel()

	d := mustNew(t, pose.BicepCurl, Options{})
	feed(d, curlFrames(170, 30, 170, 30, 170)...)
	require.Equal(t, 2, d.Count())

	d.Reset()
	assert.Equal(t, 0, d.Count())
	r := d.Detect(pose.CurlAtAngle(100))
	assert.Equal(t, StageRest, r.Stage)
}
