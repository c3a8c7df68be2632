package feedback

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alignify/formcoach/internal/exercise"
	"github.com/alignify/formcoach/internal/pose"
	"github.com/alignify/formcoach/internal/timeutil"
)

func TestAggregator(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	agg := NewAggregator(clock)

	agg.Observe(good)
	assert.False(t, agg.Running(), "results before Start are ignored")

	agg.Start(pose.BicepCurl)
	for i := 0; i < 10; i++ {
		clock.Advance(500 * time.Millisecond)
		r := good
		if i%5 == 0 {
			r = weak
		}
		r.Count = i / 4
		agg.Observe(r)
	}

	snap := agg.Snapshot()
	assert.Empty(t, snap.ID)
	assert.Equal(t, 10, snap.Frames)

	clock.Advance(2 * time.Second)
	s := agg.Finish()

	_, err := uuid.Parse(s.ID)
	require.NoError(t, err)
	assert.Equal(t, pose.BicepCurl, s.Exercise)
	assert.Equal(t, start, s.StartTime)
	assert.Equal(t, start.Add(7*time.Second), s.EndTime)
	assert.Equal(t, 7, s.DurationSeconds)
	assert.Equal(t, 10, s.Frames)
	assert.Equal(t, 2, s.ErrorFrames)
	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 80.0, s.Accuracy(), 1e-9)
	assert.False(t, agg.Running())

	agg.Observe(weak)
	assert.Equal(t, 10, agg.Snapshot().Frames, "finished session is frozen")
}

func TestSummary_Accuracy(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100.0, Summary{}.Accuracy())
	assert.Equal(t, 0.0, Summary{Frames: 4, ErrorFrames: 4}.Accuracy())
	assert.Equal(t, 75.0, Summary{Frames: 4, ErrorFrames: 1}.Accuracy())
	assert.Equal(t, 0.0, Summary{Frames: 4, ErrorFrames: 9}.Accuracy())
}

func TestSummary_Worthwhile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    Summary
		want bool
	}{
		{"empty", Summary{}, false},
		{"short without reps", Summary{DurationSeconds: 29}, false},
		{"long without reps", Summary{DurationSeconds: 30}, true},
		{"short with a rep", Summary{DurationSeconds: 5, Count: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.Worthwhile())
		})
	}
}

func TestAggregator_StartDiscardsTotals(t *testing.T) {
	t.Parallel()

	agg := NewAggregator(nil)
	agg.Start(pose.Squat)
	agg.Observe(exercise.Result{IsCorrect: false, Count: 3})

	agg.Start(pose.Plank)
	s := agg.Snapshot()
	assert.Equal(t, pose.Plank, s.Exercise)
	assert.Zero(t, s.Frames)
	assert.Zero(t, s.Count)
}
