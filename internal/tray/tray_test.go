package tray

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alignify/formcoach/internal/pose"
)

func TestNew(t *testing.T) {
	tr := New(pose.Squat)

	assert.True(t, tr.IsEnabled())
	assert.Equal(t, pose.Squat, tr.Exercise())
	assert.Equal(t, "Reps: 0", tr.CountLabel())
	assert.Equal(t, "Tip: none", tr.TipLabel())
}

func TestTray_Labels(t *testing.T) {
	tr := New(pose.BicepCurl)
	tr.SetCount(7)
	tr.SetTip("Keep upper arm still")

	assert.Equal(t, "Reps: 7", tr.CountLabel())
	assert.Equal(t, "Tip: Keep upper arm still", tr.TipLabel())

	plank := New(pose.Plank)
	plank.SetCount(42)
	assert.Equal(t, "Hold: 42s", plank.CountLabel())
}

func TestTray_HandleToggle(t *testing.T) {
	tr := New(pose.Lunge)

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	tr.handleToggle()
	tr.handleToggle()

	assert.Equal(t, []bool{false, true}, got)
	assert.True(t, tr.IsEnabled())
}

func TestTray_HandleExercise(t *testing.T) {
	tr := New(pose.BicepCurl)
	tr.SetCount(5)

	var calls []pose.Kind
	tr.OnExercise(func(k pose.Kind) { calls = append(calls, k) })

	tr.handleExercise(pose.BicepCurl)
	assert.Empty(t, calls, "selecting the current exercise is a no-op")

	tr.handleExercise(pose.Plank)
	assert.Equal(t, []pose.Kind{pose.Plank}, calls)
	assert.Equal(t, pose.Plank, tr.Exercise())
	assert.Equal(t, "Hold: 0s", tr.CountLabel())
}

func TestTray_HandleReset(t *testing.T) {
	tr := New(pose.Squat)
	tr.SetCount(9)
	tr.SetTip("Push knees outward")

	reset := false
	tr.OnReset(func() { reset = true })
	tr.handleReset()

	assert.True(t, reset)
	assert.Equal(t, "Reps: 0", tr.CountLabel())
	assert.Equal(t, "Tip: none", tr.TipLabel())
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Bicep Curl", Title(pose.BicepCurl))
	assert.Equal(t, "Squat", Title(pose.Squat))
}
