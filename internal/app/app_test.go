package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/alignify/formcoach/internal/capture"
	"github.com/alignify/formcoach/internal/config"
	"github.com/alignify/formcoach/internal/exercise"
	"github.com/alignify/formcoach/internal/feedback"
	"github.com/alignify/formcoach/internal/pose"
	"github.com/alignify/formcoach/internal/store"
	"github.com/alignify/formcoach/internal/worker"
)

// recorder stands in for the live feed, the tray and the voice plugin.
type recorder struct {
	mu        sync.Mutex
	results   []exercise.Result
	spoken    []string
	announced []string
	count     int
	tip       string
}

func (r *recorder) PublishResult(_ pose.Kind, res exercise.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

func (r *recorder) PublishSpeak(_ pose.Kind, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spoken = append(r.spoken, text)
}

func (r *recorder) Announce(_ context.Context, _ pose.Kind, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.announced = append(r.announced, text)
	return true
}

func (r *recorder) SetCount(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count = count
}

func (r *recorder) SetTip(tip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tip = tip
}

func (r *recorder) snapshot() (results int, spoken, announced []string, tip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results), append([]string(nil), r.spoken...), append([]string(nil), r.announced...), r.tip
}

func testConfig(t *testing.T, kind pose.Kind) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Exercise = kind
	cfg.Source.FPS = 200
	cfg.Pose.Provider = config.ProviderMock
	cfg.Models.CacheDir = t.TempDir()
	cfg.Models.BundledDir = t.TempDir()
	cfg.Store.Path = filepath.Join(t.TempDir(), "formcoach.db")
	return &cfg
}

func testFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	t.Cleanup(func() {
		for _, m := range frames {
			m.Close()
		}
	})
	return frames
}

func openStore(t *testing.T, path string) *store.Store {
	t.Helper()
	s, err := store.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// curlReps scripts full curls, each angle held for a few frames.
func curlReps() []pose.LandmarkSet {
	var sets []pose.LandmarkSet
	for _, angle := range []float64{170, 120, 70, 30, 70, 120, 170} {
		for i := 0; i < 3; i++ {
			sets = append(sets, pose.CurlAtAngle(angle))
		}
	}
	return sets
}

func repeat(set pose.LandmarkSet, n int) []pose.LandmarkSet {
	sets := make([]pose.LandmarkSet, n)
	for i := range sets {
		sets[i] = set
	}
	return sets
}

func TestApp_CountsRepsAndSavesSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}

	cfg := testConfig(t, pose.BicepCurl)
	st := openStore(t, cfg.Store.Path)
	rec := &recorder{}

	a, err := New(cfg, Options{
		Store:     st,
		Publisher: rec,
		Display:   rec,
		Provider:  pose.NewMockProvider(curlReps()...),
		Source:    capture.NewMockSource(testFrames(t, 1), true),
	})
	require.NoError(t, err)

	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return a.Count() >= 2 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, a.Stop())

	results, _, _, _ := rec.snapshot()
	assert.Positive(t, results)

	sum, ok := a.LastSummary()
	require.True(t, ok)
	assert.Equal(t, pose.BicepCurl, sum.Exercise)
	assert.GreaterOrEqual(t, sum.Count, 2)
	assert.Positive(t, sum.Frames)

	sessions, err := st.Sessions().List(store.ListFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, sum.ID, sessions[0].ID)
	assert.Equal(t, sum.Count, sessions[0].Count)
}

func TestApp_SpeaksPersistentFormError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}

	cfg := testConfig(t, pose.Plank)
	rec := &recorder{}

	a, err := New(cfg, Options{
		Publisher: rec,
		Announcer: rec,
		Display:   rec,
		Provider:  pose.NewMockProvider(pose.PlankPose(0.08)),
		Source:    capture.NewMockSource(testFrames(t, 1), true),
	})
	require.NoError(t, err)

	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool {
		_, _, announced, _ := rec.snapshot()
		return len(announced) > 0
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, a.Stop())

	_, spoken, announced, tip := rec.snapshot()
	assert.Equal(t, "Raise your hips", announced[0])
	assert.Equal(t, "Raise your hips", spoken[0])
	assert.Equal(t, "Raise your hips", tip)
	// The same tip is held back for the debounce window.
	assert.Len(t, announced, 1)

	sum, ok := a.LastSummary()
	require.True(t, ok)
	assert.Equal(t, sum.Frames, sum.ErrorFrames)
	assert.Zero(t, sum.Accuracy())
}

func TestApp_RecordedStreamEnds(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}

	cfg := testConfig(t, pose.Squat)
	st := openStore(t, cfg.Store.Path)

	src := capture.NewMockSource(testFrames(t, 12), false).WithKind(worker.SourceRecorded)
	src.SetFPS(200)

	a, err := New(cfg, Options{
		Store:    st,
		Provider: pose.NewMockProvider(pose.StandingPose()),
		Source:   src,
	})
	require.NoError(t, err)
	assert.Nil(t, a.Done())

	require.NoError(t, a.Start(context.Background()))
	select {
	case <-a.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("recorded stream did not end")
	}

	sum, ok := a.LastSummary()
	require.True(t, ok)
	assert.Equal(t, pose.Squat, sum.Exercise)
	assert.Zero(t, sum.Count)
	assert.LessOrEqual(t, sum.Frames, 6, "every second recorded frame is detected")
	require.NoError(t, a.Stop())

	// No reps and well under the minimum duration.
	sessions, err := st.Sessions().List(store.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestApp_SwitchExercise(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}

	cfg := testConfig(t, pose.BicepCurl)
	st := openStore(t, cfg.Store.Path)
	provider := pose.NewMockProvider(curlReps()...)
	rec := &recorder{}

	a, err := New(cfg, Options{
		Store:    st,
		Display:  rec,
		Provider: provider,
		Source:   capture.NewMockSource(testFrames(t, 1), true),
	})
	require.NoError(t, err)

	err = a.SwitchExercise("jumping_jack")
	assert.ErrorIs(t, err, exercise.ErrUnknownExercise)

	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return a.Count() >= 1 }, 5*time.Second, 10*time.Millisecond)

	provider.SetSets(repeat(pose.SquatAtAngle(170), 1))
	require.NoError(t, a.SwitchExercise(pose.Squat))
	assert.Equal(t, pose.Squat, a.Exercise())

	// The curl set was saved when the exercise changed.
	sessions, err := st.Sessions().List(store.ListFilter{Exercise: pose.BicepCurl})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Positive(t, sessions[0].Count)

	require.Eventually(t, func() bool {
		r, ok := a.Latest()
		return ok && r.Stage == exercise.StageOpen
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, a.Count())
	require.NoError(t, a.Stop())

	kind, ok := RememberedExercise(st)
	require.True(t, ok)
	assert.Equal(t, pose.Squat, kind)
}

func TestApp_ResetCount(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}

	cfg := testConfig(t, pose.BicepCurl)
	st := openStore(t, cfg.Store.Path)
	provider := pose.NewMockProvider(curlReps()...)
	rec := &recorder{}

	a, err := New(cfg, Options{
		Store:    st,
		Display:  rec,
		Provider: provider,
		Source:   capture.NewMockSource(testFrames(t, 1), true),
	})
	require.NoError(t, err)

	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return a.Count() >= 1 }, 5*time.Second, 10*time.Millisecond)

	a.SetEnabled(false)
	time.Sleep(50 * time.Millisecond)
	a.ResetCount()
	assert.Zero(t, a.Count())
	_, _, _, tip := rec.snapshot()
	assert.Empty(t, tip)

	sessions, err := st.Sessions().List(store.ListFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1, "the set before the reset is saved")

	require.NoError(t, a.Stop())
	sum, ok := a.LastSummary()
	require.True(t, ok)
	assert.Zero(t, sum.Count)
}

func TestHandleResult_DropsResultFromBeforeReset(t *testing.T) {
	cfg := testConfig(t, pose.BicepCurl)
	rec := &recorder{}
	a, err := New(cfg, Options{
		Publisher: rec,
		Display:   rec,
		Provider:  pose.NewMockProvider(),
		Source:    capture.NewMockSource(nil, false),
	})
	require.NoError(t, err)

	d, err := exercise.New(pose.BicepCurl, exercise.Options{})
	require.NoError(t, err)
	w := worker.New(d, worker.Config{}, nil)
	t.Cleanup(func() { _ = w.Stop() })

	s := &session{
		kind:     pose.BicepCurl,
		worker:   w,
		done:     make(chan struct{}),
		throttle: feedback.NewThrottle(cfg.Feedback, nil),
		agg:      feedback.NewAggregator(nil),
	}
	s.agg.Start(pose.BicepCurl)

	// Taken by the feedback side just before the count was zeroed.
	stale := worker.Output{
		Result:     exercise.Result{IsCorrect: true, Count: 3, Stage: exercise.StageOpen},
		Generation: w.Generation(),
	}
	w.Reset()

	a.handleResult(context.Background(), s, stale)
	assert.Zero(t, s.agg.Snapshot().Frames)
	results, _, _, _ := rec.snapshot()
	assert.Zero(t, results)

	fresh := worker.Output{
		Result:     exercise.Result{IsCorrect: true, Count: 1, Stage: exercise.StageOpen},
		Generation: w.Generation(),
	}
	a.handleResult(context.Background(), s, fresh)
	sum := s.agg.Snapshot()
	assert.Equal(t, 1, sum.Frames)
	assert.Equal(t, 1, sum.Count)
	results, _, _, _ = rec.snapshot()
	assert.Equal(t, 1, results)
}

func TestApp_PauseStopsProcessing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}

	a, err := New(testConfig(t, pose.Squat), Options{
		Provider: pose.NewMockProvider(pose.StandingPose()),
		Source:   capture.NewMockSource(testFrames(t, 1), true),
	})
	require.NoError(t, err)
	assert.True(t, a.IsEnabled())

	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()
	require.Eventually(t, func() bool { return a.Stats().Submitted > 0 }, 5*time.Second, 10*time.Millisecond)

	a.SetEnabled(false)
	assert.False(t, a.IsEnabled())
	time.Sleep(50 * time.Millisecond)
	paused := a.Stats().Submitted
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, paused, a.Stats().Submitted)

	a.SetEnabled(true)
	require.Eventually(t, func() bool { return a.Stats().Submitted > paused }, 5*time.Second, 10*time.Millisecond)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Exercise = "jumping_jack"
	_, err := New(&cfg, Options{Provider: pose.NewMockProvider()})
	assert.ErrorIs(t, err, pose.ErrUnknownKind)

	cfg = config.Default()
	cfg.Source.Kind = config.SourceVideo
	_, err = New(&cfg, Options{Provider: pose.NewMockProvider()})
	assert.Error(t, err)
}

func TestNew_MockProviderFromConfig(t *testing.T) {
	cfg := testConfig(t, pose.Lunge)
	a, err := New(cfg, Options{Source: capture.NewMockSource(nil, false)})
	require.NoError(t, err)
	assert.IsType(t, &pose.MockProvider{}, a.Provider())
	assert.Equal(t, pose.Lunge, a.Exercise())
}

func TestRememberedExercise(t *testing.T) {
	_, ok := RememberedExercise(nil)
	assert.False(t, ok)

	st := openStore(t, filepath.Join(t.TempDir(), "formcoach.db"))
	_, ok = RememberedExercise(st)
	assert.False(t, ok)

	require.NoError(t, st.Settings().Set(store.SettingLastExercise, "not_an_exercise"))
	_, ok = RememberedExercise(st)
	assert.False(t, ok)

	require.NoError(t, st.Settings().Set(store.SettingLastExercise, string(pose.Plank)))
	kind, ok := RememberedExercise(st)
	require.True(t, ok)
	assert.Equal(t, pose.Plank, kind)
}
