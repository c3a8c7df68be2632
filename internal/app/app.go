// Package app wires frame capture, pose estimation, exercise detection and
// feedback into one coaching session.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/alignify/formcoach/internal/capture"
	"github.com/alignify/formcoach/internal/classifier"
	"github.com/alignify/formcoach/internal/config"
	"github.com/alignify/formcoach/internal/exercise"
	"github.com/alignify/formcoach/internal/feedback"
	"github.com/alignify/formcoach/internal/pose"
	"github.com/alignify/formcoach/internal/store"
	"github.com/alignify/formcoach/internal/timeutil"
	"github.com/alignify/formcoach/internal/worker"
)

// Publisher receives every detection result and every spoken tip.
type Publisher interface {
	PublishResult(kind pose.Kind, r exercise.Result)
	PublishSpeak(kind pose.Kind, text string)
}

// Announcer speaks a tip. It reports false when the tip was not taken.
type Announcer interface {
	Announce(ctx context.Context, kind pose.Kind, text string) bool
}

// Display shows the running count and the last spoken tip.
type Display interface {
	SetCount(count int)
	SetTip(tip string)
}

// Options carries the optional collaborators of an App. Nil fields are skipped.
type Options struct {
	Store     *store.Store
	Publisher Publisher
	Announcer Announcer
	Display   Display

	// Provider and Source override the ones built from the configuration.
	Provider pose.Provider
	Source   capture.Source

	Clock  timeutil.Clock
	Logger *slog.Logger
}

// App is the coaching pipeline for one frame source.
type App struct {
	cfg      *config.Config
	opts     Options
	logger   *slog.Logger
	clock    timeutil.Clock
	provider pose.Provider
	source   capture.Source

	// mu serializes Start, Stop, SwitchExercise and ResetCount.
	mu      sync.Mutex
	kind    pose.Kind
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}

	enabled atomic.Bool
	sess    atomic.Pointer[session]
	last    atomic.Pointer[feedback.Summary]
}

// session is one exercise on one worker. Its feedback goroutine is the only
// consumer of the worker's results.
type session struct {
	kind   pose.Kind
	worker *worker.Worker
	done   chan struct{}

	// fbMu guards throttle and agg against ResetCount.
	fbMu     sync.Mutex
	throttle *feedback.Throttle
	agg      *feedback.Aggregator
}

// New creates an App. The pose provider falls back to the mock when MediaPipe
// cannot be started.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}

	a := &App{
		cfg:      cfg,
		opts:     opts,
		logger:   opts.Logger,
		clock:    opts.Clock,
		kind:     cfg.Exercise,
		provider: opts.Provider,
		source:   opts.Source,
	}
	a.enabled.Store(true)

	if a.source == nil {
		src, err := newSource(cfg.Source)
		if err != nil {
			return nil, err
		}
		a.source = src
	}
	if a.provider == nil {
		a.provider = newProvider(cfg.Pose, a.logger)
	}
	return a, nil
}

func newSource(cfg config.SourceConfig) (capture.Source, error) {
	switch cfg.Kind {
	case config.SourceVideo:
		if cfg.Path == "" {
			return nil, errors.New("video source needs a path")
		}
		return capture.NewVideoFile(cfg.Path), nil
	default:
		return capture.NewCamera(capture.CameraConfig{
			Device: cfg.Device,
			Width:  cfg.Width,
			Height: cfg.Height,
			Mirror: cfg.Mirror,
		}), nil
	}
}

func newProvider(cfg config.PoseConfig, logger *slog.Logger) pose.Provider {
	if cfg.Provider == config.ProviderMock {
		logger.Info("using mock pose provider")
		return pose.NewMockProvider()
	}
	mp, err := pose.NewMediaPipeProvider(cfg.PoseProviderConfig(), logger)
	if err != nil {
		logger.Warn("MediaPipe not available, using mock pose provider", "error", err)
		return pose.NewMockProvider()
	}
	logger.Info("using MediaPipe pose estimation")
	return mp
}

// RememberedExercise returns the exercise selected when formcoach last ran.
func RememberedExercise(s *store.Store) (pose.Kind, bool) {
	if s == nil {
		return "", false
	}
	v, err := s.Settings().Get(store.SettingLastExercise)
	if err != nil {
		return "", false
	}
	kind, err := pose.ParseKind(v)
	if err != nil {
		return "", false
	}
	return kind, true
}

// Start opens the source and begins detection. It is a no-op while running.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}
	if err := a.source.Open(); err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	if a.source.Kind() == worker.SourceLive && a.cfg.Source.FPS > 0 {
		a.source.SetFPS(a.cfg.Source.FPS)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s, err := a.startSession(runCtx, a.kind)
	if err != nil {
		cancel()
		a.source.Close()
		return err
	}

	a.runCtx = runCtx
	a.cancel = cancel
	a.done = make(chan struct{})
	a.running = true
	a.sess.Store(s)

	a.wg.Add(1)
	go a.runCapture(runCtx, a.done)

	a.logger.Info("coaching started",
		"exercise", a.kind,
		"source", string(a.source.Kind()),
		"fps", a.source.FPS(),
	)
	return nil
}

// Stop ends the session, saving it when worthwhile, and releases the source
// and the pose provider. The App cannot be restarted afterwards.
func (a *App) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	if a.running {
		a.cancel()
		a.wg.Wait()
		if s := a.sess.Swap(nil); s != nil {
			if err := a.endSession(s); err != nil {
				errs = append(errs, err)
			}
		}
		a.running = false
	}

	if err := a.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}
	if err := a.provider.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pose provider: %w", err))
	}

	a.logger.Info("coaching stopped")
	return errors.Join(errs...)
}

// Done is closed when a recorded source reaches its end. It is nil before Start.
func (a *App) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// SetEnabled pauses or resumes frame processing.
func (a *App) SetEnabled(enabled bool) {
	if a.enabled.Swap(enabled) != enabled {
		a.logger.Info("coaching toggled", "enabled", enabled)
	}
}

// IsEnabled reports whether frames are being processed.
func (a *App) IsEnabled() bool {
	return a.enabled.Load()
}

// Exercise returns the selected exercise.
func (a *App) Exercise() pose.Kind {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.kind
}

// SwitchExercise ends the current session and starts counting kind. The choice
// is remembered for the next run.
func (a *App) SwitchExercise(kind pose.Kind) error {
	if !slices.Contains(pose.Kinds(), kind) {
		return fmt.Errorf("%w: %q", exercise.ErrUnknownExercise, kind)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if kind == a.kind {
		return nil
	}

	if a.running {
		if old := a.sess.Swap(nil); old != nil {
			if err := a.endSession(old); err != nil {
				a.logger.Warn("ending session", "exercise", old.kind, "error", err)
			}
		}
		s, err := a.startSession(a.runCtx, kind)
		if err != nil {
			return err
		}
		a.sess.Store(s)
	}

	a.kind = kind
	a.remember(kind)
	if a.opts.Display != nil {
		a.opts.Display.SetCount(0)
		a.opts.Display.SetTip("")
	}
	a.logger.Info("exercise switched", "exercise", kind)
	return nil
}

// ResetCount zeroes the count. The set so far is saved as its own session.
func (a *App) ResetCount() {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.sess.Load()
	if s == nil {
		return
	}
	s.fbMu.Lock()
	if s.agg.Running() {
		a.save(s.finish())
		s.agg.Start(s.kind)
	}
	s.worker.Reset()
	s.throttle.Reset()
	s.fbMu.Unlock()

	if a.opts.Display != nil {
		a.opts.Display.SetCount(0)
		a.opts.Display.SetTip("")
	}
	a.logger.Info("count reset", "exercise", s.kind)
}

// Count returns the running count of the current session.
func (a *App) Count() int {
	if s := a.sess.Load(); s != nil {
		return s.worker.Count()
	}
	return 0
}

// Latest returns the most recent detection result of the current session.
func (a *App) Latest() (exercise.Result, bool) {
	if s := a.sess.Load(); s != nil {
		return s.worker.Latest()
	}
	return exercise.Result{}, false
}

// Stats returns the frame counters of the current worker.
func (a *App) Stats() worker.Stats {
	if s := a.sess.Load(); s != nil {
		return s.worker.Stats()
	}
	return worker.Stats{}
}

// LastSummary returns the most recently finished session, saved or not.
func (a *App) LastSummary() (feedback.Summary, bool) {
	if s := a.last.Load(); s != nil {
		return *s, true
	}
	return feedback.Summary{}, false
}

// Source returns the frame source.
func (a *App) Source() capture.Source {
	return a.source
}

// Provider returns the pose provider.
func (a *App) Provider() pose.Provider {
	return a.provider
}

func (a *App) startSession(ctx context.Context, kind pose.Kind) (*session, error) {
	d, err := a.newDetector(kind)
	if err != nil {
		return nil, err
	}

	w := worker.New(d, worker.Config{
		Source: a.source.Kind(),
		Stride: a.cfg.Source.Stride,
	}, a.logger)
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, fmt.Errorf("start worker: %w", err)
	}

	s := &session{
		kind:     kind,
		worker:   w,
		done:     make(chan struct{}),
		throttle: feedback.NewThrottle(a.cfg.Feedback, a.clock),
		agg:      feedback.NewAggregator(a.clock),
	}
	s.agg.Start(kind)

	go a.runFeedback(ctx, s)
	return s, nil
}

// endSession stops the worker, waits for its feedback goroutine and saves the
// session when it is worth keeping.
func (a *App) endSession(s *session) error {
	err := s.worker.Stop()
	<-s.done

	s.fbMu.Lock()
	sum := s.finish()
	s.fbMu.Unlock()

	a.save(sum)
	return err
}

// finish closes the session totals. The detector's count wins over the last
// observed one, whose result may never have reached the feedback goroutine.
func (s *session) finish() feedback.Summary {
	sum := s.agg.Finish()
	sum.Count = max(sum.Count, s.worker.Count())
	return sum
}

// newDetector builds the detector for kind with its classifier when a model
// can be found.
func (a *App) newDetector(kind pose.Kind) (exercise.Detector, error) {
	opts := exercise.Options{
		Thresholds: a.cfg.Thresholds,
		Logger:     a.logger,
	}

	model, err := classifier.Open(a.cfg.Models.CacheDir, a.cfg.Models.BundledDir, kind)
	if err != nil {
		a.logger.Warn("classifier unavailable, running rule-only", "exercise", kind, "error", err)
	} else {
		opts.Classifier = model
	}

	d, err := exercise.New(kind, opts)
	if err != nil {
		if model != nil {
			model.Close()
		}
		return nil, err
	}
	return d, nil
}

func (a *App) save(sum feedback.Summary) {
	a.last.Store(&sum)

	if !sum.Worthwhile() {
		a.logger.Debug("session too short to save",
			"exercise", sum.Exercise,
			"duration_seconds", sum.DurationSeconds,
		)
		return
	}
	if a.opts.Store == nil {
		return
	}

	row := store.NewSession(sum)
	if err := a.opts.Store.Sessions().Create(row); err != nil {
		a.logger.Error("saving session", "exercise", sum.Exercise, "error", err)
		return
	}
	a.logger.Info("session saved",
		"id", row.ID,
		"exercise", row.Exercise,
		"count", row.Count,
		"accuracy", row.Accuracy,
	)
}

func (a *App) remember(kind pose.Kind) {
	if a.opts.Store == nil {
		return
	}
	if err := a.opts.Store.Settings().Set(store.SettingLastExercise, string(kind)); err != nil {
		a.logger.Warn("remembering exercise", "exercise", kind, "error", err)
	}
}
