// Package worker runs exercise detection off the presentation path, one worker
// per media source.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alignify/formcoach/internal/exercise"
	"github.com/alignify/formcoach/internal/pose"
)

// ErrStopped is returned by Start after Stop.
var ErrStopped = errors.New("worker stopped")

// SourceKind distinguishes live capture from pre-recorded playback.
type SourceKind string

const (
	SourceLive     SourceKind = "live"
	SourceRecorded SourceKind = "recorded"
)

// DefaultStride returns how many frames each detection covers for a source kind.
func DefaultStride(kind SourceKind) int {
	if kind == SourceRecorded {
		return 2
	}
	return 1
}

// Config configures a Worker.
type Config struct {
	Source SourceKind

	// Stride runs detection on every Nth submitted frame. Frames in between
	// reuse the latest result. Zero means DefaultStride(Source).
	Stride int
}

// Stats counts what happened to submitted frames.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Skipped   uint64 `json:"skipped"`
	Dropped   uint64 `json:"dropped"`
	Processed uint64 `json:"processed"`
	Recovered uint64 `json:"recovered"`
}

// Output is a detection result tagged with the reset generation that
// produced it.
type Output struct {
	exercise.Result
	Generation uint64
}

// Worker owns one detector and runs it on its own goroutine. At most one
// detection is in flight; frames arriving meanwhile are dropped.
type Worker struct {
	cfg      Config
	detector exercise.Detector
	logger   *slog.Logger

	frames  *Mailbox[pose.LandmarkSet]
	results *Mailbox[Output]
	latest  atomic.Pointer[exercise.Result]
	gen     atomic.Uint64

	busy     atomic.Bool
	stopping atomic.Bool
	started  atomic.Bool

	// detectMu serializes Detect and Reset on the detector.
	detectMu sync.Mutex

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error

	submitted atomic.Uint64
	skipped   atomic.Uint64
	dropped   atomic.Uint64
	processed atomic.Uint64
	recovered atomic.Uint64
}

// New creates a Worker for detector. The worker releases the detector on Stop.
func New(detector exercise.Detector, cfg Config, logger *slog.Logger) *Worker {
	if cfg.Source == "" {
		cfg.Source = SourceLive
	}
	if cfg.Stride <= 0 {
		cfg.Stride = DefaultStride(cfg.Source)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:      cfg,
		detector: detector,
		logger:   logger.With("source", string(cfg.Source), "exercise", detector.Name()),
		frames:   NewMailbox[pose.LandmarkSet](),
		results:  NewMailbox[Output](),
	}
}

// Start launches the detection goroutine.
func (w *Worker) Start(ctx context.Context) error {
	if w.stopping.Load() {
		return ErrStopped
	}
	if !w.started.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("detection worker started", "stride", w.cfg.Stride)
	return nil
}

// Submit hands a landmark set to the worker. It reports false when the frame
// was skipped by the stride, dropped because a detection is in flight, or the
// worker is stopping. Callers display Latest() for frames that are not accepted.
func (w *Worker) Submit(set pose.LandmarkSet) bool {
	if w.stopping.Load() {
		return false
	}

	n := w.submitted.Add(1)
	if w.cfg.Stride > 1 && (n-1)%uint64(w.cfg.Stride) != 0 {
		w.skipped.Add(1)
		return false
	}
	if !w.busy.CompareAndSwap(false, true) {
		w.dropped.Add(1)
		return false
	}
	if !w.frames.Put(set) {
		w.busy.Store(false)
		return false
	}
	return true
}

// Busy reports whether a detection is queued or running.
func (w *Worker) Busy() bool {
	return w.busy.Load()
}

// Latest returns the most recent detection result.
func (w *Worker) Latest() (exercise.Result, bool) {
	r := w.latest.Load()
	if r == nil {
		return exercise.Result{}, false
	}
	return *r, true
}

// Results is the single-slot handoff of fresh results to the feedback side.
func (w *Worker) Results() *Mailbox[Output] {
	return w.results
}

// Generation counts resets. Results tagged with an older generation were
// detected before the last Reset.
func (w *Worker) Generation() uint64 {
	return w.gen.Load()
}

// Reset resets the detector. It waits for an in-flight detection to finish
// and never runs concurrently with one.
func (w *Worker) Reset() {
	w.detectMu.Lock()
	defer w.detectMu.Unlock()

	w.detector.Reset()
	w.gen.Add(1)
	w.latest.Store(nil)
	w.results.TryTake()
}

// Count returns the detector's count.
func (w *Worker) Count() int {
	w.detectMu.Lock()
	defer w.detectMu.Unlock()
	return w.detector.Count()
}

// Stats returns frame counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Submitted: w.submitted.Load(),
		Skipped:   w.skipped.Load(),
		Dropped:   w.dropped.Load(),
		Processed: w.processed.Load(),
		Recovered: w.recovered.Load(),
	}
}

// Stop lets an in-flight detection finish, discards its result, schedules no
// further work and then releases the detector. It is safe to call more than once.
func (w *Worker) Stop() error {
	w.stopOnce.Do(func() {
		w.stopping.Store(true)
		if w.cancel != nil {
			w.cancel()
		}
		w.frames.Close()
		w.wg.Wait()
		w.results.Close()

		if err := w.detector.Release(); err != nil {
			w.stopErr = fmt.Errorf("release detector: %w", err)
		}
		st := w.Stats()
		w.logger.Info("detection worker stopped",
			"submitted", st.Submitted,
			"processed", st.Processed,
			"dropped", st.Dropped,
			"skipped", st.Skipped,
		)
	})
	return w.stopErr
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		set, ok := w.frames.Take(ctx)
		if !ok {
			return
		}
		w.detect(set)
		w.busy.Store(false)
	}
}

// detect runs the detector and publishes the result unless the worker is
// stopping. A panicking detector costs one frame, not the worker.
func (w *Worker) detect(set pose.LandmarkSet) {
	w.detectMu.Lock()
	defer w.detectMu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			w.recovered.Add(1)
			w.logger.Error("detector panicked, frame dropped", "panic", p)
		}
	}()

	r := w.detector.Detect(set)
	w.processed.Add(1)
	if w.stopping.Load() {
		return
	}
	w.latest.Store(&r)
	w.results.Put(Output{Result: r, Generation: w.gen.Load()})
}
