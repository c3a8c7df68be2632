package app

import (
	"context"
	"errors"
	"time"

	"github.com/alignify/formcoach/internal/capture"
	"github.com/alignify/formcoach/internal/worker"
)

// positioner is a source that knows the media time of its last frame.
type positioner interface {
	Position() time.Duration
}

// runCapture is the presentation-side loop. It never waits on detection:
//
//  1. Pace reads at the source frame rate
//  2. Skip everything while paused
//  3. Estimate the pose and stamp it with the media time
//  4. Hand the landmarks to the worker, which drops them when busy
//
// A recorded source ends its session when the stream runs out.
func (a *App) runCapture(ctx context.Context, done chan<- struct{}) {
	defer a.wg.Done()

	fps := a.source.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	start := a.clock.Now()
	var frames int64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !a.IsEnabled() {
			continue
		}

		frame, err := a.source.ReadFrame()
		if errors.Is(err, capture.ErrEndOfStream) {
			a.logger.Info("end of stream", "frames", frames)
			if s := a.sess.Swap(nil); s != nil {
				if err := a.endSession(s); err != nil {
					a.logger.Warn("ending session", "exercise", s.kind, "error", err)
				}
			}
			close(done)
			return
		}
		if err != nil {
			a.logger.Warn("reading frame", "error", err)
			continue
		}

		ts := a.timestamp(frames, fps, start)
		frames++

		set, err := a.provider.Estimate(frame, ts)
		frame.Close()
		if err != nil {
			a.logger.Debug("pose estimation failed", "error", err)
			continue
		}

		if s := a.sess.Load(); s != nil {
			s.worker.Submit(set)
		}
	}
}

// timestamp is the media time of frame n. Live sources use wall time since
// start; recorded ones use their own position.
func (a *App) timestamp(n int64, fps int, start time.Time) time.Duration {
	if a.source.Kind() == worker.SourceLive {
		return a.clock.Now().Sub(start)
	}
	if p, ok := a.source.(positioner); ok {
		return p.Position()
	}
	return time.Duration(n) * time.Second / time.Duration(fps)
}

// runFeedback consumes fresh results of one session until its worker stops.
func (a *App) runFeedback(ctx context.Context, s *session) {
	defer close(s.done)

	results := s.worker.Results()
	for {
		r, ok := results.Take(ctx)
		if !ok {
			return
		}
		a.handleResult(ctx, s, r)
	}
}

// handleResult drops results detected before the last ResetCount, so a
// result already taken when the count was zeroed cannot leak into the new set.
func (a *App) handleResult(ctx context.Context, s *session, out worker.Output) {
	r := out.Result

	s.fbMu.Lock()
	if out.Generation != s.worker.Generation() {
		s.fbMu.Unlock()
		a.logger.Debug("dropping result from before reset", "exercise", s.kind, "count", r.Count)
		return
	}
	s.agg.Observe(r)
	d := s.throttle.Observe(r)
	s.fbMu.Unlock()

	if a.opts.Publisher != nil {
		a.opts.Publisher.PublishResult(s.kind, r)
	}
	if a.opts.Display != nil {
		a.opts.Display.SetCount(r.Count)
	}
	if !d.Speak {
		return
	}

	a.logger.Debug("speaking", "exercise", s.kind, "text", d.Text)
	if a.opts.Publisher != nil {
		a.opts.Publisher.PublishSpeak(s.kind, d.Text)
	}
	if a.opts.Display != nil {
		a.opts.Display.SetTip(d.Text)
	}
	if a.opts.Announcer != nil {
		a.opts.Announcer.Announce(ctx, s.kind, d.Text)
	}
}
