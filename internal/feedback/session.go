package feedback

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alignify/formcoach/internal/exercise"
	"github.com/alignify/formcoach/internal/pose"
	"github.com/alignify/formcoach/internal/timeutil"
)

// MinSessionDuration is how long a session without any count must last to be worth keeping.
const MinSessionDuration = 30 * time.Second

// Summary is an exercise session as handed to persistence.
type Summary struct {
	ID              string    `json:"id"`
	Exercise        pose.Kind `json:"exercise"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Count           int       `json:"count"`
	ErrorFrames     int       `json:"error_frames"`
	Frames          int       `json:"frames"`
	DurationSeconds int       `json:"duration_seconds"`
}

// Accuracy is the share of frames without form errors as a percentage.
// A session without frames scores 100.
func (s Summary) Accuracy() float64 {
	if s.Frames <= 0 {
		return 100
	}
	acc := (1 - float64(s.ErrorFrames)/float64(s.Frames)) * 100
	return math.Max(0, math.Min(100, acc))
}

// Worthwhile reports whether the session is worth persisting.
func (s Summary) Worthwhile() bool {
	return s.Count > 0 || time.Duration(s.DurationSeconds)*time.Second >= MinSessionDuration
}

// Aggregator accumulates one session's totals. Totals are computed on Finish,
// not written anywhere per frame.
type Aggregator struct {
	mu    sync.Mutex
	clock timeutil.Clock

	kind        pose.Kind
	start       time.Time
	running     bool
	frames      int
	errorFrames int
	count       int
}

// NewAggregator creates an Aggregator. A nil clock means the real clock.
func NewAggregator(clock timeutil.Clock) *Aggregator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Aggregator{clock: clock}
}

// Start begins a new session, discarding any totals in progress.
func (a *Aggregator) Start(kind pose.Kind) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.kind = kind
	a.start = a.clock.Now()
	a.running = true
	a.frames = 0
	a.errorFrames = 0
	a.count = 0
}

// Observe adds one detection result to the running session.
func (a *Aggregator) Observe(r exercise.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.frames++
	if !r.IsCorrect {
		a.errorFrames++
	}
	a.count = r.Count
}

// Running reports whether a session is in progress.
func (a *Aggregator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Snapshot returns the totals so far without ending the session.
func (a *Aggregator) Snapshot() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summary("")
}

// Finish ends the session and returns its summary with a fresh ID.
func (a *Aggregator) Finish() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.summary(uuid.New().String())
	a.running = false
	return s
}

func (a *Aggregator) summary(id string) Summary {
	end := a.clock.Now()
	return Summary{
		ID:              id,
		Exercise:        a.kind,
		StartTime:       a.start,
		EndTime:         end,
		Count:           a.count,
		ErrorFrames:     a.errorFrames,
		Frames:          a.frames,
		DurationSeconds: int(end.Sub(a.start) / time.Second),
	}
}
