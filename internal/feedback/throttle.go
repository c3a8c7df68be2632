// Package feedback decides when to speak form corrections and aggregates session totals.
package feedback

import (
	"strings"
	"time"

	"github.com/alignify/formcoach/internal/exercise"
	"github.com/alignify/formcoach/internal/timeutil"
)

// ThrottleConfig tunes voice feedback.
type ThrottleConfig struct {
	// MinConsecutive incorrect frames are needed before anything is spoken.
	MinConsecutive int `yaml:"min_consecutive" json:"min_consecutive"`

	// Debounce suppresses repeating the same text within this window.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// DefaultThrottleConfig returns the tuned defaults.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		MinConsecutive: 3,
		Debounce:       5 * time.Second,
	}
}

// Decision is the per-frame verdict for the voice collaborator.
type Decision struct {
	Speak bool   `json:"speak"`
	Text  string `json:"text,omitempty"`
}

// Throttle filters per-frame results down to occasional spoken tips.
// It is not safe for concurrent use.
type Throttle struct {
	cfg   ThrottleConfig
	clock timeutil.Clock

	consecutive int
	lastText    string
	lastSpoke   time.Time
	hasSpoken   bool
}

// NewThrottle creates a Throttle. Zero config fields take their defaults and a
// nil clock means the real clock.
func NewThrottle(cfg ThrottleConfig, clock timeutil.Clock) *Throttle {
	def := DefaultThrottleConfig()
	if cfg.MinConsecutive <= 0 {
		cfg.MinConsecutive = def.MinConsecutive
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Throttle{cfg: cfg, clock: clock}
}

// Observe consumes one detection result and reports whether to speak now.
func (t *Throttle) Observe(r exercise.Result) Decision {
	if r.IsCorrect {
		t.consecutive = 0
		return Decision{}
	}

	t.consecutive++
	if t.consecutive < t.cfg.MinConsecutive {
		return Decision{}
	}

	text := spokenText(r)
	if text == "" {
		return Decision{}
	}
	now := t.clock.Now()
	if t.hasSpoken && text == t.lastText && now.Sub(t.lastSpoke) < t.cfg.Debounce {
		return Decision{}
	}

	t.lastText = text
	t.lastSpoke = now
	t.hasSpoken = true
	t.consecutive = 0
	return Decision{Speak: true, Text: text}
}

// Reset forgets streaks and debounce history.
func (t *Throttle) Reset() {
	t.consecutive = 0
	t.lastText = ""
	t.lastSpoke = time.Time{}
	t.hasSpoken = false
}

// spokenText picks the single most important correction of a result.
func spokenText(r exercise.Result) string {
	if r.PrimaryTip != "" {
		return r.PrimaryTip
	}
	first, _, _ := strings.Cut(r.FeedbackText, "\n")
	return first
}
