package exercise

import (
	"errors"
	"fmt"
)

// ErrInvalidThresholds is returned when a threshold set cannot drive a detector.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// CurlThresholds are angles in degrees at the elbow.
type CurlThresholds struct {
	Open            float64 `yaml:"open" json:"open"`
	Closed          float64 `yaml:"closed" json:"closed"`
	WeakContraction float64 `yaml:"weak_contraction" json:"weak_contraction"`
	AttemptAngle    float64 `yaml:"attempt_angle" json:"attempt_angle"`
	UpperArmDrift   float64 `yaml:"upper_arm_drift" json:"upper_arm_drift"`
}

// SquatThresholds are knee angles in degrees and distance ratios.
type SquatThresholds struct {
	Open         float64 `yaml:"open" json:"open"`
	Closed       float64 `yaml:"closed" json:"closed"`
	StanceMin    float64 `yaml:"stance_min" json:"stance_min"`
	StanceMax    float64 `yaml:"stance_max" json:"stance_max"`
	KneeCollapse float64 `yaml:"knee_collapse" json:"knee_collapse"`
}

// LungeThresholds are lead knee angles in degrees and a horizontal margin in
// normalized image units.
type LungeThresholds struct {
	Open        float64 `yaml:"open" json:"open"`
	Closed      float64 `yaml:"closed" json:"closed"`
	KneeOverToe float64 `yaml:"knee_over_toe" json:"knee_over_toe"`
}

// PlankThresholds bound the shoulder-hip-ankle line.
type PlankThresholds struct {
	AlignmentTolerance float64 `yaml:"alignment_tolerance" json:"alignment_tolerance"`
	HipLow             float64 `yaml:"hip_low" json:"hip_low"`
	HipHigh            float64 `yaml:"hip_high" json:"hip_high"`
	StackMargin        float64 `yaml:"stack_margin" json:"stack_margin"`
}

// Thresholds groups the tunable limits of every exercise.
type Thresholds struct {
	BicepCurl CurlThresholds  `yaml:"bicep_curl" json:"bicep_curl"`
	Squat     SquatThresholds `yaml:"squat" json:"squat"`
	Lunge     LungeThresholds `yaml:"lunge" json:"lunge"`
	Plank     PlankThresholds `yaml:"plank" json:"plank"`
}

// DefaultThresholds returns the tuned defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		BicepCurl: CurlThresholds{
			Open:            160,
			Closed:          40,
			WeakContraction: 60,
			AttemptAngle:    120,
			UpperArmDrift:   40,
		},
		Squat: SquatThresholds{
			Open:         160,
			Closed:       90,
			StanceMin:    0.8,
			StanceMax:    1.3,
			KneeCollapse: 0.9,
		},
		Lunge: LungeThresholds{
			Open:        160,
			Closed:      100,
			KneeOverToe: 0.05,
		},
		Plank: PlankThresholds{
			AlignmentTolerance: 0.3,
			HipLow:             155,
			HipHigh:            185,
			StackMargin:        0.1,
		},
	}
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// withDefaults fills every zero field from DefaultThresholds.
func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()

	t.BicepCurl.Open = orDefault(t.BicepCurl.Open, d.BicepCurl.Open)
	t.BicepCurl.Closed = orDefault(t.BicepCurl.Closed, d.BicepCurl.Closed)
	t.BicepCurl.WeakContraction = orDefault(t.BicepCurl.WeakContraction, d.BicepCurl.WeakContraction)
	t.BicepCurl.AttemptAngle = orDefault(t.BicepCurl.AttemptAngle, d.BicepCurl.AttemptAngle)
	t.BicepCurl.UpperArmDrift = orDefault(t.BicepCurl.UpperArmDrift, d.BicepCurl.UpperArmDrift)

	t.Squat.Open = orDefault(t.Squat.Open, d.Squat.Open)
	t.Squat.Closed = orDefault(t.Squat.Closed, d.Squat.Closed)
	t.Squat.StanceMin = orDefault(t.Squat.StanceMin, d.Squat.StanceMin)
	t.Squat.StanceMax = orDefault(t.Squat.StanceMax, d.Squat.StanceMax)
	t.Squat.KneeCollapse = orDefault(t.Squat.KneeCollapse, d.Squat.KneeCollapse)

	t.Lunge.Open = orDefault(t.Lunge.Open, d.Lunge.Open)
	t.Lunge.Closed = orDefault(t.Lunge.Closed, d.Lunge.Closed)
	t.Lunge.KneeOverToe = orDefault(t.Lunge.KneeOverToe, d.Lunge.KneeOverToe)

	t.Plank.AlignmentTolerance = orDefault(t.Plank.AlignmentTolerance, d.Plank.AlignmentTolerance)
	t.Plank.HipLow = orDefault(t.Plank.HipLow, d.Plank.HipLow)
	t.Plank.HipHigh = orDefault(t.Plank.HipHigh, d.Plank.HipHigh)
	t.Plank.StackMargin = orDefault(t.Plank.StackMargin, d.Plank.StackMargin)

	return t
}

// WithDefaults returns t with zero fields replaced by defaults.
func (t Thresholds) WithDefaults() Thresholds {
	return t.withDefaults()
}

// Validate checks that each stage machine has a dead band and that ratios make sense.
func (t Thresholds) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{t.BicepCurl.Open > t.BicepCurl.Closed, "bicep_curl: open must exceed closed"},
		{t.BicepCurl.AttemptAngle < t.BicepCurl.Open, "bicep_curl: attempt_angle must be below open"},
		{t.Squat.Open > t.Squat.Closed, "squat: open must exceed closed"},
		{t.Squat.StanceMin > 0 && t.Squat.StanceMin < t.Squat.StanceMax, "squat: stance_min must be positive and below stance_max"},
		{t.Squat.KneeCollapse > 0, "squat: knee_collapse must be positive"},
		{t.Lunge.Open > t.Lunge.Closed, "lunge: open must exceed closed"},
		{t.Lunge.KneeOverToe >= 0, "lunge: knee_over_toe must not be negative"},
		{t.Plank.HipLow < t.Plank.HipHigh, "plank: hip_low must be below hip_high"},
		{t.Plank.AlignmentTolerance > 0, "plank: alignment_tolerance must be positive"},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s", ErrInvalidThresholds, c.msg)
		}
	}
	return nil
}
