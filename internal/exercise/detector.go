// Package exercise turns landmark sets into rep counts, hold times and form feedback.
//
// Each exercise has its own Detector. Detectors are not safe for concurrent use:
// Detect and Reset must be called from a single owner.
package exercise

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/alignify/formcoach/internal/classifier"
	"github.com/alignify/formcoach/internal/pose"
)

// ErrUnknownExercise is returned by New for an unrecognized exercise.
var ErrUnknownExercise = errors.New("unknown exercise")

// Stage is a named phase of an exercise's motion cycle.
type Stage string

const (
	// StageRest is the initial stage, and the plank stage while posture is invalid.
	StageRest Stage = "rest"
	// StageOpen is the extended position (arm straight, standing up).
	StageOpen Stage = "open"
	// StageClosed is the contracted position (arm curled, squat bottom).
	StageClosed Stage = "closed"
	// StageHolding is a plank held in valid posture.
	StageHolding Stage = "holding"
)

// Result is the outcome of one Detect call.
type Result struct {
	IsCorrect    bool     `json:"is_correct"`
	FeedbackText string   `json:"feedback_text"`
	Count        int      `json:"count"`
	Stage        Stage    `json:"stage"`
	Errors       []string `json:"errors,omitempty"`
	PrimaryTip   string   `json:"primary_tip,omitempty"`
}

// Detector counts one exercise and checks its form.
type Detector interface {
	// Detect consumes one frame. It never fails: missing joints produce a
	// correct result with a positioning prompt.
	Detect(set pose.LandmarkSet) Result

	// Reset returns the detector to its initial state.
	Reset()

	// Name is the display name of the exercise.
	Name() string

	// Count is the number of completed reps, or whole seconds held for a plank.
	Count() int

	// Release frees the classifier, if any. The detector keeps working rule-only.
	Release() error
}

// Options configures a detector.
type Options struct {
	// Classifier is optional. When its input size does not match the exercise's
	// feature vector it is closed and the detector runs rule-only.
	Classifier classifier.Classifier

	// Thresholds overrides the defaults. Zero fields keep their default.
	Thresholds Thresholds

	Logger *slog.Logger
}

// New creates the detector for kind. The detector takes ownership of
// opts.Classifier only when New succeeds.
func New(kind pose.Kind, opts Options) (Detector, error) {
	if !slices.Contains(pose.Kinds(), kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExercise, kind)
	}

	th := opts.Thresholds.withDefaults()
	if err := th.Validate(); err != nil {
		return nil, err
	}

	b := newBase(kind, opts)
	switch kind {
	case pose.Squat:
		return newSquat(b, th.Squat), nil
	case pose.Lunge:
		return newLunge(b, th.Lunge), nil
	case pose.Plank:
		return newPlank(b, th.Plank), nil
	default:
		return newBicepCurl(b, th.BicepCurl), nil
	}
}

// base carries what every detector shares: identity, the optional classifier
// and the mapping from class index to feedback label.
type base struct {
	kind   pose.Kind
	clf    classifier.Classifier
	logger *slog.Logger
	labels map[int]string
}

func newBase(kind pose.Kind, opts Options) *base {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &base{
		kind:   kind,
		clf:    opts.Classifier,
		logger: logger.With("exercise", string(kind)),
		labels: classLabels[kind],
	}

	if b.clf != nil {
		if want := pose.FeatureLength(kind); b.clf.InputSize() != want {
			b.logger.Warn("classifier input size mismatch, running rule-only",
				"input_size", b.clf.InputSize(),
				"features", want,
			)
			b.Release()
		}
	}
	return b
}

// classLabels maps classifier output to feedback per exercise. Class 0 is good form.
var classLabels = map[pose.Kind]map[int]string{
	pose.BicepCurl: {1: "Leaning back - keep torso straight"},
	pose.Squat:     {1: "Keep your back straight"},
	pose.Lunge:     {1: "Keep torso upright"},
	pose.Plank:     {1: "Adjust form", 2: "Adjust form"},
}

// classify returns the classifier's feedback for set, if any. Inference errors
// drop the signal for this frame only.
func (b *base) classify(set pose.LandmarkSet) (string, bool) {
	if b.clf == nil {
		return "", false
	}
	features, ok := pose.ExtractFeatures(b.kind, set)
	if !ok {
		return "", false
	}

	class, err := b.clf.PredictClass(features)
	if err != nil {
		b.logger.Debug("classifier signal dropped", "error", err)
		return "", false
	}
	label, ok := b.labels[class]
	return label, ok
}

// withClassifier appends the classifier's label to errs when it flags the frame.
func (b *base) withClassifier(errs []string, set pose.LandmarkSet) []string {
	if label, ok := b.classify(set); ok {
		return appendUnique(errs, label)
	}
	return errs
}

// Release closes the classifier. It is safe to call more than once.
func (b *base) Release() error {
	if b.clf == nil {
		return nil
	}
	err := b.clf.Close()
	b.clf = nil
	return err
}

func appendUnique(errs []string, msg string) []string {
	if slices.Contains(errs, msg) {
		return errs
	}
	return append(errs, msg)
}

// judge builds a Result from the rule and classifier errors of a frame.
// Without errors the feedback is the exercise's encouragement.
func judge(errs []string, ok string, count int, stage Stage) Result {
	r := Result{
		IsCorrect: len(errs) == 0,
		Count:     count,
		Stage:     stage,
		Errors:    errs,
	}
	if r.IsCorrect {
		r.FeedbackText = ok
		return r
	}
	r.FeedbackText = strings.Join(errs, "\n")
	r.PrimaryTip = errs[0]
	return r
}

// reposition is the result for frames without the joints an exercise needs.
func reposition(msg string, count int, stage Stage) Result {
	return Result{
		IsCorrect:    true,
		FeedbackText: msg,
		Count:        count,
		Stage:        stage,
	}
}
