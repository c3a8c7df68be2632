// Package classifier wraps small per-exercise form models behind a single inference call.
package classifier

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the model could not be found or loaded.
	ErrUnavailable = errors.New("classifier unavailable")

	// ErrInference means a single prediction failed.
	ErrInference = errors.New("classifier inference failed")

	// ErrFeatureMismatch means the feature vector does not match the model input.
	ErrFeatureMismatch = errors.New("feature vector length mismatch")
)

// Classifier maps a feature vector to a class index. Class meaning is decided by the caller.
type Classifier interface {
	// PredictClass returns the index of the highest scoring class.
	PredictClass(features []float64) (int, error)

	// InputSize is the feature vector length the model was trained on.
	InputSize() int

	// Close releases the model.
	Close() error
}

func checkInput(features []float64, size int) error {
	if len(features) != size {
		return fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, len(features), size)
	}
	return nil
}

// Static always answers with the same class or error. It stands in for a model in
// tests and when running without model files.
type Static struct {
	Class int
	Err   error
	Size  int
}

// PredictClass returns s.Class, or s.Err when set.
func (s *Static) PredictClass(features []float64) (int, error) {
	if err := checkInput(features, s.Size); err != nil {
		return 0, err
	}
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Class, nil
}

// InputSize returns s.Size.
func (s *Static) InputSize() int {
	return s.Size
}

// Close is a no-op.
func (s *Static) Close() error {
	return nil
}
