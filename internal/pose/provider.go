package pose

import (
	"time"

	"gocv.io/x/gocv"
)

// Provider turns a camera frame into a LandmarkSet.
type Provider interface {
	// Estimate runs pose estimation on frame. A frame with nobody in it yields
	// an empty set, not an error.
	Estimate(frame *gocv.Mat, ts time.Duration) (LandmarkSet, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Config holds pose estimation options.
type Config struct {
	// MinConfidence is the visibility below which a joint is reported missing (0.0-1.0).
	MinConfidence float64

	// IdleTimeout shuts an out-of-process estimator down after this long without frames.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinConfidence: 0.5,
		IdleTimeout:   30 * time.Second,
	}
}
