// Package capture provides frame sources using GoCV (OpenCV).
package capture

import (
	"errors"

	"gocv.io/x/gocv"

	"github.com/alignify/formcoach/internal/worker"
)

// Default capture settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrSourceNotOpen is returned when reading from a source that is not open.
	ErrSourceNotOpen = errors.New("source is not open")

	// ErrEndOfStream is returned when a finite source has no more frames.
	ErrEndOfStream = errors.New("end of stream")
)

// Source produces video frames.
type Source interface {
	Open() error
	Close() error

	// ReadFrame reads the next frame. The caller owns the returned Mat.
	ReadFrame() (*gocv.Mat, error)

	SetFPS(fps int)
	FPS() int
	IsOpen() bool

	// Kind tells the worker whether frames arrive live or from a recording.
	Kind() worker.SourceKind
}
