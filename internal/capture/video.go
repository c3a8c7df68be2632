package capture

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/alignify/formcoach/internal/worker"
)

// VideoFile plays back a recorded workout.
type VideoFile struct {
	path    string
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
	frames  int
	read    int
}

// NewVideoFile creates a VideoFile source for path.
func NewVideoFile(path string) *VideoFile {
	return &VideoFile{
		path: path,
		fps:  DefaultFPS,
	}
}

// Open opens the file and adopts its native frame rate when the container reports one.
func (v *VideoFile) Open() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.running {
		return nil
	}

	capture, err := gocv.VideoCaptureFile(v.path)
	if err != nil {
		return fmt.Errorf("open video %s: %w", v.path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open video %s: not a readable video", v.path)
	}

	if fps := capture.Get(gocv.VideoCaptureFPS); fps >= 1 {
		v.fps = int(fps + 0.5)
	}
	v.frames = int(capture.Get(gocv.VideoCaptureFrameCount))
	v.read = 0
	v.capture = capture
	v.running = true

	return nil
}

// Close releases the file.
func (v *VideoFile) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.running || v.capture == nil {
		v.running = false
		return nil
	}

	err := v.capture.Close()
	v.capture = nil
	v.running = false

	return err
}

// ReadFrame returns the next frame, or ErrEndOfStream once the file is exhausted.
func (v *VideoFile) ReadFrame() (*gocv.Mat, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.running || v.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := v.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrEndOfStream
	}
	v.read++

	return &mat, nil
}

// Position is the media time of the last frame read, derived from the frame index.
func (v *VideoFile) Position() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.read == 0 || v.fps <= 0 {
		return 0
	}
	return time.Duration(v.read-1) * time.Second / time.Duration(v.fps)
}

// Frames is the frame count reported by the container, 0 when unknown.
func (v *VideoFile) Frames() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.frames
}

// SetFPS overrides the playback rate. Values less than or equal to 0 are ignored.
func (v *VideoFile) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.fps = fps
}

// FPS returns the playback rate.
func (v *VideoFile) FPS() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.fps
}

// IsOpen returns true while the file is open.
func (v *VideoFile) IsOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.running
}

// Kind is always recorded for a file.
func (v *VideoFile) Kind() worker.SourceKind {
	return worker.SourceRecorded
}
