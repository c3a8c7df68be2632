package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/alignify/formcoach/internal/worker"
)

// errEmptyFrame is returned for a read that produced no pixels, which webcams
// do for a few frames while they warm up.
var errEmptyFrame = errors.New("camera returned an empty frame")

// CameraConfig describes the webcam the athlete trains in front of.
type CameraConfig struct {
	Device int

	// Requested resolution. Zero means DefaultWidth x DefaultHeight. The
	// device may pick something else; Resolution reports what it chose.
	Width  int
	Height int

	// Mirror flips frames horizontally so left and right match what the
	// athlete sees in a front-facing preview.
	Mirror bool
}

func (c CameraConfig) withDefaults() CameraConfig {
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	return c
}

// Camera is a live webcam source.
type Camera struct {
	cfg CameraConfig

	mu      sync.Mutex
	capture *gocv.VideoCapture
	size    image.Point
	fps     int
}

// NewCamera creates a Camera. It opens nothing until Open.
func NewCamera(cfg CameraConfig) *Camera {
	return &Camera{
		cfg: cfg.withDefaults(),
		fps: DefaultFPS,
	}
}

// Open starts the device and asks for the configured resolution and rate.
func (c *Camera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.cfg.Device)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("open camera %d: device not available", c.cfg.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.size = image.Pt(
		int(vc.Get(gocv.VideoCaptureFrameWidth)),
		int(vc.Get(gocv.VideoCaptureFrameHeight)),
	)
	c.capture = vc
	return nil
}

// Close stops the device. Closing a camera that is not open is a no-op.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	c.size = image.Point{}
	return err
}

// ReadFrame grabs the next frame, mirrored when configured. The caller owns
// the returned Mat.
func (c *Camera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("camera %d: %w", c.cfg.Device, errEmptyFrame)
	}
	if c.cfg.Mirror {
		gocv.Flip(mat, &mat, 1)
	}
	return &mat, nil
}

// SetFPS changes the requested rate. Values less than or equal to 0 are ignored.
func (c *Camera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the requested rate.
func (c *Camera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

// IsOpen reports whether the device is streaming.
func (c *Camera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}

// Resolution is the frame size the device settled on, or the requested size
// while the camera is closed.
func (c *Camera) Resolution() image.Point {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil && c.size.X > 0 && c.size.Y > 0 {
		return c.size
	}
	return image.Pt(c.cfg.Width, c.cfg.Height)
}

// Mirrored reports whether frames are flipped horizontally.
func (c *Camera) Mirrored() bool {
	return c.cfg.Mirror
}

// Kind is always live for a camera.
func (c *Camera) Kind() worker.SourceKind {
	return worker.SourceLive
}
