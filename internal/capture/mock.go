package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"

	"github.com/alignify/formcoach/internal/worker"
)

// MockSource plays back pre-built frames for testing.
type MockSource struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	kind    worker.SourceKind
	fps     int
	mu      sync.Mutex
	running bool
}

// NewMockSource creates a live MockSource over frames.
func NewMockSource(frames []*gocv.Mat, loop bool) *MockSource {
	return &MockSource{
		frames: frames,
		loop:   loop,
		kind:   worker.SourceLive,
		fps:    DefaultFPS,
	}
}

// WithKind makes the mock report kind.
func (m *MockSource) WithKind(kind worker.SourceKind) *MockSource {
	m.kind = kind
	return m
}

func (m *MockSource) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	m.index = 0
	return nil
}

func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

func (m *MockSource) ReadFrame() (*gocv.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil, ErrSourceNotOpen
	}
	if len(m.frames) == 0 {
		return nil, errors.New("no frames available")
	}

	if m.index >= len(m.frames) {
		if !m.loop {
			return nil, ErrEndOfStream
		}
		m.index = 0
	}

	// Clone so callers can close what they get.
	frame := m.frames[m.index].Clone()
	m.index++

	return &frame, nil
}

func (m *MockSource) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fps = fps
}

func (m *MockSource) FPS() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps
}

func (m *MockSource) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *MockSource) Kind() worker.SourceKind { return m.kind }

// Reset restarts playback from the beginning.
func (m *MockSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = 0
}
