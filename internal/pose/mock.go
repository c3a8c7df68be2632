package pose

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockProvider replays scripted landmark sets. It cycles through them and stamps
// each with the timestamp passed to Estimate.
type MockProvider struct {
	mu   sync.Mutex
	sets []LandmarkSet
	next int
	err  error
}

// NewMockProvider creates a MockProvider that replays sets.
func NewMockProvider(sets ...LandmarkSet) *MockProvider {
	return &MockProvider{sets: sets}
}

// SetSets replaces the script and rewinds it.
func (m *MockProvider) SetSets(sets []LandmarkSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets = sets
	m.next = 0
}

// SetError makes Estimate fail with err until cleared with nil.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Estimate returns the next scripted set.
func (m *MockProvider) Estimate(frame *gocv.Mat, ts time.Duration) (LandmarkSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return LandmarkSet{}, m.err
	}
	if len(m.sets) == 0 {
		return LandmarkSet{Timestamp: ts}, nil
	}

	src := m.sets[m.next%len(m.sets)]
	m.next++

	out := LandmarkSet{
		Landmarks: append([]Landmark(nil), src.Landmarks...),
		Timestamp: ts,
	}
	return out, nil
}

// Close is a no-op for the mock provider.
func (m *MockProvider) Close() error {
	return nil
}
