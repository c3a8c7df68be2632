package classifier

import (
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

// Model is a Classifier backed by the OpenCV DNN module. Any format ReadNet
// understands works (ONNX, TFLite, Caffe).
type Model struct {
	mu        sync.Mutex
	net       gocv.Net
	path      string
	inputSize int
	closed    bool
}

// Load reads the model at path. inputSize is the expected feature vector length.
// Any failure wraps ErrUnavailable.
func Load(path string, inputSize int) (*Model, error) {
	if inputSize <= 0 {
		return nil, fmt.Errorf("%w: invalid input size %d", ErrUnavailable, inputSize)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	net := gocv.ReadNet(path, "")
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("%w: cannot read %s", ErrUnavailable, path)
	}

	return &Model{
		net:       net,
		path:      path,
		inputSize: inputSize,
	}, nil
}

// PredictClass runs one forward pass and returns the argmax of the output.
func (m *Model) PredictClass(features []float64) (int, error) {
	if err := checkInput(features, m.inputSize); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, fmt.Errorf("%w: model closed", ErrInference)
	}

	blob := gocv.NewMatWithSize(1, m.inputSize, gocv.MatTypeCV32F)
	defer blob.Close()
	for i, v := range features {
		blob.SetFloatAt(0, i, float32(v))
	}

	m.net.SetInput(blob, "")
	out := m.net.Forward("")
	defer out.Close()

	if out.Empty() {
		return 0, fmt.Errorf("%w: empty output", ErrInference)
	}

	scores := make([]float64, out.Total())
	flat := out.Reshape(1, 1)
	defer flat.Close()
	for i := range scores {
		scores[i] = float64(flat.GetFloatAt(0, i))
	}
	if len(scores) == 0 {
		return 0, fmt.Errorf("%w: no classes", ErrInference)
	}
	return floats.MaxIdx(scores), nil
}

// InputSize returns the feature vector length the model expects.
func (m *Model) InputSize() int {
	return m.inputSize
}

// Path returns the file the model was loaded from.
func (m *Model) Path() string {
	return m.path
}

// Close releases the network. It is safe to call more than once.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.net.Close()
}
