package pose

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"gocv.io/x/gocv"
)

// ErrServiceNotFound is returned when the pose service script cannot be located.
var ErrServiceNotFound = errors.New("pose_service.py not found")

// maxResponseSize bounds a single response from the pose service.
const maxResponseSize = 1 << 20

// MediaPipeProvider implements Provider using a Python MediaPipe subprocess.
// Frames travel as JPEG inside length-prefixed msgpack documents.
type MediaPipeProvider struct {
	config    Config
	logger    *slog.Logger
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

type serviceRequest struct {
	Image       []byte `msgpack:"image"`
	TimestampMS int64  `msgpack:"ts_ms"`
}

type serviceLandmark struct {
	X          float64 `msgpack:"x"`
	Y          float64 `msgpack:"y"`
	Z          float64 `msgpack:"z"`
	Visibility float64 `msgpack:"visibility"`
}

type serviceResponse struct {
	Landmarks []serviceLandmark `msgpack:"landmarks"`
	Error     string            `msgpack:"error"`
}

// NewMediaPipeProvider creates a MediaPipe provider.
// The Python process is started lazily on the first frame.
func NewMediaPipeProvider(config Config, logger *slog.Logger) (*MediaPipeProvider, error) {
	script := findPoseScript()
	if script == "" {
		return nil, ErrServiceNotFound
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaPipeProvider{
		config: config,
		logger: logger,
		script: script,
	}, nil
}

// Estimate sends frame to the pose service and returns the landmarks it finds.
func (p *MediaPipeProvider) Estimate(frame *gocv.Mat, ts time.Duration) (LandmarkSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureStarted(); err != nil {
		return LandmarkSet{}, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return LandmarkSet{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	req, err := msgpack.Marshal(serviceRequest{
		Image:       buf.GetBytes(),
		TimestampMS: ts.Milliseconds(),
	})
	if err != nil {
		return LandmarkSet{}, fmt.Errorf("marshal request: %w", err)
	}

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(req)))
	if _, err := p.stdin.Write(length); err != nil {
		return LandmarkSet{}, fmt.Errorf("write length: %w", err)
	}
	if _, err := p.stdin.Write(req); err != nil {
		return LandmarkSet{}, fmt.Errorf("write request: %w", err)
	}

	if _, err := io.ReadFull(p.stdout, length); err != nil {
		return LandmarkSet{}, fmt.Errorf("read length: %w", err)
	}
	n := binary.BigEndian.Uint32(length)
	if n > maxResponseSize {
		return LandmarkSet{}, fmt.Errorf("response too large: %d bytes", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(p.stdout, data); err != nil {
		return LandmarkSet{}, fmt.Errorf("read response: %w", err)
	}

	var resp serviceResponse
	if err := msgpack.Unmarshal(data, &resp); err != nil {
		return LandmarkSet{}, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return LandmarkSet{}, fmt.Errorf("pose service: %s", resp.Error)
	}

	p.resetIdleTimer()
	return resp.toLandmarkSet(ts, p.config.MinConfidence), nil
}

// Close shuts down the Python process.
func (p *MediaPipeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown()
}

func (p *MediaPipeProvider) ensureStarted() error {
	if p.started {
		return nil
	}

	python := findVenvPython()
	if python == "" {
		python = "python3"
	}

	p.cmd = exec.Command(python, p.script)

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	p.cmd.Stderr = os.Stderr

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start pose service: %w", err)
	}

	p.stdin = stdin
	p.stdout = bufio.NewReader(stdout)
	p.started = true
	p.logger.Info("pose service started", "script", p.script, "pid", p.cmd.Process.Pid)
	return nil
}

func (p *MediaPipeProvider) shutdown() error {
	if !p.started {
		return nil
	}

	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
	if p.stdin != nil {
		p.stdin.Close()
	}

	err := p.cmd.Wait()
	p.started = false
	p.cmd = nil
	p.stdin = nil
	p.stdout = nil
	p.logger.Info("pose service stopped")
	return err
}

func (p *MediaPipeProvider) resetIdleTimer() {
	if p.config.IdleTimeout <= 0 {
		return
	}
	if p.idleTimer != nil {
		p.idleTimer.Stop()
	}
	p.idleTimer = time.AfterFunc(p.config.IdleTimeout, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if err := p.shutdown(); err != nil {
			p.logger.Warn("pose service exit", "error", err)
		}
	})
}

func (r serviceResponse) toLandmarkSet(ts time.Duration, minConfidence float64) LandmarkSet {
	set := LandmarkSet{Timestamp: ts}
	if len(r.Landmarks) == 0 {
		return set
	}

	set.Landmarks = make([]Landmark, NumJoints)
	for i := 0; i < int(NumJoints) && i < len(r.Landmarks); i++ {
		lm := r.Landmarks[i]
		if lm.Visibility < minConfidence {
			continue
		}
		set.Landmarks[i] = Landmark{
			Point3D:    Point3D{X: lm.X, Y: lm.Y, Z: lm.Z},
			Visibility: lm.Visibility,
			Present:    true,
		}
	}
	return set
}

func findPoseScript() string {
	return firstExisting(
		"scripts/pose_service.py",
		"../scripts/pose_service.py",
		"scripts/pose_service.py",
		".formcoach/scripts/pose_service.py",
	)
}

// findVenvPython looks for a Python interpreter in a virtual environment
// next to the working directory, the executable or the user's data dir.
func findVenvPython() string {
	return firstExisting(
		"venv/bin/python",
		"../venv/bin/python",
		"venv/bin/python",
		".formcoach/venv/bin/python",
	)
}

// firstExisting resolves candidates in order: the first two relative to the
// working directory, the third relative to the executable and the last relative
// to the home directory.
func firstExisting(cwd, parent, nextToExec, underHome string) string {
	candidates := []string{cwd, parent}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), nextToExec))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, underHome))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}
