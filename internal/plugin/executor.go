package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned when a plugin is still talking when its time is up.
var ErrTimeout = errors.New("plugin execution timeout")

// maxStderr caps how much of a failing plugin's stderr ends up in the error.
const maxStderr = 512

// Executor runs plugin calls bounded by a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an Executor. A cue that takes longer than timeout to
// speak is stale by the time it ends, so keep it short.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{timeout: timeout}
}

// Timeout returns the per-call timeout.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute sends req to the plugin's stdin and decodes its stdout. The call is
// bounded by both ctx and the executor timeout. A plugin that answers with
// Success false is not an error here; callers decide what a refusal means.
func (e *Executor) Execute(ctx context.Context, p *Plugin, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request for %s: %w", p.Name(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Executable)
	cmd.Dir = p.Path
	cmd.Stdin = bytes.NewReader(body)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%s: %w after %s", p.Name(), ErrTimeout, e.timeout)
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case runErr != nil:
		if msg := tail(stderr.String(), maxStderr); msg != "" {
			return nil, fmt.Errorf("run %s: %w: %s", p.Name(), runErr, msg)
		}
		return nil, fmt.Errorf("run %s: %w", p.Name(), runErr)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w: %q", p.Name(), err, tail(stdout.String(), maxStderr))
	}
	return &resp, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return "..." + s[len(s)-n:]
	}
	return s
}
