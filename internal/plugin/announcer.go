package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alignify/formcoach/internal/pose"
)

// ErrUnsupportedAction is returned when a plugin's manifest does not list an action.
var ErrUnsupportedAction = errors.New("plugin does not support action")

// Announcer speaks feedback through a voice plugin. At most one announcement
// runs at a time; announcements arriving meanwhile are dropped.
type Announcer struct {
	executor *Executor
	plugin   *Plugin
	logger   *slog.Logger
	settings json.RawMessage

	busy    atomic.Bool
	spoken  atomic.Int64
	dropped atomic.Int64
	wg      sync.WaitGroup
}

// NewAnnouncer looks up the named plugin and checks that it can speak.
func NewAnnouncer(m *Manager, executor *Executor, name string, logger *slog.Logger) (*Announcer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p, err := m.Get(name)
	if err != nil {
		return nil, fmt.Errorf("voice plugin %q: %w", name, err)
	}
	if !p.Supports(ActionSpeak) {
		return nil, fmt.Errorf("voice plugin %q: %w %q", name, ErrUnsupportedAction, ActionSpeak)
	}

	return &Announcer{
		executor: executor,
		plugin:   p,
		logger:   logger.With("plugin", name),
	}, nil
}

// UseSettings sets the voice settings sent with every announcement, such as
// {"voice": "Samantha", "rate": 180}. Call it before the first Announce.
func (a *Announcer) UseSettings(settings map[string]any) error {
	if len(settings) == 0 {
		a.settings = nil
		return nil
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("voice settings: %w", err)
	}
	a.settings = raw
	return nil
}

// Announce starts speaking text in the background and reports whether it was
// accepted. It returns false without blocking while a previous announcement runs.
func (a *Announcer) Announce(ctx context.Context, exercise pose.Kind, text string) bool {
	if text == "" {
		return false
	}
	if !a.busy.CompareAndSwap(false, true) {
		a.dropped.Add(1)
		return false
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.busy.Store(false)

		req := &Request{
			Action:   ActionSpeak,
			Exercise: string(exercise),
			Text:     text,
			Settings: a.settings,
		}
		resp, err := a.executor.Execute(ctx, a.plugin, req)
		switch {
		case err != nil:
			a.logger.Warn("announcement failed", "text", text, "error", err)
		case !resp.Success:
			a.logger.Warn("announcement rejected", "text", text, "error", resp.Error)
		default:
			a.spoken.Add(1)
		}
	}()
	return true
}

// Wait blocks until the running announcement, if any, has finished.
func (a *Announcer) Wait() {
	a.wg.Wait()
}

// Spoken is the number of announcements the plugin confirmed.
func (a *Announcer) Spoken() int64 {
	return a.spoken.Load()
}

// Dropped is the number of announcements skipped because one was already running.
func (a *Announcer) Dropped() int64 {
	return a.dropped.Load()
}
