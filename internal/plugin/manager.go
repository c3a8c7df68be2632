package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrPluginNotFound is returned when no discovered plugin has the requested name.
var ErrPluginNotFound = errors.New("plugin not found")

// Manager finds the voice plugins installed in one directory.
type Manager struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	plugins map[string]*Plugin
}

// NewManager creates a Manager for dir. A nil logger means slog.Default().
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir:     dir,
		logger:  logger,
		plugins: make(map[string]*Plugin),
	}
}

// Discover rescans the directory. Every subdirectory with a plugin.json is a
// candidate; broken ones are logged and skipped so one bad install cannot
// silence the others. A missing directory simply means no plugins.
func (m *Manager) Discover() error {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		m.replace(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read plugin dir: %w", err)
	}

	found := make(map[string]*Plugin)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p, err := load(filepath.Join(m.dir, entry.Name()))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			m.logger.Warn("skipping plugin", "dir", entry.Name(), "error", err)
			continue
		}
		if prev, ok := found[p.Name()]; ok {
			m.logger.Warn("duplicate plugin name, keeping the first", "name", p.Name(), "kept", prev.Path, "skipped", p.Path)
			continue
		}
		found[p.Name()] = p
		m.logger.Debug("discovered plugin", "name", p.Name(), "version", p.Manifest.Version, "actions", p.Manifest.Actions)
	}

	m.replace(found)
	return nil
}

func (m *Manager) replace(plugins map[string]*Plugin) {
	if plugins == nil {
		plugins = make(map[string]*Plugin)
	}
	m.mu.Lock()
	m.plugins = plugins
	m.mu.Unlock()
}

// load reads the manifest in dir. It returns an fs.ErrNotExist error when dir
// has no manifest at all.
func load(dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	if manifest.Name == "" || manifest.Executable == "" {
		return nil, fmt.Errorf("%s needs a name and an executable", ManifestFile)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Plugin{
		Manifest:   manifest,
		Path:       abs,
		Executable: filepath.Join(abs, manifest.Executable),
	}, nil
}

// Get returns the plugin called name, or ErrPluginNotFound.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		plugins = append(plugins, p)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Name() < plugins[j].Name()
	})
	return plugins
}

// Voices returns the names of the plugins that can speak, sorted.
func (m *Manager) Voices() []string {
	var names []string
	for _, p := range m.List() {
		if p.Supports(ActionSpeak) {
			names = append(names, p.Name())
		}
	}
	return names
}

// PluginDir returns the directory Discover scans.
func (m *Manager) PluginDir() string {
	return m.dir
}
