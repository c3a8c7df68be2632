// Package config loads the formcoach YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alignify/formcoach/internal/exercise"
	"github.com/alignify/formcoach/internal/feedback"
	"github.com/alignify/formcoach/internal/pose"
	"github.com/alignify/formcoach/internal/worker"
)

// Source kinds.
const (
	SourceCamera = "camera"
	SourceVideo  = "video"
)

// Pose providers.
const (
	ProviderMediaPipe = "mediapipe"
	ProviderMock      = "mock"
)

// Config represents the complete formcoach configuration.
type Config struct {
	Exercise   pose.Kind               `yaml:"exercise"`
	Source     SourceConfig            `yaml:"source"`
	Pose       PoseConfig              `yaml:"pose"`
	Models     ModelsConfig            `yaml:"models"`
	Thresholds exercise.Thresholds     `yaml:"thresholds"`
	Feedback   feedback.ThrottleConfig `yaml:"feedback"`
	Store      StoreConfig             `yaml:"store"`
	Server     ServerConfig            `yaml:"server"`
	Plugins    PluginsConfig           `yaml:"plugins"`
	Tray       bool                    `yaml:"tray"`
}

// SourceConfig selects where frames come from.
type SourceConfig struct {
	Kind   string `yaml:"kind"`   // camera, video
	Device int    `yaml:"device"` // camera index
	Path   string `yaml:"path"`   // video file
	FPS    int    `yaml:"fps"`
	Stride int    `yaml:"stride"` // 0 = default for the source kind

	// Camera only.
	Width  int  `yaml:"width"`
	Height int  `yaml:"height"`
	Mirror bool `yaml:"mirror"` // flip like a front-facing preview
}

// PoseConfig selects the pose provider.
type PoseConfig struct {
	Provider      string        `yaml:"provider"` // mediapipe, mock
	MinConfidence float64       `yaml:"min_confidence"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

// ModelsConfig locates classifier model files.
type ModelsConfig struct {
	CacheDir   string `yaml:"cache_dir"`
	BundledDir string `yaml:"bundled_dir"`
}

// StoreConfig contains session database settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	WebDir string `yaml:"web_dir"` // optional static UI
}

// PluginsConfig contains announcer plugin settings.
type PluginsConfig struct {
	Dir     string        `yaml:"dir"`
	Voice   string        `yaml:"voice"` // plugin name, empty disables speech
	Timeout time.Duration `yaml:"timeout"`

	// Settings is passed to the voice plugin with every cue, e.g. voice and rate.
	Settings map[string]any `yaml:"settings"`
}

// DataDir returns the per-user directory formcoach keeps its files in.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".formcoach"
	}
	return filepath.Join(home, ".formcoach")
}

// Default returns a valid configuration.
func Default() Config {
	dir := DataDir()
	pc := pose.DefaultConfig()
	return Config{
		Exercise: pose.BicepCurl,
		Source: SourceConfig{
			Kind:   SourceCamera,
			FPS:    15,
			Mirror: true,
		},
		Pose: PoseConfig{
			Provider:      ProviderMediaPipe,
			MinConfidence: pc.MinConfidence,
			IdleTimeout:   pc.IdleTimeout,
		},
		Models: ModelsConfig{
			CacheDir:   filepath.Join(dir, "models"),
			BundledDir: "models",
		},
		Thresholds: exercise.DefaultThresholds(),
		Feedback:   feedback.DefaultThrottleConfig(),
		Store:      StoreConfig{Path: filepath.Join(dir, "formcoach.db")},
		Server:     ServerConfig{Addr: "127.0.0.1:8085"},
		Plugins: PluginsConfig{
			Dir:     filepath.Join(dir, "plugins"),
			Voice:   "voice",
			Timeout: 5 * time.Second,
		},
		Tray: true,
	}
}

// Load reads and parses a YAML configuration file. Keys absent from the file
// keep their Default value. A missing file yields Default.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate fills zero values with defaults and checks the configuration.
func Validate(cfg *Config) error {
	def := Default()

	kind, err := pose.ParseKind(string(cfg.Exercise))
	if err != nil {
		return fmt.Errorf("exercise: %w", err)
	}
	cfg.Exercise = kind

	switch cfg.Source.Kind {
	case "":
		cfg.Source.Kind = def.Source.Kind
	case SourceCamera:
	case SourceVideo:
		if cfg.Source.Path == "" {
			return errors.New("source.path is required for video sources")
		}
	default:
		return fmt.Errorf("source.kind must be %q or %q, got %q", SourceCamera, SourceVideo, cfg.Source.Kind)
	}
	if cfg.Source.Device < 0 {
		return fmt.Errorf("source.device must be >= 0, got %d", cfg.Source.Device)
	}
	if cfg.Source.Width < 0 || cfg.Source.Height < 0 {
		return fmt.Errorf("source.width and source.height must be >= 0, got %dx%d", cfg.Source.Width, cfg.Source.Height)
	}
	if cfg.Source.FPS < 0 || cfg.Source.Stride < 0 {
		return errors.New("source.fps and source.stride must not be negative")
	}
	if cfg.Source.FPS == 0 {
		cfg.Source.FPS = def.Source.FPS
	}

	switch cfg.Pose.Provider {
	case "":
		cfg.Pose.Provider = def.Pose.Provider
	case ProviderMediaPipe, ProviderMock:
	default:
		return fmt.Errorf("pose.provider must be %q or %q, got %q", ProviderMediaPipe, ProviderMock, cfg.Pose.Provider)
	}
	if cfg.Pose.MinConfidence < 0 || cfg.Pose.MinConfidence > 1 {
		return fmt.Errorf("pose.min_confidence must be between 0 and 1, got %.2f", cfg.Pose.MinConfidence)
	}
	if cfg.Pose.IdleTimeout <= 0 {
		cfg.Pose.IdleTimeout = def.Pose.IdleTimeout
	}

	cfg.Thresholds = cfg.Thresholds.WithDefaults()
	if err := cfg.Thresholds.Validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}

	if cfg.Feedback.MinConsecutive < 0 || cfg.Feedback.Debounce < 0 {
		return errors.New("feedback values must not be negative")
	}
	if cfg.Feedback.MinConsecutive == 0 {
		cfg.Feedback.MinConsecutive = def.Feedback.MinConsecutive
	}
	if cfg.Feedback.Debounce == 0 {
		cfg.Feedback.Debounce = def.Feedback.Debounce
	}

	if cfg.Models.CacheDir == "" {
		cfg.Models.CacheDir = def.Models.CacheDir
	}
	if cfg.Models.BundledDir == "" {
		cfg.Models.BundledDir = def.Models.BundledDir
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = def.Store.Path
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Plugins.Dir == "" {
		cfg.Plugins.Dir = def.Plugins.Dir
	}
	if cfg.Plugins.Timeout <= 0 {
		cfg.Plugins.Timeout = def.Plugins.Timeout
	}

	return nil
}

// SourceKind maps the configured source onto the worker's source kind.
func (c SourceConfig) SourceKind() worker.SourceKind {
	if c.Kind == SourceVideo {
		return worker.SourceRecorded
	}
	return worker.SourceLive
}

// PoseProviderConfig returns the settings for the pose provider.
func (c PoseConfig) PoseProviderConfig() pose.Config {
	return pose.Config{
		MinConfidence: c.MinConfidence,
		IdleTimeout:   c.IdleTimeout,
	}
}
