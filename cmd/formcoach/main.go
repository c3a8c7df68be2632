package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/alignify/formcoach/internal/app"
	"github.com/alignify/formcoach/internal/config"
	"github.com/alignify/formcoach/internal/plugin"
	"github.com/alignify/formcoach/internal/pose"
	"github.com/alignify/formcoach/internal/server"
	"github.com/alignify/formcoach/internal/store"
	"github.com/alignify/formcoach/internal/tray"
)

func main() {
	configPath := flag.String("config", filepath.Join(config.DataDir(), "config.yaml"), "Path to configuration file")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	exerciseFlag := flag.String("exercise", "", "Exercise to coach: bicep_curl, squat, lunge, plank")
	video := flag.String("video", "", "Analyze a recorded video instead of the camera")
	addr := flag.String("addr", "", "HTTP listen address")
	noTray := flag.Bool("no-tray", false, "Run without the system tray")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q\n", *logLevel)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, *configPath, *exerciseFlag, *video, *addr, *noTray); err != nil {
		logger.Error("formcoach failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, exerciseFlag, video, addr string, noTray bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if video != "" {
		cfg.Source.Kind = config.SourceVideo
		cfg.Source.Path = video
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if noTray {
		cfg.Tray = false
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.NewWithLogger(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	switch {
	case exerciseFlag != "":
		kind, err := pose.ParseKind(exerciseFlag)
		if err != nil {
			return err
		}
		cfg.Exercise = kind
	default:
		if kind, ok := app.RememberedExercise(st); ok {
			cfg.Exercise = kind
		}
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.Info("starting formcoach",
		"config", configPath,
		"exercise", cfg.Exercise,
		"source", cfg.Source.Kind,
		"addr", cfg.Server.Addr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub(logger)
	webDir := cfg.Server.WebDir
	if webDir == "" {
		webDir = findWebDir()
	}
	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Hub:       hub,
		Logger:    logger,
	})

	opts := app.Options{
		Store:     st,
		Publisher: hub,
		Logger:    logger,
	}
	announcer := newAnnouncer(cfg.Plugins, logger)
	if announcer != nil {
		opts.Announcer = announcer
	}

	var tr *tray.Tray
	if cfg.Tray && cfg.Source.Kind == config.SourceCamera {
		tr = tray.New(cfg.Exercise)
		opts.Display = tr
	}

	coach, err := app.New(cfg, opts)
	if err != nil {
		return err
	}
	if err := coach.Start(ctx); err != nil {
		coach.Stop()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, cfg.Server.Addr)
	}()

	if tr != nil {
		historyURL := "http://" + cfg.Server.Addr + "/api/sessions/chart"
		tr.OnToggle(coach.SetEnabled)
		tr.OnExercise(func(kind pose.Kind) {
			if err := coach.SwitchExercise(kind); err != nil {
				logger.Error("switching exercise", "exercise", kind, "error", err)
			}
		})
		tr.OnReset(coach.ResetCount)
		tr.OnHistory(func() {
			if err := openBrowser(historyURL); err != nil {
				logger.Warn("opening history", "url", historyURL, "error", err)
			}
		})
		tr.OnQuit(stop)

		go func() {
			select {
			case <-ctx.Done():
			case err := <-errCh:
				errCh <- err
			}
			tr.Quit()
		}()
		// The tray owns the main thread until it quits.
		tr.Run()
		stop()
	} else {
		select {
		case <-ctx.Done():
			logger.Info("received shutdown signal")
		case <-coach.Done():
			logger.Info("recording finished")
			stop()
		case err := <-errCh:
			errCh <- err
			stop()
		}
	}

	var errs []error
	if err := coach.Stop(); err != nil {
		errs = append(errs, err)
	}
	if announcer != nil {
		announcer.Wait()
	}
	if err := <-errCh; err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if sum, ok := coach.LastSummary(); ok {
		logger.Info("last session",
			"exercise", sum.Exercise,
			"count", sum.Count,
			"duration_seconds", sum.DurationSeconds,
			"accuracy", sum.Accuracy(),
		)
	}
	return errors.Join(errs...)
}

// newAnnouncer connects the configured voice plugin. Coaching continues silently
// when it is missing.
func newAnnouncer(cfg config.PluginsConfig, logger *slog.Logger) *plugin.Announcer {
	if cfg.Voice == "" {
		return nil
	}
	dir := cfg.Dir
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		if local := findPluginDir(); local != "" {
			dir = local
		}
	}

	m := plugin.NewManager(dir, logger)
	if err := m.Discover(); err != nil {
		logger.Warn("discovering plugins", "dir", dir, "error", err)
		return nil
	}
	a, err := plugin.NewAnnouncer(m, plugin.NewExecutor(cfg.Timeout), cfg.Voice, logger)
	if err != nil {
		logger.Warn("voice feedback disabled", "plugin", cfg.Voice, "available", m.Voices(), "error", err)
		return nil
	}
	if err := a.UseSettings(cfg.Settings); err != nil {
		logger.Warn("ignoring voice settings", "plugin", cfg.Voice, "error", err)
	}
	return a
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.formcoach/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	return findDir("web")
}

func findPluginDir() string {
	return findDir("plugins")
}

func findDir(name string) string {
	for _, p := range []string{name, filepath.Join("..", name), filepath.Join("..", "..", name)} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	home := filepath.Join(config.DataDir(), name)
	if info, err := os.Stat(home); err == nil && info.IsDir() {
		return home
	}
	return ""
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
