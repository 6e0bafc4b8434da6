// Package watcher reloads logging settings when the config file changes on
// disk, so log level and format can be adjusted without a restart.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mirelhart/cantus/internal/config"
	"github.com/mirelhart/cantus/internal/logging"
)

// Service watches the config file and applies logging changes at runtime.
type Service struct {
	configPath string
	logManager *logging.Manager
	logger     *slog.Logger
	debounce   time.Duration
}

// NewService creates a config file watcher.
func NewService(configPath string, logManager *logging.Manager, logger *slog.Logger) *Service {
	return &Service{
		configPath: configPath,
		logManager: logManager,
		logger:     logger.With("component", "config-watcher"),
		debounce:   500 * time.Millisecond,
	}
}

// SetDebounce overrides the default debounce interval (for testing).
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// Start blocks until ctx is canceled. It watches the directory containing
// the config file; editors typically replace the file on save, so watching
// the path directly would lose the watch after the first write.
func (s *Service) Start(ctx context.Context) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("fsnotify unavailable, config changes require restart", "error", err)
		return
	}
	defer w.Close() //nolint:errcheck

	dir := filepath.Dir(s.configPath)
	if err := w.Add(dir); err != nil {
		s.logger.Warn("cannot watch config directory", "dir", dir, "error", err)
		return
	}

	s.logger.Info("watching config file", "path", s.configPath)

	// Debounce timer coalesces rapid write events into a single reload.
	// Starts stopped; reset on each relevant event.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	reloadPending := false

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("config watcher stopping")
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.configPath) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(s.debounce)
			reloadPending = true

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Error("fsnotify error", "error", err)

		case <-debounceTimer.C:
			if reloadPending {
				reloadPending = false
				s.reload()
			}
		}
	}
}

// reload re-reads the config file and applies the logging section. Server
// and database settings are ignored; those require a restart.
func (s *Service) reload() {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		s.logger.Error("config reload failed, keeping current settings", "error", err)
		return
	}

	current := s.logManager.Config()
	if cfg.Logging == current {
		return
	}

	s.logManager.Reconfigure(cfg.Logging)
	s.logger.Info("logging reconfigured from config file",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)
}
