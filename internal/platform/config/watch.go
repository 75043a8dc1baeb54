package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file on change and hands the result to onChange.
// Environment overrides are re-applied on each reload. A reload that fails
// to parse is logged and the previous config stays in effect.
//
// The parent directory is watched rather than the file, so editors that save
// by writing a temp file and renaming it over the original keep triggering
// reloads.
func Watch(path string, logger *slog.Logger, onChange func(Config)) (stop func(), err error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", filepath.Dir(path), err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg := Default()
				if err := cfg.mergeFile(path); err != nil {
					logger.Warn("config reload failed", "path", path, "error", err)
					continue
				}
				if err := cfg.applyEnv(os.LookupEnv); err != nil {
					logger.Warn("config reload failed", "path", path, "error", err)
					continue
				}
				logger.Info("config reloaded", "path", path)
				onChange(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}
