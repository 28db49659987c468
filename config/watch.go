package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// debounce coalesces the write bursts editors produce when saving.
const debounce = 100 * time.Millisecond

// Watch re-reads the config whenever its file changes and then invokes
// onChange. It returns immediately; watching stops when ctx is done. A
// config without a file path is never watched.
func Watch(ctx context.Context, c *Config, logger *log.Logger, onChange func()) error {
	if c.Path() == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors replace files on save, which drops
	// watches on the file itself.
	dir := filepath.Dir(c.Path())
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}
	target := filepath.Clean(c.Path())

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		fire := make(chan struct{}, 1)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			case <-fire:
				if err := c.Reload(); err != nil {
					logger.Warn("config reload failed", "err", err)
					continue
				}
				logger.Info("configuration reloaded", "path", c.Path())
				onChange()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "err", err)
			}
		}
	}()
	return nil
}
