package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the server config when the file on disk changes. Editors
// and config management tools often replace the file rather than write it in
// place, so the parent directory is watched and events are debounced.
type Watcher struct {
	path     string
	onReload func(*ServerConfig)
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher creates a watcher for the config file at path. onReload is
// invoked with the freshly loaded config after each successful reload.
func NewWatcher(path string, onReload func(*ServerConfig)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		path:     path,
		onReload: onReload,
		watcher:  fw,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Run processes filesystem events until ctx is canceled. Reload failures are
// ignored; the previously loaded config stays in effect.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			if cfg, err := LoadServerConfig(w.path); err == nil {
				w.onReload(cfg)
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}
