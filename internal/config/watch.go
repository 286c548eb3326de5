package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/godbus/internal/logger"
)

// Watcher watches a config file with fsnotify (§10 ledger: fsnotify wired
// into internal/config). On each write or create it re-runs Load and
// passes the resulting Config to the caller's callback; it applies no
// setting itself and does not re-dial.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
}

// WatchConfig starts watching path and invokes onChange with the
// reloaded Config each time the file is written. The returned Watcher
// must be closed by the caller.
func WatchConfig(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					logger.Warn("config reload failed", "path", path, "error", err)
					continue
				}
				logger.Info("config reloaded", "path", path)
				onChange(cfg)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			}
		}
	}()

	return &Watcher{watcher: fw, path: path}, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
