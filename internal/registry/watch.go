package registry

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reloads the registry when its catalog file changes on disk.
// Reloads are out-of-band: request-path readers keep seeing a consistent
// table until the swap completes.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	logger   *logrus.Logger
	done     chan struct{}
}

// NewWatcher starts watching the registry's catalog file. The registry must
// have been created with LoadFile.
func NewWatcher(reg *Registry, logger *logrus.Logger) (*Watcher, error) {
	if reg.path == "" {
		return nil, fmt.Errorf("registry has no catalog file to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	if err := fsw.Add(reg.path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch model catalog %s: %w", reg.path, err)
	}

	w := &Watcher{
		registry: reg,
		watcher:  fsw,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if err := w.registry.Reload(); err != nil {
				// Keep serving the previous table on a bad reload.
				w.logger.WithError(err).Warn("Model catalog reload failed")
				continue
			}
			w.logger.WithFields(logrus.Fields{
				"path":       event.Name,
				"generation": w.registry.Generation(),
				"models":     len(w.registry.ListAll()),
			}).Info("Model catalog reloaded")
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Model catalog watcher error")
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
