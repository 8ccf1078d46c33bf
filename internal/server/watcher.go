package server

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/livetemplate/listingkit/internal/store"
)

// Watcher reports changes to stored documents in a file store directory.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	onChange func(id string) error
	logger   *zap.Logger
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewWatcher watches dir and calls onChange with the document id whenever
// a document file is written, created, renamed into place or removed.
func NewWatcher(dir string, onChange func(id string) error, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Documents live directly in dir; subdirectories are not part of the store.
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		watcher:  fsWatcher,
		dir:      dir,
		onChange: onChange,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

const watchedOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&watchedOps == 0 {
					continue
				}
				id, ok := store.IDFromPath(event.Name)
				if !ok || filepath.Dir(event.Name) != filepath.Clean(w.dir) {
					continue
				}
				w.logger.Debug("document changed", zap.String("doc", id), zap.String("op", event.Op.String()))
				if err := w.onChange(id); err != nil {
					w.logger.Warn("reload failed", zap.String("doc", id), zap.Error(err))
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", zap.Error(err))

			case <-w.done:
				return
			}
		}
	}()
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
