package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// MirrorWatcher reports mirrors that disappear from the mirror root, for
// example when an operator deletes one to reclaim disk space.
type MirrorWatcher struct {
	root      string
	log       *logrus.Logger
	onRemoved func(path string)
}

func NewMirrorWatcher(root string, log *logrus.Logger, onRemoved func(path string)) *MirrorWatcher {
	if log == nil {
		log = logrus.New()
	}
	return &MirrorWatcher{root: root, log: log, onRemoved: onRemoved}
}

// Run watches until ctx is done. The root is created if it does not exist
// yet so a fresh deployment can be watched before the first clone.
func (w *MirrorWatcher) Run(ctx context.Context, ready chan<- struct{}) error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("create mirrors dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isMirrorRemoval(event, w.root) {
				continue
			}
			w.log.WithField("mirror", event.Name).Info("mirror removed")
			if w.onRemoved != nil {
				w.onRemoved(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")
		}
	}
}

func isMirrorRemoval(event fsnotify.Event, root string) bool {
	if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Dir(filepath.Clean(event.Name)) == filepath.Clean(root)
}
