package watcher

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"ipr-host/internal/state"
	"ipr-host/internal/types"
	"ipr-host/internal/websocket"
)

// Watcher marks the shell state stale when a watched input (requirements
// file, config file) changes after launch. It never restarts anything by
// itself; the operator decides when to pick up the change.
type Watcher struct {
	files map[string]bool
	fsw   *fsnotify.Watcher
}

// New builds a Watcher over the given files. Missing files are skipped
// with a warning; their directory is still watched so a later create is
// seen.
func New(files ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}

	w := &Watcher{
		files: make(map[string]bool, len(files)),
		fsw:   fsw,
	}

	dirs := make(map[string]bool)
	for _, file := range files {
		if file == "" {
			continue
		}
		abs, absErr := filepath.Abs(file)
		if absErr != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", file, absErr)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	// Watching the directory instead of the file survives the
	// write-rename dance editors and pip do.
	for dir := range dirs {
		if addErr := fsw.Add(dir); addErr != nil {
			logrus.WithError(addErr).WithField("dir", dir).Warn("Cannot watch directory, skipping")
		}
	}

	return w, nil
}

// Run blocks, flagging state stale on relevant changes, until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			logrus.WithFields(logrus.Fields{
				"file": event.Name,
				"op":   event.Op.String(),
			}).Info("Watched input changed, marking state stale")
			state.SetStale(true)
			websocket.BroadcastToAll(types.WSMessage{
				Type:    "stale",
				Message: fmt.Sprintf("%s changed since launch", filepath.Base(event.Name)),
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logrus.WithError(err).Warn("Watcher error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return w.files[abs]
}
