// Package trigger turns outside events into refresh and render requests:
// process signals and a watched trigger file.
package trigger

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/cdwhistler/netscan/logger"
	"github.com/fsnotify/fsnotify"
)

var log = logger.GetLogger("trigger")

// Target receives the requests. Both calls must not block.
type Target interface {
	Refresh()
	Render()
}

// Signals forwards refreshSignals and renderSignals to t until ctx is done.
func Signals(ctx context.Context, t Target) {
	if len(refreshSignals) == 0 {
		// Notify with no signals would relay all of them
		return
	}
	refresh := make(chan os.Signal, 1)
	render := make(chan os.Signal, 1)
	signal.Notify(refresh, refreshSignals...)
	signal.Notify(render, renderSignals...)
	go func() {
		defer signal.Stop(refresh)
		defer signal.Stop(render)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-refresh:
				log.Debugf("Received %s, refresh", sig)
				t.Refresh()
			case sig := <-render:
				log.Debugf("Received %s, render", sig)
				t.Render()
			}
		}
	}()
}

// FileWatcher requests a refresh whenever the trigger file is created,
// written or touched.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	target  Target
}

// NewFileWatcher watches the directory of path, so the file need not
// exist yet.
func NewFileWatcher(path string, t Target) (*FileWatcher, error) {
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new file watch: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch directory of trigger file %s: %w", path, err)
	}
	return &FileWatcher{watcher: watcher, path: path, target: t}, nil
}

// Run handles events until ctx is done or the watcher is closed.
func (w *FileWatcher) Run(ctx context.Context) {
	const mask = fsnotify.Create | fsnotify.Write | fsnotify.Chmod
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || event.Op&mask == 0 {
				continue
			}
			log.Infof("Received event %s", event)
			w.target.Refresh()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("%v", err)
		}
	}
}

func (w *FileWatcher) Close() error {
	return w.watcher.Close()
}
