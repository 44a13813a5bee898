package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a configuration file when it changes on disk, the way the
// original settings files are hot-reloaded in production. A file that fails
// to parse after a change is ignored and the previous configuration stays in
// effect.
type Watcher struct {
	path     string
	fs       *fsnotify.Watcher
	onChange func(*Config)
	onError  func(error)

	closeOnce sync.Once
	done      chan struct{}
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithErrorHandler installs a callback for reload and watch errors, which
// are otherwise dropped.
func WithErrorHandler(fn func(error)) WatchOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// Watch starts watching path and invokes onChange with each successfully
// reloaded configuration. The file must load cleanly once before watching
// starts. Close the returned Watcher to stop.
func Watch(path string, onChange func(*Config), opts ...WatchOption) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("config: onChange callback is required")
	}
	if _, err := Load(path); err != nil {
		return nil, err
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		fs:       fs,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	// Watch the directory rather than the file: editors and config
	// management tools replace files via rename, which drops a file-level
	// watch.
	if err := fs.Add(filepath.Dir(w.path)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.reportError(err)
				continue
			}
			w.onChange(cfg)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
