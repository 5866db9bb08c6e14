package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the stories file for changes and invokes a callback after
// a debounce window, so editors that write multiple events per save trigger
// one refresh.
type Watcher struct {
	watcher  *fsnotify.Watcher
	paths    []string
	debounce time.Duration

	onChange func()
	onError  func(error)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	pending bool
}

// New creates a new file watcher
func New(debounce time.Duration, onChange func(), onError func(error)) *Watcher {
	return &Watcher{
		debounce: debounce,
		onChange: onChange,
		onError:  onError,
		stopCh:   make(chan struct{}),
	}
}

// AddPath adds a file path to watch
func (w *Watcher) AddPath(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paths = append(w.paths, path)

	if w.watcher != nil && w.running {
		_ = w.watcher.Add(filepath.Dir(path))
	}
}

// Start begins watching for file changes
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	var err error
	w.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}

	// Watch the directory containing each file for better reliability.
	for _, path := range w.paths {
		_ = w.watcher.Add(filepath.Dir(path))
	}

	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	go w.run()
	return nil
}

// Stop stops watching for file changes
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)

	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

// IsRunning returns whether the watcher is currently active
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// run is the main event loop
func (w *Watcher) run() {
	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()

	for {
		select {
		case <-w.stopCh:
			debounceTimer.Stop()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isWatchedPath(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.mu.Lock()
			w.pending = true
			w.mu.Unlock()
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			w.mu.Lock()
			pending := w.pending
			w.pending = false
			w.mu.Unlock()

			if pending && w.onChange != nil {
				w.onChange()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// isWatchedPath checks if the given path matches any watched path
func (w *Watcher) isWatchedPath(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	absPath, _ := filepath.Abs(path)
	for _, watched := range w.paths {
		absWatched, _ := filepath.Abs(watched)
		if absPath == absWatched {
			return true
		}
		if filepath.Base(path) == filepath.Base(watched) {
			return true
		}
	}
	return false
}

// WatchStories creates a watcher configured for a stories file
func WatchStories(storiesPath string, debounce time.Duration, onChange func(), onError func(error)) *Watcher {
	w := New(debounce, onChange, onError)
	w.AddPath(storiesPath)
	return w
}
