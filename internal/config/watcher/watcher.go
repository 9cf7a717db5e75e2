// Package watcher provides file watching for configuration live reload.
//
// The watcher subscribes to the directories holding the watched files via
// fsnotify, so files replaced by rename (as most editors save) keep being
// observed. Bursts of events for one file are coalesced and delivered once
// the file has been quiet for the debounce duration.
package watcher

import (
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherClosed is returned when using a closed watcher.
var ErrWatcherClosed = errors.New("watcher is closed")

// Event represents a file change event.
type Event struct {
	// Path is the absolute path to the changed file.
	Path string

	// Op is the operation that triggered the event.
	Op Operation

	// Time is when the event occurred.
	Time time.Time
}

// Operation represents the type of file operation.
type Operation int

const (
	// OpWrite indicates the file was modified.
	OpWrite Operation = iota

	// OpCreate indicates a new file was created.
	OpCreate

	// OpRemove indicates the file was deleted.
	OpRemove

	// OpRename indicates the file was renamed.
	OpRename
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Handler is called when a file change is detected.
type Handler func(event Event)

// Watcher monitors files for changes.
type Watcher struct {
	mu sync.RWMutex

	fsw *fsnotify.Watcher

	// Watched files and the reference count of their directories
	files map[string]bool
	dirs  map[string]int

	handlers []Handler

	debounce time.Duration
	logger   *slog.Logger

	running bool
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce duration for rapid changes.
// Zero delivers every event immediately.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger for watch errors.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a new file watcher.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		files:    make(map[string]bool),
		dirs:     make(map[string]int),
		debounce: 100 * time.Millisecond,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Watch adds a file to the watch list. The file does not need to exist
// yet, but its directory does.
func (w *Watcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.files[absPath] {
		return nil
	}

	dir := filepath.Dir(absPath)
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir]++
	w.files[absPath] = true
	return nil
}

// Unwatch removes a file from the watch list.
func (w *Watcher) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.files[absPath] {
		return nil
	}

	delete(w.files, absPath)
	dir := filepath.Dir(absPath)
	w.dirs[dir]--
	if w.dirs[dir] == 0 {
		delete(w.dirs, dir)
		return w.fsw.Remove(dir)
	}
	return nil
}

// OnChange registers a handler for file change events.
func (w *Watcher) OnChange(handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins delivering events.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running || w.closed {
		w.mu.Unlock()
		return
	}
	w.done = make(chan struct{})
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(w.done)
}

// Stop stops delivering events. Pending debounced events are dropped.
// The watcher can be started again.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.done)
	w.running = false
	w.mu.Unlock()

	w.wg.Wait()
}

// Close stops the watcher and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	w.Stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}

// IsRunning returns whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// WatchedFiles returns the watched files, sorted.
func (w *Watcher) WatchedFiles() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	files := make([]string, 0, len(w.files))
	for path := range w.files {
		files = append(files, path)
	}
	slices.Sort(files)
	return files
}

// loop translates fsnotify events until done is closed.
func (w *Watcher) loop(done <-chan struct{}) {
	defer w.wg.Done()

	pending := make(map[string]Event)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			event, ok := w.translate(ev)
			if !ok {
				continue
			}
			if w.debounce == 0 {
				w.emitEvent(event)
				continue
			}
			coalesce(pending, event)
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for path := range pending {
				paths = append(paths, path)
			}
			slices.Sort(paths)
			for _, path := range paths {
				event := pending[path]
				delete(pending, path)
				w.emitEvent(event)
			}
		}
	}
}

// translate maps an fsnotify event on a watched file to an Event.
func (w *Watcher) translate(ev fsnotify.Event) (Event, bool) {
	path, err := filepath.Abs(ev.Name)
	if err != nil {
		return Event{}, false
	}

	w.mu.RLock()
	watched := w.files[path]
	w.mu.RUnlock()
	if !watched {
		return Event{}, false
	}

	event := Event{Path: path, Time: time.Now()}
	switch {
	case ev.Has(fsnotify.Remove):
		event.Op = OpRemove
	case ev.Has(fsnotify.Rename):
		event.Op = OpRename
	case ev.Has(fsnotify.Create):
		event.Op = OpCreate
	case ev.Has(fsnotify.Write):
		event.Op = OpWrite
	default:
		return Event{}, false
	}
	return event, true
}

// coalesce folds event into the pending set:
// - create + write => create
// - write + write => write (latest time)
// - any + remove => remove
func coalesce(pending map[string]Event, event Event) {
	existing, ok := pending[event.Path]
	if !ok {
		pending[event.Path] = event
		return
	}

	switch event.Op {
	case OpWrite:
		if existing.Op != OpWrite {
			event.Op = existing.Op
		}
	case OpCreate:
		// A file replaced by rename shows up as remove then create.
		if existing.Op == OpRemove || existing.Op == OpRename {
			event.Op = OpWrite
		}
	}
	pending[event.Path] = event
}

// emitEvent calls all handlers with the event.
func (w *Watcher) emitEvent(event Event) {
	w.mu.RLock()
	handlers := slices.Clone(w.handlers)
	w.mu.RUnlock()

	for _, handler := range handlers {
		w.safeCallHandler(handler, event)
	}
}

// safeCallHandler calls a handler, logging a panic instead of crashing the loop.
func (w *Watcher) safeCallHandler(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("config watcher handler panicked", "path", event.Path, "panic", r)
		}
	}()
	handler(event)
}
