package document

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeOp is the kind of filesystem change seen on the document.
type ChangeOp int

const (
	// OpWrite covers creates and in-place writes.
	OpWrite ChangeOp = iota
	// OpRemove covers removes and renames away from the document name.
	OpRemove
)

// String returns a human-readable representation of the operation.
func (op ChangeOp) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// ChangeEvent reports a filesystem change to the watched document.
type ChangeEvent struct {
	Path string
	Op   ChangeOp
}

// Watcher watches a single document for changes.
//
// The parent directory is watched rather than the file, because atomic
// writes replace the file and a watch on the old inode would go silent.
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan ChangeEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	closed  bool
	path    string
}

// NewWatcher creates a watcher for the document at path.
// The watcher must be started with Start() before it will emit events.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher: fw,
		events:  make(chan ChangeEvent, 16),
		errors:  make(chan error, 4),
		done:    make(chan struct{}),
		path:    abs,
	}, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if w.closed {
		return fmt.Errorf("watcher already stopped")
	}

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop stops watching and releases resources. It blocks until the event
// goroutine has exited. Safe to call on a watcher that never started.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of document changes.
// This channel is closed when the watcher is stopped.
func (w *Watcher) Events() <-chan ChangeEvent {
	return w.events
}

// Errors returns the channel of watch errors.
// This channel is closed when the watcher is stopped.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if change, ok := w.convertEvent(event); ok {
				select {
				case w.events <- change:
				case <-w.done:
					return
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// convertEvent keeps only events on the document itself.
func (w *Watcher) convertEvent(event fsnotify.Event) (ChangeEvent, bool) {
	abs, err := filepath.Abs(event.Name)
	if err != nil || abs != w.path {
		return ChangeEvent{}, false
	}

	var op ChangeOp
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		op = OpWrite
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = OpRemove
	default:
		// chmod
		return ChangeEvent{}, false
	}

	return ChangeEvent{Path: abs, Op: op}, true
}
