// Package fswatch recursively watches a directory tree for changes.
// fsnotify only watches the directories it is explicitly told about,
// so the watcher walks the tree once at startup and adds a watch for
// every new directory it sees created afterward.
package fswatch

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Kind classifies a filesystem event the rest of the engine cares
// about.
type Kind int

const (
	// Create is a new file or directory appearing.
	Create Kind = iota
	// Remove is a file or directory disappearing.
	Remove
	// Modify is a write, permission change, or an ambiguous
	// within-tree rename.
	Modify
	// Error carries a watcher-internal error; Path is empty.
	Error
)

// Event is one filesystem change, or a watcher error.
type Event struct {
	Kind Kind
	Path string
	Err  error
}

// Watcher recursively watches a directory tree, running its dispatch
// loop on a dedicated OS thread (fsnotify's underlying inotify/kqueue
// handle is best kept off the Go scheduler's general pool).
type Watcher struct {
	root string
	fsw  *fsnotify.Watcher

	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	watched map[string]bool
}

// Start walks root adding a watch for every directory in the tree,
// then begins dispatching events on a dedicated goroutine. The
// returned Watcher must be closed with Close.
func Start(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fswatch: create watcher: %w", err)
	}

	w := &Watcher{
		root:    root,
		fsw:     fsw,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		watched: make(map[string]bool),
	}

	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("fswatch: initial walk: %w", err)
	}

	go w.loop()
	return w, nil
}

// Events returns the channel of filesystem changes.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops the watcher and waits for its dispatch loop to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.addDir(path)
		}
		return nil
	})
}

func (w *Watcher) addDir(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[path] {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		return err
	}
	w.watched[path] = true
	return nil
}

func (w *Watcher) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)
	defer close(w.events)

	for {
		select {
		case raw, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleRaw(raw)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.events <- Event{Kind: Error, Err: err}
		}
	}
}

// handleRaw maps one fsnotify.Event to a Kind, adding a watch for any
// newly created directory so the tree stays fully covered.
func (w *Watcher) handleRaw(raw fsnotify.Event) {
	switch {
	case raw.Has(fsnotify.Create):
		info, err := os.Stat(raw.Name)
		if err == nil && info.IsDir() {
			if addErr := w.addTree(raw.Name); addErr != nil {
				w.events <- Event{Kind: Error, Err: addErr}
			}
		}
		w.events <- Event{Kind: Create, Path: raw.Name}

	case raw.Has(fsnotify.Remove):
		w.events <- Event{Kind: Remove, Path: raw.Name}

	case raw.Has(fsnotify.Rename):
		// Rename is ambiguous across platforms: some deliver a paired
		// Create for the new name, some don't. Stat the old path to
		// decide whether this was effectively a removal or a
		// within-tree move, favoring Modify for the latter (accepted
		// under-announce tradeoff: the dispatcher does not announce
		// Modify, so a file renamed within the tree is not re-gossiped
		// from this event).
		if _, err := os.Stat(raw.Name); err != nil {
			w.events <- Event{Kind: Remove, Path: raw.Name}
		} else {
			w.events <- Event{Kind: Modify, Path: raw.Name}
		}

	case raw.Has(fsnotify.Write), raw.Has(fsnotify.Chmod):
		w.events <- Event{Kind: Modify, Path: raw.Name}
	}
}
