package consent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventKind classifies a consent directory change.
type EventKind int

const (
	// FileAdded means a .jpg appeared or was rewritten.
	FileAdded EventKind = iota
	// FileDeleted means a .jpg was removed or renamed away.
	FileDeleted
)

func (k EventKind) String() string {
	switch k {
	case FileAdded:
		return "added"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is one observed change to the consent directory.
type Event struct {
	Kind EventKind
	Path string
}

// Watcher observes the consent directory and emits typed events on a
// channel. It layers a periodic rescan over fsnotify: inotify alone misses
// changes on some network filesystems and after editor rename dances, so
// the rescan reconciles the directory listing against what was last seen.
// Consumers may therefore receive an occasional duplicate Added event for
// an unchanged file; the manager's upsert semantics absorb those.
type Watcher struct {
	dir          string
	pollInterval time.Duration
	logger       *slog.Logger

	events chan Event
	known  map[string]time.Time
}

// NewWatcher creates a watcher for dir. Events are delivered on Events()
// once Run is started.
func NewWatcher(dir string, pollInterval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:          dir,
		pollInterval: pollInterval,
		logger:       logger.With(slog.String("component", "consent-watcher")),
		events:       make(chan Event, 64),
		known:        make(map[string]time.Time),
	}
}

// Events returns the event channel. It is closed when Run exits.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run watches until the context is cancelled. The initial directory state
// is taken as already-known; startup loading is the manager's job.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	// Seed the known set so the first rescan does not replay every file
	// the manager already loaded.
	w.seed()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleFsEvent(ctx, ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("filesystem watch error", slog.String("error", err.Error()))

		case <-ticker.C:
			w.rescan(ctx)
		}
	}
}

func (w *Watcher) seed() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !isJPEG(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		w.known[filepath.Join(w.dir, e.Name())] = info.ModTime()
	}
}

func (w *Watcher) handleFsEvent(ctx context.Context, ev fsnotify.Event) {
	if !isJPEG(ev.Name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		// Writers may deliver several Write events while streaming the
		// JPEG out; the mod-time check collapses them and the final
		// rescan tick catches a file still growing here.
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if prev, ok := w.known[ev.Name]; ok && prev.Equal(info.ModTime()) {
			return
		}
		w.known[ev.Name] = info.ModTime()
		w.emit(ctx, Event{Kind: FileAdded, Path: ev.Name})

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if _, ok := w.known[ev.Name]; !ok {
			return
		}
		delete(w.known, ev.Name)
		w.emit(ctx, Event{Kind: FileDeleted, Path: ev.Name})
	}
}

// rescan reconciles the directory listing against the known set.
func (w *Watcher) rescan(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("consent directory unreadable", slog.String("error", err.Error()))
		return
	}

	present := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isJPEG(e.Name()) {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		present[path] = struct{}{}

		info, err := e.Info()
		if err != nil {
			continue
		}
		if prev, ok := w.known[path]; !ok || !prev.Equal(info.ModTime()) {
			w.known[path] = info.ModTime()
			w.emit(ctx, Event{Kind: FileAdded, Path: path})
		}
	}

	for path := range w.known {
		if _, ok := present[path]; !ok {
			delete(w.known, path)
			w.emit(ctx, Event{Kind: FileDeleted, Path: path})
		}
	}
}

func (w *Watcher) emit(ctx context.Context, ev Event) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

func isJPEG(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".jpg")
}
