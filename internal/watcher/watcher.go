// Package watcher turns file system activity under the workspace roots into
// debounced refresh requests.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event represents a file system event
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// Handler receives each debounced batch.
type Handler func(events []Event)

// DefaultDebounce is used when Options.Debounce is not positive.
const DefaultDebounce = 500 * time.Millisecond

// Options tunes a Watcher.
type Options struct {
	Debounce time.Duration
	// Ignore holds glob patterns matched against every path segment.
	Ignore []string
}

// gitTriggers are the files inside .git whose changes mean staging or a commit.
var gitTriggers = map[string]bool{"index": true, "HEAD": true}

// Watcher watches workspace roots with fsnotify.
type Watcher struct {
	fs      *fsnotify.Watcher
	roots   []string
	ignore  []string
	batch   *BatchDebouncer
	logger  *zap.Logger
	watched atomic.Int64
}

// New creates a watcher over roots. Run must be called to start delivering
// batches to handler.
func New(roots []string, opts Options, logger *zap.Logger, handler Handler) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	delay := opts.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		fs:     fw,
		ignore: opts.Ignore,
		logger: logger,
	}
	w.batch = NewBatchDebouncer(delay, func(events []Event) {
		logger.Debug("file changes detected", zap.Int("events", len(events)))
		if handler != nil {
			handler(events)
		}
	})
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
		}
		if err := w.addTree(abs); err != nil {
			_ = fw.Close()
			return nil, err
		}
		w.roots = append(w.roots, abs)
	}
	return w, nil
}

// Roots returns the absolute roots being watched.
func (w *Watcher) Roots() []string {
	return append([]string(nil), w.roots...)
}

// WatchedDirs returns the number of directories registered with fsnotify.
func (w *Watcher) WatchedDirs() int {
	return int(w.watched.Load())
}

// Run delivers events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		w.batch.Cancel()
		_ = w.fs.Close()
	}()
	w.logger.Info("watching workspace", zap.Strings("roots", w.roots), zap.Int64("dirs", w.watched.Load()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	if !w.Relevant(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", ev.Name), zap.Error(err))
			}
		}
	}
	w.batch.Add(Event{Type: eventType(ev.Op), Path: ev.Name, Timestamp: time.Now()})
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventCreate
	case op.Has(fsnotify.Remove):
		return EventDelete
	case op.Has(fsnotify.Rename):
		return EventRename
	default:
		return EventModify
	}
}

// Relevant reports whether a change at path should trigger a refresh.
// Inside a .git directory only the index and HEAD count.
func (w *Watcher) Relevant(path string) bool {
	segments := strings.Split(filepath.ToSlash(path), "/")
	for i, seg := range segments {
		if seg == ".git" {
			rest := segments[i+1:]
			return len(rest) == 1 && gitTriggers[rest[0]]
		}
	}
	return !w.IsIgnored(path)
}

// IsIgnored checks if any segment of path matches an ignore pattern.
func (w *Watcher) IsIgnored(path string) bool {
	segments := strings.Split(filepath.ToSlash(path), "/")
	for _, pattern := range w.ignore {
		for _, seg := range segments {
			if seg == "" {
				continue
			}
			if matched, _ := filepath.Match(pattern, seg); matched {
				return true
			}
		}
	}
	return false
}

// addTree registers dir and its subdirectories. A .git directory is watched
// itself but never descended into.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != dir && errors.Is(err, fs.ErrPermission) {
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			if err := w.add(path); err != nil {
				return err
			}
			return fs.SkipDir
		}
		if path != dir && w.IsIgnored(d.Name()) {
			return fs.SkipDir
		}
		return w.add(path)
	})
}

func (w *Watcher) add(path string) error {
	if err := w.fs.Add(path); err != nil {
		return fmt.Errorf("failed to watch %q: %w", path, err)
	}
	w.watched.Add(1)
	return nil
}
