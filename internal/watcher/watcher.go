// Package watcher maps file system changes under the source tree onto the
// pipeline task that owns them.
//
// Each Binding pairs a set of globs with one handler. Events are matched
// against every binding and collected per binding; a binding's handler runs
// once the binding has been quiet for the debounce delay.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/sitepipe/internal/fileset"
	"github.com/conneroisu/sitepipe/internal/logging"
)

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type EventType
	Path string
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter reports whether a path should be considered at all.
type FileFilter func(path string) bool

// Handler reacts to the changes collected for one binding.
type Handler func(ctx context.Context, events []ChangeEvent)

// Binding ties source globs to the handler that rebuilds them.
type Binding struct {
	Name     string
	Patterns []string
	Handler  Handler
}

type binding struct {
	Binding
	debounced func(f func())

	mu      sync.Mutex
	pending map[string]ChangeEvent
}

// FileWatcher watches the directories behind its bindings' globs.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	delay    time.Duration
	logger   logging.Logger
	filters  []FileFilter
	bindings []*binding
	watched  map[string]bool
	// roots are watched recursively; missing bases wait for their directory
	// to appear while the nearest existing ancestor is watched.
	roots    []string
	missing  map[string]bool
	mutex    sync.RWMutex
	ctx      context.Context
}

// NewFileWatcher creates a watcher debouncing each binding by delay.
func NewFileWatcher(delay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &FileWatcher{
		watcher: w,
		delay:   delay,
		logger:  logger.WithComponent("watcher"),
		filters: []FileFilter{NoGitFilter, NoEditorTempFilter},
		watched: make(map[string]bool),
		missing: make(map[string]bool),
		ctx:     context.Background(),
	}, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// Bind registers a binding and starts watching the static base directory of
// each of its globs. A base that does not exist yet is picked up once it is
// created.
func (fw *FileWatcher) Bind(b Binding) error {
	for _, p := range b.Patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return errors.New("invalid watch pattern " + p)
		}
	}

	fw.mutex.Lock()
	fw.bindings = append(fw.bindings, &binding{
		Binding:   b,
		debounced: debounce.New(fw.delay),
		pending:   make(map[string]ChangeEvent),
	})
	fw.mutex.Unlock()

	for _, p := range b.Patterns {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(p))
		if err := fw.watchBase(filepath.Clean(filepath.FromSlash(base))); err != nil {
			return err
		}
	}
	return nil
}

func (fw *FileWatcher) watchBase(base string) error {
	err := fw.AddRecursive(base)
	if err == nil {
		fw.mutex.Lock()
		fw.roots = append(fw.roots, base)
		delete(fw.missing, base)
		fw.mutex.Unlock()
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	fw.mutex.Lock()
	fw.missing[base] = true
	fw.mutex.Unlock()

	ancestor := existingAncestor(base)
	fw.logger.Debug(fw.context(), "watch base missing", "dir", base, "watching", ancestor)
	return fw.addDir(ancestor)
}

// existingAncestor returns the closest parent of dir that exists.
func existingAncestor(dir string) string {
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		if info, err := os.Stat(parent); err == nil && info.IsDir() {
			return parent
		}
		dir = parent
	}
}

func (fw *FileWatcher) underRoot(dir string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	for _, root := range fw.roots {
		rel, err := filepath.Rel(root, dir)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// retryMissing watches every missing base that now exists, reporting the
// files already in it as created, and moves the rest closer to their base.
func (fw *FileWatcher) retryMissing() {
	fw.mutex.RLock()
	bases := make([]string, 0, len(fw.missing))
	for base := range fw.missing {
		bases = append(bases, base)
	}
	fw.mutex.RUnlock()
	sort.Strings(bases)

	for _, base := range bases {
		if info, err := os.Stat(base); err != nil || !info.IsDir() {
			if err := fw.watchBase(base); err != nil {
				fw.logger.Warn(fw.context(), err, "watching missing directory", "dir", base)
			}
			continue
		}
		if err := fw.watchBase(base); err != nil {
			fw.logger.Warn(fw.context(), err, "watching new directory", "dir", base)
			continue
		}
		fw.dispatchExisting(base)
	}
}

// Bindings returns the registered binding names in registration order.
func (fw *FileWatcher) Bindings() []string {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	names := make([]string, len(fw.bindings))
	for i, b := range fw.bindings {
		names[i] = b.Name
	}
	return names
}

// AddRecursive adds a directory and all subdirectories to watch
func (fw *FileWatcher) AddRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" || d.Name() == "node_modules" {
			return filepath.SkipDir
		}
		return fw.addDir(path)
	})
}

func (fw *FileWatcher) addDir(dir string) error {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	if fw.watched[dir] {
		return nil
	}
	if err := fw.watcher.Add(dir); err != nil {
		return err
	}
	fw.watched[dir] = true
	return nil
}

// Start starts the file watcher
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mutex.Lock()
	fw.ctx = ctx
	fw.mutex.Unlock()

	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "file watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	// attribute changes never alter content
	if event.Op == fsnotify.Chmod {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if fw.underRoot(event.Name) {
				fw.watchNewDir(event.Name)
			}
			fw.retryMissing()
			return
		}
	}

	fw.dispatch(ChangeEvent{Type: eventType(event.Op), Path: event.Name})
}

// watchNewDir starts watching a directory created while running. Files that
// landed in it before the watch was added are reported as created.
func (fw *FileWatcher) watchNewDir(dir string) {
	if err := fw.AddRecursive(dir); err != nil {
		fw.logger.Warn(fw.context(), err, "watching new directory", "dir", dir)
		return
	}
	fw.dispatchExisting(dir)
}

func (fw *FileWatcher) dispatchExisting(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			fw.dispatch(ChangeEvent{Type: EventTypeCreated, Path: path})
		}
		return nil
	})
}

func (fw *FileWatcher) dispatch(change ChangeEvent) {
	fw.mutex.RLock()
	filters := fw.filters
	bindings := fw.bindings
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(change.Path) {
			return
		}
	}

	for _, b := range bindings {
		if fileset.Match(change.Path, b.Patterns...) {
			fw.schedule(b, change)
		}
	}
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventTypeCreated
	case op.Has(fsnotify.Write):
		return EventTypeModified
	case op.Has(fsnotify.Remove):
		return EventTypeDeleted
	case op.Has(fsnotify.Rename):
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}

func (fw *FileWatcher) schedule(b *binding, change ChangeEvent) {
	b.mu.Lock()
	b.pending[change.Path] = change
	b.mu.Unlock()

	b.debounced(func() { fw.flush(b) })
}

func (fw *FileWatcher) flush(b *binding) {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	events := make([]ChangeEvent, 0, len(b.pending))
	for _, e := range b.pending {
		events = append(events, e)
	}
	b.pending = make(map[string]ChangeEvent)
	b.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	ctx := fw.context()
	if ctx.Err() != nil {
		return
	}
	fw.logger.Debug(ctx, "changes detected", "binding", b.Name, "files", len(events))
	b.Handler(ctx, events)
}

func (fw *FileWatcher) context() context.Context {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	return fw.ctx
}

// NoGitFilter skips anything inside a .git directory.
func NoGitFilter(path string) bool {
	p := filepath.ToSlash(path)
	return !strings.HasPrefix(p, ".git/") && !strings.Contains(p, "/.git/")
}

// NoEditorTempFilter skips swap and backup files written by editors.
func NoEditorTempFilter(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, ".#"),
		base == "4913":
		return false
	}
	return true
}
