// Package watcher streams debounced file-change events for a project
// tree using fsnotify. Rapid event bursts (editor save dances, branch
// switches) are coalesced per path before they reach the consumer, so
// one logical change produces one index operation.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	semerrors "github.com/Aman-CERP/semdex/internal/errors"
)

// Op is the kind of change after coalescing.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is one coalesced file change. Path is relative to the watch
// root, slash-separated.
type Event struct {
	Path      string
	Op        Op
	IsDir     bool
	Timestamp time.Time
}

// Filter decides which paths are worth watching. scanner.Scanner
// satisfies it, so the watcher skips exactly what a scan would skip.
type Filter interface {
	Includes(relPath string, isDir bool) bool
}

// Options configures the watcher.
type Options struct {
	// Debounce is the quiet window before pending events flush.
	// Default 500ms.
	Debounce time.Duration

	// BufferSize is the batch channel depth. Default 256.
	BufferSize int
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 500 * time.Millisecond
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 256
	}
	return o
}

// Watcher watches a directory tree recursively and emits batches of
// debounced events. Construct with New, run with Start.
type Watcher struct {
	root      string
	opts      Options
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	events    chan []Event
	errs      chan error
	stopCh    chan struct{}

	mu      sync.RWMutex
	filter  Filter
	stopped bool

	dropped atomic.Uint64
}

// New creates a watcher for root. filter may be nil to watch
// everything except the storage and VCS internals the filter would
// normally remove.
func New(root string, opts Options, filter Filter) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, semerrors.New(semerrors.ErrCodeInvalidPath, "resolve watch root: "+root, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, semerrors.New(semerrors.ErrCodeInvalidPath, "watch root is not a directory: "+abs, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	opts = opts.withDefaults()
	return &Watcher{
		root:      abs,
		opts:      opts,
		fs:        fsw,
		debouncer: NewDebouncer(opts.Debounce),
		events:    make(chan []Event, opts.BufferSize),
		errs:      make(chan error, 10),
		stopCh:    make(chan struct{}),
		filter:    filter,
	}, nil
}

// Root returns the absolute watch root.
func (w *Watcher) Root() string {
	return w.root
}

// SetFilter swaps the path filter. The watch command calls this after
// a .gitignore or config change rebuilds the scanner.
func (w *Watcher) SetFilter(f Filter) {
	w.mu.Lock()
	w.filter = f
	w.mu.Unlock()
}

// Start runs the watch loop until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watchRecursive(w.root); err != nil {
		return fmt.Errorf("watch directory tree: %w", err)
	}

	go w.forward(ctx)

	slog.Info("watcher_started", "root", w.root, "debounce", w.opts.Debounce)
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
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
			w.emitError(err)
		}
	}
}

// Events returns the stream of debounced event batches. Closed on Stop.
func (w *Watcher) Events() <-chan []Event {
	return w.events
}

// Errors returns non-fatal watcher errors. Closed on Stop.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// DroppedBatches reports batches dropped because the consumer fell
// behind.
func (w *Watcher) DroppedBatches() uint64 {
	return w.dropped.Load()
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	err := w.fs.Close()
	close(w.events)
	close(w.errs)
	return err
}

// handle converts one fsnotify event and feeds the debouncer.
func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." {
		return
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}

	var op Op
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename delivers Create for the new name separately.
		op = OpDelete
	default:
		return // chmod and friends
	}

	if !w.includes(rel, isDir) {
		return
	}

	if isDir {
		if op == OpCreate {
			// New subtree: watch it and surface files that landed
			// before the watch was in place (git checkout, untar).
			if err := w.watchRecursive(ev.Name); err != nil {
				w.emitError(err)
			}
			w.emitExistingFiles(ev.Name)
		}
		return // directories themselves are not indexable
	}

	w.debouncer.Add(Event{Path: rel, Op: op, Timestamp: time.Now()})
}

// forward moves debounced batches to the output channel.
func (w *Watcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emitBatch(batch)
		}
	}
}

func (w *Watcher) emitBatch(batch []Event) {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped || len(batch) == 0 {
		return
	}

	select {
	case w.events <- batch:
	default:
		total := w.dropped.Add(1)
		slog.Warn("watch_batch_dropped", "batch_size", len(batch), "total_dropped", total)
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case w.errs <- err:
	default:
	}
}

func (w *Watcher) includes(rel string, isDir bool) bool {
	w.mu.RLock()
	f := w.filter
	w.mu.RUnlock()
	if f == nil {
		return true
	}
	return f.Includes(rel, isDir)
}

// watchRecursive registers dir and every non-filtered subdirectory.
func (w *Watcher) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(w.root, path)
		if rerr != nil {
			return nil
		}
		if rel != "." && !w.includes(filepath.ToSlash(rel), true) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// emitExistingFiles queues create events for files already present
// under dir.
func (w *Watcher) emitExistingFiles(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, rerr := filepath.Rel(w.root, path)
		if rerr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !w.includes(rel, false) {
			return nil
		}
		w.debouncer.Add(Event{Path: rel, Op: OpCreate, Timestamp: time.Now()})
		return nil
	})
}
