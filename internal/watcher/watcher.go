// Package watcher ingests files dropped into a directory.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/ignore"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"go.uber.org/zap"
)

// DefaultSettle is how long a file must go unmodified before it is submitted.
const DefaultSettle = 500 * time.Millisecond

// ErrWatcherFailed indicates the filesystem watcher could not be set up.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Submitter accepts uploads for ingestion.
type Submitter interface {
	Submit(ctx context.Context, u ingest.Upload) (ingest.Handle, error)
}

// Watcher submits supported files created or written in a directory once
// they stop changing. Files are left in place after ingestion.
type Watcher struct {
	dir       string
	settle    time.Duration
	submitter Submitter
	logger    *zap.Logger
	ignore    *ignore.Matcher
	fs        *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	stop    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) { w.settle = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithIgnore skips files the matcher ignores.
func WithIgnore(m *ignore.Matcher) Option {
	return func(w *Watcher) { w.ignore = m }
}

// New creates a Watcher for dir, creating the directory if needed.
func New(dir string, submitter Submitter, opts ...Option) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: directory is required", ErrWatcherFailed)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	w := &Watcher{
		dir:       dir,
		settle:    DefaultSettle,
		submitter: submitter,
		logger:    zap.NewNop(),
		fs:        fs,
		pending:   make(map[string]*time.Timer),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. Events are handled until Stop or ctx ends.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fs.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Info("watching drop folder", zap.String("dir", w.dir))
	return nil
}

// Stop ends watching and cancels pending submissions.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
	}
	_ = w.fs.Close()
	w.wg.Wait()

	w.mu.Lock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("drop folder watch error", zap.Error(err))
		}
	}
}

// Eligible reports whether path names a file the watcher would ingest.
func Eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	_, err := document.Detect(base)
	return err == nil
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !Eligible(path) || w.ignore.Match(path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() { w.submit(ctx, path) })
}

func (w *Watcher) submit(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	select {
	case <-w.stop:
		return
	default:
	}
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return
	}

	h, err := w.submitter.Submit(ctx, ingest.Upload{Path: path})
	if err != nil {
		w.logger.Warn("failed to submit dropped file", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Info("submitted dropped file",
		zap.String("path", path),
		zap.String("document.id", h.DocumentID))
}
