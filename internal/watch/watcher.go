// Package watch turns file creations in the inbox into queued work items.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/scribo/internal/proposal"
	"github.com/mesh-intelligence/scribo/internal/queue"
)

// Options configure a Watcher.
type Options struct {
	// Dir is the inbox. It is watched non-recursively.
	Dir string
	// Suffix selects proposal files, e.g. ".patch".
	Suffix string
	// ScanExisting enqueues proposals already in the inbox at start.
	ScanExisting bool
}

// Watcher filters notifications and pushes proposal paths onto a queue.
// It never does blocking work of its own.
type Watcher struct {
	notifier Notifier
	queue    *queue.Queue
	logger   *zap.Logger
	opts     Options
}

// New returns a Watcher. A nil logger discards output.
func New(n Notifier, q *queue.Queue, logger *zap.Logger, opts Options) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Suffix == "" {
		opts.Suffix = proposal.DefaultSuffix
	}
	return &Watcher{notifier: n, queue: q, logger: logger, opts: opts}
}

// Run watches the inbox until ctx is done. It creates the inbox if needed.
func (w *Watcher) Run(ctx context.Context) error {
	dir, err := filepath.Abs(w.opts.Dir)
	if err != nil {
		return fmt.Errorf("resolve inbox: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}

	events, err := w.notifier.Watch(ctx, dir)
	if err != nil {
		return err
	}
	w.logger.Info("watching inbox", zap.String("dir", dir), zap.String("suffix", w.opts.Suffix))

	// Subscribed first, then scanned: a file created in between may be
	// queued twice, and the second delivery finds it already consumed.
	if w.opts.ScanExisting {
		if err := w.scan(dir); err != nil {
			w.logger.Warn("scan inbox failed", zap.String("dir", dir), zap.Error(err))
		}
	}

	for path := range events {
		w.offer(path)
	}
	w.logger.Info("watcher stopped", zap.String("dir", dir))
	return nil
}

// scan offers existing proposals in name order, which is arrival order for
// timestamp-prefixed names.
func (w *Watcher) scan(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		w.offer(filepath.Join(dir, name))
	}
	return nil
}

func (w *Watcher) offer(path string) {
	if !proposal.IsProposal(path, w.opts.Suffix) {
		return
	}
	if info, err := os.Lstat(path); err == nil && !info.Mode().IsRegular() {
		return
	}
	if err := w.queue.Push(path); err != nil {
		w.logger.Debug("dropping proposal", zap.String("proposal", path), zap.Error(err))
		return
	}
	w.logger.Info("proposal queued", zap.String("proposal", filepath.Base(path)))
}
