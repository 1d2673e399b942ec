package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Notifier reports files created directly inside a directory.
//
// Watch subscribes before returning, so a file created after Watch returns
// is always reported. The channel carries absolute paths and is closed once
// ctx is done.
type Notifier interface {
	Watch(ctx context.Context, dir string) (<-chan string, error)
}

// FSNotifier is a Notifier backed by kernel filesystem events.
type FSNotifier struct {
	Logger *zap.Logger
}

// Watch implements Notifier.
func (n *FSNotifier) Watch(ctx context.Context, dir string) (<-chan string, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				// A rename into the directory arrives as Create too.
				if !event.Has(fsnotify.Create) {
					continue
				}
				select {
				case out <- event.Name:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("fs watcher error", zap.String("dir", dir), zap.Error(err))
			}
		}
	}()
	return out, nil
}

// DefaultPollInterval is used when PollNotifier.Interval is not positive.
const DefaultPollInterval = time.Second

// PollNotifier is a Notifier that lists the directory on a fixed interval.
// It suits filesystems that do not deliver change events, such as network
// mounts. Files present when Watch is called are not reported. A name is
// reported again when it disappears and comes back, or when the file behind it
// is replaced between two polls, as judged by os.SameFile, size, and mtime.
type PollNotifier struct {
	Interval time.Duration
	Logger   *zap.Logger
}

// Watch implements Notifier.
func (n *PollNotifier) Watch(ctx context.Context, dir string) (<-chan string, error) {
	seen, err := listFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	interval := n.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make(chan string)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			current, err := listFiles(dir)
			if err != nil {
				logger.Warn("poll inbox failed", zap.String("dir", dir), zap.Error(err))
				continue
			}
			for name, fi := range current {
				if prev, ok := seen[name]; ok && sameFile(prev, fi) {
					continue
				}
				select {
				case out <- filepath.Join(dir, name):
				case <-ctx.Done():
					return
				}
			}
			seen = current
		}
	}()
	return out, nil
}

func listFiles(dir string) (map[string]os.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make(map[string]os.FileInfo, len(entries))
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files[e.Name()] = fi
	}
	return files, nil
}

// sameFile reports whether b is the file a was. Inode numbers are reused
// quickly, so size and mtime are compared too.
func sameFile(a, b os.FileInfo) bool {
	return os.SameFile(a, b) && a.Size() == b.Size() && a.ModTime().Equal(b.ModTime())
}
