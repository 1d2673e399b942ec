// Package daemon assembles the intake pipeline from a Config and runs it
// until shutdown.
package daemon

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/scribo/internal/backup"
	"github.com/mesh-intelligence/scribo/internal/journal"
	"github.com/mesh-intelligence/scribo/internal/quarantine"
	"github.com/mesh-intelligence/scribo/internal/queue"
	"github.com/mesh-intelligence/scribo/internal/validate"
	"github.com/mesh-intelligence/scribo/internal/watch"
	"github.com/mesh-intelligence/scribo/internal/worker"
	"github.com/mesh-intelligence/scribo/pkg/types"
)

// Daemon owns the watcher, the queue, and the worker.
type Daemon struct {
	cfg     types.Config
	logger  *zap.Logger
	queue   *queue.Queue
	watcher *watch.Watcher
	worker  *worker.Worker
	journal *journal.Journal
}

// Option replaces a default collaborator. Tests use these to inject fakes.
type Option func(*options)

type options struct {
	notifier  watch.Notifier
	tests     types.TestRunner
	formatter types.Formatter
}

// WithNotifier overrides the notifier selected by cfg.Watch.Mode.
func WithNotifier(n watch.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithTestRunner overrides the exec test runner.
func WithTestRunner(r types.TestRunner) Option {
	return func(o *options) { o.tests = r }
}

// WithFormatter overrides the exec formatter.
func WithFormatter(f types.Formatter) Option {
	return func(o *options) { o.formatter = f }
}

// New builds a Daemon. It creates the inbox and quarantine directories and
// attaches the journal when enabled; call Close to release it.
func New(cfg types.Config, logger *zap.Logger, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(cfg.InboxDir, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}
	store := quarantine.New(cfg.QuarantinePath())
	if err := os.MkdirAll(store.Dir(), 0o755); err != nil {
		return nil, fmt.Errorf("create quarantine: %w", err)
	}

	if o.notifier == nil {
		o.notifier = newNotifier(cfg, logger)
	}
	if o.tests == nil {
		o.tests = &validate.ExecRunner{
			Command:          cfg.Test.Command,
			NoTestsExitCodes: cfg.Test.NoTestsExitCodes,
			Timeout:          cfg.Test.Timeout,
			Logger:           logger.Named("tests"),
		}
	}
	if o.formatter == nil && len(cfg.Format.Commands) > 0 {
		o.formatter = &validate.ExecFormatter{
			Commands: cfg.Format.Commands,
			Timeout:  cfg.Format.Timeout,
			Logger:   logger.Named("format"),
		}
	}

	d := &Daemon{cfg: cfg, logger: logger, queue: queue.New()}

	var recorder types.Recorder
	if cfg.Journal.Enabled {
		j := journal.New()
		if err := j.Attach(cfg.DataDir); err != nil {
			return nil, fmt.Errorf("attach journal: %w", err)
		}
		d.journal = j
		recorder = j
	}

	d.watcher = watch.New(o.notifier, d.queue, logger.Named("watch"), watch.Options{
		Dir:          cfg.InboxDir,
		Suffix:       cfg.ProposalSuffix,
		ScanExisting: cfg.Watch.ScanExisting,
	})
	d.worker = worker.New(worker.Config{
		Backups:     backup.NewManager(cfg.BackupSuffix),
		Quarantine:  store,
		Tests:       o.tests,
		Formatter:   o.formatter,
		Recorder:    recorder,
		RootMarkers: cfg.RootMarkers,
		SettleDelay: cfg.Worker.SettleDelay,
		Logger:      logger.Named("worker"),
	})
	return d, nil
}

func newNotifier(cfg types.Config, logger *zap.Logger) watch.Notifier {
	if cfg.Watch.Mode == types.WatchModePoll {
		return &watch.PollNotifier{Interval: cfg.Watch.PollInterval, Logger: logger.Named("watch")}
	}
	return &watch.FSNotifier{Logger: logger.Named("watch")}
}

// Run processes proposals until ctx is done. Shutdown stops the watcher,
// closes the queue, and lets the worker drain what was already queued and
// finish the item in flight. Run returns once both are joined.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("daemon starting",
		zap.String("inbox", d.cfg.InboxDir),
		zap.String("quarantine", d.cfg.QuarantinePath()),
		zap.String("watch_mode", d.cfg.Watch.Mode),
		zap.Bool("journal", d.journal != nil))

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()

	var g errgroup.Group
	g.Go(func() error {
		// A watcher failure also shuts the daemon down.
		defer d.queue.Close()
		if err := d.watcher.Run(watchCtx); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		d.worker.Run(d.queue)
		return nil
	})

	joined := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			d.logger.Info("shutdown requested", zap.Int("queued", d.queue.Len()))
		case <-joined:
		}
		stopWatch()
	}()

	err := g.Wait()
	close(joined)
	<-stopped
	d.logger.Info("daemon stopped")
	return err
}

// Close detaches the journal.
func (d *Daemon) Close() error {
	if d.journal == nil {
		return nil
	}
	return d.journal.Detach()
}

// Journal returns the attached journal, or nil when it is disabled.
func (d *Daemon) Journal() *journal.Journal {
	return d.journal
}
