// Package worker drives each proposal through the intake state machine:
// parse, back up, apply, format, test, then commit or revert and
// quarantine. Items are processed strictly one at a time.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/scribo/internal/backup"
	"github.com/mesh-intelligence/scribo/internal/patch"
	"github.com/mesh-intelligence/scribo/internal/project"
	"github.com/mesh-intelligence/scribo/internal/proposal"
	"github.com/mesh-intelligence/scribo/internal/quarantine"
	"github.com/mesh-intelligence/scribo/internal/queue"
	"github.com/mesh-intelligence/scribo/pkg/types"
)

// DefaultSettleDelay gives a producer time to finish writing a proposal.
const DefaultSettleDelay = 100 * time.Millisecond

// Config wires a Worker to its collaborators. Backups, Quarantine and Tests
// are required; the rest are optional.
type Config struct {
	Backups     *backup.Manager
	Quarantine  *quarantine.Store
	Tests       types.TestRunner
	Formatter   types.Formatter
	Recorder    types.Recorder
	RootMarkers []string
	SettleDelay time.Duration
	Logger      *zap.Logger
}

// Worker is the single consumer of the work queue.
type Worker struct {
	backups     *backup.Manager
	quarantine  *quarantine.Store
	tests       types.TestRunner
	formatter   types.Formatter
	recorder    types.Recorder
	markers     []string
	settleDelay time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// New returns a Worker for cfg.
func New(cfg Config) *Worker {
	w := &Worker{
		backups:     cfg.Backups,
		quarantine:  cfg.Quarantine,
		tests:       cfg.Tests,
		formatter:   cfg.Formatter,
		recorder:    cfg.Recorder,
		markers:     cfg.RootMarkers,
		settleDelay: cfg.SettleDelay,
		logger:      cfg.Logger,
		now:         time.Now,
	}
	if w.backups == nil {
		w.backups = backup.NewManager(backup.DefaultSuffix)
	}
	if w.markers == nil {
		w.markers = project.DefaultMarkers
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Run pops and processes items until q is closed and drained. In-flight
// items are never cancelled: once an item is backed up it always reaches a
// terminal state.
func (w *Worker) Run(q *queue.Queue) {
	w.logger.Info("worker started")
	processed := 0
	for {
		path, ok := q.Pop(context.Background())
		if !ok {
			w.logger.Info("worker stopped", zap.Int("processed", processed))
			return
		}
		w.safeProcess(path)
		processed++
	}
}

// safeProcess keeps a panic that escapes Process's own recovery from taking
// down the loop.
func (w *Worker) safeProcess(path string) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.DPanic("panic escaped item recovery",
				zap.String("proposal", filepath.Base(path)),
				zap.Any("panic", r))
		}
	}()
	w.Process(context.Background(), path)
}

// item carries one proposal through the state machine.
type item struct {
	outcome types.Outcome
	path    string
	logger  *zap.Logger
	// backup is set while the target is mutable and nothing has yet taken
	// ownership of restoring or committing it.
	backup *backup.Backup
}

func (w *Worker) enter(it *item, s types.State, fields ...zap.Field) {
	it.outcome.State = s
	it.logger.Info("state", append([]zap.Field{zap.String("state", string(s))}, fields...)...)
}

// Process runs one proposal end to end and returns how it left the
// pipeline. Every failure is contained in the returned Outcome, including a
// panicking collaborator: once the target is backed up, a panic reverts it
// and quarantines the proposal like any other rejection.
func (w *Worker) Process(ctx context.Context, path string) (out types.Outcome) {
	it := &item{
		path: path,
		outcome: types.Outcome{
			OutcomeID: newOutcomeID(),
			Proposal:  filepath.Base(path),
			StartedAt: w.now(),
		},
	}
	it.logger = w.logger.With(zap.String("proposal", it.outcome.Proposal))
	defer func() {
		if r := recover(); r != nil {
			out = w.recoverItem(it, r)
		}
	}()
	return w.drive(ctx, it)
}

func (w *Worker) drive(ctx context.Context, it *item) types.Outcome {
	w.enter(it, types.StateReceived)

	w.settle(ctx)

	p, err := proposal.Read(it.path)
	switch {
	case errors.Is(err, types.ErrProposalVanished):
		return w.vanish(it)
	case err != nil:
		return w.quarantineMalformed(it, err)
	}

	it.outcome.Target = p.Target
	it.logger = it.logger.With(zap.String("target", p.Target))
	w.enter(it, types.StateHeaderParsed)

	bk, err := w.backups.Snapshot(p.Target)
	if err != nil {
		it.outcome.State = types.StateAbandoned
		it.outcome.Fault = types.FaultBackupFailure
		it.outcome.Reason = err.Error()
		it.logger.Error("backup failed, leaving proposal in inbox",
			zap.String("fault", string(types.FaultBackupFailure)), zap.Error(err))
		return w.finish(it)
	}
	it.backup = bk
	w.enter(it, types.StateBackedUp, zap.String("backup", bk.Path))

	// From here on the item must reach a terminal state.
	root := project.RootOf(p.Target, w.markers)
	it.outcome.ProjectRoot = root

	if err := patch.ApplyToFile(p.Body, p.Target, root); err != nil {
		return w.revert(it, bk, types.FaultApplyFailure, err)
	}
	w.enter(it, types.StatePatchApplied, zap.String("root", root))

	if w.formatter != nil {
		if err := w.formatter.Format(ctx, p.Target); err != nil {
			it.logger.Warn("formatter failed, continuing",
				zap.String("fault", string(types.FaultFormatFailure)), zap.Error(err))
		}
	}
	w.enter(it, types.StateFormatted)

	result := types.TestFail
	if w.tests != nil {
		result = w.tests.Run(ctx, root)
	}
	w.enter(it, types.StateTested, zap.Stringer("result", result))
	if !result.Accepted() {
		return w.revert(it, bk, types.FaultTestFailure, fmt.Errorf("tests reported %s", result))
	}

	return w.commit(it, bk)
}

func (w *Worker) settle(ctx context.Context) {
	if w.settleDelay <= 0 {
		return
	}
	t := time.NewTimer(w.settleDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (w *Worker) vanish(it *item) types.Outcome {
	it.outcome.State = types.StateVanished
	it.outcome.Fault = types.FaultTransientDisappearance
	it.logger.Info("proposal vanished before processing, skipping",
		zap.String("fault", string(types.FaultTransientDisappearance)))
	return w.finish(it)
}

func (w *Worker) quarantineMalformed(it *item, cause error) types.Outcome {
	it.outcome.Fault = types.FaultMalformedProposal
	it.outcome.Reason = cause.Error()

	dest, err := w.quarantine.Accept(it.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return w.vanish(it)
		}
		it.outcome.State = types.StateAbandoned
		it.logger.Error("cannot quarantine malformed proposal",
			zap.String("fault", string(types.FaultMalformedProposal)), zap.NamedError("cause", cause), zap.Error(err))
		return w.finish(it)
	}
	it.outcome.QuarantinePath = dest
	w.enter(it, types.StateQuarantinedNoBackup,
		zap.String("fault", string(types.FaultMalformedProposal)),
		zap.String("quarantine", dest),
		zap.Error(cause))
	return w.finish(it)
}

// revert restores the target and quarantines the proposal. A restore
// failure is escalated but does not stop the proposal from being
// quarantined.
func (w *Worker) revert(it *item, bk *backup.Backup, fault types.FaultKind, cause error) types.Outcome {
	it.backup = nil
	it.outcome.Fault = fault
	it.outcome.Reason = cause.Error()
	it.logger.Warn("rejecting proposal", zap.String("fault", string(fault)), zap.Error(cause))

	if err := bk.Restore(); err != nil {
		if errors.Is(err, types.ErrRestoreFailed) {
			it.outcome.Fault = types.FaultRestoreFailure
			it.outcome.Reason = fmt.Sprintf("%s; %s", cause, err)
			it.logger.DPanic("restore failed, manual recovery required",
				zap.String("fault", string(types.FaultRestoreFailure)),
				zap.String("backup", bk.Path),
				zap.NamedError("cause", cause),
				zap.Error(err))
		} else {
			it.logger.Warn("target restored but backup cleanup failed",
				zap.String("backup", bk.Path), zap.Error(err))
		}
	}

	dest, err := w.quarantine.Accept(it.path)
	if err != nil {
		it.logger.Error("cannot quarantine proposal", zap.Error(err))
	}
	it.outcome.QuarantinePath = dest
	w.enter(it, types.StateRevertedQuarantined,
		zap.String("fault", string(it.outcome.Fault)),
		zap.String("quarantine", dest))
	return w.finish(it)
}

func (w *Worker) commit(it *item, bk *backup.Backup) types.Outcome {
	it.backup = nil
	if err := bk.Commit(); err != nil {
		it.logger.Error("cannot remove backup after commit", zap.String("backup", bk.Path), zap.Error(err))
	}
	if err := os.Remove(it.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		it.logger.Error("cannot remove consumed proposal", zap.Error(err))
	}
	w.enter(it, types.StateCommitted)
	return w.finish(it)
}

func (w *Worker) finish(it *item) types.Outcome {
	it.outcome.FinishedAt = w.now()
	it.logger.Info("item finished",
		zap.String("outcome", string(it.outcome.State)),
		zap.String("fault", string(it.outcome.Fault)),
		zap.Duration("elapsed", it.outcome.Duration()))

	if w.recorder != nil && it.outcome.State != types.StateVanished {
		if err := w.recorder.Record(it.outcome); err != nil {
			it.logger.Warn("cannot record outcome", zap.Error(err))
		}
	}
	return it.outcome
}

// recoverItem turns a panic into an outcome. With a live backup the item is
// reverted, classified by the stage that panicked. Without one nothing was
// mutated, so the proposal is left in the inbox.
func (w *Worker) recoverItem(it *item, r any) types.Outcome {
	stage := it.outcome.State
	cause := fmt.Errorf("panic during %s: %v", stage, r)
	it.logger.DPanic("worker panicked on item",
		zap.String("state", string(stage)),
		zap.Any("panic", r))

	if bk := it.backup; bk != nil {
		return w.revert(it, bk, panicFault(stage), cause)
	}
	if stage.Terminal() || stage == types.StateAbandoned {
		return it.outcome
	}
	it.outcome.State = types.StateAbandoned
	it.outcome.Reason = cause.Error()
	return w.finish(it)
}

// panicFault names the stage that was running when a collaborator panicked.
// The recorded state is the last one entered, so the panic happened in the
// step after it.
func panicFault(last types.State) types.FaultKind {
	switch last {
	case types.StatePatchApplied:
		return types.FaultFormatFailure
	case types.StateFormatted, types.StateTested:
		return types.FaultTestFailure
	default:
		return types.FaultApplyFailure
	}
}

func newOutcomeID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
