package types

import (
	"errors"
	"time"
)

// Outcome records how one proposal left the pipeline. Outcomes are written
// to the journal once the worker is done with an item.
type Outcome struct {
	OutcomeID      string    `json:"outcome_id"`
	Proposal       string    `json:"proposal"`
	Target         string    `json:"target,omitempty"`
	ProjectRoot    string    `json:"project_root,omitempty"`
	State          State     `json:"state"`
	Fault          FaultKind `json:"fault,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	QuarantinePath string    `json:"quarantine_path,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Validate checks the fields the journal relies on.
func (o Outcome) Validate() error {
	if o.OutcomeID == "" {
		return ErrInvalidOutcome
	}
	if o.Proposal == "" {
		return ErrInvalidOutcome
	}
	if !o.State.Valid() {
		return ErrInvalidState
	}
	return nil
}

// Duration is the wall time the worker spent on the item.
func (o Outcome) Duration() time.Duration {
	if o.FinishedAt.IsZero() || o.StartedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// Per-item errors. Each maps to one fault kind.
var (
	ErrMalformedProposal = errors.New("malformed proposal")
	ErrApplyFailed       = errors.New("patch does not apply")
	ErrBackupFailed      = errors.New("backup failed")
	ErrBackupExists      = errors.New("backup artifact already exists")
	ErrRestoreFailed     = errors.New("restore failed")
	ErrProposalVanished  = errors.New("proposal vanished")
)

// Journal errors.
var (
	ErrInvalidOutcome  = errors.New("invalid outcome")
	ErrInvalidState    = errors.New("invalid state value")
	ErrJournalDetached = errors.New("journal is detached")
	ErrAlreadyAttached = errors.New("journal is already attached")
	ErrJournalReadOnly = errors.New("journal is open read-only")
)

// ErrQueueClosed is returned when work is pushed after shutdown began.
var ErrQueueClosed = errors.New("queue is closed")
