package types

// State is a position in the per-item state machine. An item moves forward
// through the happy path until it reaches one of the terminal states.
type State string

// Happy-path states, in order.
const (
	StateReceived     State = "received"
	StateHeaderParsed State = "header_parsed"
	StateBackedUp     State = "backed_up"
	StatePatchApplied State = "patch_applied"
	StateFormatted    State = "formatted"
	StateTested       State = "tested"
	StateCommitted    State = "committed"
)

// Failure terminals.
const (
	StateRevertedQuarantined State = "reverted_quarantined"
	StateQuarantinedNoBackup State = "quarantined_no_backup"
)

// Items that stop without reaching a terminal home. An abandoned proposal
// stays in the inbox untouched; a vanished proposal was already gone.
const (
	StateAbandoned State = "abandoned"
	StateVanished  State = "vanished"
)

var terminalStates = map[State]bool{
	StateCommitted:           true,
	StateRevertedQuarantined: true,
	StateQuarantinedNoBackup: true,
}

var knownStates = map[State]bool{
	StateReceived:            true,
	StateHeaderParsed:        true,
	StateBackedUp:            true,
	StatePatchApplied:        true,
	StateFormatted:           true,
	StateTested:              true,
	StateCommitted:           true,
	StateRevertedQuarantined: true,
	StateQuarantinedNoBackup: true,
	StateAbandoned:           true,
	StateVanished:            true,
}

// Terminal reports whether the proposal has reached its final home: deleted
// after a commit, or moved into quarantine.
func (s State) Terminal() bool {
	return terminalStates[s]
}

// Valid reports whether s is one of the declared states.
func (s State) Valid() bool {
	return knownStates[s]
}

// Quarantined reports whether the state leaves the proposal in quarantine.
func (s State) Quarantined() bool {
	return s == StateRevertedQuarantined || s == StateQuarantinedNoBackup
}

// FaultKind classifies why an item left the happy path.
type FaultKind string

// Fault taxonomy.
const (
	FaultNone                   FaultKind = ""
	FaultMalformedProposal      FaultKind = "malformed_proposal"
	FaultApplyFailure           FaultKind = "apply_failure"
	FaultTestFailure            FaultKind = "test_failure"
	FaultFormatFailure          FaultKind = "format_failure"
	FaultBackupFailure          FaultKind = "backup_failure"
	FaultRestoreFailure         FaultKind = "restore_failure"
	FaultTransientDisappearance FaultKind = "transient_disappearance"
)

// Critical reports whether the fault needs a human: the target and its
// backup may both be in an unknown state.
func (k FaultKind) Critical() bool {
	return k == FaultRestoreFailure
}
