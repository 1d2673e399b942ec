package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateTerminal(t *testing.T) {
	tests := []struct {
		state       State
		terminal    bool
		quarantined bool
	}{
		{StateReceived, false, false},
		{StateHeaderParsed, false, false},
		{StateBackedUp, false, false},
		{StatePatchApplied, false, false},
		{StateFormatted, false, false},
		{StateTested, false, false},
		{StateCommitted, true, false},
		{StateRevertedQuarantined, true, true},
		{StateQuarantinedNoBackup, true, true},
		{StateAbandoned, false, false},
		{StateVanished, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.True(t, tt.state.Valid())
			assert.Equal(t, tt.terminal, tt.state.Terminal())
			assert.Equal(t, tt.quarantined, tt.state.Quarantined())
		})
	}

	assert.False(t, State("pebble").Valid())
}

func TestFaultKindCritical(t *testing.T) {
	assert.True(t, FaultRestoreFailure.Critical())
	for _, k := range []FaultKind{
		FaultNone, FaultMalformedProposal, FaultApplyFailure, FaultTestFailure,
		FaultFormatFailure, FaultBackupFailure, FaultTransientDisappearance,
	} {
		assert.False(t, k.Critical(), "fault %q", k)
	}
}

func TestTestResult(t *testing.T) {
	assert.True(t, TestPass.Accepted())
	assert.True(t, TestNoTests.Accepted())
	assert.False(t, TestFail.Accepted())

	assert.Equal(t, "PASS", TestPass.String())
	assert.Equal(t, "FAIL", TestFail.String())
	assert.Equal(t, "NO_TESTS", TestNoTests.String())
	assert.Equal(t, "UNKNOWN", TestResult(42).String())
}

func TestOutcomeValidate(t *testing.T) {
	now := time.Now()
	good := Outcome{
		OutcomeID:  "0190d7a4-0000-7000-8000-000000000000",
		Proposal:   "20250101-120000-a.patch",
		State:      StateCommitted,
		StartedAt:  now,
		FinishedAt: now.Add(2 * time.Second),
	}
	assert.NoError(t, good.Validate())
	assert.Equal(t, 2*time.Second, good.Duration())

	noID := good
	noID.OutcomeID = ""
	assert.ErrorIs(t, noID.Validate(), ErrInvalidOutcome)

	noName := good
	noName.Proposal = ""
	assert.ErrorIs(t, noName.Validate(), ErrInvalidOutcome)

	badState := good
	badState.State = "dust"
	assert.ErrorIs(t, badState.Validate(), ErrInvalidState)

	assert.Zero(t, Outcome{}.Duration())
}
