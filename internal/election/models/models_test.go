package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "electa/pkg/domain"
	dErrors "electa/pkg/domain-errors"
)

func TestDeriveState(t *testing.T) {
	tests := []struct {
		name        string
		hasElection bool
		started     bool
		ended       bool
		want        State
	}{
		{"nothing deployed", false, true, false, StateNoElection},
		{"deployed not started", true, false, false, StatePending},
		{"running", true, true, false, StateOpen},
		{"finished", true, true, true, StateClosed},
		{"ended without start is closed", true, false, true, StateClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveState(tt.hasElection, tt.started, tt.ended)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want == StateOpen, got.Open())
		})
	}
}

func TestReference_TransitionHeld(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ref := NullReference()
	assert.False(t, ref.HasElection())
	assert.False(t, ref.TransitionHeld(now, 10*time.Minute))

	held := ref.WithTransition(TransitionStart, now)
	assert.True(t, held.TransitionHeld(now.Add(9*time.Minute), 10*time.Minute))
	assert.False(t, held.TransitionHeld(now.Add(10*time.Minute), 10*time.Minute), "stale marker is abandoned")
	assert.False(t, held.Released(now).TransitionHeld(now, 10*time.Minute))

	deployed := Reference{Address: "0x00000000000000000000000000000000000000aa", Started: true}
	assert.True(t, deployed.HasElection())
	cleared := deployed.Cleared(now)
	assert.False(t, cleared.HasElection())
	assert.False(t, cleared.Started)
}

func TestReference_Drifted(t *testing.T) {
	tests := []struct {
		name            string
		observedStarted bool
		started, ended  bool
		want            bool
	}{
		{"deployed, not started yet", false, false, false, false},
		{"running", true, true, false, false},
		{"first start observed", false, true, false, false},
		{"ledger ended", true, true, true, true},
		{"ended without an observed start", false, false, true, true},
		{"start reverted on the ledger", true, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := Reference{Address: "0x00000000000000000000000000000000000000aa", Started: tt.observedStarted}
			assert.Equal(t, tt.want, ref.Drifted(tt.started, tt.ended))
		})
	}
}

func TestFanOutResult_Err(t *testing.T) {
	assert.NoError(t, FanOutResult{Total: 3, Succeeded: 3}.Err())

	cause := errors.New("smtp down")
	result := FanOutResult{
		Total:     3,
		Succeeded: 2,
		Failures:  []AccountFailure{{AccountID: id.NewAccountID(), Email: "a@example.com", Err: cause}},
	}
	err := result.Err()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePartialFailure))

	var pf *PartialFailureError
	require.ErrorAs(t, err, &pf)
	assert.Len(t, pf.Failures, 1)
	assert.Equal(t, 2, pf.Succeeded)

	env := ToFanOutEnvelope(result, "done")
	assert.False(t, env.Success)
	assert.Empty(t, env.Message)
	assert.Equal(t, 1, env.Failed)
	assert.Equal(t, "smtp down", env.Errors[0].Error)
}
