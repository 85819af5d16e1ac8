package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "electa/pkg/domain"
	dErrors "electa/pkg/domain-errors"
)

const wallet = id.Address("0x1111111111111111111111111111111111111111")

func newTestAccount(t *testing.T) *Account {
	t.Helper()
	a, err := NewAccount(id.NewAccountID(), "Ada", "ada@example.com", wallet, "", time.Now())
	require.NoError(t, err)
	return a
}

func TestNewAccount(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("defaults to voter", func(t *testing.T) {
		a, err := NewAccount(id.NewAccountID(), "Ada", "ada@example.com", wallet, "", now)
		require.NoError(t, err)
		assert.Equal(t, RoleVoter, a.Role)
		assert.Equal(t, int64(1), a.Version)
		assert.False(t, a.HasLoginCode())
		assert.Equal(t, now, a.CreatedAt)
	})

	t.Run("rejects long names", func(t *testing.T) {
		_, err := NewAccount(id.NewAccountID(), strings.Repeat("a", 31), "ada@example.com", wallet, RoleVoter, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := NewAccount(id.NewAccountID(), "Ada", "ada@example.com", wallet, Role("user"), now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects null wallet", func(t *testing.T) {
		_, err := NewAccount(id.NewAccountID(), "Ada", "ada@example.com", id.NullAddress, RoleVoter, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestLoginCodePair(t *testing.T) {
	a := newTestAccount(t)
	expiry := time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC)

	a.SetLoginCode("hash", expiry)
	require.NoError(t, a.CheckInvariants())
	assert.True(t, a.LoginCodeActive(expiry.Add(-time.Second)))
	assert.False(t, a.LoginCodeActive(expiry), "expiry instant is already expired")
	assert.False(t, a.LoginCodeActive(expiry.Add(time.Second)))

	a.ClearLoginCode()
	require.NoError(t, a.CheckInvariants())
	assert.Nil(t, a.CodeHash)
	assert.Nil(t, a.CodeExpiresAt)

	a.CodeHash = new(string)
	assert.True(t, dErrors.HasCode(a.CheckInvariants(), dErrors.CodeInvariantViolation))
}

func TestApplyElectionState(t *testing.T) {
	a := newTestAccount(t)

	a.ApplyElectionState(true)
	require.NoError(t, a.CanVote())
	a.MarkVoted()
	assert.True(t, dErrors.HasCode(a.CanVote(), dErrors.CodeConflict))

	a.ApplyElectionState(false)
	assert.False(t, a.HasVoted)
	assert.False(t, a.ElectionOngoing)
	require.NoError(t, a.CheckInvariants())
	assert.True(t, dErrors.HasCode(a.CanVote(), dErrors.CodeConflict))
}

func TestClone_DoesNotShareCodePointers(t *testing.T) {
	a := newTestAccount(t)
	a.SetLoginCode("hash", time.Now())

	c := a.Clone()
	c.ClearLoginCode()

	assert.NotNil(t, a.CodeHash)
	assert.NotNil(t, a.CodeExpiresAt)
}
