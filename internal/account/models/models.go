package models

import (
	"time"

	id "electa/pkg/domain"
	dErrors "electa/pkg/domain-errors"
)

// Role gates admin-only routes.
type Role string

const (
	RoleVoter Role = "voter"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleVoter || r == RoleAdmin
}

func (r Role) String() string { return string(r) }

// MaxNameLength bounds display names.
const MaxNameLength = 30

// Account is the persisted voter or admin record. ElectionOngoing is the
// cached mirror of the ledger; it is never the authoritative answer to
// "is voting open" (see election.ReconciledAccount).
type Account struct {
	ID              id.AccountID
	Name            string
	Email           string
	WalletAddress   id.Address
	Role            Role
	HasVoted        bool
	ElectionOngoing bool
	CodeHash        *string
	CodeExpiresAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
}

// NewAccount builds a voter or admin with no login code and no election state.
func NewAccount(accountID id.AccountID, name, email string, wallet id.Address, role Role, now time.Time) (*Account, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account ID required")
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if wallet.IsNull() {
		return nil, dErrors.New(dErrors.CodeValidation, "wallet address is required")
	}
	if role == "" {
		role = RoleVoter
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "role must be voter or admin")
	}
	return &Account{
		ID:            accountID,
		Name:          name,
		Email:         email,
		WalletAddress: wallet,
		Role:          role,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}, nil
}

func ValidateName(name string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len([]rune(name)) > MaxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name cannot exceed 30 characters")
	}
	return nil
}

func (a *Account) IsAdmin() bool { return a.Role == RoleAdmin }

// HasLoginCode reports whether a code is stored, expired or not.
func (a *Account) HasLoginCode() bool {
	return a.CodeHash != nil
}

// LoginCodeActive reports whether a stored code is still inside its window.
// A code expiring exactly at now is already dead.
func (a *Account) LoginCodeActive(now time.Time) bool {
	return a.CodeHash != nil && a.CodeExpiresAt != nil && a.CodeExpiresAt.After(now)
}

// SetLoginCode stores the hash and expiry together.
func (a *Account) SetLoginCode(hash string, expiresAt time.Time) {
	a.CodeHash = &hash
	a.CodeExpiresAt = &expiresAt
}

// ClearLoginCode drops the hash and expiry together.
func (a *Account) ClearLoginCode() {
	a.CodeHash = nil
	a.CodeExpiresAt = nil
}

// ApplyElectionState writes both election flags in one step. Closing an
// election always resets HasVoted.
func (a *Account) ApplyElectionState(ongoing bool) {
	a.ElectionOngoing = ongoing
	if !ongoing {
		a.HasVoted = false
	}
}

// CanVote rejects votes outside an election and repeat votes.
func (a *Account) CanVote() error {
	if !a.ElectionOngoing {
		return dErrors.New(dErrors.CodeConflict, "no election is ongoing")
	}
	if a.HasVoted {
		return dErrors.New(dErrors.CodeConflict, "account has already voted")
	}
	return nil
}

func (a *Account) MarkVoted() {
	a.HasVoted = true
}

// CheckInvariants verifies the code pair and vote flags are consistent.
func (a *Account) CheckInvariants() error {
	if (a.CodeHash == nil) != (a.CodeExpiresAt == nil) {
		return dErrors.New(dErrors.CodeInvariantViolation, "login code hash and expiry must be set together")
	}
	if a.HasVoted && !a.ElectionOngoing {
		return dErrors.New(dErrors.CodeInvariantViolation, "has_voted requires an ongoing election")
	}
	return nil
}

// Clone returns a deep copy so stores never share pointers with callers.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.CodeHash != nil {
		h := *a.CodeHash
		c.CodeHash = &h
	}
	if a.CodeExpiresAt != nil {
		t := *a.CodeExpiresAt
		c.CodeExpiresAt = &t
	}
	return &c
}
