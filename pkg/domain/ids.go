package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "electa/pkg/domain-errors"
)

// AccountID identifies a registered voter or admin account.
type AccountID uuid.UUID

// TokenID is the JTI of an issued bearer token.
type TokenID uuid.UUID

func (id AccountID) String() string { return uuid.UUID(id).String() }
func (id AccountID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id TokenID) String() string { return uuid.UUID(id).String() }
func (id TokenID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewAccountID returns a random account identifier.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewTokenID returns a random token identifier.
func NewTokenID() TokenID { return TokenID(uuid.New()) }

// ParseAccountID parses a non-nil account identifier from untrusted input.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account ID")
	return AccountID(u), err
}

// ParseTokenID parses a non-nil token identifier from untrusted input.
func ParseTokenID(s string) (TokenID, error) {
	u, err := parseUUID(s, "token ID")
	return TokenID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	// Bound input before handing it to the parser.
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return u, nil
}
