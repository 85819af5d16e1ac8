// Package store persists accounts. Both implementations honour the same
// error contract so the service can translate sentinels uniformly.
package store

import "strings"

// Unique constraint names; Conflict errors carry one of them in their message.
const (
	ConstraintEmail  = "accounts_email_key"
	ConstraintWallet = "accounts_wallet_key"
)

// ConflictField maps a conflict error to the field that collided, or "".
func ConflictField(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, ConstraintEmail):
		return "email"
	case strings.Contains(msg, ConstraintWallet):
		return "wallet address"
	default:
		return ""
	}
}
