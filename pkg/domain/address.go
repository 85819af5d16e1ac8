package domain

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "electa/pkg/domain-errors"
)

// NullAddress is the well-known zero address meaning "no election deployed".
const NullAddress Address = "0x0000000000000000000000000000000000000000"

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Address is a 0x-prefixed, 20-byte hex ledger address. Wallets and election
// contracts share the format.
type Address string

// ParseAddress validates the fixed hex format. Case is preserved.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address is required")
	}
	if !addressPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must be 0x followed by 40 hex characters")
	}
	return Address(s), nil
}

func (a Address) String() string { return string(a) }

// IsNull reports whether a is empty or the zero address.
func (a Address) IsNull() bool {
	return a == "" || a.Common() == common.Address{}
}

// Common converts to the go-ethereum representation.
func (a Address) Common() common.Address {
	return common.HexToAddress(string(a))
}

// Equal compares addresses case-insensitively.
func (a Address) Equal(b Address) bool {
	return a.Common() == b.Common()
}
