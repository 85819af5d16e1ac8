package email

import (
	"net/mail"
	"strings"

	dErrors "electa/pkg/domain-errors"
)

// maxLength follows the RFC 5321 path limit.
const maxLength = 254

// Normalize trims and lowercases an address for lookups and uniqueness.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Validate accepts a bare addr-spec such as "a@x.com". Display names are rejected.
func Validate(address string) error {
	if address == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if len(address) > maxLength {
		return dErrors.New(dErrors.CodeValidation, "email is too long")
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address || parsed.Name != "" {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	if !strings.Contains(address[strings.LastIndexByte(address, '@')+1:], ".") {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	return nil
}
