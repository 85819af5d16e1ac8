package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "electa/pkg/domain-errors"
)

// TestParseAccountID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseAccountID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAccountID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseAccountID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseAccountID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseAccountID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, AccountID(validUUID), id)
	})
}

// TestParseID_TrustBoundary rejects hostile input at API entry points.
func TestParseID_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE accounts;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAccountID(tt.input)
			_, tokenErr := ParseTokenID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				require.Error(t, tokenErr)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
				require.NoError(t, tokenErr)
			}
		})
	}
}

func TestParseAddress(t *testing.T) {
	t.Run("accepts mixed case hex", func(t *testing.T) {
		addr, err := ParseAddress(" 0xAbCdEf0123456789abcdef0123456789ABCDEF01 ")
		require.NoError(t, err)
		assert.Equal(t, Address("0xAbCdEf0123456789abcdef0123456789ABCDEF01"), addr)
		assert.False(t, addr.IsNull())
	})

	t.Run("rejects missing prefix and short values", func(t *testing.T) {
		for _, in := range []string{
			"AbCdEf0123456789abcdef0123456789ABCDEF01",
			"0x1234",
			"0xZZCdEf0123456789abcdef0123456789ABCDEF01",
			"",
		} {
			_, err := ParseAddress(in)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), in)
		}
	})

	t.Run("zero address is null", func(t *testing.T) {
		assert.True(t, NullAddress.IsNull())
		assert.True(t, Address("").IsNull())
	})

	t.Run("equality ignores case", func(t *testing.T) {
		a := Address("0xabcdef0123456789abcdef0123456789abcdef01")
		b := Address("0xABCDEF0123456789ABCDEF0123456789ABCDEF01")
		assert.True(t, a.Equal(b))
	})
}
