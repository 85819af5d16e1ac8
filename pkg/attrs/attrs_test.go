package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	kv := []any{"email", "a@x.com", "count", 3, 42, "ignored", "dangling"}

	assert.Equal(t, "a@x.com", ExtractString(kv, "email"))
	assert.Equal(t, "", ExtractString(kv, "count"))
	assert.Equal(t, "", ExtractString(kv, "dangling"))

	n, ok := Extract[int](kv, "count")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
}
