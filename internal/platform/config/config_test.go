package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("ELECTA_ENV", "")
	t.Setenv("JWT_SIGNING_KEY", "")
	t.Setenv("KAFKA_BROKERS", " k1:9092,k2:9092,k1:9092 ")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Auth.LoginCodeTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, 16, cfg.Election.FanOutConcurrency)
	assert.Equal(t, ReferenceBackendMemory, cfg.Election.ReferenceBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.NotEmpty(t, cfg.Auth.JWTSigningKey)
	assert.False(t, cfg.Auth.SecureCookies)
	assert.Equal(t, 5, cfg.RateLimit.CodeRequests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
}

func TestFromEnv_ProductionRequiresSigningKey(t *testing.T) {
	t.Setenv("ELECTA_ENV", "production")
	t.Setenv("JWT_SIGNING_KEY", "")

	_, err := FromEnv()
	require.Error(t, err)

	t.Setenv("JWT_SIGNING_KEY", "s3cret")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Auth.SecureCookies)
}

func TestFromEnv_RejectsUnknownReferenceBackend(t *testing.T) {
	t.Setenv("ELECTION_REFERENCE_BACKEND", "etcd")
	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ELECTION_FANOUT_CONCURRENCY", "4")
	t.Setenv("LOGIN_CODE_TTL", "90s")
	t.Setenv("ELECTION_REFERENCE_BACKEND", "bolt")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Election.FanOutConcurrency)
	assert.Equal(t, 90*time.Second, cfg.Auth.LoginCodeTTL)
	assert.Equal(t, ReferenceBackendBolt, cfg.Election.ReferenceBackend)
}

func TestFromEnv_SeedAdminNeedsWallet(t *testing.T) {
	t.Setenv("SEED_ADMIN_EMAIL", "admin@example.com")
	t.Setenv("SEED_ADMIN_WALLET", "")
	_, err := FromEnv()
	require.Error(t, err)

	t.Setenv("SEED_ADMIN_WALLET", "0x2222222222222222222222222222222222222222")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "Admin", cfg.SeedAdminName)
}
