package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	pstrings "electa/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	Environment   string
	PublicBaseURL string
	LogLevel      string
	LogFormat     string

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	SMTP        SMTPConfig
	Auth        AuthConfig
	Election    ElectionConfig
	RateLimit   RateLimitConfig

	// SeedAdminEmail creates an admin account on startup when no account uses it.
	SeedAdminEmail  string
	SeedAdminName   string
	SeedAdminWallet string
}

// RedisConfig configures the shared Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit producer. No brokers means audit stays local.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// SMTPConfig configures outbound mail. An empty Host uses the log channel.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
}

// AuthConfig covers login codes and session tokens.
type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
	TokenTTL      time.Duration
	LoginCodeTTL  time.Duration
	BcryptCost    int
	SecureCookies bool
}

// ElectionConfig covers the ledger and lifecycle fan-out.
type ElectionConfig struct {
	LedgerRPCURL       string
	ReferenceBackend   string
	BoltPath           string
	FanOutConcurrency  int
	TransitionStaleAge time.Duration
	LedgerTimeout      time.Duration
}

// RateLimitConfig throttles the unauthenticated login endpoints per client IP.
type RateLimitConfig struct {
	Disabled      bool
	CodeRequests  int
	LoginAttempts int
	Window        time.Duration
}

// Reference store backends.
const (
	ReferenceBackendMemory = "memory"
	ReferenceBackendRedis  = "redis"
	ReferenceBackendBolt   = "bolt"
)

// Load reads an optional .env file and then the environment.
func Load() (Server, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	env := getString("ELECTA_ENV", "development")
	cfg := Server{
		Addr:          getString("ELECTA_ADDR", ":8080"),
		Environment:   env,
		PublicBaseURL: getString("PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:      getString("LOG_LEVEL", "info"),
		LogFormat:     getString("LOG_FORMAT", "json"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    pstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: getString("KAFKA_AUDIT_TOPIC", "electa.audit"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getString("SMTP_FROM", "no-reply@electa.local"),
			TLS:      getBool("SMTP_TLS", true),
		},
		Auth: AuthConfig{
			JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
			JWTIssuer:     getString("JWT_ISSUER", "electa"),
			TokenTTL:      getDuration("TOKEN_TTL", 24*time.Hour),
			LoginCodeTTL:  getDuration("LOGIN_CODE_TTL", 5*time.Minute),
			BcryptCost:    getInt("LOGIN_CODE_BCRYPT_COST", 10),
			SecureCookies: env == "production",
		},
		Election: ElectionConfig{
			LedgerRPCURL:       os.Getenv("LEDGER_RPC_URL"),
			ReferenceBackend:   getString("ELECTION_REFERENCE_BACKEND", ReferenceBackendMemory),
			BoltPath:           getString("ELECTION_BOLT_PATH", "electa.db"),
			FanOutConcurrency:  getInt("ELECTION_FANOUT_CONCURRENCY", 16),
			TransitionStaleAge: getDuration("ELECTION_TRANSITION_STALE_AFTER", 10*time.Minute),
			LedgerTimeout:      getDuration("LEDGER_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			Disabled:      getBool("RATE_LIMIT_DISABLED", false),
			CodeRequests:  getInt("RATE_LIMIT_LOGIN_CODE_REQUESTS", 5),
			LoginAttempts: getInt("RATE_LIMIT_LOGIN_ATTEMPTS", 10),
			Window:        getDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		},
		SeedAdminEmail:  os.Getenv("SEED_ADMIN_EMAIL"),
		SeedAdminName:   getString("SEED_ADMIN_NAME", "Admin"),
		SeedAdminWallet: os.Getenv("SEED_ADMIN_WALLET"),
	}

	if cfg.Auth.JWTSigningKey == "" {
		if cfg.IsProduction() {
			return Server{}, fmt.Errorf("JWT_SIGNING_KEY is required in production")
		}
		// Development default; production refuses to start without a key.
		cfg.Auth.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	switch cfg.Election.ReferenceBackend {
	case ReferenceBackendMemory, ReferenceBackendRedis, ReferenceBackendBolt:
	default:
		return Server{}, fmt.Errorf("unknown ELECTION_REFERENCE_BACKEND %q", cfg.Election.ReferenceBackend)
	}
	if cfg.SeedAdminEmail != "" && cfg.SeedAdminWallet == "" {
		return Server{}, fmt.Errorf("SEED_ADMIN_WALLET is required with SEED_ADMIN_EMAIL")
	}
	if cfg.Election.FanOutConcurrency < 1 {
		return Server{}, fmt.Errorf("ELECTION_FANOUT_CONCURRENCY must be positive")
	}
	return cfg, nil
}

func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
