package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	accountService "electa/internal/account/service"
	accountStore "electa/internal/account/store"
	authService "electa/internal/auth/service"
	"electa/internal/auth/store/revocation"
	"electa/internal/election/ledger"
	"electa/internal/election/reference"
	"electa/internal/notify"
	"electa/internal/platform/config"
	"electa/internal/platform/kafka"
	"electa/internal/platform/postgres"
	"electa/internal/platform/redis"
	"electa/internal/ratelimit"
	ratelimitMetrics "electa/internal/ratelimit/metrics"
	audit "electa/pkg/platform/audit"
	kafkaAudit "electa/pkg/platform/audit/store/kafka"
	memoryAudit "electa/pkg/platform/audit/store/memory"
	postgresAudit "electa/pkg/platform/audit/store/postgres"
)

// infra holds the backing services picked from configuration. Anything left
// unconfigured falls back to an in-process implementation.
type infra struct {
	accounts    accountService.Store
	auditStore  audit.Store
	references  reference.Store
	revocations authService.RevocationList
	notifier    notify.Notifier
	ledger      ledger.Reader
	closeLedger func()

	limiter        *ratelimit.Limiter
	limiterMetrics *ratelimitMetrics.Metrics

	db              *sql.DB
	redis           *redis.Client
	kafka           *kafka.Producer
	closeReferences func() error
	logger          *slog.Logger
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{logger: log}
	if err := in.open(ctx, cfg); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

func (in *infra) open(ctx context.Context, cfg config.Server) error {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	in.db = db
	if db != nil {
		applied, err := postgres.Migrate(ctx, db)
		if err != nil {
			return err
		}
		in.logger.Info("postgres ready", "migrations", applied)
		in.accounts = accountStore.NewPostgresStore(db)
		in.auditStore = postgresAudit.New(db)
	} else {
		in.logger.Warn("DATABASE_URL not set, accounts are kept in memory")
		in.accounts = accountStore.NewInMemoryStore()
		in.auditStore = memoryAudit.NewInMemoryStore()
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	in.redis = rc
	switch {
	case rc != nil:
		in.revocations = revocation.NewRedisTRL(rc.Client)
	case db != nil:
		in.revocations = revocation.NewPostgresTRL(db)
	default:
		in.revocations = revocation.NewInMemoryTRL(nil)
	}

	var client *goredis.Client
	if rc != nil {
		client = rc.Client
	}

	in.limiterMetrics = ratelimitMetrics.New()
	if client != nil {
		in.limiter = ratelimit.NewLimiter(ratelimit.NewRedisStore(client),
			ratelimit.WithFallback(ratelimit.NewInMemoryStore(nil)),
			ratelimit.WithLimiterLogger(in.logger),
			ratelimit.WithLimiterMetrics(in.limiterMetrics),
		)
	} else {
		in.limiter = ratelimit.NewLimiter(ratelimit.NewInMemoryStore(nil))
	}

	references, closeReferences, err := reference.Open(cfg.Election, client)
	if err != nil {
		return err
	}
	in.references = references
	in.closeReferences = closeReferences

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
	if err != nil {
		return err
	}
	in.kafka = producer
	if producer != nil {
		in.auditStore = kafkaAudit.New(producer)
	}

	if cfg.SMTP.Host != "" {
		smtp, err := notify.NewSMTPNotifier(cfg.SMTP)
		if err != nil {
			return err
		}
		in.notifier = smtp
	} else {
		in.logger.Warn("SMTP_HOST not set, notifications are logged only")
		in.notifier = notify.NewLogNotifier(in.logger)
	}

	if cfg.Election.LedgerRPCURL != "" {
		client, err := ledger.Dial(ctx, cfg.Election.LedgerRPCURL,
			ledger.WithLogger(in.logger),
			ledger.WithTimeout(cfg.Election.LedgerTimeout),
		)
		if err != nil {
			return err
		}
		in.ledger = client
		in.closeLedger = client.Close
	} else {
		in.logger.Warn("LEDGER_RPC_URL not set, every election reads as closed")
		in.ledger = ledger.Disabled{}
	}
	return nil
}

// Health pings the networked dependencies that are configured.
func (in *infra) Health(ctx context.Context) error {
	if in.db != nil {
		if err := in.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if in.redis != nil {
		if err := in.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if in.kafka != nil {
		if err := in.kafka.Ping(ctx); err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
	}
	return nil
}

func (in *infra) Close() {
	if in.closeLedger != nil {
		in.closeLedger()
	}
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.closeReferences != nil {
		if err := in.closeReferences(); err != nil {
			in.logger.Warn("failed to close reference store", "error", err)
		}
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}
