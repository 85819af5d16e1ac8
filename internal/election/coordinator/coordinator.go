// Package coordinator runs election lifecycle commands: deploying a ledger
// address and fanning start/end transitions out to every account.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	accountModels "electa/internal/account/models"
	"electa/internal/election/metrics"
	"electa/internal/election/models"
	"electa/internal/notify"
	"electa/pkg/attrs"
	id "electa/pkg/domain"
	"electa/pkg/platform/audit"
	"electa/pkg/requestcontext"
)

const (
	defaultConcurrency = 16
	defaultStaleAfter  = 10 * time.Minute
	tracerName         = "electa/election/coordinator"
)

//go:generate mockgen -source=coordinator.go -destination=mocks/mocks.go -package=mocks AccountStore ReferenceStore AuditPublisher

// AccountStore is the slice of the account store a fan-out needs.
type AccountStore interface {
	ListAll(ctx context.Context, roles ...accountModels.Role) ([]*accountModels.Account, error)
	Execute(ctx context.Context, accountID id.AccountID, validate func(*accountModels.Account) error, mutate func(*accountModels.Account)) (*accountModels.Account, error)
}

// ReferenceStore holds the Election Reference.
type ReferenceStore interface {
	Get(ctx context.Context) (models.Reference, error)
	CompareAndSwap(ctx context.Context, expected int64, next models.Reference) (models.Reference, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Coordinator is the Election Lifecycle Coordinator.
type Coordinator struct {
	accounts   AccountStore
	references ReferenceStore
	notifier   notify.Notifier

	publicBaseURL  string
	concurrency    int
	staleAfter     time.Duration
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(c *Coordinator) {
		c.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithConcurrency bounds how many accounts are processed at once.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithStaleAfter sets when an unreleased transition marker counts as abandoned.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.staleAfter = d
		}
	}
}

// WithPublicBaseURL sets the origin used in results links.
func WithPublicBaseURL(url string) Option {
	return func(c *Coordinator) {
		c.publicBaseURL = url
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

func New(accounts AccountStore, references ReferenceStore, notifier notify.Notifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		accounts:    accounts,
		references:  references,
		notifier:    notifier,
		concurrency: defaultConcurrency,
		staleAfter:  defaultStaleAfter,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if c.logger != nil {
		c.logger.InfoContext(ctx, event, args...)
	}
	if c.auditPublisher == nil {
		return
	}
	accountID, _ := id.ParseAccountID(attrs.ExtractString(attributes, "account_id"))
	var actorID string
	if actor := requestcontext.AccountID(ctx); !actor.IsNil() {
		actorID = actor.String()
	}
	if err := c.auditPublisher.Emit(ctx, audit.Event{
		AccountID: accountID,
		Subject:   attrs.ExtractString(attributes, "address"),
		Action:    event,
		Reason:    attrs.ExtractString(attributes, "reason"),
		Email:     attrs.ExtractString(attributes, "email"),
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   actorID,
	}); err != nil && c.logger != nil {
		c.logger.ErrorContext(ctx, "failed to emit audit event",
			"event", event,
			"error", err,
		)
	}
}
