// Package service issues one-time login codes, exchanges them for session
// tokens and revokes tokens on logout.
package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	accountModels "electa/internal/account/models"
	authmetrics "electa/internal/auth/metrics"
	"electa/internal/auth/token"
	"electa/internal/notify"
	"electa/pkg/attrs"
	id "electa/pkg/domain"
	"electa/pkg/platform/audit"
	"electa/pkg/requestcontext"
)

const (
	defaultCodeTTL    = 5 * time.Minute
	defaultBcryptCost = bcrypt.DefaultCost
	codeBytes         = 5
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks AccountStore TokenIssuer RevocationList AuditPublisher

// AccountStore is the slice of the account store the issuer needs.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*accountModels.Account, error)
	Execute(ctx context.Context, accountID id.AccountID, validate func(*accountModels.Account) error, mutate func(*accountModels.Account)) (*accountModels.Account, error)
}

// TokenIssuer is the opaque bearer token service.
type TokenIssuer interface {
	Issue(accountID id.AccountID, role string) (token.Issued, error)
}

// RevocationList records logged-out token JTIs.
type RevocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the credential issuer.
type Service struct {
	accounts AccountStore
	tokens   TokenIssuer
	notifier notify.Notifier
	trl      RevocationList

	codeTTL        time.Duration
	bcryptCost     int
	generateCode   func() (string, error)
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *authmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *authmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCodeTTL sets how long a login code stays valid.
func WithCodeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.codeTTL = ttl
		}
	}
}

// WithBcryptCost sets the hashing cost for stored codes.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// WithCodeGenerator replaces the random code source. Tests only.
func WithCodeGenerator(fn func() (string, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.generateCode = fn
		}
	}
}

func New(accounts AccountStore, tokens TokenIssuer, notifier notify.Notifier, trl RevocationList, opts ...Option) *Service {
	s := &Service{
		accounts:     accounts,
		tokens:       tokens,
		notifier:     notifier,
		trl:          trl,
		codeTTL:      defaultCodeTTL,
		bcryptCost:   defaultBcryptCost,
		generateCode: randomCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CodeTTL() time.Duration { return s.codeTTL }

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	accountID, _ := id.ParseAccountID(attrs.ExtractString(attributes, "account_id"))
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		AccountID: accountID,
		Subject:   accountID.String(),
		Action:    event,
		Reason:    attrs.ExtractString(attributes, "reason"),
		Email:     attrs.ExtractString(attributes, "email"),
		RequestID: requestcontext.RequestID(ctx),
		Device:    requestcontext.Device(ctx),
	}); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"event", event,
			"error", err,
		)
	}
}

// authFailure records a failed login attempt as a security audit event.
func (s *Service) authFailure(ctx context.Context, reason string, attributes ...any) {
	attributes = append(attributes, "reason", reason)
	s.logAudit(ctx, string(audit.EventAuthFailed), attributes...)
}
