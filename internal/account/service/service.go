package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"electa/internal/account/models"
	"electa/internal/account/store"
	"electa/internal/platform/metrics"
	"electa/pkg/attrs"
	id "electa/pkg/domain"
	dErrors "electa/pkg/domain-errors"
	"electa/pkg/email"
	"electa/pkg/platform/audit"
	"electa/pkg/platform/sentinel"
	"electa/pkg/requestcontext"
)

// Store is the account persistence port. Execute applies a validated
// mutation to one account as a single atomic write.
type Store interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	ListAll(ctx context.Context, roles ...models.Role) ([]*models.Account, error)
	Delete(ctx context.Context, accountID id.AccountID) error
	Execute(ctx context.Context, accountID id.AccountID, validate func(*models.Account) error, mutate func(*models.Account)) (*models.Account, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages account registration, profile edits and votes.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterCommand carries admin input for a new account.
type RegisterCommand struct {
	Name          string
	Email         string
	WalletAddress string
	Role          models.Role
}

// EditCommand carries the fields an account holder may change.
type EditCommand struct {
	Name          string
	WalletAddress string
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*models.Account, error) {
	address := email.Normalize(cmd.Email)
	if err := email.Validate(address); err != nil {
		return nil, err
	}
	wallet, err := id.ParseAddress(cmd.WalletAddress)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}

	account, err := models.NewAccount(id.NewAccountID(), strings.TrimSpace(cmd.Name), address, wallet, cmd.Role, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.Create(ctx, account); err != nil {
		return nil, translateWriteError(err, "failed to register account")
	}

	s.logAudit(ctx, string(audit.EventAccountRegistered),
		"account_id", account.ID.String(),
		"email", account.Email,
		"role", account.Role.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementAccountsRegistered()
	}
	return account, nil
}

// SeedAdmin creates an admin with the given email unless one already exists.
func (s *Service) SeedAdmin(ctx context.Context, emailAddr, name, wallet string) (*models.Account, bool, error) {
	existing, err := s.store.FindByEmail(ctx, email.Normalize(emailAddr))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up seed admin")
	}
	account, err := s.Register(ctx, RegisterCommand{
		Name:          name,
		Email:         emailAddr,
		WalletAddress: wallet,
		Role:          models.RoleAdmin,
	})
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

func (s *Service) Get(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "account ID required")
	}
	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return account, nil
}

func (s *Service) List(ctx context.Context, roles ...models.Role) ([]*models.Account, error) {
	for _, r := range roles {
		if !r.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, "role must be voter or admin")
		}
	}
	accounts, err := s.store.ListAll(ctx, roles...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list accounts")
	}
	return accounts, nil
}

func (s *Service) Delete(ctx context.Context, accountID id.AccountID) error {
	if accountID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "account ID required")
	}

	// Capture the account before deletion to enrich audit events
	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up account")
	}

	if err := s.store.Delete(ctx, accountID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete account")
	}

	s.logAudit(ctx, string(audit.EventAccountDeleted),
		"account_id", accountID.String(),
		"email", account.Email,
	)
	if s.metrics != nil {
		s.metrics.IncrementAccountsDeleted()
	}
	return nil
}

// Edit updates the caller's display name and wallet address.
func (s *Service) Edit(ctx context.Context, accountID id.AccountID, cmd EditCommand) (*models.Account, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "account ID required")
	}
	name := strings.TrimSpace(cmd.Name)
	if err := models.ValidateName(name); err != nil {
		return nil, err
	}
	wallet, err := id.ParseAddress(cmd.WalletAddress)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if wallet.IsNull() {
		return nil, dErrors.New(dErrors.CodeValidation, "wallet address is required")
	}
	now := requestcontext.Now(ctx)

	account, err := s.store.Execute(ctx, accountID, nil, func(a *models.Account) {
		a.Name = name
		a.WalletAddress = wallet
		a.UpdatedAt = now
	})
	if err != nil {
		return nil, translateWriteError(err, "failed to update account")
	}

	s.logAudit(ctx, string(audit.EventAccountUpdated),
		"account_id", account.ID.String(),
		"email", account.Email,
	)
	return account, nil
}

// Vote records that the caller has voted in the ongoing election.
func (s *Service) Vote(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "account ID required")
	}
	now := requestcontext.Now(ctx)

	account, err := s.store.Execute(ctx, accountID,
		func(a *models.Account) error {
			return a.CanVote()
		},
		func(a *models.Account) {
			a.MarkVoted()
			a.UpdatedAt = now
		},
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, err
		}
		return nil, translateWriteError(err, "failed to record vote")
	}

	s.logAudit(ctx, string(audit.EventVoteRecorded),
		"account_id", account.ID.String(),
		"email", account.Email,
	)
	if s.metrics != nil {
		s.metrics.IncrementVotesRecorded()
	}
	return account, nil
}

func translateWriteError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "account not found")
	case errors.Is(err, sentinel.ErrConflict):
		if field := store.ConflictField(err); field != "" {
			return dErrors.New(dErrors.CodeConflict, field+" is already registered")
		}
		return dErrors.New(dErrors.CodeConflict, "account already exists")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

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
	actor := requestcontext.AccountID(ctx)
	ev := audit.Event{
		AccountID: accountID,
		Subject:   accountID.String(),
		Action:    event,
		Email:     attrs.ExtractString(attributes, "email"),
		RequestID: requestcontext.RequestID(ctx),
		Device:    requestcontext.Device(ctx),
	}
	if !actor.IsNil() && actor != accountID {
		ev.ActorID = actor.String()
	}
	if err := s.auditPublisher.Emit(ctx, ev); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"event", event,
			"error", err,
		)
	}
}
