// Package reconcile merges an account's cached election flags with a live
// ledger read. It never writes the ledger or the account.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	accountModels "electa/internal/account/models"
	"electa/internal/election/ledger"
	"electa/internal/election/metrics"
	"electa/internal/election/models"
	"electa/pkg/attrs"
	id "electa/pkg/domain"
	"electa/pkg/platform/audit"
	"electa/pkg/platform/sentinel"
	"electa/pkg/requestcontext"
)

//go:generate mockgen -source=reconcile.go -destination=mocks/mocks.go -package=mocks AccountReader ReferenceStore

type AccountReader interface {
	FindByID(ctx context.Context, accountID id.AccountID) (*accountModels.Account, error)
}

type ReferenceStore interface {
	Get(ctx context.Context) (models.Reference, error)
	CompareAndSwap(ctx context.Context, expected int64, next models.Reference) (models.Reference, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Reconciler is the Dual-Source Reconciler.
type Reconciler struct {
	accounts   AccountReader
	references ReferenceStore
	ledger     ledger.Reader

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(r *Reconciler) {
		r.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Reconciler) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

func New(accounts AccountReader, references ReferenceStore, reader ledger.Reader, opts ...Option) *Reconciler {
	r := &Reconciler{
		accounts:   accounts,
		references: references,
		ledger:     reader,
		tracer:     otel.Tracer("electa/election/reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile returns the account with its live election view. Upstream
// failures resolve to the safe default: a nil Account when the account
// cannot be read and a closed election when the ledger or reference cannot.
func (r *Reconciler) Reconcile(ctx context.Context, accountID id.AccountID) models.ReconciledAccount {
	ctx, span := r.tracer.Start(ctx, "election.reconcile")
	defer span.End()

	view := models.ReconciledAccount{Reference: models.NullReference(), State: models.StateNoElection}

	account, err := r.accounts.FindByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			view.Degraded = true
			r.warn(ctx, "account unavailable during reconciliation", err)
			span.RecordError(err)
		}
		r.observe(models.StateNoElection, view.Degraded)
		return view
	}
	view.Account = account

	ref, err := r.references.Get(ctx)
	if err != nil {
		view.Degraded = true
		r.warn(ctx, "election reference unavailable", err)
		span.RecordError(err)
		r.observe(models.StateNoElection, true)
		return view
	}
	view.Reference = ref
	span.SetAttributes(attribute.String("election.address", ref.Address.String()))

	if !ref.HasElection() {
		r.observe(models.StateNoElection, false)
		return view
	}

	started, ended, err := r.readLedger(ctx, ref.Address)
	if err != nil {
		view.Degraded = true
		r.warn(ctx, "ledger unavailable; treating election as closed", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger unavailable")
		r.observe(models.StateNoElection, true)
		return view
	}

	view.State = models.DeriveState(true, started, ended)
	view.ElectionOpen = view.State.Open()
	view.Reference = r.writeBack(ctx, ref, started, ended)
	span.SetAttributes(attribute.String("election.state", string(view.State)))
	r.observe(view.State, false)
	return view
}

// readLedger reads both flags concurrently.
func (r *Reconciler) readLedger(ctx context.Context, address id.Address) (started, ended bool, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		started, err = r.ledger.IsStarted(gctx, address)
		return err
	})
	g.Go(func() error {
		var err error
		ended, err = r.ledger.IsEnded(gctx, address)
		return err
	})
	if err := g.Wait(); err != nil {
		return false, false, err
	}
	return started, ended, nil
}

// writeBack records observed flags on the reference and clears an election
// the ledger has finished, or one that went from started back to not
// started. A version conflict means another writer got there first; the
// write is dropped and the next read retries.
func (r *Reconciler) writeBack(ctx context.Context, ref models.Reference, started, ended bool) models.Reference {
	now := requestcontext.Now(ctx)
	drift := ref.Drifted(started, ended)

	var next models.Reference
	switch {
	case drift:
		next = ref.Cleared(now)
	case ref.Started != started || ref.Ended != ended:
		next = ref
		next.Started = started
		next.Ended = ended
		next.UpdatedAt = now
	default:
		return ref
	}

	saved, err := r.references.CompareAndSwap(ctx, ref.Version, next)
	if err != nil {
		if !errors.Is(err, sentinel.ErrConflict) {
			r.warn(ctx, "failed to write back election reference", err)
		}
		return ref
	}

	if drift {
		r.logAudit(ctx, string(audit.EventElectionDriftCleared),
			"address", ref.Address.String(),
			"started", started,
			"ended", ended,
		)
		if r.metrics != nil {
			r.metrics.IncrementDriftCleared()
		}
	}
	return saved
}

func (r *Reconciler) observe(state models.State, degraded bool) {
	if r.metrics == nil {
		return
	}
	switch {
	case degraded:
		r.metrics.ObserveReconcile(metrics.ReconcileDegraded)
	case state == models.StateNoElection:
		r.metrics.ObserveReconcile(metrics.ReconcileNoElection)
	default:
		r.metrics.ObserveReconcile(metrics.ReconcileLedger)
	}
}

func (r *Reconciler) warn(ctx context.Context, msg string, err error) {
	if r.logger != nil {
		r.logger.WarnContext(ctx, msg,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (r *Reconciler) logAudit(ctx context.Context, event string, attributes ...any) {
	args := append(attributes, "event", event, "log_type", "audit")
	if r.logger != nil {
		r.logger.InfoContext(ctx, event, args...)
	}
	if r.auditPublisher == nil {
		return
	}
	if err := r.auditPublisher.Emit(ctx, audit.Event{
		Subject:   attrs.ExtractString(attributes, "address"),
		Action:    event,
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil && r.logger != nil {
		r.logger.ErrorContext(ctx, "failed to emit audit event",
			"event", event,
			"error", err,
		)
	}
}
