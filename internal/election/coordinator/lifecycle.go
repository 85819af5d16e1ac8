package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	accountModels "electa/internal/account/models"
	"electa/internal/election/models"
	"electa/internal/notify"
	id "electa/pkg/domain"
	dErrors "electa/pkg/domain-errors"
	"electa/pkg/platform/audit"
	"electa/pkg/platform/sentinel"
	"electa/pkg/requestcontext"
)

// releaseAttempts bounds retries when a reconciliation write-back races the release.
const releaseAttempts = 5

// Start opens voting for every account and notifies them. Each account is
// processed independently; failures are collected, never abort the batch.
func (c *Coordinator) Start(ctx context.Context) (models.FanOutResult, error) {
	held, err := c.acquire(ctx, models.TransitionStart)
	if err != nil {
		return models.FanOutResult{}, err
	}
	defer c.release(ctx, held, false)

	result, err := c.fanOut(ctx, models.TransitionStart,
		func(a *accountModels.Account) notify.Message {
			return notify.ElectionStartedMessage(a.Email)
		},
		func(a *accountModels.Account) {
			a.ApplyElectionState(true)
		},
	)
	if err != nil {
		return result, err
	}

	c.logAudit(ctx, string(audit.EventElectionStarted),
		"address", held.Address.String(),
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", len(result.Failures),
	)
	return result, result.Err()
}

// End closes voting, resets every account's vote, and links the results for
// address. Once the fan-out has run, a reference pointing at address is
// cleared back to the null address.
func (c *Coordinator) End(ctx context.Context, rawAddress string) (models.FanOutResult, error) {
	address, err := parseElectionAddress(rawAddress)
	if err != nil {
		return models.FanOutResult{}, err
	}

	held, err := c.acquire(ctx, models.TransitionEnd)
	if err != nil {
		return models.FanOutResult{}, err
	}
	clearAddress := held.Address.Equal(address)
	defer func() {
		c.release(ctx, held, clearAddress)
	}()

	result, err := c.fanOut(ctx, models.TransitionEnd,
		func(a *accountModels.Account) notify.Message {
			return notify.ElectionEndedMessage(a.Email, c.publicBaseURL, address.String())
		},
		func(a *accountModels.Account) {
			a.ApplyElectionState(false)
		},
	)
	if err != nil {
		clearAddress = false
		return result, err
	}

	if !clearAddress && held.HasElection() && c.logger != nil {
		c.logger.WarnContext(ctx, "ended election is not the deployed reference",
			"ended", address.String(),
			"deployed", held.Address.String(),
		)
	}
	c.logAudit(ctx, string(audit.EventElectionEnded),
		"address", address.String(),
		"total", result.Total,
		"succeeded", result.Succeeded,
		"failed", len(result.Failures),
	)
	return result, result.Err()
}

// Deploy points the reference at a new ledger address. Redeploying the live
// address is a no-op; any other live address is a conflict.
func (c *Coordinator) Deploy(ctx context.Context, rawAddress string) (models.Reference, error) {
	address, err := parseElectionAddress(rawAddress)
	if err != nil {
		return models.Reference{}, err
	}
	now := requestcontext.Now(ctx)

	current, err := c.references.Get(ctx)
	if err != nil {
		return models.Reference{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read election reference")
	}
	if current.HasElection() {
		if current.Address.Equal(address) {
			return current, nil
		}
		return models.Reference{}, dErrors.New(dErrors.CodeConflict, "another election is already deployed")
	}
	if current.TransitionHeld(now, c.staleAfter) {
		return models.Reference{}, dErrors.New(dErrors.CodeConflict, "an election transition is in progress")
	}

	next := models.Reference{Address: address, UpdatedAt: now}
	saved, err := c.references.CompareAndSwap(ctx, current.Version, next)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Reference{}, dErrors.New(dErrors.CodeConflict, "election reference changed concurrently")
		}
		return models.Reference{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save election reference")
	}

	c.logAudit(ctx, string(audit.EventElectionDeployed), "address", address.String())
	return saved, nil
}

// Current returns the stored reference.
func (c *Coordinator) Current(ctx context.Context) (models.Reference, error) {
	ref, err := c.references.Get(ctx)
	if err != nil {
		return models.Reference{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read election reference")
	}
	return ref, nil
}

func parseElectionAddress(raw string) (id.Address, error) {
	address, err := id.ParseAddress(raw)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidArgument, "Election address is required")
	}
	if address.IsNull() {
		return "", dErrors.New(dErrors.CodeInvalidArgument, "Election address must not be the null address")
	}
	return address, nil
}

// acquire takes the single-writer transition marker.
func (c *Coordinator) acquire(ctx context.Context, t models.Transition) (models.Reference, error) {
	now := requestcontext.Now(ctx)
	current, err := c.references.Get(ctx)
	if err != nil {
		return models.Reference{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read election reference")
	}
	if current.TransitionHeld(now, c.staleAfter) {
		return models.Reference{}, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("election %s already in progress", current.Transition))
	}
	held, err := c.references.CompareAndSwap(ctx, current.Version, current.WithTransition(t, now))
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Reference{}, dErrors.New(dErrors.CodeConflict, "another election command is running")
		}
		return models.Reference{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock election reference")
	}
	return held, nil
}

// release drops the marker this call holds, optionally clearing the address.
// A marker taken over after going stale is left alone.
func (c *Coordinator) release(ctx context.Context, held models.Reference, clearAddress bool) {
	ctx = context.WithoutCancel(ctx)
	for range releaseAttempts {
		current, err := c.references.Get(ctx)
		if err != nil {
			c.logReleaseFailure(ctx, err)
			return
		}
		if current.Transition != held.Transition || current.TransitionAt == nil ||
			!current.TransitionAt.Equal(*held.TransitionAt) {
			return
		}

		now := requestcontext.Now(ctx)
		next := current.Released(now)
		if clearAddress {
			next = next.Cleared(now)
		}
		_, err = c.references.CompareAndSwap(ctx, current.Version, next)
		if err == nil {
			return
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			c.logReleaseFailure(ctx, err)
			return
		}
	}
	c.logReleaseFailure(ctx, errors.New("release kept conflicting"))
}

func (c *Coordinator) logReleaseFailure(ctx context.Context, err error) {
	if c.logger != nil {
		c.logger.ErrorContext(ctx, "failed to release election transition; it expires after the stale timeout",
			"error", err,
		)
	}
}

// fanOut applies mutate and sends msg for every account on a bounded pool.
// Each unit writes only its own slot, so the aggregate needs no locking.
func (c *Coordinator) fanOut(
	ctx context.Context,
	t models.Transition,
	msg func(*accountModels.Account) notify.Message,
	mutate func(*accountModels.Account),
) (models.FanOutResult, error) {
	// An admin disconnect must not strand half the accounts.
	ctx = context.WithoutCancel(ctx)
	ctx, span := c.tracer.Start(ctx, "election.fanout", trace.WithAttributes(
		attribute.String("election.transition", string(t)),
	))
	defer span.End()
	started := time.Now()

	accounts, err := c.accounts.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list accounts")
		return models.FanOutResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list accounts")
	}
	span.SetAttributes(attribute.Int("election.accounts", len(accounts)))

	errs := make([]error, len(accounts))
	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for i, account := range accounts {
		g.Go(func() error {
			errs[i] = c.unit(ctx, t, account, msg, mutate)
			return nil
		})
	}
	_ = g.Wait()

	result := models.FanOutResult{Total: len(accounts)}
	for i, err := range errs {
		if err == nil {
			result.Succeeded++
			continue
		}
		failure := models.AccountFailure{AccountID: accounts[i].ID, Email: accounts[i].Email, Err: err}
		result.Failures = append(result.Failures, failure)
		c.logAudit(ctx, string(audit.EventElectionFanOutFailed),
			"account_id", failure.AccountID.String(),
			"email", failure.Email,
			"transition", string(t),
			"reason", err.Error(),
		)
	}

	span.SetAttributes(
		attribute.Int("election.succeeded", result.Succeeded),
		attribute.Int("election.failed", len(result.Failures)),
	)
	if len(result.Failures) > 0 {
		span.SetStatus(codes.Error, "partial failure")
	}
	if c.metrics != nil {
		c.metrics.ObserveFanOut(string(t), time.Since(started))
	}
	return result, nil
}

// unit processes one account. The flag write and the notification are both
// attempted; either failing fails the unit with the errors joined.
func (c *Coordinator) unit(
	ctx context.Context,
	t models.Transition,
	account *accountModels.Account,
	msg func(*accountModels.Account) notify.Message,
	mutate func(*accountModels.Account),
) error {
	ctx, span := c.tracer.Start(ctx, "election.fanout.unit", trace.WithAttributes(
		attribute.String("account.id", account.ID.String()),
	))
	defer span.End()
	now := requestcontext.Now(ctx)

	var errs []error
	_, err := c.accounts.Execute(ctx, account.ID, nil, func(a *accountModels.Account) {
		mutate(a)
		a.UpdatedAt = now
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		// Deleted since the listing; nothing to notify.
		return nil
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("update account: %w", err))
	}
	if err := c.notifier.Send(ctx, msg(account)); err != nil {
		errs = append(errs, fmt.Errorf("notify: %w", err))
	}

	joined := errors.Join(errs...)
	if joined != nil {
		span.RecordError(joined)
		span.SetStatus(codes.Error, "unit failed")
	}
	if c.metrics != nil {
		c.metrics.ObserveUnit(string(t), joined == nil)
	}
	return joined
}
