package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"

	accountModels "electa/internal/account/models"
	authmetrics "electa/internal/auth/metrics"
	"electa/internal/auth/token"
	"electa/internal/notify"
	dErrors "electa/pkg/domain-errors"
	"electa/pkg/email"
	"electa/pkg/platform/audit"
	"electa/pkg/platform/sentinel"
	"electa/pkg/requestcontext"
)

// errCodeReplaced aborts a conditional clear when the stored code is no
// longer the one this call issued.
var errCodeReplaced = errors.New("login code replaced")

// LoginResult is a verified account and its new session token.
type LoginResult struct {
	Account *accountModels.Account
	Token   token.Issued
}

// RequestCode generates a code for the account, stores only its hash, and
// delivers it. If delivery fails the code is cleared before returning.
func (s *Service) RequestCode(ctx context.Context, emailAddr string) error {
	address := email.Normalize(emailAddr)
	if address == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}

	account, err := s.accounts.FindByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "invalid email")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up account")
	}

	code, err := s.generateCode()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate login code")
	}
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(code), s.bcryptCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash login code")
	}
	hash := string(hashBytes)
	now := requestcontext.Now(ctx)

	if _, err := s.accounts.Execute(ctx, account.ID, nil, func(a *accountModels.Account) {
		a.SetLoginCode(hash, now.Add(s.codeTTL))
		a.UpdatedAt = now
	}); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "invalid email")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store login code")
	}

	if err := s.notifier.Send(ctx, notify.LoginCodeMessage(account.Email, code, s.codeTTL)); err != nil {
		s.invalidateUndelivered(ctx, account, hash)
		s.logAudit(ctx, string(audit.EventLoginCodeUndeliver),
			"account_id", account.ID.String(),
			"email", account.Email,
			"reason", err.Error(),
		)
		if s.metrics != nil {
			s.metrics.IncrementDeliveryFailures()
		}
		return dErrors.Wrap(err, dErrors.CodeDeliveryFailed, "email could not be sent")
	}

	s.logAudit(ctx, string(audit.EventLoginCodeIssued),
		"account_id", account.ID.String(),
		"email", account.Email,
	)
	if s.metrics != nil {
		s.metrics.IncrementLoginCodesIssued()
	}
	return nil
}

// invalidateUndelivered clears the code this call stored. A newer code from
// a concurrent request is left alone. Runs detached from request
// cancellation so a disconnect cannot leave the code behind.
func (s *Service) invalidateUndelivered(ctx context.Context, account *accountModels.Account, hash string) {
	ctx = context.WithoutCancel(ctx)
	_, err := s.accounts.Execute(ctx, account.ID,
		func(a *accountModels.Account) error {
			if a.CodeHash == nil || *a.CodeHash != hash {
				return errCodeReplaced
			}
			return nil
		},
		func(a *accountModels.Account) {
			a.ClearLoginCode()
		},
	)
	if err != nil && !errors.Is(err, errCodeReplaced) && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to clear undelivered login code",
			"account_id", account.ID.String(),
			"error", err,
		)
	}
}

// VerifyCode exchanges a live code for a session token. The code is
// cleared before the token is issued; an expired code is cleared too.
func (s *Service) VerifyCode(ctx context.Context, emailAddr, code string) (*LoginResult, error) {
	address := email.Normalize(emailAddr)
	if address == "" || code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email and OTP are required")
	}
	now := requestcontext.Now(ctx)

	account, err := s.accounts.FindByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.observeLogin(authmetrics.OutcomeInvalidOrExpired)
			return nil, errInvalidOrExpired()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up account")
	}

	if !account.LoginCodeActive(now) {
		if account.HasLoginCode() {
			s.clearExpired(ctx, account)
		}
		s.authFailure(ctx, "code_invalid_or_expired",
			"account_id", account.ID.String(),
			"email", account.Email,
		)
		s.observeLogin(authmetrics.OutcomeInvalidOrExpired)
		return nil, errInvalidOrExpired()
	}

	hash := *account.CodeHash
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		s.authFailure(ctx, "code_mismatch",
			"account_id", account.ID.String(),
			"email", account.Email,
		)
		s.observeLogin(authmetrics.OutcomeInvalidCredential)
		return nil, dErrors.New(dErrors.CodeInvalidCredential, "invalid OTP")
	}

	// Consume only if the matched code is still stored and live, so two
	// concurrent verifications cannot both succeed.
	consumed, err := s.accounts.Execute(ctx, account.ID,
		func(a *accountModels.Account) error {
			if !a.LoginCodeActive(now) || *a.CodeHash != hash {
				return errInvalidOrExpired()
			}
			return nil
		},
		func(a *accountModels.Account) {
			a.ClearLoginCode()
			a.UpdatedAt = now
		},
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidOrExpired) {
			s.observeLogin(authmetrics.OutcomeInvalidOrExpired)
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume login code")
	}

	issued, err := s.tokens.Issue(consumed.ID, consumed.Role.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	s.logAudit(ctx, string(audit.EventLoginSucceeded),
		"account_id", consumed.ID.String(),
		"email", consumed.Email,
	)
	s.observeLogin(authmetrics.OutcomeSuccess)
	return &LoginResult{Account: consumed, Token: issued}, nil
}

// clearExpired drops an expired code if it is still the stored one.
func (s *Service) clearExpired(ctx context.Context, account *accountModels.Account) {
	hash := *account.CodeHash
	_, err := s.accounts.Execute(ctx, account.ID,
		func(a *accountModels.Account) error {
			if a.CodeHash == nil || *a.CodeHash != hash {
				return errCodeReplaced
			}
			return nil
		},
		func(a *accountModels.Account) {
			a.ClearLoginCode()
		},
	)
	if err != nil && !errors.Is(err, errCodeReplaced) && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to clear expired login code",
			"account_id", account.ID.String(),
			"error", err,
		)
	}
}

func (s *Service) observeLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveLogin(outcome)
	}
}

func errInvalidOrExpired() error {
	return dErrors.New(dErrors.CodeInvalidOrExpired, "OTP is invalid or expired")
}

// randomCode returns 10 hex characters from 5 random bytes.
func randomCode() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
