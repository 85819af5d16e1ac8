package service

import (
	"context"
	"time"

	id "electa/pkg/domain"
	dErrors "electa/pkg/domain-errors"
	"electa/pkg/platform/audit"
	"electa/pkg/requestcontext"
)

// Logout revokes the presented token until it would have expired. A
// request without a token is a no-op so logout stays idempotent.
func (s *Service) Logout(ctx context.Context, accountID id.AccountID, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	ttl := expiresAt.Sub(requestcontext.Now(ctx))
	if ttl <= 0 {
		return nil
	}
	if err := s.trl.RevokeToken(ctx, jti, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}

	s.logAudit(ctx, string(audit.EventLoggedOut),
		"account_id", accountID.String(),
		"jti", jti,
	)
	if s.metrics != nil {
		s.metrics.IncrementTokensRevoked()
	}
	return nil
}

// IsTokenRevoked satisfies the auth middleware's revocation check.
func (s *Service) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return s.trl.IsRevoked(ctx, jti)
}
