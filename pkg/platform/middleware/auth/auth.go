package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	id "electa/pkg/domain"
	"electa/pkg/requestcontext"
)

// CookieName is the session cookie carrying the bearer token.
const CookieName = "token"

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// TokenRevocationChecker defines the interface for checking if tokens are revoked
type TokenRevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	AccountID string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// TokenFromRequest prefers the session cookie and falls back to a Bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// RequireAuth rejects requests without a valid, unrevoked session token.
func RequireAuth(validator JWTValidator, revocationChecker TokenRevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token := TokenFromRequest(r)
			if token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Login first to access this resource")
				return
			}

			authCtx, status, desc := authenticate(ctx, token, validator, revocationChecker, logger)
			if status != 0 {
				writeJSONError(w, status, errorCode(status), desc)
				return
			}
			next.ServeHTTP(w, r.WithContext(authCtx))
		})
	}
}

// OptionalAuth attaches session values when a valid token is present and
// otherwise passes the request through untouched.
func OptionalAuth(validator JWTValidator, revocationChecker TokenRevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			authCtx, status, _ := authenticate(r.Context(), token, validator, revocationChecker, logger)
			if status != 0 {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(authCtx))
		})
	}
}

func errorCode(status int) string {
	if status == http.StatusInternalServerError {
		return "internal_error"
	}
	return "unauthorized"
}

func authenticate(
	ctx context.Context,
	token string,
	validator JWTValidator,
	revocationChecker TokenRevocationChecker,
	logger *slog.Logger,
) (context.Context, int, string) {
	requestID := requestcontext.RequestID(ctx)

	claims, err := validator.ValidateToken(token)
	if err != nil {
		logger.WarnContext(ctx, "unauthorized access - invalid token",
			"error", err,
			"request_id", requestID,
		)
		return ctx, http.StatusUnauthorized, "Invalid or expired token"
	}

	accountID, err := id.ParseAccountID(claims.AccountID)
	if err != nil {
		logger.WarnContext(ctx, "unauthorized access - invalid subject",
			"request_id", requestID,
		)
		return ctx, http.StatusUnauthorized, "Invalid or expired token"
	}

	if revocationChecker != nil {
		if claims.JTI == "" {
			logger.WarnContext(ctx, "unauthorized access - missing token jti",
				"request_id", requestID,
			)
			return ctx, http.StatusUnauthorized, "Invalid or expired token"
		}
		revoked, err := revocationChecker.IsTokenRevoked(ctx, claims.JTI)
		if err != nil {
			logger.ErrorContext(ctx, "failed to check token revocation",
				"error", err,
				"request_id", requestID,
			)
			return ctx, http.StatusInternalServerError, "Failed to validate token"
		}
		if revoked {
			logger.WarnContext(ctx, "unauthorized access - token revoked",
				"jti", claims.JTI,
				"request_id", requestID,
			)
			return ctx, http.StatusUnauthorized, "Token has been revoked"
		}
	}

	ctx = requestcontext.WithAccountID(ctx, accountID)
	ctx = requestcontext.WithRole(ctx, claims.Role)
	ctx = requestcontext.WithToken(ctx, claims.JTI, claims.ExpiresAt)
	return ctx, 0, ""
}
