package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	accountModels "electa/internal/account/models"
	"electa/internal/auth/models"
	"electa/internal/auth/service"
	id "electa/pkg/domain"
	dErrors "electa/pkg/domain-errors"
	"electa/pkg/platform/httputil"
	authmw "electa/pkg/platform/middleware/auth"
	"electa/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the credential issuer as seen by HTTP.
type Service interface {
	RequestCode(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) (*service.LoginResult, error)
	Logout(ctx context.Context, accountID id.AccountID, jti string, expiresAt time.Time) error
}

// Handler serves the login routes.
type Handler struct {
	service       Service
	logger        *slog.Logger
	optionalAuth  func(http.Handler) http.Handler
	secureCookies bool
	codeThrottle  func(http.Handler) http.Handler
	loginThrottle func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithThrottles guards /generateOtp and /login, typically with per-IP rate limits.
func WithThrottles(code, login func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		if code != nil {
			h.codeThrottle = code
		}
		if login != nil {
			h.loginThrottle = login
		}
	}
}

func passthrough(next http.Handler) http.Handler { return next }

// New wires the handler. optionalAuth attaches the session to /logout when
// one is presented.
func New(svc Service, logger *slog.Logger, optionalAuth func(http.Handler) http.Handler, secureCookies bool, opts ...Option) *Handler {
	h := &Handler{
		service:       svc,
		logger:        logger,
		optionalAuth:  optionalAuth,
		secureCookies: secureCookies,
		codeThrottle:  passthrough,
		loginThrottle: passthrough,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.With(h.codeThrottle).Post("/generateOtp", h.HandleGenerateCode)
	r.With(h.loginThrottle).Post("/login", h.HandleLogin)
	r.With(h.optionalAuth).Get("/logout", h.HandleLogout)
}

func (h *Handler) HandleGenerateCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.GenerateCodeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.RequestCode(ctx, req.Email); err != nil {
		h.logError(ctx, "failed to issue login code", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, accountModels.MessageEnvelope{
		Success: true,
		Message: "Email sent to " + req.Email,
	})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	result, err := h.service.VerifyCode(ctx, req.Email, req.OTP)
	if err != nil {
		h.logError(ctx, "login failed", err)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authmw.CookieName,
		Value:    result.Token.Token,
		Path:     "/",
		Expires:  result.Token.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	httputil.WriteJSON(w, http.StatusOK, models.LoginResponse{
		Success: true,
		User:    accountModels.ToResponse(result.Account),
		Token:   result.Token.Token,
	})
}

// HandleLogout revokes the presented session, if any, and always clears the cookie.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.service.Logout(ctx,
		requestcontext.AccountID(ctx),
		requestcontext.TokenID(ctx),
		requestcontext.TokenExpiry(ctx),
	)
	if err != nil {
		h.logError(ctx, "failed to revoke session", err)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authmw.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	httputil.WriteJSON(w, http.StatusOK, accountModels.MessageEnvelope{
		Success: true,
		Message: "Logged out successfully",
	})
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
