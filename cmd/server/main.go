package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	accountHandler "electa/internal/account/handler"
	accountService "electa/internal/account/service"
	authHandler "electa/internal/auth/handler"
	authmetrics "electa/internal/auth/metrics"
	authService "electa/internal/auth/service"
	"electa/internal/auth/token"
	"electa/internal/election/coordinator"
	electionHandler "electa/internal/election/handler"
	electionMetrics "electa/internal/election/metrics"
	"electa/internal/election/reconcile"
	"electa/internal/platform/config"
	"electa/internal/platform/httpserver"
	"electa/internal/platform/logger"
	"electa/internal/platform/metrics"
	"electa/internal/ratelimit"
	httptransport "electa/internal/transport/http"
	"electa/pkg/platform/audit/publisher"
	authmw "electa/pkg/platform/middleware/auth"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogFormat, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	auditPublisher := publisher.NewPublisher(infra.auditStore,
		publisher.WithAsyncBuffer(1024),
		publisher.WithLogger(log),
	)
	defer auditPublisher.Close()

	httpMetrics := metrics.New()

	accounts := accountService.New(infra.accounts,
		accountService.WithLogger(log),
		accountService.WithAuditPublisher(auditPublisher),
		accountService.WithMetrics(httpMetrics),
	)
	if cfg.SeedAdminEmail != "" {
		admin, created, err := accounts.SeedAdmin(ctx, cfg.SeedAdminEmail, cfg.SeedAdminName, cfg.SeedAdminWallet)
		if err != nil {
			return err
		}
		if created {
			log.Info("seeded admin account", "account_id", admin.ID.String(), "email", admin.Email)
		}
	}

	jwtService := token.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
	auth := authService.New(infra.accounts, jwtService, infra.notifier, infra.revocations,
		authService.WithCodeTTL(cfg.Auth.LoginCodeTTL),
		authService.WithBcryptCost(cfg.Auth.BcryptCost),
		authService.WithLogger(log),
		authService.WithAuditPublisher(auditPublisher),
		authService.WithMetrics(authmetrics.New()),
	)

	validator := token.NewMiddlewareAdapter(jwtService)
	requireAuth := authmw.RequireAuth(validator, auth, log)
	optionalAuth := authmw.OptionalAuth(validator, auth, log)

	election := electionMetrics.New()
	lifecycle := coordinator.New(infra.accounts, infra.references, infra.notifier,
		coordinator.WithLogger(log),
		coordinator.WithAuditPublisher(auditPublisher),
		coordinator.WithMetrics(election),
		coordinator.WithConcurrency(cfg.Election.FanOutConcurrency),
		coordinator.WithStaleAfter(cfg.Election.TransitionStaleAge),
		coordinator.WithPublicBaseURL(cfg.PublicBaseURL),
	)
	reconciler := reconcile.New(infra.accounts, infra.references, infra.ledger,
		reconcile.WithLogger(log),
		reconcile.WithAuditPublisher(auditPublisher),
		reconcile.WithMetrics(election),
	)

	throttle := ratelimit.New(infra.limiter, log,
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
		ratelimit.WithMetrics(infra.limiterMetrics),
	)
	codeLimit := throttle.Limit(ratelimit.Policy{Name: "login_code", Limit: cfg.RateLimit.CodeRequests, Window: cfg.RateLimit.Window})
	loginLimit := throttle.Limit(ratelimit.Policy{Name: "login", Limit: cfg.RateLimit.LoginAttempts, Window: cfg.RateLimit.Window})

	r := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:  log,
		Metrics: httpMetrics,
		Health:  infra.Health,
	},
		authHandler.New(auth, log, optionalAuth, cfg.Auth.SecureCookies, authHandler.WithThrottles(codeLimit, loginLimit)),
		accountHandler.New(accounts, log, requireAuth),
		electionHandler.New(lifecycle, reconciler, log, requireAuth),
	)

	srv := httpserver.New(cfg.Addr, r)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting electa", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
