package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	accountModels "electa/internal/account/models"
	"electa/internal/election/models"
	id "electa/pkg/domain"
	dErrors "electa/pkg/domain-errors"
	"electa/pkg/platform/httputil"
	"electa/pkg/platform/middleware/admin"
	"electa/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Coordinator Reconciler

// Coordinator runs lifecycle commands.
type Coordinator interface {
	Start(ctx context.Context) (models.FanOutResult, error)
	End(ctx context.Context, address string) (models.FanOutResult, error)
	Deploy(ctx context.Context, address string) (models.Reference, error)
	Current(ctx context.Context) (models.Reference, error)
}

// Reconciler produces the live election view for an account.
type Reconciler interface {
	Reconcile(ctx context.Context, accountID id.AccountID) models.ReconciledAccount
}

// Handler serves election routes under /api/election.
type Handler struct {
	coordinator Coordinator
	reconciler  Reconciler
	logger      *slog.Logger
	requireAuth func(http.Handler) http.Handler
}

func New(coordinator Coordinator, reconciler Reconciler, logger *slog.Logger, requireAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{
		coordinator: coordinator,
		reconciler:  reconciler,
		logger:      logger,
		requireAuth: requireAuth,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/election", h.HandleGetElection)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/status", h.HandleStatus)

		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdmin(h.logger))
			r.Get("/startElection", h.HandleStart)
			r.Put("/endElection", h.HandleEnd)
			r.Put("/election", h.HandleDeploy)
		})
	})
}

func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.coordinator.Start(ctx)
	h.writeFanOut(ctx, w, result, err, "Election started successfully")
}

func (h *Handler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.AddressRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	result, err := h.coordinator.End(ctx, req.Address)
	h.writeFanOut(ctx, w, result, err, "Election ended successfully")
}

// writeFanOut renders a partial failure as 500 with the per-account errors.
// Other errors use the standard error body.
func (h *Handler) writeFanOut(ctx context.Context, w http.ResponseWriter, result models.FanOutResult, err error, message string) {
	var pf *models.PartialFailureError
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, models.ToFanOutEnvelope(result, message))
	case errors.As(err, &pf):
		h.logger.ErrorContext(ctx, "election fan-out partially failed",
			"request_id", requestcontext.RequestID(ctx),
			"succeeded", pf.Succeeded,
			"failed", len(pf.Failures),
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, models.ToFanOutEnvelope(result, message))
	default:
		h.logError(ctx, "election command failed", err)
		httputil.WriteError(w, err)
	}
}

func (h *Handler) HandleDeploy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.AddressRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	ref, err := h.coordinator.Deploy(ctx, req.Address)
	if err != nil {
		h.logError(ctx, "failed to deploy election", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ElectionEnvelope{Success: true, Election: models.ToElectionResponse(ref)})
}

func (h *Handler) HandleGetElection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, err := h.coordinator.Current(ctx)
	if err != nil {
		h.logError(ctx, "failed to read election", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ElectionEnvelope{Success: true, Election: models.ToElectionResponse(ref)})
}

// HandleStatus returns the caller's account merged with the live ledger state.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view := h.reconciler.Reconcile(ctx, requestcontext.AccountID(ctx))
	if view.Account == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "User not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.StatusEnvelope{
		Success:       true,
		User:          accountModels.ToResponse(view.Account),
		ElectionOpen:  view.ElectionOpen,
		ElectionState: view.State,
		Election:      models.ToElectionResponse(view.Reference),
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
		"account_id", requestcontext.AccountID(ctx).String(),
	)
}
