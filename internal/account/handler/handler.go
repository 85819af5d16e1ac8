package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"electa/internal/account/models"
	"electa/internal/account/service"
	id "electa/pkg/domain"
	dErrors "electa/pkg/domain-errors"
	"electa/pkg/platform/httputil"
	"electa/pkg/platform/middleware/admin"
	pstrings "electa/pkg/platform/strings"
	"electa/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the account operations the HTTP layer needs.
type Service interface {
	Register(ctx context.Context, cmd service.RegisterCommand) (*models.Account, error)
	Get(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	List(ctx context.Context, roles ...models.Role) ([]*models.Account, error)
	Delete(ctx context.Context, accountID id.AccountID) error
	Edit(ctx context.Context, accountID id.AccountID, cmd service.EditCommand) (*models.Account, error)
	Vote(ctx context.Context, accountID id.AccountID) (*models.Account, error)
}

// Handler serves account routes under /api/election.
type Handler struct {
	service     Service
	logger      *slog.Logger
	requireAuth func(http.Handler) http.Handler
}

// New wires the handler. requireAuth guards every route it registers.
func New(svc Service, logger *slog.Logger, requireAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{service: svc, logger: logger, requireAuth: requireAuth}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/getUser", h.HandleGetUser)
		r.Put("/edit", h.HandleEdit)
		r.Put("/vote", h.HandleVote)

		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdmin(h.logger))
			r.Post("/register", h.HandleRegister)
			r.Get("/allUsers", h.HandleAllUsers)
			r.Delete("/delete/{id}", h.HandleDelete)
		})
	})
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	account, err := h.service.Register(ctx, service.RegisterCommand{
		Name:          req.Name,
		Email:         req.Email,
		WalletAddress: req.EAddress,
		Role:          req.Role,
	})
	if err != nil {
		h.logError(ctx, "failed to register account", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.AccountEnvelope{Success: true, User: models.ToResponse(account)})
}

func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := h.service.Get(ctx, requestcontext.AccountID(ctx))
	if err != nil {
		h.logError(ctx, "failed to get account", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.AccountEnvelope{Success: true, User: models.ToResponse(account)})
}

// HandleAllUsers lists accounts. An optional ?role=voter,admin narrows the list.
func (h *Handler) HandleAllUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var roles []models.Role
	for _, role := range pstrings.SplitList(r.URL.Query().Get("role")) {
		roles = append(roles, models.Role(role))
	}

	accounts, err := h.service.List(ctx, roles...)
	if err != nil {
		h.logError(ctx, "failed to list accounts", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.AccountListEnvelope{Success: true, Users: models.ToResponses(accounts)})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, err := id.ParseAccountID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid account id"))
		return
	}
	if err := h.service.Delete(ctx, accountID); err != nil {
		h.logError(ctx, "failed to delete account", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.MessageEnvelope{Success: true, Message: "User deleted successfully"})
}

func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.EditRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	account, err := h.service.Edit(ctx, requestcontext.AccountID(ctx), service.EditCommand{
		Name:          req.Name,
		WalletAddress: req.EAddress,
	})
	if err != nil {
		h.logError(ctx, "failed to edit account", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.AccountEnvelope{Success: true, User: models.ToResponse(account)})
}

func (h *Handler) HandleVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := h.service.Vote(ctx, requestcontext.AccountID(ctx))
	if err != nil {
		h.logError(ctx, "failed to record vote", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.AccountEnvelope{Success: true, User: models.ToResponse(account)})
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
