package admin

import (
	"log/slog"
	"net/http"

	"electa/pkg/requestcontext"
)

// RoleAdmin is the role claim value granting admin routes.
const RoleAdmin = "admin"

// RequireAdmin must run after auth.RequireAuth. It rejects sessions whose
// role claim is not admin.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.Role(ctx) != RoleAdmin {
				logger.WarnContext(ctx, "admin role required",
					"request_id", requestcontext.RequestID(ctx),
					"account_id", requestcontext.AccountID(ctx).String(),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"You are not allowed to access this resource"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
