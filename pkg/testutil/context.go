package testutil

import (
	"net/http"

	id "electa/pkg/domain"
	"electa/pkg/requestcontext"
)

// WithAccount simulates what the auth middleware does for an authenticated request.
// If accountID is not a valid UUID the request is returned unchanged.
func WithAccount(req *http.Request, accountID, role string) *http.Request {
	parsed, err := id.ParseAccountID(accountID)
	if err != nil {
		return req
	}
	ctx := requestcontext.WithAccountID(req.Context(), parsed)
	ctx = requestcontext.WithRole(ctx, role)
	return req.WithContext(ctx)
}
