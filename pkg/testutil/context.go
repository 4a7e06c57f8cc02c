package testutil

import (
	"net/http"

	id "shebacred/pkg/domain"
	"shebacred/pkg/requestcontext"
)

// WithPrincipal simulates RequireAuth for a holder.
func WithPrincipal(req *http.Request, principal id.PrincipalID) *http.Request {
	return req.WithContext(requestcontext.WithPrincipalID(req.Context(), principal))
}

// WithIssuer simulates RequireAuth for institution staff acting for issuer.
func WithIssuer(req *http.Request, principal id.PrincipalID, issuer id.IssuerID) *http.Request {
	ctx := requestcontext.WithPrincipalID(req.Context(), principal)
	return req.WithContext(requestcontext.WithIssuerID(ctx, issuer))
}

// WithBearer sets an Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
