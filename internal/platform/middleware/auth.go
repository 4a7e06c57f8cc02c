package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"shebacred/internal/platform/metrics"
	id "shebacred/pkg/domain"
	dErrors "shebacred/pkg/domain-errors"
	"shebacred/pkg/platform/httputil"
	"shebacred/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the caller it names.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims is the authenticated caller as seen by handlers. IssuerID is the
// nil ID for holders that do not act for an institution.
type Claims struct {
	PrincipalID id.PrincipalID
	IssuerID    id.IssuerID
}

// RequireAuth rejects requests without a valid bearer token and stores the
// principal (and issuer scope, if any) in the request context.
func RequireAuth(validator TokenValidator, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				m.RecordAuthFailure("missing")
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				m.RecordAuthFailure("invalid")
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(ctx, claims)))
		})
	}
}

// RequireIssuer allows only callers whose token carries an issuer scope.
// It must run after RequireAuth.
func RequireIssuer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.IssuerID(ctx).IsNil() {
				logger.WarnContext(ctx, "forbidden - issuer scope required",
					"request_id", requestcontext.RequestID(ctx),
					"principal_id", requestcontext.PrincipalID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "issuer scope required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = requestcontext.WithPrincipalID(ctx, claims.PrincipalID)
	if !claims.IssuerID.IsNil() {
		ctx = requestcontext.WithIssuerID(ctx, claims.IssuerID)
	}
	return ctx
}
