package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"shebacred/internal/platform/metrics"
	"shebacred/internal/platform/ratelimit"
	dErrors "shebacred/pkg/domain-errors"
	"shebacred/pkg/platform/httputil"
	"shebacred/pkg/requestcontext"
)

// RateLimit caps state-changing requests per authenticated principal within
// a sliding window. GET and HEAD pass through uncounted. A limit of zero
// disables the check. Limiter errors fail open.
func RateLimit(limiter ratelimit.Store, limit int, window time.Duration, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key := "principal:" + requestcontext.PrincipalID(ctx).String()

			res, err := limiter.Allow(ctx, key, limit, window)
			if err != nil {
				logger.ErrorContext(ctx, "rate limit check failed",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retry := res.RetryAfter(requestcontext.Now(ctx))
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				m.RecordRateLimited(routePattern(r))
				logger.WarnContext(ctx, "rate limit exceeded",
					"request_id", requestcontext.RequestID(ctx),
					"principal_id", requestcontext.PrincipalID(ctx).String(),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, retry later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
