// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets values; services read them without importing net/http:
//
//	principal := requestcontext.PrincipalID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "shebacred/pkg/domain"
)

type (
	principalIDKey struct{}
	issuerIDKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyPrincipalID = principalIDKey{}
	ContextKeyIssuerID    = issuerIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// PrincipalID returns the authenticated caller, or the nil ID when unset.
func PrincipalID(ctx context.Context) id.PrincipalID {
	if p, ok := ctx.Value(ContextKeyPrincipalID).(id.PrincipalID); ok {
		return p
	}
	return id.PrincipalID{}
}

func WithPrincipalID(ctx context.Context, principal id.PrincipalID) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipalID, principal)
}

// IssuerID returns the issuer scope the caller acts for, if any.
func IssuerID(ctx context.Context) id.IssuerID {
	if issuer, ok := ctx.Value(ContextKeyIssuerID).(id.IssuerID); ok {
		return issuer
	}
	return id.IssuerID{}
}

func WithIssuerID(ctx context.Context, issuer id.IssuerID) context.Context {
	return context.WithValue(ctx, ContextKeyIssuerID, issuer)
}

func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request-scoped time, falling back to time.Now() for
// workers, CLI commands and tests that never set one.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
