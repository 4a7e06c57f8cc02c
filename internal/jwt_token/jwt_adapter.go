package jwttoken

import (
	"shebacred/internal/platform/middleware"
	id "shebacred/pkg/domain"
	dErrors "shebacred/pkg/domain-errors"
)

// ToMiddlewareClaims parses the string claims into typed identifiers.
func ToMiddlewareClaims(claims *Claims) (*middleware.Claims, error) {
	principal, err := id.ParsePrincipalID(claims.Subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token subject")
	}
	out := &middleware.Claims{PrincipalID: principal}
	if claims.IssuerID != "" {
		issuer, err := id.ParseIssuerID(claims.IssuerID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token issuer scope")
		}
		out.IssuerID = issuer
	}
	return out, nil
}

// JWTServiceAdapter satisfies middleware.TokenValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims)
}
