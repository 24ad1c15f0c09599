package server

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/hmo-portal-session/internal/errors"
	"github.com/jrsteele09/hmo-portal-session/token/jwt"
	"github.com/jrsteele09/hmo-portal-session/users"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyClaims stores the verified access token claims
	ContextKeyClaims ContextKey = "claims"
)

// ClaimsFromContext returns the claims RequireAuth stored on the request.
func ClaimsFromContext(ctx context.Context) (*jwt.VerifiedClaims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*jwt.VerifiedClaims)
	return claims, ok
}

// RequireAuth is middleware that validates a Bearer access token
// Used for API routes that expect the token in the Authorization header
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				s.unauthorized(w, "MISSING_TOKEN", "missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
				s.unauthorized(w, "INVALID_TOKEN", "invalid Authorization header format")
				return
			}

			claims, err := s.inspector.Verify(parts[1])
			if err != nil {
				if apperrors.Is(err, apperrors.ErrTokenExpired) {
					s.unauthorized(w, "TOKEN_EXPIRED", "access token expired")
					return
				}
				log.Debug().Err(err).Msg("rejected bearer token")
				s.unauthorized(w, "INVALID_TOKEN", "invalid access token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

func (s *Server) unauthorized(w http.ResponseWriter, code, message string) {
	s.metrics.Rejected.Inc()
	w.Header().Set("WWW-Authenticate", `Bearer realm="hmo-portal"`)
	writeError(w, http.StatusUnauthorized, code, message)
}

// RequireTenantKind restricts a route to one tenant partition.
// Should be chained after RequireAuth to ensure claims are present
func (s *Server) RequireTenantKind(kind users.TenantKind) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "no claims on request")
				return
			}
			if claims.TenantKind != kind && claims.Role != users.RoleSuperAdmin {
				writeError(w, http.StatusForbidden, "TENANT_MISMATCH", "route belongs to the "+string(kind)+" partition")
				return
			}
			next(w, r)
		}
	}
}

// RequirePermission checks the static role permission table.
// Should be chained after RequireAuth to ensure claims are present
func (s *Server) RequirePermission(perm users.Permission) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !users.HasPermission(claims.Role, perm) {
				writeError(w, http.StatusForbidden, "PERMISSION_DENIED", "missing permission "+string(perm))
				return
			}
			next(w, r)
		}
	}
}
