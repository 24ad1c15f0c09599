package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/hmo-portal-session/internal/errors"
	"github.com/jrsteele09/hmo-portal-session/internal/utils"
	"github.com/jrsteele09/hmo-portal-session/users"
	"golang.org/x/oauth2"
)

// Claim names shared by the client decoder and the dev server issuer.
const (
	ClaimRole       = "role"
	ClaimRoles      = "roles"
	ClaimTenantKind = "tenant_kind"
	ClaimTenantID   = "tenant"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims is the little the client reads from an access token. The signature is
// never checked here; the backend re-validates the token on every call.
type Claims struct {
	Subject    string
	Expiry     time.Time
	Role       users.RoleType
	TenantKind users.TenantKind
}

// Parse decodes the payload segment of a compact three-segment token.
// A token without a usable exp claim is an error.
func Parse(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.ErrNoAccessToken
	}

	unverified, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedToken, "ParseUnverified: %v", err)
	}

	mapClaims, ok := unverified.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, apperrors.ErrMalformedToken
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMissingExpiry, "exp: %v", err)
	}
	if exp == nil {
		return nil, apperrors.ErrMissingExpiry
	}

	claims := &Claims{Expiry: exp.Time}
	claims.Subject, _ = mapClaims.GetSubject()

	if role, ok := mapClaims[ClaimRole].(string); ok {
		claims.Role = users.RoleType(role)
	} else if roles, ok := mapClaims[ClaimRoles].([]any); ok {
		if names := utils.ToStringSlice(roles); len(names) > 0 {
			claims.Role = users.RoleType(names[0])
		}
	}
	if kind, ok := mapClaims[ClaimTenantKind].(string); ok {
		claims.TenantKind = users.TenantKind(kind)
	}
	return claims, nil
}

// ExpiresAt returns the token's exp claim.
func ExpiresAt(raw string) (time.Time, error) {
	c, err := Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return c.Expiry, nil
}

// IsExpired is fail closed: an empty, malformed or exp-less token is expired.
func IsExpired(raw string, now time.Time) bool {
	exp, err := ExpiresAt(raw)
	if err != nil {
		return true
	}
	return !now.Before(exp)
}

// OAuth2 wraps a raw access token as a bearer *oauth2.Token. Expiry is left
// zero when the claim cannot be read.
func OAuth2(raw string) *oauth2.Token {
	tok := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	if exp, err := ExpiresAt(raw); err == nil {
		tok.Expiry = exp
	}
	return tok
}
