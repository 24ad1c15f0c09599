package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/hmo-portal-session/token"
	"github.com/jrsteele09/hmo-portal-session/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Creator mints access tokens for the dev server.
type Creator struct {
	issuer string
	expiry time.Duration
	signer token.Signer
}

// NewCreator creates a new JWT creator
func NewCreator(issuer string, expiry time.Duration, signer token.Signer) *Creator {
	return &Creator{
		issuer: issuer,
		expiry: expiry,
		signer: signer,
	}
}

// CreateAccessToken creates a short-lived bearer token carrying the user's
// role and tenant kind alongside the standard claims.
func (c *Creator) CreateAccessToken(user *users.User) (string, error) {
	return c.CreateAccessTokenWithExpiry(user, c.expiry)
}

// CreateAccessTokenWithExpiry is CreateAccessToken with an explicit lifetime.
// A negative expiry produces an already expired token.
func (c *Creator) CreateAccessTokenWithExpiry(user *users.User, expiry time.Duration) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"iss":                 c.issuer,
		"sub":                 user.ID,
		"email":               user.Email,
		token.ClaimRole:       string(user.Role),       // fallback source for the client guard
		token.ClaimTenantKind: string(user.TenantKind), // fallback source for the client guard
		token.ClaimTenantID:   user.TenantID,
		"iat":                 now.Unix(),
		"exp":                 now.Add(expiry).Unix(),
		"jti":                 uuid.New().String(),
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, nil
}
