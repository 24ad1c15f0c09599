// Package tokentest mints signed access tokens for tests.
package tokentest

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/hmo-portal-session/token"
	"github.com/jrsteele09/hmo-portal-session/users"
	"github.com/stretchr/testify/require"
)

const Secret = "tokentest-secret"

// Mint returns a token expiring at exp carrying the given role and tenant kind.
func Mint(t testing.TB, exp time.Time, role users.RoleType, kind users.TenantKind) string {
	t.Helper()
	claims := jwtlib.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}
	if role != "" {
		claims[token.ClaimRole] = string(role)
	}
	if kind != "" {
		claims[token.ClaimTenantKind] = string(kind)
	}
	raw, err := token.NewHMACSigner(Secret).Sign(claims)
	require.NoError(t, err)
	return raw
}

// Valid returns a token good for the next hour.
func Valid(t testing.TB) string {
	return Mint(t, time.Now().Add(time.Hour), "", "")
}

// Expired returns a token that expired a minute ago.
func Expired(t testing.TB) string {
	return Mint(t, time.Now().Add(-time.Minute), "", "")
}
