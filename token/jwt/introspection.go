package jwt

import (
	"errors"
	"fmt"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/hmo-portal-session/internal/errors"
	"github.com/jrsteele09/hmo-portal-session/token"
	"github.com/jrsteele09/hmo-portal-session/users"
)

// VerifiedClaims are the claims of a token whose signature and expiry checked out.
type VerifiedClaims struct {
	Subject    string
	Email      string
	Role       users.RoleType
	TenantID   string
	TenantKind users.TenantKind
	ID         string
}

// Inspector validates access tokens on the backend side.
type Inspector struct {
	issuer string
	signer token.Signer
}

// NewInspector creates a new JWT inspector
func NewInspector(issuer string, signer token.Signer) *Inspector {
	return &Inspector{
		issuer: issuer,
		signer: signer,
	}
}

// Verify checks signature, issuer and expiry, returning the claims of a valid token.
func (i *Inspector) Verify(rawToken string) (*VerifiedClaims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.ErrNoAccessToken
	}

	parsed, err := jwtlib.Parse(rawToken, i.signer.GetVerificationKey,
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(NowTimeFunc),
		jwtlib.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("error extracting claims from token")
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims[token.ClaimRole].(string)
	tenantID, _ := claims[token.ClaimTenantID].(string)
	kind, _ := claims[token.ClaimTenantKind].(string)
	jti, _ := claims["jti"].(string)

	return &VerifiedClaims{
		Subject:    sub,
		Email:      email,
		Role:       users.RoleType(role),
		TenantID:   tenantID,
		TenantKind: users.TenantKind(kind),
		ID:         jti,
	}, nil
}
