package session

import (
	"github.com/jrsteele09/hmo-portal-session/users"
)

// State is where the session sits in its lifecycle:
// Unauthenticated -> Hydrating -> Authenticated -> (token replaced) -> Unauthenticated.
type State int

const (
	StateUnauthenticated State = iota
	StateHydrating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateHydrating:
		return "hydrating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Session is the client's view of the signed-in user. It is only ever
// replaced as a whole; an empty AccessToken means no token.
type Session struct {
	UserID        string           `json:"userId"`
	DisplayName   string           `json:"displayName"`
	Email         string           `json:"email"`
	Role          users.RoleType   `json:"role"`
	TenantKind    users.TenantKind `json:"tenantKind"`
	AccessToken   string           `json:"-"`
	Authenticated bool             `json:"authenticated"`
}

// User returns the profile part of the session.
func (s Session) User() users.User {
	return users.User{
		ID:          s.UserID,
		DisplayName: s.DisplayName,
		Email:       s.Email,
		Role:        s.Role,
		TenantKind:  s.TenantKind,
	}
}

func fromUser(u users.User, accessToken string) Session {
	return Session{
		UserID:        u.ID,
		DisplayName:   u.DisplayName,
		Email:         u.Email,
		Role:          u.Role,
		TenantKind:    u.TenantKind,
		AccessToken:   accessToken,
		Authenticated: accessToken != "",
	}
}
