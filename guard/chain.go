// Package guard decides whether the current session may enter a route.
//
// The decision is a pure function of a session snapshot, the route's
// requirements and the path. Checks run in a fixed order and the first one
// that decides wins:
//
//  1. hydrating                  -> Loading
//  2. no valid session           -> RedirectLogin(path)
//  3. role not allowed           -> RedirectUnauthorized(role)
//  4. permission not granted     -> RedirectUnauthorized(permission)
//  5. wrong tenant partition     -> RedirectUnauthorized(tenant)
//  6. no role known at all       -> RedirectUnauthorized(access-denied)
//  7. otherwise                  -> Allow
//
// An unknown role holds no permissions, so step 6 only decides routes whose
// requirements the earlier steps let through.
package guard

import (
	"slices"
	"time"

	"github.com/jrsteele09/hmo-portal-session/session"
	"github.com/jrsteele09/hmo-portal-session/token"
	"github.com/jrsteele09/hmo-portal-session/users"
)

// Requirements a route places on the session. The zero value only requires
// an authenticated session.
type Requirements struct {
	AllowedRoles       []users.RoleType `yaml:"allowed_roles"`
	RequiredPermission users.Permission `yaml:"required_permission"`
	RequiredTenantKind users.TenantKind `yaml:"required_tenant_kind"`
}

func (r Requirements) IsZero() bool {
	return len(r.AllowedRoles) == 0 && r.RequiredPermission == "" && r.RequiredTenantKind == ""
}

// View is the snapshot of the session a decision is made against.
type View struct {
	State         session.State
	Authenticated bool
	Role          users.RoleType
	TenantKind    users.TenantKind
	AccessToken   string
	Now           time.Time
}

// ViewOf builds a View from a store snapshot.
func ViewOf(s session.Session, state session.State, now time.Time) View {
	return View{
		State:         state,
		Authenticated: s.Authenticated,
		Role:          s.Role,
		TenantKind:    s.TenantKind,
		AccessToken:   s.AccessToken,
		Now:           now,
	}
}

// withClaimFallback fills a missing role or tenant kind from the token claims.
func (v View) withClaimFallback() View {
	if v.Role != "" && v.TenantKind != "" {
		return v
	}
	claims, err := token.Parse(v.AccessToken)
	if err != nil {
		return v
	}
	if v.Role == "" {
		v.Role = claims.Role
	}
	if v.TenantKind == "" {
		v.TenantKind = claims.TenantKind
	}
	return v
}

// Check returns a decision and whether it decided.
type Check func(v View, req Requirements, path string) (Decision, bool)

// DefaultChain is the standard check order.
var DefaultChain = []Check{
	CheckHydrating,
	CheckAuthenticated,
	CheckRole,
	CheckPermission,
	CheckTenant,
	CheckRoleKnown,
}

// Evaluate runs DefaultChain.
func Evaluate(v View, req Requirements, path string) Decision {
	return EvaluateChain(DefaultChain, v, req, path)
}

// EvaluateChain runs chain in order and allows when no check decides.
func EvaluateChain(chain []Check, v View, req Requirements, path string) Decision {
	v = v.withClaimFallback()
	for _, check := range chain {
		if d, decided := check(v, req, path); decided {
			return d
		}
	}
	return Allow()
}

func CheckHydrating(v View, _ Requirements, _ string) (Decision, bool) {
	if v.State == session.StateHydrating {
		return Loading(), true
	}
	return Decision{}, false
}

func CheckAuthenticated(v View, _ Requirements, path string) (Decision, bool) {
	if !v.Authenticated || v.AccessToken == "" || token.IsExpired(v.AccessToken, v.Now) {
		return RedirectLogin(path), true
	}
	return Decision{}, false
}

func CheckRoleKnown(v View, req Requirements, _ string) (Decision, bool) {
	if !req.IsZero() && v.Role == "" {
		return RedirectUnauthorized(ReasonAccessDenied), true
	}
	return Decision{}, false
}

func CheckRole(v View, req Requirements, _ string) (Decision, bool) {
	if len(req.AllowedRoles) > 0 && !slices.Contains(req.AllowedRoles, v.Role) {
		return RedirectUnauthorized(ReasonRole), true
	}
	return Decision{}, false
}

func CheckPermission(v View, req Requirements, _ string) (Decision, bool) {
	if req.RequiredPermission != "" && !users.HasPermission(v.Role, req.RequiredPermission) {
		return RedirectUnauthorized(ReasonPermission), true
	}
	return Decision{}, false
}

func CheckTenant(v View, req Requirements, _ string) (Decision, bool) {
	if req.RequiredTenantKind != "" && v.TenantKind != req.RequiredTenantKind {
		return RedirectUnauthorized(ReasonTenant), true
	}
	return Decision{}, false
}
