package guard

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/hmo-portal-session/intended"
	"github.com/jrsteele09/hmo-portal-session/internal/metrics"
	"github.com/jrsteele09/hmo-portal-session/session"
	"github.com/jrsteele09/hmo-portal-session/users"
	"github.com/rs/zerolog/log"
)

// Tenant landing pages.
const (
	HMOHome      = "/hmo/dashboard"
	ProviderHome = "/provider/dashboard"
)

// HomeFor returns the landing page of a tenant partition.
func HomeFor(kind users.TenantKind) string {
	switch kind {
	case users.TenantHMO:
		return HMOHome
	case users.TenantProvider:
		return ProviderHome
	default:
		return "/"
	}
}

// SafeNext accepts only same-origin relative paths, so a ?next= parameter can
// never send the user off-site.
func SafeNext(next string) (string, bool) {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "", false
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	return next, true
}

// SessionSource is the token store as seen by the guard.
type SessionSource interface {
	Snapshot() (session.Session, session.State)
}

type Guard struct {
	sessions SessionSource
	intended intended.Store
	routes   *RouteTable
	chain    []Check
	nowFunc  func() time.Time
	metrics  *metrics.Session
}

type Option func(*Guard)

func WithRouteTable(rt *RouteTable) Option {
	return func(g *Guard) {
		g.routes = rt
	}
}

func WithChain(chain []Check) Option {
	return func(g *Guard) {
		g.chain = chain
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(g *Guard) {
		g.nowFunc = now
	}
}

func WithMetrics(m *metrics.Session) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

func New(sessions SessionSource, intendedRoutes intended.Store, options ...Option) *Guard {
	g := &Guard{
		sessions: sessions,
		intended: intendedRoutes,
		chain:    DefaultChain,
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *Guard) view() View {
	s, state := g.sessions.Snapshot()
	return ViewOf(s, state, g.nowFunc())
}

// RequireRoute decides whether path may be entered under req. On
// RedirectLogin the path is remembered so login can return to it; failing to
// remember it does not change the decision.
func (g *Guard) RequireRoute(ctx context.Context, path string, req Requirements) Decision {
	d := EvaluateChain(g.chain, g.view(), req, path)
	g.metrics.Decision(string(d.Outcome), string(d.Reason))

	if d.Outcome == OutcomeRedirectLogin && g.intended != nil {
		if err := g.intended.Set(ctx, path); err != nil {
			log.Err(err).Str("path", path).Msg("failed to remember intended route")
		}
	}
	if d.Outcome == OutcomeRedirectUnauthorized {
		log.Debug().Str("path", path).Str("reason", string(d.Reason)).Msg("route denied")
	}
	return d
}

// Route is RequireRoute with the requirements looked up in the route table.
// Paths without an entry only require a session.
func (g *Guard) Route(ctx context.Context, path string) Decision {
	var req Requirements
	if g.routes != nil {
		req, _ = g.routes.Lookup(path)
	}
	return g.RequireRoute(ctx, path, req)
}

// PublicOnly guards pages such as the login screen that a signed-in user
// should not see.
func (g *Guard) PublicOnly(_ context.Context, next string) Decision {
	v := g.view()
	if v.State == session.StateHydrating {
		return Loading()
	}
	if _, decided := CheckAuthenticated(v, Requirements{}, ""); decided {
		return Allow()
	}
	if target, ok := SafeNext(next); ok {
		return RedirectHome(target)
	}
	return RedirectHome(HomeFor(v.withClaimFallback().TenantKind))
}
