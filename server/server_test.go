package server_test

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/hmo-portal-session/apierror"
	"github.com/jrsteele09/hmo-portal-session/auth"
	"github.com/jrsteele09/hmo-portal-session/guard"
	"github.com/jrsteele09/hmo-portal-session/internal/config"
	apperrors "github.com/jrsteele09/hmo-portal-session/internal/errors"
	"github.com/jrsteele09/hmo-portal-session/server"
	"github.com/jrsteele09/hmo-portal-session/session"
	tenantrepofakes "github.com/jrsteele09/hmo-portal-session/tenants/repofakes"
	"github.com/jrsteele09/hmo-portal-session/token/jwt"
	refreshrepofake "github.com/jrsteele09/hmo-portal-session/token/refresh/repofake"
	"github.com/jrsteele09/hmo-portal-session/users"
	fakeuserrepo "github.com/jrsteele09/hmo-portal-session/users/repofake"
	"github.com/stretchr/testify/require"
)

const seedPassword = "Passw0rd!"

var enrolleesRoute = guard.Requirements{
	RequiredPermission: users.PermEnrolleeRead,
	RequiredTenantKind: users.TenantHMO,
}

type statusCapture struct {
	http.ResponseWriter
	status int
}

func (s *statusCapture) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// backend is the dev server behind a wire tap that counts refresh calls and
// 401 answers, and can hold refresh calls back.
type backend struct {
	url           string
	repos         server.Repos
	refreshes     atomic.Int32
	unauthorized  atomic.Int32
	beforeRefresh atomic.Pointer[func()]
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	t.Setenv("ENV", "DEV")
	t.Setenv("SIGNING_KEY", "test-signing-key")
	t.Setenv("SEED_PASSWORD", seedPassword)
	t.Setenv("REDIS_ADDR", "")

	b := &backend{repos: server.Repos{
		Users:         fakeuserrepo.NewFakeUserRepo(),
		Tenants:       tenantrepofakes.NewFakeTenantRepo(),
		RefreshTokens: refreshrepofake.NewFakeRefreshTokenRepo(),
	}}
	srv, err := server.New(config.New(), b.repos)
	require.NoError(t, err)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == server.RouteAuthRefresh {
			b.refreshes.Add(1)
			if hook := b.beforeRefresh.Load(); hook != nil {
				(*hook)()
			}
		}
		rec := &statusCapture{ResponseWriter: w, status: http.StatusOK}
		srv.ServeHTTP(rec, r)
		if rec.status == http.StatusUnauthorized && strings.HasPrefix(r.URL.Path, "/api/") {
			b.unauthorized.Add(1)
		}
	}))
	t.Cleanup(ts.Close)
	b.url = ts.URL
	return b
}

func (b *backend) newService(t *testing.T, jar http.CookieJar) *auth.Service {
	t.Helper()
	t.Setenv("API_BASE_URL", b.url)
	svc, err := auth.NewService(config.New(), auth.WithHTTPClient(&http.Client{Jar: jar, Timeout: 5 * time.Second}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

// expireIssuedTokens moves the server clock forward so every access token
// issued so far is rejected as expired.
func expireIssuedTokens(t *testing.T) {
	t.Helper()
	prev := jwt.NowTimeFunc
	jwt.NowTimeFunc = func() time.Time { return time.Now().Add(time.Hour) }
	t.Cleanup(func() { jwt.NowTimeFunc = prev })
}

func TestScenarioA_LoginThenProtectedRouteIsAllowed(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	svc := b.newService(t, nil)

	landing, err := svc.Login(ctx, server.HMOAgentEmail, seedPassword)
	require.NoError(t, err)
	require.Equal(t, guard.HMOHome, landing)

	require.True(t, svc.IsAuthenticated())
	require.Equal(t, session.StateAuthenticated, svc.State())
	user, ok := svc.CurrentUser()
	require.True(t, ok)
	require.Equal(t, users.RoleHMOAgent, user.Role)
	require.NotEmpty(t, svc.AccessToken())

	_, armed := svc.NextRefresh()
	require.True(t, armed)

	require.Equal(t, guard.Allow(), svc.RequireRoute(ctx, "/hmo/enrollees", enrolleesRoute))
	require.Equal(t, guard.RedirectHome(guard.HMOHome), svc.PublicOnly(ctx, ""))

	var enrollees []server.Enrollee
	require.NoError(t, svc.API().DoJSON(ctx, http.MethodGet, server.RouteAPIHMOEnrollee, nil, &enrollees))
	require.NotEmpty(t, enrollees)
	require.Zero(t, b.refreshes.Load())
}

func TestScenarioB_ExpiredTokenRefreshedTransparently(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	svc := b.newService(t, nil)

	_, err := svc.Login(ctx, server.HMOAdminEmail, seedPassword)
	require.NoError(t, err)
	stale := svc.AccessToken()
	expireIssuedTokens(t)

	var me users.User
	require.NoError(t, svc.API().DoJSON(ctx, http.MethodGet, server.RouteAPIMe, nil, &me))
	require.Equal(t, server.HMOAdminEmail, me.Email)

	require.EqualValues(t, 1, b.refreshes.Load())
	require.EqualValues(t, 1, b.unauthorized.Load())
	require.NotEqual(t, stale, svc.AccessToken())
	require.True(t, svc.IsAuthenticated())
}

func TestScenarioC_RefreshRejectedClearsSessionAndRemembersRoute(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	svc := b.newService(t, nil)

	_, err := svc.Login(ctx, server.HMOAgentEmail, seedPassword)
	require.NoError(t, err)
	user, _ := svc.CurrentUser()

	stored, err := b.repos.RefreshTokens.GetByUserID(user.ID)
	require.NoError(t, err)
	require.NoError(t, b.repos.RefreshTokens.Delete(stored.Token))
	expireIssuedTokens(t)

	err = svc.API().DoJSON(ctx, http.MethodGet, server.RouteAPIHMOEnrollee, nil, nil)
	require.True(t, apierror.IsKind(err, apierror.KindUnauthorized))
	require.EqualValues(t, 1, b.refreshes.Load())
	require.False(t, svc.IsAuthenticated())
	require.Equal(t, session.StateUnauthenticated, svc.State())
	_, armed := svc.NextRefresh()
	require.False(t, armed)

	d := svc.RequireRoute(ctx, "/hmo/enrollees?page=3", enrolleesRoute)
	require.Equal(t, guard.RedirectLogin("/hmo/enrollees?page=3"), d)

	landing, err := svc.Login(ctx, server.HMOAgentEmail, seedPassword)
	require.NoError(t, err)
	require.Equal(t, "/hmo/enrollees?page=3", landing)

	landing, err = svc.Login(ctx, server.HMOAgentEmail, seedPassword)
	require.NoError(t, err)
	require.Equal(t, guard.HMOHome, landing)
}

func TestScenarioD_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	svc := b.newService(t, nil)

	_, err := svc.Login(ctx, server.HMOAdminEmail, seedPassword)
	require.NoError(t, err)
	expireIssuedTokens(t)

	// Hold the refresh until both callers have been told 401.
	holdRefresh := func() {
		deadline := time.Now().Add(2 * time.Second)
		for b.unauthorized.Load() < 2 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
	}
	b.beforeRefresh.Store(&holdRefresh)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.API().DoJSON(ctx, http.MethodGet, server.RouteAPIHMOEnrollee, nil, nil)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.EqualValues(t, 2, b.unauthorized.Load())
	require.EqualValues(t, 1, b.refreshes.Load())
}

func TestBootstrapRestoresSessionFromCookie(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	first := b.newService(t, jar)
	_, err = first.Login(ctx, server.ProviderUserEmail, seedPassword)
	require.NoError(t, err)

	reloaded := b.newService(t, jar)
	require.Equal(t, session.StateUnauthenticated, reloaded.State())
	require.NoError(t, reloaded.Bootstrap(ctx))

	require.True(t, reloaded.IsAuthenticated())
	user, ok := reloaded.CurrentUser()
	require.True(t, ok)
	require.Equal(t, server.ProviderUserEmail, user.Email)
	require.Equal(t, users.TenantProvider, user.TenantKind)
	require.Equal(t, guard.RedirectHome(guard.ProviderHome), reloaded.PublicOnly(ctx, ""))
}

func TestBootstrapWithoutCookieEndsUnauthenticated(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	svc := b.newService(t, nil)

	err := svc.Bootstrap(ctx)
	require.ErrorIs(t, err, apperrors.ErrNoSession)
	require.Equal(t, session.StateUnauthenticated, svc.State())
	require.Equal(t, guard.Allow(), svc.PublicOnly(ctx, ""))
}

func TestLogoutRevokesRefreshCredential(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	svc := b.newService(t, jar)

	_, err = svc.Login(ctx, server.HMOAgentEmail, seedPassword)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx))
	require.False(t, svc.IsAuthenticated())
	_, armed := svc.NextRefresh()
	require.False(t, armed)

	reloaded := b.newService(t, jar)
	require.ErrorIs(t, reloaded.Bootstrap(ctx), apperrors.ErrNoSession)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	svc := b.newService(t, nil)

	_, err := svc.Login(ctx, server.HMOAgentEmail, "wrong")
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "INVALID_CREDENTIALS", apiErr.Code)
	require.Equal(t, "The email or password is incorrect.", apiErr.Message)
	require.False(t, svc.IsAuthenticated())
	require.Zero(t, b.refreshes.Load())
}

func TestProviderCannotReadEnrollees(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	svc := b.newService(t, nil)

	_, err := svc.Login(ctx, server.ProviderAdminEmail, seedPassword)
	require.NoError(t, err)

	err = svc.API().DoJSON(ctx, http.MethodGet, server.RouteAPIHMOEnrollee, nil, nil)
	require.True(t, apierror.IsKind(err, apierror.KindForbidden))
	require.True(t, svc.IsAuthenticated())
	require.Equal(t, guard.RedirectUnauthorized(guard.ReasonTenant), svc.RequireRoute(ctx, "/hmo/enrollees", enrolleesRoute))
}

func TestProactiveRefreshKeepsSessionAlive(t *testing.T) {
	ctx := context.Background()
	t.Setenv("ACCESS_TOKEN_EXPIRY", "2m")
	t.Setenv("REFRESH_LEAD_WINDOW", "119s")
	t.Setenv("REFRESH_MIN_DELAY", "10ms")
	b := newBackend(t)
	svc := b.newService(t, nil)

	_, err := svc.Login(ctx, server.HMOAgentEmail, seedPassword)
	require.NoError(t, err)
	first := svc.AccessToken()

	require.Eventually(t, func() bool { return b.refreshes.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return svc.AccessToken() != first }, time.Second, 10*time.Millisecond)
	require.True(t, svc.IsAuthenticated())
	require.NoError(t, svc.Close())
}

func TestServerEndpoints(t *testing.T) {
	b := newBackend(t)

	post := func(path, body string) *http.Response {
		resp, err := http.Post(b.url+path, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("login with bad json", func(t *testing.T) {
		resp := post(server.RouteAuthLogin, "{")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, apierror.KindBadRequest, apierror.FromResponse(resp).Kind)
	})

	t.Run("login with missing fields", func(t *testing.T) {
		resp := post(server.RouteAuthLogin, `{"email":"a@b.test"}`)
		require.Equal(t, "MISSING_FIELDS", apierror.FromResponse(resp).Code)
	})

	t.Run("login sets http-only refresh cookie", func(t *testing.T) {
		resp := post(server.RouteAuthLogin, `{"email":"`+server.HMOAgentEmail+`","password":"`+seedPassword+`"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var cookie *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == server.RefreshCookieName {
				cookie = c
			}
		}
		require.NotNil(t, cookie)
		require.True(t, cookie.HttpOnly)
		require.Equal(t, server.RefreshCookiePath, cookie.Path)
	})

	t.Run("refresh without cookie", func(t *testing.T) {
		resp := post(server.RouteAuthRefresh, "")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "INVALID_REFRESH_TOKEN", apierror.FromResponse(resp).Code)
	})

	t.Run("business route without bearer", func(t *testing.T) {
		resp, err := http.Get(b.url + server.RouteAPIMe)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(b.url + server.RouteMetrics)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), "hmo_portal_devserver_logins_total")
	})
}
