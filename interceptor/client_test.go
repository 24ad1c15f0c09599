package interceptor_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/hmo-portal-session/apierror"
	"github.com/jrsteele09/hmo-portal-session/coordinator"
	"github.com/jrsteele09/hmo-portal-session/interceptor"
	"github.com/jrsteele09/hmo-portal-session/internal/metrics"
	"github.com/jrsteele09/hmo-portal-session/internal/tokentest"
	"github.com/jrsteele09/hmo-portal-session/session"
	"github.com/jrsteele09/hmo-portal-session/users"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var agent = users.User{ID: "user-1", Role: users.RoleHMOAgent, TenantKind: users.TenantHMO}

type fixture struct {
	store     *session.Store
	client    *interceptor.Client
	metrics   *metrics.Session
	refreshes atomic.Int32
	requests  atomic.Int32
	stale     string
	fresh     string
	url       string
}

// newFixture serves handler and wires a client whose refresher returns
// f.fresh, or fails when refreshOK is false.
func newFixture(t *testing.T, refreshOK bool, handler func(f *fixture, w http.ResponseWriter, r *http.Request)) *fixture {
	t.Helper()
	f := &fixture{
		store:   session.NewStore(),
		metrics: metrics.NewSession(nil),
		stale:   tokentest.Mint(t, time.Now().Add(time.Hour), users.RoleHMOAgent, users.TenantHMO),
		fresh:   tokentest.Mint(t, time.Now().Add(2*time.Hour), users.RoleHMOAgent, users.TenantHMO),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		handler(f, w, r)
	}))
	t.Cleanup(srv.Close)
	f.url = srv.URL

	coord := coordinator.New(coordinator.RefresherFunc(func(context.Context) (string, error) {
		f.refreshes.Add(1)
		time.Sleep(20 * time.Millisecond)
		if !refreshOK {
			return "", errors.New("refresh cookie expired")
		}
		return f.fresh, nil
	}), f.store)

	f.client = interceptor.New(srv.URL, f.store, coord,
		interceptor.WithHTTPClient(srv.Client()),
		interceptor.WithMetrics(f.metrics),
	)
	f.store.SetSession(agent, f.stale)
	return f
}

// acceptFresh answers 401 to anything but the fresh token.
func acceptFresh(f *fixture, w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+f.fresh {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func TestClient_AttachesBearer(t *testing.T) {
	f := newFixture(t, true, func(f *fixture, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+f.stale, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	var out struct{ OK bool }
	require.NoError(t, f.client.DoJSON(context.Background(), http.MethodGet, "/api/me", nil, &out))
	require.True(t, out.OK)
	require.Zero(t, f.refreshes.Load())
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	f := newFixture(t, true, func(f *fixture, w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	f.store.Logout()

	require.NoError(t, f.client.DoJSON(context.Background(), http.MethodGet, "/public", nil, nil))
}

func TestClient_RefreshesAndRetriesOnce(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	f := newFixture(t, true, func(f *fixture, w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
		acceptFresh(f, w, r)
	})

	var out struct{ OK bool }
	err := f.client.DoJSON(context.Background(), http.MethodPost, "/api/hmo/enrollees", map[string]string{"name": "Ngozi"}, &out)
	require.NoError(t, err)
	require.True(t, out.OK)

	require.EqualValues(t, 1, f.refreshes.Load())
	require.EqualValues(t, 2, f.requests.Load())
	require.Equal(t, []string{`{"name":"Ngozi"}`, `{"name":"Ngozi"}`}, bodies)
	require.Equal(t, f.fresh, f.store.AccessToken())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuthRetries))
}

func TestClient_ReplaysBodyWithoutGetBody(t *testing.T) {
	f := newFixture(t, true, func(f *fixture, w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(data))
		acceptFresh(f, w, r)
	})

	req, err := http.NewRequest(http.MethodPut, f.url+"/api/hmo/enrollees/7", io.NopCloser(strings.NewReader("payload")))
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.EqualValues(t, 2, f.requests.Load())
}

func TestClient_SecondUnauthorizedLogsOut(t *testing.T) {
	f := newFixture(t, true, func(f *fixture, w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := f.client.DoJSON(context.Background(), http.MethodGet, "/api/me", nil, nil)
	require.True(t, apierror.IsKind(err, apierror.KindUnauthorized))
	require.EqualValues(t, 1, f.refreshes.Load())
	require.EqualValues(t, 2, f.requests.Load())
	require.Empty(t, f.store.AccessToken())
	require.Equal(t, session.StateUnauthenticated, f.store.State())
}

func TestClient_RefreshFailureIsUnauthorized(t *testing.T) {
	f := newFixture(t, false, acceptFresh)

	err := f.client.DoJSON(context.Background(), http.MethodGet, "/api/me", nil, nil)
	require.True(t, apierror.IsKind(err, apierror.KindUnauthorized))
	require.EqualValues(t, 1, f.refreshes.Load())
	require.EqualValues(t, 1, f.requests.Load())
	require.False(t, f.store.IsAuthenticated())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RequestErrors.WithLabelValues("UNAUTHORIZED")))
}

func TestClient_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const n = 10
	f := newFixture(t, true, acceptFresh)

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.client.DoJSON(context.Background(), http.MethodGet, "/api/hmo/enrollees", nil, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, f.refreshes.Load())
	require.LessOrEqual(t, f.requests.Load(), int32(2*n))
	require.Equal(t, f.fresh, f.store.AccessToken())
}

func TestClient_LogoutDuringRequestSkipsRefresh(t *testing.T) {
	f := newFixture(t, true, func(f *fixture, w http.ResponseWriter, r *http.Request) {
		f.store.Logout()
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := f.client.DoJSON(context.Background(), http.MethodGet, "/api/me", nil, nil)
	require.True(t, apierror.IsKind(err, apierror.KindUnauthorized))
	require.Zero(t, f.refreshes.Load())
	require.EqualValues(t, 1, f.requests.Load())
}

func TestClient_OtherErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		status int
		kind   apierror.Kind
	}{
		{http.StatusBadRequest, apierror.KindBadRequest},
		{http.StatusForbidden, apierror.KindForbidden},
		{http.StatusNotFound, apierror.KindNotFound},
		{http.StatusTooManyRequests, apierror.KindRateLimited},
		{http.StatusBadGateway, apierror.KindServer},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			f := newFixture(t, true, func(f *fixture, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"code":"X","message":"nope"}`))
			})

			err := f.client.DoJSON(context.Background(), http.MethodGet, "/api/me", nil, nil)
			var apiErr *apierror.Error
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.kind, apiErr.Kind)
			require.Equal(t, "X", apiErr.Code)
			require.EqualValues(t, 1, f.requests.Load())
			require.Zero(t, f.refreshes.Load())
			require.True(t, f.store.IsAuthenticated())
		})
	}
}

func TestClient_TransportErrors(t *testing.T) {
	t.Run("network", func(t *testing.T) {
		store := session.NewStore()
		c := interceptor.New("http://127.0.0.1:1", store, nil)
		err := c.DoJSON(context.Background(), http.MethodGet, "/api/me", nil, nil)
		require.True(t, apierror.IsKind(err, apierror.KindNetwork))
	})

	t.Run("timeout", func(t *testing.T) {
		f := newFixture(t, true, func(f *fixture, w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := f.client.DoJSON(ctx, http.MethodGet, "/slow", nil, nil)
		require.True(t, apierror.IsKind(err, apierror.KindTimeout))
	})
}

func TestClient_GivingUpOnRefreshIsTimeout(t *testing.T) {
	f := newFixture(t, true, acceptFresh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := f.client.DoJSON(ctx, http.MethodGet, "/api/me", nil, nil)

	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, apierror.KindTimeout, apiErr.Kind)
	require.True(t, f.store.IsAuthenticated())
	require.NotEqual(t, session.StateUnauthenticated, f.store.State())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestClient_UnreadableBodyIsNormalized(t *testing.T) {
	f := newFixture(t, true, acceptFresh)

	req, err := http.NewRequest(http.MethodPost, f.url+"/api/hmo/enrollees", failingReader{})
	require.NoError(t, err)

	_, err = f.client.Do(req)
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, apierror.KindNetwork, apiErr.Kind)
	require.ErrorContains(t, err, "disk gone")
	require.Zero(t, f.requests.Load())
}
