// Package auth is the session context: the one object that owns the token
// store, refresh machinery, guard and API client for a running portal, and
// the login, bootstrap and logout flows over them.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/hmo-portal-session/apierror"
	"github.com/jrsteele09/hmo-portal-session/coordinator"
	"github.com/jrsteele09/hmo-portal-session/guard"
	"github.com/jrsteele09/hmo-portal-session/intended"
	"github.com/jrsteele09/hmo-portal-session/interceptor"
	"github.com/jrsteele09/hmo-portal-session/internal/config"
	apperrors "github.com/jrsteele09/hmo-portal-session/internal/errors"
	"github.com/jrsteele09/hmo-portal-session/internal/metrics"
	"github.com/jrsteele09/hmo-portal-session/scheduler"
	"github.com/jrsteele09/hmo-portal-session/session"
	"github.com/jrsteele09/hmo-portal-session/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Backend endpoints outside the business API.
const (
	LoginPath  = "/auth/login"
	LogoutPath = "/auth/logout"
	MePath     = "/api/me"
)

// Config is the part of the application configuration the session needs.
type Config interface {
	config.EnvConfig
	config.SessionConfig
	config.StorageConfig
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User        users.User `json:"user"`
	AccessToken string     `json:"accessToken"`
}

type Service struct {
	baseURL   string
	http      *http.Client
	store     *session.Store
	scheduler *scheduler.Scheduler
	refresh   *coordinator.Coordinator
	api       *interceptor.Client
	guard     *guard.Guard
	intended  intended.Store
	metrics   *metrics.Session
	closers   []func() error
}

type options struct {
	httpClient *http.Client
	intended   intended.Store
	routes     *guard.RouteTable
	registerer prometheus.Registerer
	tabID      string
}

type Option func(*options)

// WithHTTPClient replaces the underlying client. It must keep cookies, so a
// client without a jar is given one.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

func WithIntendedStore(s intended.Store) Option {
	return func(o *options) {
		o.intended = s
	}
}

func WithRouteTable(rt *guard.RouteTable) Option {
	return func(o *options) {
		o.routes = rt
	}
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithTabID scopes the redis backed intended route to one browser tab or CLI run.
func WithTabID(id string) Option {
	return func(o *options) {
		o.tabID = id
	}
}

// NewService builds and wires every session component.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.GetRequestTimeout()}
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookiejar.New: %w", err)
		}
		hc.Jar = jar
	}

	s := &Service{
		baseURL: cfg.GetAPIBaseURL(),
		http:    hc,
		metrics: metrics.NewSession(o.registerer),
	}

	s.intended = o.intended
	if s.intended == nil {
		s.intended = s.newIntendedStore(cfg, o.tabID)
	}

	s.store = session.NewStore()
	s.refresh = coordinator.New(
		coordinator.NewHTTPRefresher(s.baseURL, hc),
		s.store,
		coordinator.WithTimeout(cfg.GetRefreshTimeout()),
		coordinator.WithMetrics(s.metrics),
	)
	s.scheduler = scheduler.New(s.refresh,
		scheduler.WithMinDelay(cfg.GetRefreshMinDelay()),
		scheduler.WithLeadWindow(cfg.GetRefreshLeadWindow()),
		scheduler.WithMetrics(s.metrics),
	)
	s.store.AttachScheduler(s.scheduler)

	s.api = interceptor.New(s.baseURL, s.store, s.refresh,
		interceptor.WithHTTPClient(hc),
		interceptor.WithMetrics(s.metrics),
	)

	guardOpts := []guard.Option{guard.WithMetrics(s.metrics)}
	if o.routes != nil {
		guardOpts = append(guardOpts, guard.WithRouteTable(o.routes))
	}
	s.guard = guard.New(s.store, s.intended, guardOpts...)

	return s, nil
}

func (s *Service) newIntendedStore(cfg Config, tabID string) intended.Store {
	addr := cfg.GetRedisAddr()
	if addr == "" {
		return intended.NewMemoryStore(cfg.GetIntendedRouteKey(), cfg.GetIntendedRouteTTL())
	}
	if tabID == "" {
		tabID = uuid.NewString()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	})
	s.closers = append(s.closers, client.Close)
	log.Info().Str("addr", addr).Str("tab_id", tabID).Msg("intended routes persisted in redis")
	return intended.NewRedisStore(client, cfg.GetIntendedRouteKey(), tabID, cfg.GetIntendedRouteTTL())
}

// Login authenticates with the backend and returns where to navigate next:
// the route the user was originally headed for, or their tenant home.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("json.Marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+LoginPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", apierror.FromTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apierror.FromResponse(resp)
	}

	var login LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return "", apperrors.Wrapf(apperrors.ErrInvalidLoginData, "decode: %v", err)
	}
	if login.User.ID == "" || login.AccessToken == "" {
		return "", apperrors.ErrInvalidLoginData
	}

	s.store.SetSession(login.User, login.AccessToken)
	log.Info().Str("user_id", login.User.ID).Str("role", string(login.User.Role)).Msg("signed in")
	return s.landing(ctx, login.User.TenantKind), nil
}

func (s *Service) landing(ctx context.Context, kind users.TenantKind) string {
	path, ok, err := s.intended.Consume(ctx)
	if err != nil {
		log.Err(err).Msg("failed to read intended route")
	}
	if ok {
		if safe, valid := guard.SafeNext(path); valid {
			return safe
		}
	}
	return guard.HomeFor(kind)
}

// Bootstrap silently restores a session from the refresh cookie, as on a page
// reload. Guards report Loading until it returns.
func (s *Service) Bootstrap(ctx context.Context) error {
	s.store.BeginHydration()

	if _, ok := s.refresh.AcquireFreshToken(ctx); !ok {
		s.store.Logout()
		return apperrors.ErrNoSession
	}

	var me users.User
	if err := s.api.DoJSON(ctx, http.MethodGet, MePath, nil, &me); err != nil {
		s.store.Logout()
		return fmt.Errorf("GET %s: %w", MePath, err)
	}
	s.store.SetSession(me, s.store.AccessToken())
	log.Info().Str("user_id", me.ID).Msg("session restored")
	return nil
}

// Logout clears the local session whatever the backend says. The error only
// reports whether the backend could revoke the refresh credential.
func (s *Service) Logout(ctx context.Context) error {
	defer s.store.Logout()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+LogoutPath, nil)
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	if tok, err := s.store.Token(); err == nil {
		tok.SetAuthHeader(req)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		log.Err(err).Msg("logout request failed")
		return apierror.FromTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return apierror.FromResponse(resp)
	}
	return nil
}

func (s *Service) AccessToken() string {
	return s.store.AccessToken()
}

func (s *Service) IsAuthenticated() bool {
	return s.store.IsAuthenticated()
}

func (s *Service) CurrentUser() (users.User, bool) {
	return s.store.CurrentUser()
}

func (s *Service) State() session.State {
	return s.store.State()
}

// NextRefresh reports when the proactive refresh is due, false when none is armed.
func (s *Service) NextRefresh() (time.Time, bool) {
	return s.scheduler.FireAt()
}

func (s *Service) RequireRoute(ctx context.Context, path string, req guard.Requirements) guard.Decision {
	return s.guard.RequireRoute(ctx, path, req)
}

// Route guards path using the configured route table.
func (s *Service) Route(ctx context.Context, path string) guard.Decision {
	return s.guard.Route(ctx, path)
}

func (s *Service) PublicOnly(ctx context.Context, next string) guard.Decision {
	return s.guard.PublicOnly(ctx, next)
}

// API is the authorized client for business endpoints.
func (s *Service) API() *interceptor.Client {
	return s.api
}

// Close stops the proactive refresh for good and releases storage connections.
func (s *Service) Close() error {
	s.scheduler.Stop()
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
