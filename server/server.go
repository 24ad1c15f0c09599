// Package server is a development and test implementation of the portal
// backend: login, cookie based refresh, logout and a few business endpoints
// that demand a valid bearer token.
package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/hmo-portal-session/internal/config"
	"github.com/jrsteele09/hmo-portal-session/internal/metrics"
	"github.com/jrsteele09/hmo-portal-session/tenants"
	"github.com/jrsteele09/hmo-portal-session/token"
	"github.com/jrsteele09/hmo-portal-session/token/jwt"
	"github.com/jrsteele09/hmo-portal-session/token/refresh"
	"github.com/jrsteele09/hmo-portal-session/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// Issuer is the iss claim of every access token the dev server mints.
const Issuer = "hmo-portal-devserver"

// Repos holds all repository dependencies for the Server
type Repos struct {
	Users         users.UserRepo
	Tenants       tenants.Repo
	RefreshTokens refresh.Repo
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	repos     Repos
	creator   *jwt.Creator
	inspector *jwt.Inspector
	refresh   *refresh.Manager
	registry  *prometheus.Registry
	metrics   *metrics.Server
	seed      bool
}

type Option func(*Server)

// WithRegistry exposes an existing registry on /metrics instead of a fresh one.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithoutSeed starts with empty repositories.
func WithoutSeed() Option {
	return func(s *Server) {
		s.seed = false
	}
}

func New(cfg config.Config, repos Repos, opts ...Option) (*Server, error) {
	signer := token.NewHMACSigner(cfg.GetSigningKey())
	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		repos:     repos,
		creator:   jwt.NewCreator(Issuer, cfg.GetAccessTokenExpiry(), signer),
		inspector: jwt.NewInspector(Issuer, signer),
		refresh:   refresh.NewManager(repos.RefreshTokens, cfg),
		seed:      true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(collectors.NewGoCollector())
	}
	s.metrics = metrics.NewServer(s.registry)

	if s.seed {
		if err := s.SeedDemoData(cfg.GetSeedPassword()); err != nil {
			return nil, fmt.Errorf("[Server New] failed to seed demo data: %w", err)
		}
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered patterns.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Debug().Msgf("[%s%-7s%s] %s", color, method, ResetColor, path)
}
