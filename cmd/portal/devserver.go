package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrsteele09/hmo-portal-session/internal/config"
	"github.com/jrsteele09/hmo-portal-session/server"
	tenantrepofakes "github.com/jrsteele09/hmo-portal-session/tenants/repofakes"
	refreshrepofake "github.com/jrsteele09/hmo-portal-session/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/hmo-portal-session/users/repofake"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newDevServerCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "devserver",
		Short: "Run the stub portal backend with seeded demo users",
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(cfg.GetAppName())
			return runDevServer(cfg)
		},
	}
}

func runDevServer(cfg config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	repos := server.Repos{
		Users:         fakeuserrepo.NewFakeUserRepo(),
		Tenants:       tenantrepofakes.NewFakeTenantRepo(),
		RefreshTokens: refreshrepofake.NewFakeRefreshTokenRepo(),
	}
	handler, err := server.New(cfg, repos)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(httpServer) }()

	log.Info().Str("seed_password", cfg.GetSeedPassword()).Strs("users", []string{
		server.SuperAdminEmail, server.HMOAdminEmail, server.HMOAgentEmail,
		server.ProviderAdminEmail, server.ProviderUserEmail,
	}).Msg("demo accounts")

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
