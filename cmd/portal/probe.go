package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jrsteele09/hmo-portal-session/auth"
	"github.com/jrsteele09/hmo-portal-session/guard"
	"github.com/jrsteele09/hmo-portal-session/internal/config"
	"github.com/jrsteele09/hmo-portal-session/users"
	"github.com/spf13/cobra"
)

type probeReport struct {
	Landing     string                    `json:"landing"`
	User        users.User                `json:"user"`
	State       string                    `json:"state"`
	NextRefresh *time.Time                `json:"nextRefresh,omitempty"`
	Me          *users.User               `json:"me,omitempty"`
	MeError     string                    `json:"meError,omitempty"`
	Decisions   map[string]guard.Decision `json:"decisions,omitempty"`
}

func newProbeCmd(cfg config.Config) *cobra.Command {
	var (
		email      string
		password   string
		paths      []string
		routesFile string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Sign in against the backend and report session and guard decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			password = probePassword(password)
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password (or PORTAL_PASSWORD) are required")
			}

			var opts []auth.Option
			if routesFile != "" {
				rt, err := guard.LoadRouteTableFile(routesFile)
				if err != nil {
					return err
				}
				opts = append(opts, auth.WithRouteTable(rt))
			}

			svc, err := auth.NewService(cfg, opts...)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GetRequestTimeout())
			defer cancel()
			return probe(ctx, svc, email, password, paths, out)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (env PORTAL_PASSWORD)")
	cmd.Flags().StringSliceVar(&paths, "path", nil, "route to evaluate with the guard (repeatable)")
	cmd.Flags().StringVar(&routesFile, "routes", "", "YAML route table used for --path")
	cmd.Flags().StringVar(&out, "out", "text", "output format: json|text")
	return cmd
}

// probePassword prefers the flag, then PORTAL_PASSWORD as loaded from the
// environment or .env files.
func probePassword(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("PORTAL_PASSWORD")
}

func probe(ctx context.Context, svc *auth.Service, email, password string, paths []string, out string) error {
	landing, err := svc.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	user, _ := svc.CurrentUser()
	report := probeReport{
		Landing: landing,
		User:    user,
		State:   svc.State().String(),
	}
	if at, ok := svc.NextRefresh(); ok {
		report.NextRefresh = &at
	}

	var me users.User
	if err := svc.API().DoJSON(ctx, http.MethodGet, auth.MePath, nil, &me); err != nil {
		report.MeError = err.Error()
	} else {
		report.Me = &me
	}

	if len(paths) > 0 {
		report.Decisions = make(map[string]guard.Decision, len(paths))
		for _, p := range paths {
			report.Decisions[p] = svc.Route(ctx, p)
		}
	}

	if err := svc.Logout(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "logout:", err)
	}

	if out == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("signed in as %s (%s, %s)\n", user.Email, user.Role, user.TenantKind)
	fmt.Printf("landing:      %s\n", report.Landing)
	if report.NextRefresh != nil {
		fmt.Printf("next refresh: %s\n", report.NextRefresh.Format(time.RFC3339))
	}
	if report.MeError != "" {
		fmt.Printf("GET %s:   %s\n", auth.MePath, report.MeError)
	}
	for _, p := range paths {
		d := report.Decisions[p]
		fmt.Printf("%-30s %s %s\n", p, d.Outcome, d.Reason)
	}
	return nil
}
