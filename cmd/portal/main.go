package main

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/hmo-portal-session/internal/config"
	"github.com/jrsteele09/hmo-portal-session/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	var envFiles []string
	cfg := config.New()

	root := &cobra.Command{
		Use:           "portal",
		Short:         "HMO portal session tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFiles...); err != nil {
				return err
			}
			logging.Setup(cfg.GetLogLevel(), cfg.GetEnv())
			return nil
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")

	root.AddCommand(newDevServerCmd(cfg), newProbeCmd(cfg))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
