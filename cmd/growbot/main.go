// Package main provides the growbot binary entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/m3rciful/growbot/core/buildinfo"
	corecmd "github.com/m3rciful/growbot/core/cmd"
	coredatabase "github.com/m3rciful/growbot/core/database"
	"github.com/m3rciful/growbot/core/logger"
	"github.com/m3rciful/growbot/internal/app"
	"github.com/m3rciful/growbot/internal/config"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	serve := func(*cobra.Command, []string) error {
		return corecmd.Run(corecmd.Options{
			ConfigPath:        configPath,
			DefaultConfigPath: defaultConfigPath,
			LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
				cfg, err := config.Load(path)
				if err != nil {
					return nil, err
				}
				return cfg, nil
			},
			Bootstrap: app.Bootstrap,
		})
	}

	cmd := &cobra.Command{
		Use:           "growbot",
		Short:         "Telegram ledger bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML); falls back to $CONFIG_PATH")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE:  serve,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return migrate(ctx, configPath)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "growbot", buildinfo.String())
		},
	})

	return cmd
}

func migrate(ctx context.Context, configPath string) error {
	path, err := corecmd.ResolveConfigPath(configPath, "", defaultConfigPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
		return err
	}
	defer func() { _ = logger.Shutdown() }()

	return coredatabase.RunMigrations(ctx, cfg.Database)
}
