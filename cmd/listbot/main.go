// Package main is the listbot command: the shared-list webhook server and its
// operator tools.
//
//	listbot serve              run the webhook
//	listbot migrate            create or upgrade the schema, then exit
//	listbot token --gateway X  print a gateway token for GATEWAY_SECRET
//
// All logic lives in internal/. This package only reads configuration,
// builds a logger and hands off.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/sharedlist/internal/auth"
	"github.com/sakif/sharedlist/internal/config"
	"github.com/sakif/sharedlist/internal/logging"
	"github.com/sakif/sharedlist/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "listbot",
		Short:        "Shared shopping lists for chat users and groups",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "read settings from this file (default: .env if present)")

	root.AddCommand(serveCmd(&envFile), migrateCmd(&envFile), tokenCmd(&envFile))
	return root
}

func serveCmd(envFile *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			// === 1. READ CONFIGURATION ===
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			// === 2. SET UP LOGGING ===
			logger := logging.New(cfg.LogLevel)
			slog.SetDefault(logger)

			// === 3. OPEN THE STORE AND WIRE EVERYTHING ===
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			srv, err := server.New(ctx, cfg, logger)
			if err != nil {
				logger.Error("failed to create server", slog.String("error", err.Error()))
				return err
			}

			// === 4. SERVE UNTIL SIGINT/SIGTERM ===
			return srv.Start()
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "listen port (overrides PORT)")
	return cmd
}

func migrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.LogLevel)

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			// Opening a store runs its migrations.
			store, err := server.OpenStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("migrating %s store: %w", cfg.StoreDriver, err)
			}
			defer store.Close()

			logger.Info("schema up to date", slog.String("store", cfg.StoreDriver))
			return nil
		},
	}
}

func tokenCmd(envFile *string) *cobra.Command {
	var (
		gateway string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for a messaging gateway",
		Long: `Print a bearer token the named gateway sends as
"Authorization: Bearer <token>" on every call to /api.

The token is signed with GATEWAY_SECRET, so the server must run with the
same secret.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if cfg.GatewaySecret == "" {
				return fmt.Errorf("GATEWAY_SECRET is not set")
			}

			tokens, err := auth.NewTokenService(cfg.GatewaySecret)
			if err != nil {
				return err
			}
			token, err := tokens.GenerateWithDuration(gateway, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&gateway, "gateway", "", "gateway name, e.g. telegram (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenLifetime, "token lifetime")
	_ = cmd.MarkFlagRequired("gateway")
	return cmd
}
