package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/ehr-appointment-scheduling/internal/auth"
	"github.com/hackgods/ehr-appointment-scheduling/internal/config"
	"github.com/hackgods/ehr-appointment-scheduling/internal/db"
	"github.com/hackgods/ehr-appointment-scheduling/internal/logging"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "api-server",
		Short:         "EHR appointment scheduling service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load: %w", err)
			}
			return runServer(cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema to the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load: %w", err)
			}
			logger := logging.New(cfg.Env, cfg.LogLevel)

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			if cfg.StoreDriver == config.StoreSQLite {
				conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
				if err != nil {
					return err
				}
				defer conn.Close()
				if err := db.MigrateSQLite(ctx, conn); err != nil {
					return err
				}
			} else {
				pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.PostgresPool)
				if err != nil {
					return err
				}
				defer pool.Close()
				if err := db.MigratePostgres(ctx, pool); err != nil {
					return err
				}
			}

			logger.Info().Str("store", cfg.StoreDriver).Msg("migrations applied")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load: %w", err)
			}
			if cfg.Env == "prod" {
				return fmt.Errorf("token minting is disabled in prod")
			}

			id, _ := cmd.Flags().GetString("id")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			switch role {
			case auth.RoleAdmin, auth.RoleProvider, auth.RoleBilling, auth.RoleViewer:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := auth.IssueToken([]byte(cfg.JWTSecret), auth.Principal{ID: id, Role: role}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("id", "dev-user", "Principal id")
	cmd.Flags().String("role", auth.RoleProvider, "Role: admin, provider, billing or viewer")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
