package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/joao-fontenele/glassworks-checkout/internal/catalog"
	"github.com/joao-fontenele/glassworks-checkout/internal/config"
	"github.com/joao-fontenele/glassworks-checkout/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	var migrationsPath string

	rootCmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the storefront database schema and launch catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&migrationsPath, "path", envOr("MIGRATIONS_PATH", "file://migrations"), "migrations source URL")

	rootCmd.AddCommand(upCmd(logger, &migrationsPath))
	rootCmd.AddCommand(downCmd(logger, &migrationsPath))
	rootCmd.AddCommand(versionCmd(logger, &migrationsPath))
	rootCmd.AddCommand(seedCmd(logger))

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	if err := cfg.RequirePostgres(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withMigrator(path string, fn func(m *migrate.Migrate) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := migrate.New(path, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	return fn(m)
}

func upCmd(logger *slog.Logger, path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(*path, func(m *migrate.Migrate) error {
				err := m.Up()
				if errors.Is(err, migrate.ErrNoChange) {
					logger.Info("no pending migrations")
					return nil
				}
				if err != nil {
					return fmt.Errorf("migration up failed: %w", err)
				}
				logger.Info("migrations applied successfully")
				return nil
			})
		},
	}
}

func downCmd(logger *slog.Logger, path *string) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return errors.New("--steps must be at least 1")
			}
			return withMigrator(*path, func(m *migrate.Migrate) error {
				err := m.Steps(-steps)
				if errors.Is(err, migrate.ErrNoChange) {
					logger.Info("no migrations to rollback")
					return nil
				}
				if err != nil {
					return fmt.Errorf("migration down failed: %w", err)
				}
				logger.Info("migrations rolled back successfully", slog.Int("steps", steps))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	return cmd
}

func versionCmd(logger *slog.Logger, path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(*path, func(m *migrate.Migrate) error {
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					logger.Info("no migrations applied yet")
					return nil
				}
				if err != nil {
					return fmt.Errorf("failed to get version: %w", err)
				}
				logger.Info("current migration version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
				return nil
			})
		},
	}
}

func seedCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the launch designs and size options into an empty catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := telemetry.OpenPostgres(ctx, cfg.PostgresURL, cfg.SearchPath)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			seeded, err := catalog.NewRepository(db).Seed(ctx, catalog.LaunchDesigns(), catalog.LaunchSizeOptions())
			if err != nil {
				return fmt.Errorf("seed catalog: %w", err)
			}
			if !seeded {
				logger.Info("catalog already populated, nothing seeded")
				return nil
			}
			logger.Info("catalog seeded")
			return nil
		},
	}
}
