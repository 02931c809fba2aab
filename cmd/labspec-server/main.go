package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/labspec/internal/config"
	"github.com/ehr/labspec/internal/domain/analysis"
	"github.com/ehr/labspec/internal/domain/lifecycle"
	"github.com/ehr/labspec/internal/domain/resolution"
	"github.com/ehr/labspec/internal/domain/resolution/metrics"
	"github.com/ehr/labspec/internal/domain/specification"
	"github.com/ehr/labspec/internal/platform/db"
	"github.com/ehr/labspec/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "labspec-server",
		Short: "Lab analysis specification resolution service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newResolver assembles the resolver from configuration.
func newResolver(cfg *config.Config, catalog specification.Catalog, m *metrics.Metrics, logger zerolog.Logger) *resolution.Resolver {
	opts := []resolution.Option{
		resolution.WithLogger(logger.With().Str("component", "resolver").Logger()),
		resolution.WithPreferredTitles(cfg.PreferredTitles...),
		resolution.WithTraversalFallback(cfg.TraversalFallback, catalog),
	}
	if m != nil {
		opts = append(opts, resolution.WithMetrics(m))
	}
	return resolution.New(catalog, catalog, opts...)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the lifecycle consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Create the tenant schema and apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := db.SchemaName(tenant)
			fmt.Printf("Running migrations on schema: %s\n", schema)
			if err := db.CreateTenantSchema(ctx, pool, tenant, nil); err != nil {
				return err
			}
			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("tenant", "", "Tenant whose schema is migrated (defaults to DEFAULT_TENANT)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := db.SchemaName(tenant)
			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("tenant", "", "Tenant whose schema is inspected (defaults to DEFAULT_TENANT)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve specifications for every analysis of an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			orderUID, _ := cmd.Flags().GetString("order")
			tenant, _ := cmd.Flags().GetString("tenant")
			if orderUID == "" {
				return fmt.Errorf("--order is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}
			logger := newLogger(cfg.Env)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			catalog := specification.NewCatalogPG(pool)
			dispatcher := lifecycle.NewDispatcher(analysis.NewStorePG(pool), newResolver(cfg, catalog, nil, logger), logger)

			return db.InTenant(ctx, pool, tenant, func(ctx context.Context) error {
				outcomes, err := dispatcher.ResolveOrder(ctx, orderUID)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(outcomes)
			})
		},
	}
	cmd.Flags().String("order", "", "Order UID")
	cmd.Flags().String("tenant", "", "Tenant (defaults to DEFAULT_TENANT)")
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo specifications and an order into a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := analysis.NewStorePG(pool)
			return db.InTenant(ctx, pool, tenant, func(ctx context.Context) error {
				if err := seed(ctx, db.ConnFromContext(ctx), store, demoData()); err != nil {
					return err
				}
				fmt.Printf("Seeded tenant %s. Try: labspec-server resolve --order %s\n", tenant, demoOrderUID)
				return nil
			})
		},
	}
	cmd.Flags().String("tenant", "", "Tenant (defaults to DEFAULT_TENANT)")
	return cmd
}
