package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fhirbridge/fhirbridge/internal/config"
	"github.com/fhirbridge/fhirbridge/internal/domain/mapping"
	"github.com/fhirbridge/fhirbridge/internal/platform/auth"
	"github.com/fhirbridge/fhirbridge/internal/platform/db"
	"github.com/fhirbridge/fhirbridge/internal/platform/loader"
	"github.com/fhirbridge/fhirbridge/internal/platform/mapper"
	"github.com/fhirbridge/fhirbridge/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mapper-server",
		Short: "Declarative FHIR mapping engine",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(convertCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the mapping API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
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
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
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
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("migrations")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: tenant_%s\n", name)
			if err := db.CreateTenantSchema(ctx, pool, name, dir); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")
	createCmd.Flags().String("migrations", "./migrations", "Path to migrations directory")

	cmd.AddCommand(createCmd)
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate mapping definitions in a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			logger := newLogger()

			result, err := loader.New(logger, true).LoadDir(dir)
			if err != nil {
				return err
			}

			stats := result.Registry.Stats()
			fmt.Printf("OK: %d mapping(s), %d lookup table(s), %d field rule(s)\n",
				stats.Mappings, stats.LookupTables, stats.FieldRules)
			for _, issue := range result.SecurityIssues {
				fmt.Printf("security [%s] field %s (%s): %s\n",
					issue.Severity, issue.FieldID, issue.Category, issue.Detail)
			}
			return nil
		},
	}
	cmd.Flags().String("dir", "./definitions", "Directory with mappings/ and lookups/ subdirectories")
	return cmd
}

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a source document using a mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			mappingID, _ := cmd.Flags().GetString("mapping")
			input, _ := cmd.Flags().GetString("input")
			directionFlag, _ := cmd.Flags().GetString("direction")
			withTrace, _ := cmd.Flags().GetBool("trace")

			if mappingID == "" || input == "" {
				return fmt.Errorf("--mapping and --input are required")
			}

			logger := newLogger()
			result, err := loader.New(logger, true).LoadDir(dir)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(input)
			if err != nil {
				return err
			}
			var source map[string]interface{}
			if err := json.Unmarshal(raw, &source); err != nil {
				return fmt.Errorf("parse %s: %w", input, err)
			}

			direction := mapper.JSONToFHIR
			if directionFlag != "" {
				direction = mapper.Direction(directionFlag)
			}

			tc := mapper.NewContext()
			if withTrace {
				tc.EnableTracing()
			}

			engine := mapper.NewEngine(result.Registry, logger)
			target, convErr := engine.Transform(source, mappingID, direction, tc)

			if withTrace && tc.Trace() != nil {
				trace, _ := json.MarshalIndent(tc.Trace(), "", "  ")
				fmt.Fprintln(os.Stderr, string(trace))
			}
			if convErr != nil {
				return convErr
			}

			out, err := json.MarshalIndent(target, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().String("dir", "./definitions", "Directory with mappings/ and lookups/ subdirectories")
	cmd.Flags().String("mapping", "", "Mapping id to execute")
	cmd.Flags().String("input", "", "Path to the source JSON document")
	cmd.Flags().String("direction", "", "Override direction (JSON_TO_FHIR or FHIR_TO_JSON)")
	cmd.Flags().Bool("trace", false, "Print the field trace to stderr")
	return cmd
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	var svc *mapping.Service
	var pool *pgxpool.Pool

	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		svc = mapping.NewService(mapping.NewRepoPG(pool), logger)
		if err := svc.Reload(ctx); err != nil {
			logger.Warn().Err(err).Msg("no registry loaded from database")
		}
	} else {
		svc = mapping.NewService(nil, logger)
	}

	// File-based definitions take precedence over whatever the database holds.
	if cfg.MappingsDir != "" {
		result, err := loader.New(logger, cfg.StrictValidation).LoadDir(cfg.MappingsDir)
		if err != nil {
			logger.Fatal().Err(err).Str("dir", cfg.MappingsDir).Msg("failed to load definitions")
		}
		svc.UseRegistry(result.Registry, result.SecurityIssues)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "10M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthJWTSecret),
		}))
	}

	// Tenant middleware resolves the schema search path per request
	if pool != nil {
		e.Use(db.TenantMiddleware(pool, "default"))
	}

	// API group
	api := e.Group("/api")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	handler := mapping.NewHandler(svc)
	handler.RegisterRoutes(api)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
		e.GET("/ready", db.HealthHandler(pool))
	} else {
		e.GET("/ready", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
		})
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
