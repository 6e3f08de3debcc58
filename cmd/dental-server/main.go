package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/SirMusk17/e-dental/internal/config"
	"github.com/SirMusk17/e-dental/internal/domain/auditlog"
	"github.com/SirMusk17/e-dental/internal/domain/patient"
	"github.com/SirMusk17/e-dental/internal/domain/tenant"
	"github.com/SirMusk17/e-dental/internal/domain/user"
	"github.com/SirMusk17/e-dental/internal/platform/auth"
	"github.com/SirMusk17/e-dental/internal/platform/db"
	"github.com/SirMusk17/e-dental/internal/platform/middleware"
	"github.com/SirMusk17/e-dental/internal/platform/rgpd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dental-server",
		Short: "Multi-tenant dental practice management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(keygenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
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
		Short: "Apply pending migrations to the shared schema and every tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS shared"); err != nil {
				return fmt.Errorf("create shared schema: %w", err)
			}
			sharedMigrator := db.NewMigrator(pool, filepath.Join(cfg.MigrationsDir, "shared"))
			count, err := sharedMigrator.Up(ctx, "shared")
			if err != nil {
				return fmt.Errorf("shared migrations failed: %w", err)
			}
			fmt.Printf("shared: applied %d migration(s)\n", count)

			schemas, err := tenantSchemas(ctx, pool)
			if err != nil {
				return err
			}
			tenantMigrator := db.NewMigrator(pool, filepath.Join(cfg.MigrationsDir, "tenant"))
			for _, schema := range schemas {
				count, err := tenantMigrator.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migrations failed for %s: %w", schema, err)
				}
				fmt.Printf("%s: applied %d migration(s)\n", schema, count)
			}
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status per schema",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			schemas, err := tenantSchemas(ctx, pool)
			if err != nil {
				return err
			}

			printStatus := func(schema, dir string) error {
				statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
				if err != nil {
					return err
				}
				fmt.Printf("\nschema: %s\n", schema)
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
			}

			if err := printStatus("shared", filepath.Join(cfg.MigrationsDir, "shared")); err != nil {
				return err
			}
			for _, schema := range schemas {
				if err := printStatus(schema, filepath.Join(cfg.MigrationsDir, "tenant")); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

// tenantSchemas lists every registered clinic schema from the registry.
func tenantSchemas(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx, `SELECT schema_name FROM shared.clinic ORDER BY schema_name`)
	if err != nil {
		return nil, fmt.Errorf("list tenant schemas: %w", err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan schema name: %w", err)
		}
		schemas = append(schemas, s)
	}
	return schemas, rows.Err()
}

// withRegistry opens the pool, builds the tenant registry, and runs fn with
// it. Every tenant subcommand goes through here.
func withRegistry(fn func(ctx context.Context, registry *tenant.Service) error) error {
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

	registry := tenant.NewService(
		tenant.NewRepoPG(pool), pool,
		filepath.Join(cfg.MigrationsDir, "tenant"), newLogger(),
	)
	return fn(ctx, registry)
}

func clinicIDFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("clinic")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--clinic must be a clinic id")
	}
	return id, nil
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage clinics",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Provision a new clinic with its schema and primary domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			domain, _ := cmd.Flags().GetString("domain")
			if name == "" || domain == "" {
				return fmt.Errorf("--name and --domain are required")
			}
			address, _ := cmd.Flags().GetString("address")
			phone, _ := cmd.Flags().GetString("phone")
			email, _ := cmd.Flags().GetString("email")
			siret, _ := cmd.Flags().GetString("siret")
			timezone, _ := cmd.Flags().GetString("timezone")

			return withRegistry(func(ctx context.Context, registry *tenant.Service) error {
				clinic, err := registry.CreateClinic(ctx, tenant.CreateClinicInput{
					Name:     name,
					Domain:   domain,
					Address:  address,
					Phone:    phone,
					Email:    email,
					Siret:    siret,
					Timezone: timezone,
				})
				if err != nil {
					return err
				}
				fmt.Printf("clinic %s created\n  id:     %s\n  schema: %s\n  domain: %s\n",
					clinic.Name, clinic.ID, clinic.Schema, domain)
				return nil
			})
		},
	}
	createCmd.Flags().String("name", "", "Clinic name")
	createCmd.Flags().String("domain", "", "Primary routing domain, e.g. dupont.e-dental.fr")
	createCmd.Flags().String("address", "", "Postal address")
	createCmd.Flags().String("phone", "", "Phone number")
	createCmd.Flags().String("email", "", "Contact email")
	createCmd.Flags().String("siret", "", "SIRET number")
	createCmd.Flags().String("timezone", "Europe/Paris", "IANA timezone")
	cmd.AddCommand(createCmd)

	addDomainCmd := &cobra.Command{
		Use:   "add-domain",
		Short: "Bind an additional routing domain to a clinic",
		RunE: func(cmd *cobra.Command, args []string) error {
			clinicID, err := clinicIDFlag(cmd)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("domain")
			if name == "" {
				return fmt.Errorf("--domain is required")
			}

			return withRegistry(func(ctx context.Context, registry *tenant.Service) error {
				d, err := registry.AddDomain(ctx, clinicID, name)
				if err != nil {
					return err
				}
				fmt.Printf("domain %s bound to clinic %s\n  id: %s\n", d.Domain, clinicID, d.ID)
				return nil
			})
		},
	}
	addDomainCmd.Flags().String("clinic", "", "Clinic id")
	addDomainCmd.Flags().String("domain", "", "Routing domain to bind")
	cmd.AddCommand(addDomainCmd)

	setPrimaryCmd := &cobra.Command{
		Use:   "set-primary",
		Short: "Move the primary flag to another of the clinic's domains",
		RunE: func(cmd *cobra.Command, args []string) error {
			clinicID, err := clinicIDFlag(cmd)
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetString("domain-id")
			domainID, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("--domain-id must be a domain id")
			}

			return withRegistry(func(ctx context.Context, registry *tenant.Service) error {
				if err := registry.SetPrimaryDomain(ctx, clinicID, domainID); err != nil {
					return err
				}
				fmt.Printf("domain %s is now primary for clinic %s\n", domainID, clinicID)
				return nil
			})
		},
	}
	setPrimaryCmd.Flags().String("clinic", "", "Clinic id")
	setPrimaryCmd.Flags().String("domain-id", "", "Domain id to promote")
	cmd.AddCommand(setPrimaryCmd)

	deactivateCmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Stop routing for a clinic without touching its data",
		RunE: func(cmd *cobra.Command, args []string) error {
			clinicID, err := clinicIDFlag(cmd)
			if err != nil {
				return err
			}
			return withRegistry(func(ctx context.Context, registry *tenant.Service) error {
				if err := registry.Deactivate(ctx, clinicID); err != nil {
					return err
				}
				fmt.Printf("clinic %s deactivated\n", clinicID)
				return nil
			})
		},
	}
	deactivateCmd.Flags().String("clinic", "", "Clinic id")
	cmd.AddCommand(deactivateCmd)

	reactivateCmd := &cobra.Command{
		Use:   "reactivate",
		Short: "Restore routing for a deactivated clinic",
		RunE: func(cmd *cobra.Command, args []string) error {
			clinicID, err := clinicIDFlag(cmd)
			if err != nil {
				return err
			}
			return withRegistry(func(ctx context.Context, registry *tenant.Service) error {
				if err := registry.Reactivate(ctx, clinicID); err != nil {
					return err
				}
				fmt.Printf("clinic %s reactivated\n", clinicID)
				return nil
			})
		},
	}
	reactivateCmd.Flags().String("clinic", "", "Clinic id")
	cmd.AddCommand(reactivateCmd)

	domainsCmd := &cobra.Command{
		Use:   "domains",
		Short: "List the routing domains of a clinic",
		RunE: func(cmd *cobra.Command, args []string) error {
			clinicID, err := clinicIDFlag(cmd)
			if err != nil {
				return err
			}
			return withRegistry(func(ctx context.Context, registry *tenant.Service) error {
				domains, err := registry.Domains(ctx, clinicID)
				if err != nil {
					return err
				}
				fmt.Printf("%-38s %-40s %s\n", "ID", "DOMAIN", "PRIMARY")
				for _, d := range domains {
					primary := ""
					if d.IsPrimary {
						primary = "yes"
					}
					fmt.Printf("%-38s %-40s %s\n", d.ID, d.Domain, primary)
				}
				return nil
			})
		},
	}
	domainsCmd.Flags().String("clinic", "", "Clinic id")
	cmd.AddCommand(domainsCmd)

	return cmd
}

func keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Provision the field-encryption keystore",
		Long: "Generates a random 256-bit key and writes it hex-encoded to the " +
			"keystore file. Refuses to overwrite an existing keystore.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("out")
			if path == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				path = cfg.KeystorePath
			}
			if path == "" {
				return fmt.Errorf("no keystore path: pass --out or set ENCRYPTION_KEY_FILE")
			}

			if err := rgpd.ProvisionKey(path); err != nil {
				return err
			}
			fmt.Printf("encryption key written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().String("out", "", "Keystore file path (defaults to ENCRYPTION_KEY_FILE)")
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
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	crypto, err := rgpd.NewService(cfg.KeystorePath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize field encryption")
	}

	issuer := auth.NewTokenIssuer(
		cfg.JWTSecret,
		time.Duration(cfg.AccessTokenTTL)*time.Minute,
		time.Duration(cfg.RefreshTokenTTL)*time.Hour,
	)

	// Registry and domain wiring.
	registry := tenant.NewService(
		tenant.NewRepoPG(pool), pool,
		filepath.Join(cfg.MigrationsDir, "tenant"), logger,
	)

	auditRepo := auditlog.NewRepoPG(pool)
	recorder := auditlog.NewRecorder(auditRepo, logger)
	auditSvc := auditlog.NewService(auditRepo)
	auditHandler := auditlog.NewHandler(auditSvc)

	userRepo := user.NewRepoPG(pool)
	userSvc := user.NewService(
		userRepo, issuer, recorder,
		cfg.MaxLoginFailures, time.Duration(cfg.LockoutMinutes)*time.Minute,
		logger,
	)
	userHandler := user.NewHandler(userSvc)

	patientRepo := patient.NewRepoPG(pool, crypto.Cipher())
	patientSvc := patient.NewService(patientRepo, recorder, auditSvc, logger)
	patientHandler := patient.NewHandler(patientSvc)

	tenantHandler := tenant.NewHandler(registry)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// Everything under /api/v1 runs inside a resolved tenant partition.
	apiV1 := e.Group("/api/v1", db.TenantMiddleware(pool, registry))

	// Login and refresh need the tenant but not a token.
	userHandler.RegisterPublicRoutes(apiV1)

	authed := apiV1.Group("", auth.Middleware(issuer), auditlog.ReadAudit(recorder, logger))
	userHandler.RegisterRoutes(authed)
	patientHandler.RegisterRoutes(authed)
	auditHandler.RegisterRoutes(authed)
	tenantHandler.RegisterRoutes(authed)

	// Start with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
