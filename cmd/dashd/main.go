package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/neurodash/neurodash/internal/analysis"
	"github.com/neurodash/neurodash/internal/config"
	"github.com/neurodash/neurodash/internal/domain/doctor"
	"github.com/neurodash/neurodash/internal/domain/patient"
	"github.com/neurodash/neurodash/internal/domain/scan"
	"github.com/neurodash/neurodash/internal/domain/stats"
	"github.com/neurodash/neurodash/internal/domain/user"
	"github.com/neurodash/neurodash/internal/platform/cache"
	"github.com/neurodash/neurodash/internal/platform/db"
	"github.com/neurodash/neurodash/internal/platform/fetch"
	"github.com/neurodash/neurodash/internal/platform/middleware"
	"github.com/neurodash/neurodash/internal/platform/session"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dashd",
		Short: "NeuroDash clinical dashboard API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(probeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// probeCmd checks the external analyzer once and reports its state, for
// deploy scripts and debugging.
func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe-analyzer",
		Short: "Probe the analysis service health endpoint once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), analysis.DefaultProbeTimeout)
			defer cancel()

			state := analysis.NewClient(cfg.AnalyzerURL).Health(ctx)
			cmd.Printf("analyzer %s: %s\n", cfg.AnalyzerURL, state)
			return nil
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Data-access layer: one shared cache behind the gated executor.
	dataCache := cache.New(cache.WithTTL(cfg.CacheTTL))
	registry := cache.DefaultRegistry()
	gate := session.NewGate(session.ContextProvider{}, session.WithRetryInterval(cfg.AuthRetryInterval))
	exec := fetch.NewExecutor(gate, dataCache,
		fetch.WithTimeout(cfg.FetchTimeout),
		fetch.WithAuthWait(cfg.AuthMaxWait),
	)

	// External analyzer integration.
	analyzerClient := analysis.NewClient(cfg.AnalyzerURL)
	runner := analysis.NewRunner(cfg.AnalyzerPollInterval, cfg.AnalyzerPollAttempts, logger)
	monitor, err := analysis.NewMonitor(analyzerClient, cfg.AnalyzerHealthCron, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid analyzer health schedule")
	}
	monitor.Start()
	defer monitor.Stop()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(session.Middleware(cfg.SessionSecret))
	e.Use(db.RowScopeMiddleware(pool))

	// Domain services
	scanSvc := scan.NewService(scan.NewRepo(pool), exec, registry, analyzerClient, runner, logger)
	patientSvc := patient.NewService(patient.NewRepo(pool), exec, registry)
	doctorSvc := doctor.NewService(doctor.NewRepo(pool), exec, registry)
	userSvc := user.NewService(user.NewRepo(pool), exec, registry)
	statsSvc := stats.NewService(stats.NewRepo(pool), exec, monitor)

	// Routes
	api := e.Group("/api/v1")
	scan.NewHandler(scanSvc).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	doctor.NewHandler(doctorSvc).RegisterRoutes(api)
	user.NewHandler(userSvc).RegisterRoutes(api)
	stats.NewHandler(statsSvc).RegisterRoutes(api)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

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
