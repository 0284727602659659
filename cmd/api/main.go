package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/signalix/licensing/internal/auth"
	"github.com/signalix/licensing/internal/billing"
	"github.com/signalix/licensing/internal/config"
	"github.com/signalix/licensing/internal/db"
	httphandler "github.com/signalix/licensing/internal/http"
	"github.com/signalix/licensing/internal/logger"
	"github.com/signalix/licensing/internal/lytex"
	"github.com/signalix/licensing/internal/metrics"
	"github.com/signalix/licensing/internal/middleware"
	"github.com/signalix/licensing/internal/repo"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "licensing: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Env vars already set take precedence over .env
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(os.Stdout, cfg.LogLevel, cfg.DevMode)
	if err != nil {
		return err
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	log.Info().Str("target", cfg.DatabaseTarget()).Msg("running migrations")
	if err := db.Migrate(database); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewPrometheusMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// Initialize repositories
	userRepo := repo.NewUserRepo(database)
	deviceRepo := repo.NewDeviceRepo(database)
	licenseRepo := repo.NewLicenseRepo(database)
	configRepo := repo.NewSystemConfigRepo(database)

	gateway := lytex.NewClient(lytex.Options{
		BaseURL:  cfg.Lytex.BaseURL,
		Timeout:  cfg.Lytex.Timeout,
		Recorder: m,
		Logger:   log,
	})
	tokens := lytex.NewTokenManager(gateway, configRepo, log)

	svc := billing.NewService(billing.Deps{
		Users:        userRepo,
		Devices:      deviceRepo,
		Licenses:     licenseRepo,
		SystemConfig: configRepo,
		Gateway:      gateway,
		Tokens:       tokens,
		Location:     cfg.Billing.Location(),
		Recorder:     m,
		Logger:       log,
	})

	sweeper := billing.NewSweeper(deviceRepo, cfg.Billing.SweepSchedule, m, log)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start license sweeper: %w", err)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	stopCleanup := make(chan struct{})
	go limiter.RunCleanup(5*time.Minute, stopCleanup)

	router := httphandler.NewRouter(httphandler.RouterDeps{
		Licenses:    svc,
		JWT:         auth.NewJWTService(cfg.JWTSecret),
		Users:       userRepo,
		RateLimiter: limiter,
		Metrics:     m.Handler(),
		Logger:      log,
	})

	// Create HTTP server with timeouts. WriteTimeout covers a gateway call plus one token
	// renewal and retry.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      3*cfg.Lytex.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	case err := <-serverErr:
		log.Error().Err(err).Msg("server failed")
		shutdown(log, srv, sweeper, stopCleanup)
		return err
	}

	shutdown(log, srv, sweeper, stopCleanup)
	log.Info().Msg("server exited")
	return nil
}

func shutdown(log zerolog.Logger, srv *http.Server, sweeper *billing.Sweeper, stopCleanup chan struct{}) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	close(stopCleanup)
	select {
	case <-sweeper.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("license sweep still running at shutdown")
	}
}
