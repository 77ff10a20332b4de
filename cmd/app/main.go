// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"launchpad/internal/application"
	"launchpad/internal/config"
	"launchpad/internal/infra/api"
	"launchpad/internal/infra/logging"
	"launchpad/internal/infra/metrics"
	"launchpad/internal/infra/scheduler"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: console logs, memory storage when no config file exists")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Storage + use cases ----
	svc, err := application.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build services")
	}
	defer svc.Close()

	// ---- HTTP ----
	srv := api.NewServer(api.Deps{
		Issue:              svc.Issue,
		Redeem:             svc.Redeem,
		Engagement:         svc.Engagement,
		RateLimit:          svc.RateLimit,
		Auth:               api.NewAuthManager(cfg.HTTP.JWTSecret, cfg.HTTP.TokenTTL),
		Rules:              application.Rules(cfg.RateLimit),
		TrustXForwardedFor: cfg.RateLimit.TrustXForwardedFor,
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		Logger:             logger,
	})
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// ---- Scheduler ----
	sched := scheduler.NewScheduler(cfg.Scheduler.PoolStatsInterval, logger, svc.Jobs...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", httpSrv.Addr).Str("driver", cfg.Storage.Driver).Str("version", version).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sched.Start(gctx)
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("exited with error")
		svc.Close()
		os.Exit(1)
	}
	logger.Info().Msg("bye")
}
