package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"totalx/internal/admin"
	"totalx/internal/backend"
	"totalx/internal/cache"
	"totalx/internal/cli"
	apphttp "totalx/internal/http"
	"totalx/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stdout, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(nil).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.ErrorContext(context.Background(), "Backend cleanup failed", log.FieldError, err)
		}
	}()

	registry, err := admin.Load(ctx, cfg.Admins(), res.Repository, cfg.Policy())
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load admin registry", log.FieldError, err)
		os.Exit(1)
	}

	svc, summaries := newLedgerService(cfg, backendCfg.Type, res, registry)
	if summaries == nil {
		logger.InfoContext(ctx, "Summary cache disabled, backend is shared with other processes",
			"backend", cfg.DataBackend)
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		RateLimitPerMinute:       cfg.RateLimitPerMinute,
		ClientRateLimitPerMinute: cfg.ClientRateLimitPerMinute,
		Ready: func(ctx context.Context) error {
			_, err := res.Repository.Keys(ctx)
			return err
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "Starting totalx server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"admin_policy", string(registry.Policy()),
			"admins", len(registry.List()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if summaries != nil && cfg.SummaryCacheTTL > 0 {
		janitor := cache.NewJanitor(summaries)
		g.Go(func() error {
			janitor.Run(gctx, cfg.SummaryCacheTTL)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.InfoContext(context.Background(), "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.ErrorContext(context.Background(), "Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	requests, limits := srv.Metrics()
	logger.InfoContext(context.Background(), "Server stopped gracefully",
		"requests", requests.TotalRequests,
		"failed_requests", requests.FailedRequests,
		"rate_limited", limits.Rejected)
}
