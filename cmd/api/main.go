package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	appproxy "github.com/bryanwahyu/x402guard/internal/application/proxy"
	"github.com/bryanwahyu/x402guard/internal/config"
	"github.com/bryanwahyu/x402guard/internal/infra/httpserver"
	"github.com/bryanwahyu/x402guard/internal/infra/upstream"
	"github.com/bryanwahyu/x402guard/internal/log"
	"github.com/bryanwahyu/x402guard/internal/middleware"
)

func main() {
	// load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	// init upstream backend
	backend := upstream.NewClient(cfg.Upstream.BaseURL, &http.Client{Timeout: cfg.Upstream.Timeout}, logger)

	// init service
	svc := &appproxy.Service{
		Backend: backend,
		Logger:  logger.With(zap.String("component", "proxy")),
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	stopCleanup := make(chan struct{})
	go limiter.Run(stopCleanup)

	// init router
	handler := httpserver.NewRouter(httpserver.Options{
		Proxy:       svc,
		Logger:      logger,
		Metrics:     middleware.NewMetrics(),
		RateLimiter: limiter,
		Checkers:    map[string]middleware.HealthChecker{"upstream": backend},
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// run server
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("upstream", backend.BaseURL()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server...")
	close(stopCleanup)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
