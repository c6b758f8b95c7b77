package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"payment-relay/internal/config"
	"payment-relay/internal/handler"
	"payment-relay/internal/health"
	"payment-relay/internal/ledger"
	"payment-relay/internal/model"
	"payment-relay/internal/processor"
	"payment-relay/internal/queue"
	"payment-relay/internal/router"
	"payment-relay/internal/summary"
	"payment-relay/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid_redis_url", "error", err)
		os.Exit(1)
	}
	opts.DialTimeout = config.StoreDialTimeout
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	paymentQueue := queue.NewRedisQueue(rdb)
	paymentLedger := ledger.NewRedisLedger(rdb)
	paymentRouter := router.New(cfg.DefaultProcessorURL, cfg.FallbackProcessorURL)
	client := processor.NewHTTPClient()

	probe := health.NewProbe(paymentRouter, client, []health.Target{
		{Name: model.GroupDefault, URL: cfg.DefaultProcessorURL},
		{Name: model.GroupFallback, URL: cfg.FallbackProcessorURL},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go probe.Run(ctx)
	for i := 0; i < cfg.WorkerCount; i++ {
		go worker.New(paymentQueue, paymentLedger, paymentRouter, client).Run(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	handler.New(paymentQueue, summary.New(paymentLedger), paymentLedger).RegisterRoutes(engine)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     engine,
		IdleTimeout: cfg.ServerKeepalive,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	slog.Info("server_started",
		"port", cfg.Port,
		"workers", cfg.WorkerCount,
		"default_processor", cfg.DefaultProcessorURL,
		"fallback_processor", cfg.FallbackProcessorURL,
	)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server_failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutdown_started")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown_failed", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("server_stopped")
}
