package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"gastos/internal/adapters"
	"gastos/internal/amqp"
	"gastos/internal/backend"
	"gastos/internal/cache"
	"gastos/internal/cli"
	apphttp "gastos/internal/http"
	"gastos/internal/log"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	result, err := adapters.NewFactory(logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	opts := services.DashboardOptions{
		Location:     cfg.Location(),
		CacheSize:    cfg.CacheSize,
		CacheTTL:     cfg.CacheTTL,
		FetchTimeout: cfg.APITimeout,
		Logger:       logger,
	}

	// Change notifications are optional; without a broker the worker only
	// resyncs on its interval.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, change notifications disabled", log.FieldError, err)
		} else {
			opts.Publisher = amqpClient
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	}

	dashboard := services.NewDashboardService(result.Backend, opts)

	cacheManager := cache.NewManager()
	if c := dashboard.Cache(); c != nil {
		cacheManager.Register(c)
	}
	if cfg.CacheTTL > 0 {
		cacheManager.StartCleanup(cfg.CacheTTL)
	}

	srv := apphttp.NewServer(":"+cfg.Port, dashboard, apphttp.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		Logger: logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting gastos server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"timezone", cfg.Timezone)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
