// cmd/eligibility-service/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"eligibility-service/internal/api"
	"eligibility-service/internal/common/config"
	"eligibility-service/internal/common/database"
	"eligibility-service/internal/common/logger"
	"eligibility-service/internal/common/observability"
	"eligibility-service/internal/common/tasks"
	"eligibility-service/internal/eligibility"
	pc "eligibility-service/internal/workers/eligibility/process-check"
	sc "eligibility-service/internal/workers/eligibility/send-callback"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting eligibility service...",
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("callbackUrl", cfg.Callback.URL),
	)

	obs, err := observability.New(cfg.App.Name, observability.Options{
		MetricsEnabled: cfg.Observability.MetricsEnabled,
		TracingEnabled: cfg.Observability.TracingEnabled,
		SampleRatio:    cfg.Observability.SampleRatio,
	})
	if err != nil {
		zapLog.Warn("otel metrics disabled", zap.Error(err))
	}
	defer obs.Shutdown()

	// --- Override allow-list ---
	static := eligibility.NewStaticOverrides(cfg.Checker.AlwaysEligible...)
	var overrides eligibility.OverrideSet = static

	if cfg.Redis.Enabled {
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(context.Background())
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully", zap.String("overridesKey", cfg.Redis.OverridesKey))

		overrides = eligibility.NewRedisOverrides(static, redis, cfg.Redis.OverridesKey, log)
	}

	// --- Capability provider and registry ---
	provider, err := eligibility.NewProvider(cfg.Checker, overrides, log)
	if err != nil {
		zapLog.Fatal("checker provider failed", zap.Error(err))
	}

	registry, err := eligibility.BuildRegistry(cfg, provider, log)
	if err != nil {
		zapLog.Fatal("handler registration failed", zap.Error(err))
	}

	// --- Pipeline ---
	sender := sc.NewHandler(sc.LoadConfig(cfg.Callback), log)
	runner := tasks.NewRunner(log)
	orchestrator := pc.NewHandler(registry, sender, runner, log,
		pc.WithTracer(obs.Tracer()),
		pc.WithRecorder(obs),
		pc.WithOverrides(overrides),
	)

	// --- HTTP intake ---
	router := api.NewRouter(api.Options{
		Info: api.ServiceInfo{
			Name:        cfg.App.Name,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
		},
		Submitter:    orchestrator,
		Plans:        registry,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}, log)
	router.RegisterRoutes()

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address()))
		if err := router.App.Listen(cfg.Server.Address()); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	zapLog.Info("Shutdown signal received, draining background checks...",
		zap.Int64("inFlight", runner.InFlight()))

	ctx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := router.App.ShutdownWithContext(ctx); err != nil {
		zapLog.Warn("http server shutdown error", zap.Error(err))
	}
	if err := runner.Shutdown(ctx); err != nil {
		zapLog.Warn("background checks abandoned", zap.Error(err), zap.Int64("inFlight", runner.InFlight()))
	}

	zapLog.Info("Eligibility service stopped")
}
