package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"kmbot/internal/backend"
	"kmbot/internal/cli"
	apphttp "kmbot/internal/http"
	"kmbot/internal/log"
	"kmbot/internal/middleware/ratelimit"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)

	sink, metricsHandler, err := cli.NewMetrics()
	if err != nil {
		logger.Error("Failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger, sink).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	bot, err := cli.NewBot(cfg, res.Store, res.Reports, sink)
	if err != nil {
		logger.Error("Failed to initialize bot", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute)
	go limiter.Run(ctx, 5*time.Minute)
	go res.Caches.Run(ctx, 10*time.Minute)

	opts := apphttp.Options{
		Addr:           ":" + cfg.Port,
		Bot:            bot,
		Notifier:       cli.NewNotifier(cfg, logger),
		Logger:         logger,
		Metrics:        sink,
		MetricsHandler: metricsHandler,
		Ready:          res.Ready,
		CronToken:      cfg.CronToken,
		PublicURL:      cfg.WebhookPublicURL,
	}
	if cfg.RateLimitPerMinute > 0 {
		opts.Limiter = limiter
	}
	if cfg.TwilioValidateSignature {
		opts.SignatureToken = cfg.TwilioAuthToken
	}
	srv := apphttp.NewServer(opts)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting kmbot server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", cfg.Timezone,
		"signature_validation", cfg.TwilioValidateSignature)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
