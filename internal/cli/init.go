// Package cli provides common CLI initialization utilities shared by
// cmd/kmbot, cmd/kmbot-worker and cmd/kmbotctl.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kmbot/internal/cache"
	"kmbot/internal/config"
	"kmbot/internal/core"
	"kmbot/internal/format"
	"kmbot/internal/ledger"
	"kmbot/internal/log"
	"kmbot/internal/metrics"
	"kmbot/internal/notify"
	"kmbot/internal/services"
	"kmbot/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the logger described by cfg and installs it as the
// slog default. An invalid level or format falls back to info text output.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	logger, herr := log.New(log.Config{Level: level, Format: cfg.LogFormat, Component: component})
	if herr != nil {
		logger, _ = log.New(log.Config{Level: level, Component: component})
	}
	log.SetDefault(logger)
	if err != nil || herr != nil {
		logger.Warn("Invalid logging configuration, using defaults",
			"level", cfg.LogLevel, "format", cfg.LogFormat)
	}
	return logger
}

// Bootstrap loads .env and the configuration, sets up logging and validates
// the configuration. It exits the process on validation failure.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// NewBot wires the reply router on top of store using the configured
// timezone and locale. reports may be nil.
func NewBot(cfg *config.Config, store ledger.Store, reports cache.Cache[string], rec metrics.Recorder) (*services.ReplyRouter, error) {
	clock, err := core.NewClock(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	locale, err := format.Lookup(cfg.Locale)
	if err != nil {
		return nil, err
	}
	opts := []services.RouterOption{services.WithMetrics(rec)}
	if reports != nil {
		opts = append(opts, services.WithReportCache(reports))
	}
	return services.NewReplyRouter(store, locale, clock, opts...), nil
}

// NewNotifier returns the Twilio sender, or notify.Disabled when no
// credentials are configured.
func NewNotifier(cfg *config.Config, logger *log.Logger) notify.Notifier {
	if !cfg.TwilioEnabled() {
		logger.Info("Twilio disabled, outbound summaries will fail")
		return notify.Disabled{}
	}
	n, err := notify.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom)
	if err != nil {
		logger.Warn("Failed to initialize Twilio sender", "error", err)
		return notify.Disabled{}
	}
	return n
}

// NewMetrics creates a private registry with the bot collectors plus the Go
// runtime and process collectors, and the handler that serves it.
func NewMetrics() (*metrics.PromSink, http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sink, err := metrics.NewPromSink(reg)
	if err != nil {
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}
	return sink, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
