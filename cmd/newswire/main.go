package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mirador/newswire/internal/alert"
	"github.com/mirador/newswire/internal/config"
	"github.com/mirador/newswire/internal/ingest"
)

func main() {
	configPath := flag.String("config", getEnv("NEWSWIRE_CONFIG", ""), "path to configuration file")
	logLevel := flag.String("log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	statusInterval := flag.Duration("status-interval", 60*time.Second, "interval between status log lines (0 disables)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("starting newswire",
		"servers", len(cfg.Servers),
		"keywords", len(cfg.Keywords),
		"sink", cfg.Alert.Sink,
		"api_fetch", cfg.APIFetchEnabled,
	)

	if err := run(cfg, logger, *statusInterval); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}

	logger.Info("newswire shutdown complete")
}

func run(cfg config.Config, logger *slog.Logger, statusInterval time.Duration) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink, closeSink, err := buildSink(cfg, logger)
	if err != nil {
		return err
	}
	if closeSink != nil {
		defer closeSink()
	}

	deduper, closeDedup, err := buildDeduper(ctx, cfg)
	if err != nil {
		return err
	}
	if closeDedup != nil {
		defer closeDedup()
	}

	service := ingest.NewService(ingest.ServiceConfig{
		Config:  cfg,
		Sink:    sink,
		Deduper: deduper,
		Logger:  logger,
	})
	service.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// SIGUSR1 doubles as an external wake signal in headless deployments.
	wakeCh := make(chan os.Signal, 1)
	signal.Notify(wakeCh, syscall.SIGUSR1)

	var statusC <-chan time.Time
	if statusInterval > 0 {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		statusC = ticker.C
	}

	for {
		select {
		case <-sigCh:
			logger.Info("shutdown signal received")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			service.Stop(shutdownCtx)
			shutdownCancel()
			return nil

		case <-wakeCh:
			logger.Info("wake signal received")
			service.Refresh()

		case <-statusC:
			storeStats, dispatchStats := service.Stats()
			logger.Info("status",
				"events", storeStats.Size,
				"inserted", storeStats.Inserted,
				"duplicates", storeStats.Duplicates,
				"dispatched", dispatchStats.Dispatched,
				"suppressed", dispatchStats.Suppressed,
				"dropped", dispatchStats.Dropped,
				"sources", service.Status(),
			)
		}
	}
}

func buildSink(cfg config.Config, logger *slog.Logger) (alert.Sink, func(), error) {
	switch cfg.Alert.Sink {
	case "nats":
		sink, err := alert.NewNATSSink(cfg.Alert.NATSURL, cfg.Alert.NATSSubject)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	case "kafka":
		sink, err := alert.NewKafkaSink(cfg.Alert.KafkaBrokers, cfg.Alert.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	default:
		return alert.NewLogSink(logger), nil, nil
	}
}

func buildDeduper(ctx context.Context, cfg config.Config) (alert.Deduper, func(), error) {
	if cfg.Alert.RedisAddr == "" {
		return alert.NewMemoryDeduper(), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Alert.RedisAddr,
		Password: cfg.Alert.RedisPassword,
		DB:       cfg.Alert.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}

	return alert.NewRedisDeduper(client, "newswire:dedup:"), func() { client.Close() }, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
