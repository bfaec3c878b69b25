// Package main is the entry point for the background worker.
// Relays invoice lifecycle events from the transactional outbox.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"geniuserp/internal/infrastructure/storage/postgres"
	"geniuserp/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting invoicing worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	batchSize := getEnvInt("OUTBOX_BATCH_SIZE", 100)
	pollInterval := getEnvDuration("OUTBOX_POLL_INTERVAL", 500*time.Millisecond)

	relay := postgres.NewOutboxRelay(pool.Unwrap(), batchSize, &loggingHandler{log: log})
	worker := &Worker{
		relay:        relay,
		log:          log.WithComponent("worker"),
		pollInterval: pollInterval,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker drains the outbox on a fixed poll interval.
type Worker struct {
	relay        *postgres.OutboxRelay
	log          *logger.Logger
	pollInterval time.Duration
}

// Run polls the outbox until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(1 * time.Minute)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed, err := w.relay.ProcessBatch(ctx)
			if err != nil {
				w.log.Errorw("outbox batch failed", "error", err)
				continue
			}
			if processed > 0 {
				w.log.Debugw("processed outbox batch", "count", processed)
			}
		case <-statsTicker.C:
			postgres.LogPoolStats(ctx, w.relay.Pool())
		}
	}
}

// loggingHandler publishes events to the log. Replace with a broker
// publisher when a downstream consumer exists.
type loggingHandler struct {
	log *logger.Logger
}

func (h *loggingHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	h.log.WithContext(ctx).Infow("invoice event",
		"event_type", msg.EventType,
		"aggregate_id", msg.AggregateID,
		"payload", string(msg.Payload),
	)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
