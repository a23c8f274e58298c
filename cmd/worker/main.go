package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"classroom/internal/applog"
	"classroom/internal/config"
	"classroom/internal/queue"
	"classroom/internal/store"
)

// Worker consumes domain events from Redis and appends them to the audit log.
// It is only needed when the API runs with QUEUE_BACKEND=redis.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend != "redis" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis (got %q)", cfg.QueueBackend)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis not reachable at %s, will keep retrying", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(redisClient.Client, "")
	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	audit := applog.New(cfg.LogsDir)
	log.Printf("worker started, writing %s", audit.Path())
	for msg := range messages {
		audit.Record(msg)
		log.Printf("recorded %s for %s", msg.Type, msg.Subject)
	}

	log.Println("worker stopped")
}
