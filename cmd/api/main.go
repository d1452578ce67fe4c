// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"revenue-jobs/internal/auth"
	"revenue-jobs/internal/repository/postgresql"
	"revenue-jobs/internal/service"
	httptransport "revenue-jobs/internal/transport/http"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgDSN := mustEnv("POSTGRES_DSN")
	redisAddr := mustEnv("REDIS_ADDR")
	authSecret := mustEnv("AUTH_SECRET")

	addr := envOr("HTTP_ADDR", ":8080")
	baseQueueKey := envOr("REDIS_QUEUE_KEY", "jobs:queue")
	baseProcessingKey := envOr("REDIS_PROCESSING_KEY", "jobs:processing")
	processingMapKey := envOr("REDIS_PROCESSING_MAP_KEY", baseProcessingKey+":map")

	// Postgres
	pool, err := postgresql.NewPool(ctx, pgDSN)
	if err != nil {
		log.Fatalf("pg: %v", err)
	}
	defer pool.Close()

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	verifier, err := auth.NewVerifier(authSecret)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	// DI
	repo := postgresql.NewJobRepository(pool)
	queue := service.NewRedisPriorityQueue(
		rdb,
		processingMapKey,
		service.Lane{QueueKey: baseQueueKey + ":low", ProcessingKey: baseProcessingKey + ":low"},
		service.Lane{QueueKey: baseQueueKey + ":normal", ProcessingKey: baseProcessingKey + ":normal"},
		service.Lane{QueueKey: baseQueueKey + ":high", ProcessingKey: baseProcessingKey + ":high"},
	)
	jobSvc := service.NewJobService(repo, queue)
	handler := httptransport.NewHandler(jobSvc)

	srv := &http.Server{
		Addr:              addr,
		Handler:           httptransport.Routes(handler, verifier),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("api started: addr=%s redis_addr=%s queue_key=%s", addr, redisAddr, baseQueueKey)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http: %v", err)
	}

	log.Println("api stopped")
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("missing env: %s", key)
	}
	return v
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
