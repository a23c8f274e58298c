package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"classroom/internal/activities"
	"classroom/internal/api"
	"classroom/internal/applog"
	"classroom/internal/attendance"
	"classroom/internal/auth"
	"classroom/internal/config"
	"classroom/internal/publish"
	"classroom/internal/queue"
	"classroom/internal/report"
	"classroom/internal/store"
	"classroom/internal/students"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, pg, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	var redisClient *store.Redis
	if cfg.SessionBackend == "redis" || cfg.QueueBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
	}

	appLog := applog.New(cfg.LogsDir)

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		q = queue.NewRedisQueue(redisClient.Client, "")
	} else {
		q = queue.NewInMemory(64)
		// With the in-memory queue the audit consumer runs in-process.
		msgs, err := q.Consume(ctx)
		if err != nil {
			return err
		}
		go appLog.Drain(msgs)
	}

	var registry auth.Registry
	if cfg.SessionBackend == "redis" {
		registry = auth.NewRedisRegistry(redisClient.Client, "")
	} else {
		registry = auth.NewMemoryRegistry()
	}
	sessions := auth.NewSessions(registry, auth.NewTokenCodec(cfg.SessionSigningKey, cfg.SessionIssuer))

	st := students.NewService(backend, q)
	att := attendance.NewService(attendance.NewRepository(backend), st, q)
	acts := activities.NewService(backend, st, q)
	reports := report.NewGenerator(cfg.ReportsDir, st, att, acts)
	authSvc := auth.NewService(sessions, auth.AdminCredentials{Username: cfg.AdminUser, Password: cfg.AdminPass}, st)

	// Cloudinary client (nil when not configured)
	var publisher api.ReportPublisher
	if cfg.CloudinaryConfigured() {
		publisher = publish.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder, cfg.CloudinaryBaseURL)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	h := api.New(authSvc, sessions, st, att, acts, reports, publisher, appLog)
	r := api.NewRouter(h, api.Options{
		StaticDir:       cfg.StaticDir,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Health: func(ctx context.Context) map[string]bool {
			out := map[string]bool{}
			if pg != nil {
				out["db"] = pg.Healthy(ctx)
			}
			if redisClient != nil {
				out["redis"] = redisClient.Healthy(ctx)
			}
			return out
		},
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		appLog.Info("Server started on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}
	// Sessions do not survive a restart.
	if err := sessions.Clear(shutdownCtx); err != nil {
		log.Printf("clear sessions: %v", err)
	}
	appLog.Info("Server stopped")

	log.Println("Server exited")
	return nil
}

// openBackend returns the configured table store. pg is non-nil only for the
// postgres backend so /healthz can probe it.
func openBackend(ctx context.Context, cfg config.App) (store.Backend, *store.PostgresBackend, error) {
	if cfg.StoreBackend == "postgres" {
		pg, err := store.NewPostgresBackend(ctx, cfg.DatabaseURL, store.Collections...)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg, nil
	}
	fb, err := store.NewFileBackend(cfg.DataDir, store.Collections...)
	if err != nil {
		return nil, nil, err
	}
	return fb, nil, nil
}
