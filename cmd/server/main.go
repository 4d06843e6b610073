// Package main is the entrypoint for the JobFleet API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/devarsh/jobfleet/internal/api"
	"github.com/devarsh/jobfleet/internal/api/handler"
	mw "github.com/devarsh/jobfleet/internal/api/middleware"
	"github.com/devarsh/jobfleet/internal/api/response"
	"github.com/devarsh/jobfleet/internal/batch"
	"github.com/devarsh/jobfleet/internal/batchstore"
	"github.com/devarsh/jobfleet/internal/cache"
	"github.com/devarsh/jobfleet/internal/compute"
	"github.com/devarsh/jobfleet/internal/config"
	"github.com/devarsh/jobfleet/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "compute_url", cfg.Compute.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create batch store on object storage
	minioClient, err := minio.New(cfg.ObjectStore.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.ObjectStore.AccessKey, cfg.ObjectStore.SecretKey, ""),
		Secure: cfg.ObjectStore.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("create object store client: %w", err)
	}

	minioStore := batchstore.NewMinioStore(minioClient, cfg.ObjectStore.Bucket, cfg.ObjectStore.KeyPrefix)
	if err := minioStore.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure batch bucket: %w", err)
	}
	batchStore := batchstore.NewCached(minioStore, redisCache, cfg.Batch.RecordCacheTTL)
	slog.Info("object store ready", "bucket", cfg.ObjectStore.Bucket)

	// 6. Create compute client with explicitly scheduled credential refresh
	tokens, err := newTokenProvider(ctx, cfg.Compute)
	if err != nil {
		return fmt.Errorf("compute credentials: %w", err)
	}
	computeClient := compute.NewHTTPClient(cfg.Compute.BaseURL, tokens, cfg.Compute.RequestTimeout)

	// 7. Build batch services
	submitter := batch.NewSubmitter(computeClient, batch.SubmitterConfig{
		JobQueue:       cfg.Compute.JobQueue,
		JobDefinition:  cfg.Compute.JobDefinition,
		OutputBucket:   cfg.ObjectStore.Bucket,
		RequestTimeout: cfg.Compute.RequestTimeout,
	})
	expander := batch.NewExpander(submitter, batchStore, cfg.Batch.SubmitConcurrency)
	aggregator := batch.NewAggregator(computeClient, batchStore, cfg.Batch.StatusChunkTimeout)
	jobService := batch.NewJobService(computeClient, cfg.Compute.RequestTimeout)

	// 8. Build router with dependencies
	pgStore := store.NewPostgresStore(pool)
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMin)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache, batchStore),

		SubmitJobHandler:    handler.NewSubmitJobHandler(submitter),
		JobStatusHandler:    handler.NewJobStatusHandler(jobService),
		TerminateJobHandler: handler.NewTerminateJobHandler(jobService),

		SubmitBatchHandler: handler.NewSubmitBatchHandler(expander),
		BatchStatusHandler: handler.NewBatchStatusHandler(aggregator),
		ListBatchesHandler: handler.NewListBatchesHandler(batchStore),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server. Bulk expansion holds the request until the
	// batch record is persisted, so writes get a generous ceiling.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newTokenProvider builds the compute credential provider. File-backed
// tokens are reloaded by a scheduled task tied to the server's lifetime.
func newTokenProvider(ctx context.Context, cfg config.ComputeConfig) (compute.TokenProvider, error) {
	if cfg.TokenFile == "" {
		return compute.StaticToken(cfg.Token), nil
	}

	source, err := compute.NewFileTokenSource(cfg.TokenFile)
	if err != nil {
		return nil, err
	}

	go func() {
		ticker := time.NewTicker(cfg.TokenRefreshPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := source.Refresh(); err != nil {
					slog.Warn("compute token refresh failed", "error", err)
				}
			}
		}
	}()

	return source, nil
}

// healthHandler checks database, cache, and object store connectivity.
func healthHandler(s store.Store, c cache.Cache, b batchstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database":     "ok",
			"cache":        "ok",
			"object_store": "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if err := b.Ping(r.Context()); err != nil {
			checks["object_store"] = "degraded"
		}

		degraded := false
		for _, v := range checks {
			if v != "ok" {
				degraded = true
			}
		}
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
