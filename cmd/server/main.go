// Package main is the entrypoint for the jobstore API server.
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

	_ "github.com/joho/godotenv/autoload"
	"github.com/kiranshivaraju/jobstore/internal/access"
	"github.com/kiranshivaraju/jobstore/internal/api"
	"github.com/kiranshivaraju/jobstore/internal/api/handler"
	mw "github.com/kiranshivaraju/jobstore/internal/api/middleware"
	"github.com/kiranshivaraju/jobstore/internal/api/response"
	"github.com/kiranshivaraju/jobstore/internal/cache"
	"github.com/kiranshivaraju/jobstore/internal/config"
	"github.com/kiranshivaraju/jobstore/internal/events"
	"github.com/kiranshivaraju/jobstore/internal/index"
	"github.com/kiranshivaraju/jobstore/internal/jobs"
	"github.com/kiranshivaraju/jobstore/internal/platform"
	"github.com/kiranshivaraju/jobstore/internal/store"
	"github.com/rs/cors"
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
	// 1. Load config, failing fast when it is invalid
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "job_index", cfg.Elasticsearch.JobIndex)

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

	// 4. Create Redis client, shared by rate limiting and the event stream
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Search index. An unreachable cluster is not fatal: reads fall back to the database.
	esClient, err := index.NewESClient(cfg.Elasticsearch)
	if err != nil {
		return fmt.Errorf("create search index client: %w", err)
	}
	if err := esClient.Ping(ctx); err != nil {
		slog.Warn("search index unavailable at startup", "error", err)
	} else {
		slog.Info("search index connected")
	}

	// 6. Platform API, permission guard and event dispatcher
	platformClient := platform.NewHTTPClient(cfg.Platform.BaseURL, cfg.Platform.Token, cfg.Platform.Timeout)
	guard := access.NewGuard(platformClient, platformClient)

	dispatcher := events.NewDispatcher(
		events.NewRedisStreamSink(redisCache.Client(), cfg.Events.StreamMaxLen),
		events.Options{
			Workers:    cfg.Events.Workers,
			QueueSize:  cfg.Events.QueueSize,
			Originator: cfg.Events.Originator,
		},
		slog.Default(),
	)

	// 7. Job service
	pgStore := store.NewPostgresStore(pool)
	svc := jobs.NewService(jobs.Deps{
		Guard:           guard,
		Store:           pgStore,
		Roles:           pgStore,
		Skills:          platformClient,
		Index:           esClient,
		Events:          dispatcher,
		MaxResultWindow: esClient.MaxResultWindow(),
		Logger:          slog.Default(),
	})

	// 8. Build router with dependencies
	jobsHandler := handler.NewJobs(svc)
	router := api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, cfg.HTTP.RateLimitPerMinute),

		HealthHandler: healthHandler(pgStore, redisCache, esClient),
		SearchJobs:    jobsHandler.Search,
		GetJob:        jobsHandler.Get,
		CreateJob:     jobsHandler.Create,
		ReplaceJob:    jobsHandler.Replace,
		PatchJob:      jobsHandler.Patch,
		DeleteJob:     jobsHandler.Delete,
	})

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsHandler(cfg.HTTP.AllowedOrigins, router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
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

	// Requests are drained, so no new events can be published.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Events.ShutdownTimeout)
	defer cancelDrain()
	if err := dispatcher.Close(drainCtx); err != nil {
		slog.Warn("event queue not fully drained", "error", err, "failures", dispatcher.Failures())
	}

	slog.Info("server stopped gracefully")
	return nil
}

// corsHandler wraps h with CORS handling for the configured origins.
// With no origins configured, h is returned unchanged.
func corsHandler(origins []string, h http.Handler) http.Handler {
	if len(origins) == 0 {
		return h
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{response.DataSourceHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Location"},
		MaxAge:         300,
	})
	return c.Handler(h)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks database, cache and index connectivity. The index is
// allowed to be down since reads fall back to the database.
func healthHandler(db, c, idx pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
			"index":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if err := idx.Ping(r.Context()); err != nil {
			checks["index"] = "degraded"
		}

		if checks["database"] != "ok" || checks["cache"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		status := "ok"
		if checks["index"] != "ok" {
			status = "degraded"
		}
		response.JSON(w, map[string]any{
			"status":   status,
			"services": checks,
		})
	}
}

var (
	_ access.IdentityResolver  = (*platform.HTTPClient)(nil)
	_ access.MembershipChecker = (*platform.HTTPClient)(nil)
	_ jobs.SkillChecker        = (*platform.HTTPClient)(nil)
	_ jobs.JobStore            = (*store.PostgresStore)(nil)
	_ jobs.RoleStore           = (*store.PostgresStore)(nil)
	_ jobs.Publisher           = (*events.Dispatcher)(nil)
	_ mw.KeyStore              = (*store.PostgresStore)(nil)
)
