package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sitebook/gateway/internal/activity"
	"github.com/sitebook/gateway/internal/apiclient"
	"github.com/sitebook/gateway/internal/config"
	"github.com/sitebook/gateway/internal/handler"
	"github.com/sitebook/gateway/internal/logger"
	"github.com/sitebook/gateway/internal/notify"
	"github.com/sitebook/gateway/internal/query"
	"github.com/sitebook/gateway/internal/router"
	"github.com/sitebook/gateway/internal/ws"
	"go.uber.org/zap"
)

const (
	janitorInterval = time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "sitebook-gateway")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	store, closeStore, err := newStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	cache := query.NewClient(store, query.Options{
		StaleTime: cfg.Cache.StaleTime,
		Retry: query.RetryPolicy{
			Max:       cfg.Retry.Max,
			BaseDelay: cfg.Retry.BaseDelay,
			MaxDelay:  cfg.Retry.MaxDelay,
		},
		StaleWhileRevalidate: cfg.Cache.StaleWhileRevalidate,
	}, log)

	hub := ws.NewHub(log)
	go hub.Run(ctx)

	notifiers := notify.Fanout{notify.NewLog(log), hub}

	// The activity log is optional; without a database the endpoint answers 503.
	var activityStore handler.ActivityStore
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		acts := activity.NewStore(pool)
		if err := acts.EnsureSchema(ctx); err != nil {
			return err
		}
		activityStore = acts
		notifiers = append(notifiers, acts)
		log.Info("activity log enabled")
	}

	deps := handler.Deps{
		Upstream: apiclient.New(apiclient.Options{BaseURL: cfg.UpstreamURL, Timeout: cfg.Timeout}, log),
		Cache:    cache,
		Notifier: notifiers,
		Logger:   log,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, deps, hub, activityStore),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("upstream", cfg.UpstreamURL),
			zap.String("cache", cfg.Cache.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newStore picks the cache backend. The memory store is swept by a janitor
// goroutine; Redis expires entries itself.
func newStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (query.Store, func(), error) {
	if cfg.Cache.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		log.Info("using redis cache", zap.String("addr", cfg.Redis.Addr))
		return query.NewRedisStore(rdb, "sitebook:", cfg.Cache.GCTime), func() { rdb.Close() }, nil
	}

	mem := query.NewMemoryStore(cfg.Cache.GCTime)
	go mem.RunJanitor(ctx, janitorInterval)
	return mem, func() {}, nil
}
