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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"coinstock/backend/internal/cache"
	"coinstock/backend/internal/config"
	"coinstock/backend/internal/httpapi"
	"coinstock/backend/internal/logger"
	"coinstock/backend/internal/metrics"
	"coinstock/backend/internal/report"
	"coinstock/backend/internal/service"
	"coinstock/backend/internal/store"
	"coinstock/backend/internal/store/memory"
	pgstore "coinstock/backend/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "coinstock-api",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
		WarnStack:   cfg.LogWarnStack,
	})
	ctx := context.Background()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "server exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logg *logger.Logger) error {
	if err := validateSecurityConfig(cfg); err != nil {
		return fmt.Errorf("invalid security configuration: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)
	defer func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logg.Error(ctx, "close failed", err)
			}
		}
	}()

	repo, closeRepo, err := openRepository(startCtx, cfg, logg)
	if err != nil {
		return err
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	filterCache, closeCache := openFilterCache(startCtx, cfg, logg)
	if closeCache != nil {
		closers = append(closers, closeCache)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storeMetrics := metrics.NewStoreMetrics(registry)

	aggregator := report.NewAggregator(repo, filterCache, cfg.FilterCacheTTL(), logg)
	svc := service.New(repo, aggregator, logg, storeMetrics)
	auth := httpapi.NewAuthManager(startCtx, cfg.AuthSecret, cfg.AccessTokenTTL(), repo)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		PageSize:      cfg.PageSize,
		Gatherer:      registry,
		Logger:        logg,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", cfg.Address()), "coinstock api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "shutdown failed", err)
	}
	logg.Info(ctx, "server stopped")
	return nil
}

// openRepository uses Postgres when DATABASE_URL is set and never falls back
// to memory if it is unreachable.
func openRepository(ctx context.Context, cfg config.Config, logg *logger.Logger) (store.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		logg.Info(logg.WithField(ctx, "seeded", cfg.SeedDemoData), "repository: in-memory")
		if cfg.SeedDemoData {
			return memory.NewSeeded(), nil, nil
		}
		return memory.New(), nil, nil
	}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL, pgstore.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLife,
		ConnMaxIdleTime: cfg.DBConnMaxIdle,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing in-memory fallback: %w", err)
	}
	if cfg.AutoMigrate {
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("migrating postgres: %w", err)
		}
		logg.Info(ctx, "postgres migrations applied")
	}
	logg.Info(ctx, "repository: postgres")
	return pg, pg.Close, nil
}

// openFilterCache falls back to the noop cache when redis is not configured
// or not reachable; the cache only saves report filter queries.
func openFilterCache(ctx context.Context, cfg config.Config, logg *logger.Logger) (cache.FilterCache, func() error) {
	if cfg.RedisAddr == "" {
		logg.Info(ctx, "cache: noop")
		return cache.NoopFilterCache{}, nil
	}
	redisCache := cache.NewRedisFilterCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "redis unavailable, using noop cache")
		_ = redisCache.Close()
		return cache.NoopFilterCache{}, nil
	}
	logg.Info(ctx, "cache: redis")
	return redisCache, redisCache.Close
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
