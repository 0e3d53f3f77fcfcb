package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tallyvault/tallyvault/internal/config"
	"github.com/tallyvault/tallyvault/internal/infra"
	"github.com/tallyvault/tallyvault/internal/kvsync"
	"github.com/tallyvault/tallyvault/internal/ledger"
	"github.com/tallyvault/tallyvault/internal/logging"
	"github.com/tallyvault/tallyvault/internal/server"
	"github.com/tallyvault/tallyvault/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	var (
		db    *pgxpool.Pool
		cache *redis.Client
		store snapshot.Store
	)

	switch cfg.Backend {
	case config.BackendRedis:
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		store = snapshot.NewRedisStore(cache, cfg.SnapshotKey)
	case config.BackendPostgres:
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pgStore := snapshot.NewPostgresStore(db, cfg.SnapshotKey)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Error("prepare snapshot schema", "error", err)
			os.Exit(1)
		}
		store = pgStore
	default:
		store = snapshot.NewMemoryStore()
	}

	engine := kvsync.New(store, kvsync.NewTTLCache(cfg.CacheTTL), cfg.PollInterval, logger)
	ledgerStore := ledger.NewStore()
	syncer := ledger.NewSyncer(engine, ledgerStore, logger)
	syncer.Load(ctx)
	syncer.Start()
	defer syncer.Stop()

	srv, err := server.New(cfg, db, cache, ledgerStore, syncer, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
