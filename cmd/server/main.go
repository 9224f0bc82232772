package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hongminglow/customer-be/internal/config"
	"github.com/hongminglow/customer-be/internal/http/handlers"
	"github.com/hongminglow/customer-be/internal/logging"
	"github.com/hongminglow/customer-be/internal/ratelimit"
	"github.com/hongminglow/customer-be/internal/server"
	"github.com/hongminglow/customer-be/internal/storage"
	"github.com/hongminglow/customer-be/internal/storage/memory"
	"github.com/hongminglow/customer-be/internal/storage/postgres"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.Pinger{}

	var store storage.CustomerStore
	switch cfg.StorageDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory customer store; data is lost on restart")
		store = memory.NewStore()
	default:
		pg, err := postgres.NewCustomerStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("init database", zap.Error(err))
		}
		defer pg.Close()
		store = pg
		checks["postgres"] = pg
	}

	var limitStore ratelimit.Store
	if cfg.RateLimit.RedisURL != "" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.RateLimit.RedisURL)
		if err != nil {
			logger.Fatal("init redis", zap.Error(err))
		}
		rs := ratelimit.NewRedisStore(client, "customer-be:ratelimit:")
		defer func() { _ = rs.Close() }()
		limitStore = rs
		checks["redis"] = rs
	} else {
		ms := ratelimit.NewMemoryStore()
		go ms.Run(ctx, time.Minute)
		limitStore = ms
	}

	srv, err := server.New(cfg, server.Deps{
		Store:      store,
		LimitStore: limitStore,
		Logger:     logger.Logger,
		Checks:     checks,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	go func() {
		logger.Info("customer backend listening",
			zap.String("addr", cfg.HTTPAddress()),
			zap.String("env", cfg.Env),
			zap.String("storage", cfg.StorageDriver),
		)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("graceful shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
