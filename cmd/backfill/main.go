package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fekuna/stockholm-inventory-service/config"
	"github.com/fekuna/stockholm-inventory-service/internal/backfill"
	bfRepoPkg "github.com/fekuna/stockholm-inventory-service/internal/backfill/repository"
	bfUCPkg "github.com/fekuna/stockholm-inventory-service/internal/backfill/usecase"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/cache"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/database/postgres"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// backfill moves the legacy _variants entries kept in each item's options
// blob into item_variants rows and exits. Safe to re-run.
func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred closes happen before exit.
func run() int {
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	appLogger := logger.NewZapLogger(&logger.ZapLoggerConfig{
		IsDevelopment:     cfg.Server.AppEnv == "dev" || cfg.Server.AppEnv == "development",
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	})
	defer appLogger.Sync()

	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Error("Could not connect to database", zap.Error(err))
		return 1
	}
	defer db.Close()

	// Cache invalidation is best effort; a missing Redis only leaves stale
	// list pages until their TTL runs out.
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Warn("Redis unavailable, skipping cache invalidation", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uc := bfUCPkg.NewBackfillUseCase(bfRepoPkg.NewPGRepository(db), redisClient, appLogger)
	res, err := uc.Run(ctx)
	return report(appLogger, res, err)
}

// report logs the outcome and maps it to an exit code: 1 when the run
// aborted or any item failed.
func report(log logger.ZapLogger, res *backfill.Result, err error) int {
	if err != nil {
		log.Error("backfill failed", zap.Error(err))
		return 1
	}
	log.Info("backfill finished",
		zap.Int("migrated", res.MigratedCount),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	if res.Failed > 0 {
		return 1
	}
	return 0
}
