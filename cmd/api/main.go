package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/stockholm-inventory-service/config"
	"github.com/fekuna/stockholm-inventory-service/internal/auth"
	"github.com/fekuna/stockholm-inventory-service/internal/middleware"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/broker"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/cache"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/database/postgres"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/logger"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/search"

	bfH "github.com/fekuna/stockholm-inventory-service/internal/backfill/handler"
	bfRepoPkg "github.com/fekuna/stockholm-inventory-service/internal/backfill/repository"
	bfUCPkg "github.com/fekuna/stockholm-inventory-service/internal/backfill/usecase"

	invH "github.com/fekuna/stockholm-inventory-service/internal/inventory/handler"
	invListenerPkg "github.com/fekuna/stockholm-inventory-service/internal/inventory/listener"
	invRepoPkg "github.com/fekuna/stockholm-inventory-service/internal/inventory/repository"
	invSchedulerPkg "github.com/fekuna/stockholm-inventory-service/internal/inventory/scheduler"
	invUCPkg "github.com/fekuna/stockholm-inventory-service/internal/inventory/usecase"

	itemH "github.com/fekuna/stockholm-inventory-service/internal/item/handler"
	itemRepoPkg "github.com/fekuna/stockholm-inventory-service/internal/item/repository"
	itemUCPkg "github.com/fekuna/stockholm-inventory-service/internal/item/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	appLogger := logger.NewZapLogger(&logger.ZapLoggerConfig{
		IsDevelopment:     cfg.Server.AppEnv == "dev" || cfg.Server.AppEnv == "development",
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	})
	defer appLogger.Sync()

	// 3. Connect to Database
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
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 4. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5. Initialize Elasticsearch; listing falls back to Postgres without it
	var esClient *search.Client
	if es, err := search.NewClient(&search.Config{
		Addresses: cfg.Elastic.Addresses,
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	}); err != nil {
		appLogger.Warn("Could not connect to Elasticsearch, item search disabled", zap.Error(err))
	} else {
		esClient = es
		appLogger.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
	}

	// 6. Initialize Repositories and UseCases
	itemUC := itemUCPkg.NewItemUseCase(itemRepoPkg.NewPGRepository(db), redisClient, esClient, appLogger, cfg.Variant.CombinationCap)
	invUC := invUCPkg.NewInventoryUseCase(invRepoPkg.NewPGRepository(db), redisClient, appLogger)
	bfUC := bfUCPkg.NewBackfillUseCase(bfRepoPkg.NewPGRepository(db), redisClient, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 7. Background workers
	if cfg.Kafka.Enabled {
		kafkaConsumer := broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer kafkaConsumer.Close()
		appLogger.Info("Connected to Kafka Consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
		go invListenerPkg.NewInventoryListener(kafkaConsumer, invUC, appLogger).Start(ctx)
	}
	go invSchedulerPkg.New(invUC, cfg.Cron.SweepInterval, appLogger).Start(ctx)

	// 8. HTTP routes
	itemHandler := itemH.NewItemHandler(itemUC, appLogger)
	invHandler := invH.NewInventoryHandler(invUC, appLogger)
	bfHandler := bfH.NewBackfillHandler(bfUC, appLogger)

	if cfg.Server.AppEnv != "dev" && cfg.Server.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	cron := api.Group("/cron", middleware.CronAuth(cfg.Cron.Secret, cfg.Cron.TrustedOrigins))
	cron.POST("/low-stock", invHandler.Sweep)
	cron.GET("/low-stock", invHandler.Sweep)

	secured := api.Group("", middleware.JWTAuth(cfg.JWT.SecretKey, appLogger))
	itemHandler.RegisterRoutes(secured)
	invHandler.RegisterRoutes(secured)
	secured.POST("/admin/backfill", middleware.RequireRole(auth.RoleAdmin), bfHandler.Run)

	srv := &http.Server{
		Addr:         normalizePort(cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("failed to serve http", zap.Error(err))
		}
	}()

	// 9. gRPC health and reflection for the orchestrator
	grpcPort := normalizePort(cfg.Server.GRPCPort)
	lis, err := net.Listen("tcp", grpcPort)
	if err != nil {
		appLogger.Fatal("failed to listen", zap.String("port", grpcPort), zap.Error(err))
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		appLogger.Info("Starting gRPC server", zap.String("port", grpcPort))
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve grpc", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http shutdown failed", zap.Error(err))
	}
	grpcServer.GracefulStop()
	appLogger.Info("Server stopped")
}

func normalizePort(port string) string {
	if !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}
