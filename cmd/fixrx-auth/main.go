package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fixrx/auth-service/internal/auth"
	"github.com/fixrx/auth-service/internal/cache"
	"github.com/fixrx/auth-service/internal/config"
	"github.com/fixrx/auth-service/internal/domain"
	"github.com/fixrx/auth-service/internal/httpapi"
	"github.com/fixrx/auth-service/internal/password"
	"github.com/fixrx/auth-service/internal/queue"
	"github.com/fixrx/auth-service/internal/rate"
	"github.com/fixrx/auth-service/internal/repository"
	"github.com/fixrx/auth-service/internal/token"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DatabaseDSN,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	store := cache.NewRedis(rdb)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		log.Warn("session cache unreachable at startup, limiter will run degraded", zap.Error(err))
	}
	cancel()

	tokens, err := token.NewManager(token.Config{
		AccessSecret:  []byte(cfg.AccessSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		log.Fatal("token manager init failed", zap.Error(err))
	}

	limiter := rate.New(store, rate.Config{
		MaxAttempts: cfg.RateMaxAttempts,
		Window:      cfg.RateWindow,
	}, log)

	producer := queue.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic, log)
	defer func() { _ = producer.Close() }()

	svc := auth.NewService(
		repository.NewUserRepository(db),
		tokens,
		store,
		limiter,
		password.NewHasher(),
		nil, // identity provider wired when social login credentials are configured
		producer,
		auth.Config{
			RefreshTTL:    cfg.RefreshTTL,
			ResetTokenTTL: cfg.ResetTokenTTL,
			PhoneCodeTTL:  cfg.PhoneCodeTTL,
		},
		log,
	)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	httpapi.NewHandler(svc, log).SetupRoutes(app)

	go func() {
		log.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
	_ = rdb.Close()
}
