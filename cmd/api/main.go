package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/shortlink/internal/config"
	"github.com/SergeiKhy/shortlink/internal/generator"
	"github.com/SergeiKhy/shortlink/internal/handler"
	"github.com/SergeiKhy/shortlink/internal/middleware"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"github.com/SergeiKhy/shortlink/internal/service"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Выбор бэкенда хранилища
	var linkRepo repository.LinkRepository
	switch cfg.Store.Backend {
	case "postgres":
		db, err := repository.NewPostgresDB(cfg.DB)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := db.Migrate(ctx); err != nil {
			cancel()
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		cancel()

		linkRepo = repository.NewPostgresLinkRepository(db)
		logger.Info("Connected to PostgreSQL")

	case "redis":
		redis, err := repository.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redis.Close()

		linkRepo = repository.NewRedisLinkRepository(redis)
		logger.Info("Connected to Redis")

	default:
		logger.Fatal("Unknown store backend", zap.String("backend", cfg.Store.Backend))
	}

	// Генератор кодов
	gen := generator.New(generator.Policy{
		CodeLength:     cfg.Links.CodeLength,
		AliasMinLength: cfg.Links.AliasMinLength,
		AliasMaxLength: cfg.Links.AliasMaxLength,
	})

	// Инициализация сервиса
	linkService := service.NewLinkService(linkRepo, gen, service.Options{
		DefaultTTL:   cfg.Links.DefaultTTL,
		MaxTTL:       cfg.Links.MaxTTL,
		CodeMode:     cfg.Links.CodeMode,
		AliasEnabled: cfg.Links.AliasEnabled,
		MaxURLLength: cfg.Links.MaxURLLength,
	}, logger)

	// Фоновая очистка истёкших ссылок
	sweeper := service.NewSweeper(linkRepo, cfg.Sweep.Interval, cfg.Sweep.BatchSize, logger)
	sweeper.Start()
	defer sweeper.Stop()

	// Инициализация middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	defer rateLimiter.Stop()

	// Настройка роутера
	router := handler.NewRouter(linkService, rateLimiter, cfg.App.BaseURL, logger)

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
