package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"freelance_hub/internal/config"
	"freelance_hub/internal/handler"
	"freelance_hub/internal/middleware"
	"freelance_hub/internal/repository"
	"freelance_hub/internal/service"
	"freelance_hub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	// Подключение к PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Invalid database DSN", "error", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.Database.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	if err := repository.ApplyMigrations(context.Background(), dbPool, cfg.Database.MigrationsDir, appLogger); err != nil {
		appLogger.Fatal("Failed to apply migrations", "error", err)
	}

	// Подключение к Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	if err := middleware.RegisterValidators(); err != nil {
		appLogger.Fatal("Failed to register validators", "error", err)
	}

	repos := repository.NewRepositories(dbPool, rdb, appLogger)
	services := service.NewServices(repos, cfg, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	handlers := handler.NewHandlers(services, repos, cfg, appLogger)

	router := setupRouter(handlers, services, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ожидание сигнала для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Shutdown не ждет hijacked соединения, сокеты закрываем сами
	handlers.WebSocket.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	services *service.Services,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSOrigin))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))

	router.GET("/health", handlers.Health.Check)

	// WebSocket транспорт: авторизация на уровне каждой подписки
	router.GET("/ws", handlers.WebSocket.Serve)

	v1 := router.Group("/api/v1")
	{
		public := v1.Group("/auth")
		public.Use(rateLimitMiddleware.LimitByIP())
		{
			public.POST("/register", handlers.Auth.Register)
			public.POST("/login", handlers.Auth.Login)
			public.POST("/refresh", handlers.Auth.RefreshToken)
			public.POST("/logout", handlers.Auth.Logout)
		}

		protected := v1.Group("")
		protected.Use(authMiddleware.RequireAuth())
		{
			users := protected.Group("/users")
			{
				users.GET("/me", handlers.User.GetMe)
				users.PUT("/me", handlers.User.UpdateMe)
			}

			protected.POST("/projects", handlers.Project.Create)

			project := protected.Group("/projects/:id")
			project.Use(middleware.RequireParticipant(services.Access))
			{
				project.GET("", handlers.Project.Get)
				project.GET("/messages", handlers.Chat.History)
			}

			chat := protected.Group("/chat")
			{
				chat.POST("/send", rateLimitMiddleware.LimitByUser(), handlers.Chat.Send)
				chat.POST("/typing", rateLimitMiddleware.LimitByUser(), handlers.Chat.Typing)
				chat.GET("/rooms", handlers.Chat.Rooms)
			}

			protected.POST("/pusher/auth", handlers.ChannelAuth.Authorize)
		}
	}

	return router
}
