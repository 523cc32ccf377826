// Package main runs the ride registration HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kiezrad/backend/config"
	"github.com/kiezrad/backend/internal/access"
	"github.com/kiezrad/backend/internal/auth"
	"github.com/kiezrad/backend/internal/cms"
	"github.com/kiezrad/backend/internal/middleware"
	"github.com/kiezrad/backend/internal/notify"
	"github.com/kiezrad/backend/internal/ratelimit"
	"github.com/kiezrad/backend/internal/registrations"
	"github.com/kiezrad/backend/internal/turnstile"
	"github.com/kiezrad/backend/pkg/database"
	"github.com/kiezrad/backend/pkg/queue"
	"github.com/kiezrad/backend/pkg/redis"
	"github.com/kiezrad/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Auth (member identity)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Collaborators
	cmsClient := cms.NewClient(cfg.CMS.BaseURL, cfg.CMS.Token, cfg.CMS.Timeout, logger)
	verifier := turnstile.New(cfg.Turnstile.Secret, cfg.Turnstile.Timeout, logger)

	// Notifications go through the Redis queue; the worker binary sends.
	jobQueue := queue.NewQueue(rdb.Client, logger)
	dispatcher := notify.NewDispatcher(jobQueue, logger)

	// Rate limiting: shared Redis counters, local fallback inside.
	limiter := ratelimit.New(ratelimit.NewRedisStore(rdb.Client), logger)

	// Registrations
	evaluator := access.Evaluator{
		MemberEarlyDays: cfg.Access.MemberEarlyDays,
		FlintaEarlyDays: cfg.Access.FlintaEarlyDays,
	}
	registrationRepo := registrations.NewRepository(pool)
	registrationService := registrations.NewService(
		registrationRepo, cmsClient, authRepo, verifier, dispatcher,
		evaluator, cfg.Email.CancelBaseURL, logger,
	)
	registrationHandler := registrations.NewHandler(
		registrationService, jwtService, limiter, cfg.RateLimit, logger,
	)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"success": false, "error": "method not allowed"})
	})

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Event registration surface
	router.GET("/event", registrationHandler.GetCapacity)
	router.POST("/event", registrationHandler.PostEvent)

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
