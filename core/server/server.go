package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seva-signup/core/config"
	"seva-signup/core/database"
	"seva-signup/core/logger"
	"seva-signup/core/middleware"
	"seva-signup/core/queue"
	"seva-signup/core/ratelimit"
	"seva-signup/core/storage"
	"seva-signup/modules/event"
	"seva-signup/modules/signup"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
)

// Run starts the HTTP API and blocks until shutdown completes.
func Run(cfg *config.Config) error {
	logger.Init(cfg.Server.LogLevel)

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	limiter := buildLimiter(cfg)
	mw := middleware.NewMiddleware(limiter)

	q, err := buildQueue(cfg)
	if err != nil {
		return fmt.Errorf("init queue: %w", err)
	}

	var exporter storage.Exporter
	if cfg.AWS.S3Bucket != "" {
		s3Exporter, err := storage.NewS3Exporter(cfg.AWS)
		if err != nil {
			return fmt.Errorf("init object storage: %w", err)
		}
		exporter = s3Exporter
	} else {
		logger.Warn("Server:Run:MirrorDisabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomiddleware.Recover())
	e.Use(mw.RequestLogger())

	e.GET("/health", healthHandler(db))

	api := e.Group("/api/v1")
	event.Init(api, db, mw)
	signup.Init(api, db, q, exporter, cfg.Server.BaseURL, mw)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.Info("Server:Run:Listening", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("Server:Run:Start", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Server:Run:ShuttingDown", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("Server:Run:Stopped")
	return nil
}

func buildLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.Redis.Addr == "" {
		logger.Warn("Server:BuildLimiter:MemoryStore")
		return ratelimit.NewLimiter(ratelimit.NewMemoryStore(), cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return ratelimit.NewLimiter(ratelimit.NewRedisStore(client), cfg.RateLimit.Requests, cfg.RateLimit.Window)
}

func buildQueue(cfg *config.Config) (queue.Queue, error) {
	if cfg.AWS.QueueURL == "" {
		// Local development only; jobs do not survive a restart.
		logger.Warn("Server:BuildQueue:MemoryQueue")
		return queue.NewMemoryQueue(30 * time.Second), nil
	}
	return queue.NewSQSQueue(cfg.AWS)
}

func healthHandler(db database.Database) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Error("Server:Health:Ping", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"time":   time.Now().UTC().Format(time.RFC3339),
			})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
