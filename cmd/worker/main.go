package main

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
	"seva-signup/core/queue"
	syncmodule "seva-signup/modules/sync"
	syncservice "seva-signup/modules/sync/service"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", err)
		os.Exit(1)
	}
	logger.Init(cfg.Server.LogLevel)

	if err := run(cfg); err != nil {
		logger.Error("run worker", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	var q queue.Queue
	if cfg.AWS.QueueURL != "" {
		sqsQueue, err := queue.NewSQSQueue(cfg.AWS)
		if err != nil {
			return fmt.Errorf("init queue: %w", err)
		}
		q = sqsQueue
	} else {
		// Local development only; an in-process queue receives nothing from
		// a separately-running API.
		logger.Warn("Worker:Main:MemoryQueue")
		q = queue.NewMemoryQueue(30 * time.Second)
	}

	worker, reconciler, err := syncmodule.Init(ctx, db, q, cfg)
	if err != nil {
		return fmt.Errorf("init sync module: %w", err)
	}

	health := startHealthServer(cfg.Worker.HealthPort, worker)

	asynqServer, scheduler := startReconciliation(cfg, reconciler)

	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	<-ctx.Done()
	logger.Info("Worker:Main:ShuttingDown")

	// Let in-flight handlers drain, but never hang a deploy.
	select {
	case <-done:
	case <-time.After(cfg.Worker.ShutdownTimeout):
		logger.Warn("Worker:Main:DrainTimeout", "in_flight", worker.InFlight())
	}

	if scheduler != nil {
		scheduler.Shutdown()
	}
	if asynqServer != nil {
		asynqServer.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		logger.Error("Worker:Main:HealthShutdown", err)
	}

	logger.Info("Worker:Main:Stopped")
	return nil
}

// startHealthServer exposes liveness plus the in-flight handler count, so
// orchestrators can tell a draining worker from a wedged one.
func startHealthServer(port int, worker *syncservice.Worker) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":    "healthy",
			"in_flight": worker.InFlight(),
			"time":      time.Now().UTC().Format(time.RFC3339),
		})
	})

	go func() {
		addr := fmt.Sprintf(":%d", port)
		logger.Info("Worker:Health:Listening", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("Worker:Health:Start", err)
		}
	}()
	return e
}

// startReconciliation schedules the periodic ledger sweep. Without Redis the
// sweep is skipped; the queue's own redelivery still covers worker crashes.
func startReconciliation(cfg *config.Config, reconciler *syncservice.Reconciler) (*asynq.Server, *asynq.Scheduler) {
	if cfg.Redis.Addr == "" {
		logger.Warn("Worker:Reconcile:Disabled")
		return nil, nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 1})
	mux := asynq.NewServeMux()
	mux.Handle(syncservice.TaskReconcile, reconciler)
	go func() {
		if err := srv.Run(mux); err != nil {
			logger.Error("Worker:Reconcile:Server", err)
		}
	}()

	scheduler := asynq.NewScheduler(redisOpt, nil)
	spec := fmt.Sprintf("@every %s", cfg.Worker.ReconcileEvery)
	if _, err := scheduler.Register(spec, syncservice.NewReconcileTask()); err != nil {
		logger.Error("Worker:Reconcile:Register", err)
	} else {
		go func() {
			if err := scheduler.Run(); err != nil {
				logger.Error("Worker:Reconcile:Scheduler", err)
			}
		}()
	}

	return srv, scheduler
}
