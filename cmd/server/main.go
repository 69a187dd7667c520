package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"medic-workbook/backend/config"
	"medic-workbook/backend/internal/api/handler"
	"medic-workbook/backend/internal/api/middleware"
	"medic-workbook/backend/internal/api/router"
	"medic-workbook/backend/internal/job"
	"medic-workbook/backend/internal/notify"
	"medic-workbook/backend/internal/phase"
	"medic-workbook/backend/internal/repository"
	"medic-workbook/backend/internal/service"
	"medic-workbook/backend/pkg/database"
	"medic-workbook/backend/pkg/jwt"
	applogger "medic-workbook/backend/pkg/logger"
	"medic-workbook/backend/pkg/redis"
)

func main() {
	// 1. config
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 2. logger
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting workbook service",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. database
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	logger.Info("database connected")

	// 3.1 migrations
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("get sql.DB", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	// 4. phase map; a broken map must stop startup
	phases, err := phase.New(phase.DefaultDefinitions())
	if err != nil {
		logger.Fatal("invalid phase map", zap.Error(err))
	}
	logger.Info("phase map loaded",
		zap.Int("phases", phases.TotalPhases()),
		zap.Int("forms", phases.TotalForms()),
	)

	// 5. redis (optional: run degraded when unreachable)
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, events stay in-process and submissions are not rate limited", zap.Error(err))
		rdb = nil
	}

	// 6. progress events
	broker := notify.NewBroker(cfg.Progress.SubscriberBuffer, logger)
	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()

	var publisher notify.Publisher = broker
	var limiter middleware.RateLimiter
	if rdb != nil {
		relay := notify.NewRedisRelay(rdb, cfg.Progress.NotifyChannel, broker, logger)
		publisher = relay
		limiter = rdb
		go relay.Serve(relayCtx)
	}

	// 7. jwt
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 8. Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, phases, publisher, logger)
	h := handler.NewHandler(svc, broker)

	// 9. reconcile sweep
	sweep := job.NewReconcileJob(cfg.Progress, svc.Reconcile, logger)
	if err := sweep.Start(); err != nil {
		logger.Fatal("schedule reconcile sweep", zap.Error(err))
	}

	// 10. router
	engine := router.Setup(cfg, h, jwtMgr, limiter, logger)

	// 11. HTTP server (graceful shutdown)
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     engine,
		ReadTimeout: 15 * time.Second,
		// no write timeout: progress event streams stay open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	// 12. wait for a signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sweep.Stop(ctx)

	// end open event streams so Shutdown does not wait on them
	stopRelay()
	broker.Close()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}

	if closeDB, _ := db.DB(); closeDB != nil {
		closeDB.Close()
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("server stopped")
}
