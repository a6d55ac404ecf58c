package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shared-tasks/internal/broadcast"
	"shared-tasks/internal/cache"
	"shared-tasks/internal/config"
	"shared-tasks/internal/controller"
	"shared-tasks/internal/database"
	"shared-tasks/internal/queue"
	"shared-tasks/internal/repository"
	"shared-tasks/internal/routes"
	"shared-tasks/internal/service"
	"shared-tasks/internal/worker"
	"shared-tasks/pkg/logger"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		logger.Errorf(context.Background(), "failed to read .env: %v", err)
	}
	cfg := config.Get()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.DB(ctx)
	if db == nil {
		logger.Error(ctx, "Database not available; exiting")
		os.Exit(1)
	}
	if err := database.MigrateOrCreateSchema(ctx, db, cfg.DBDriver); err != nil {
		logger.Error(ctx, "Schema migration failed", "error", err)
		os.Exit(1)
	}
	repo := repository.NewTasks(db)

	// Redis is optional; without it every list read goes to the store
	list := cache.NewTaskList(cache.Client(ctx), time.Duration(cfg.CacheTTL)*time.Second)

	hub := broadcast.NewHub(cfg.SubscriberBuffer)

	// With Kafka, mutations are relayed and every replica's worker fans them out
	// to its own hub. Without it the hub is the publisher.
	var events controller.Publisher = hub
	var relay *queue.Relay
	if cfg.RelayEnabled() {
		queue.EnsureTopic(ctx, cfg)
		relay = queue.NewRelay(queue.NewWriter(cfg))
		events = relay
		go worker.Run(ctx, cfg, hub, list)
	}

	server := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: routes.Router(routes.Deps{
			Tasks:  controller.NewTasks(service.NewTasks(repo), list, events),
			Events: controller.NewEvents(hub),
			DB:     repo,
			Cache:  list,
		}),
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: it would cut off long-lived websocket sessions
		IdleTimeout: 120 * time.Second,
	}
	go func() {
		logger.Infof(ctx, "HTTP server listening on :%s (relay=%t cache=%t)", cfg.HTTPPort, cfg.RelayEnabled(), list.Enabled())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "Server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// websocket connections are hijacked, so Shutdown does not wait for them
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Server shutdown error", "error", err)
	}
	if relay != nil {
		if err := relay.Close(); err != nil {
			logger.Error(shutdownCtx, "Kafka writer close error", "error", err)
		}
	}
	_ = db.Close()
	logger.Info(shutdownCtx, "Server stopped")
}
