package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/resource-workflow/internal/api"
	"github.com/ignite/resource-workflow/internal/app"
	"github.com/ignite/resource-workflow/internal/config"
	"github.com/ignite/resource-workflow/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	if lvl, err := logger.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to start", "error", err.Error())
		os.Exit(1)
	}
	defer a.Close()

	// Tasks can be triggered by hand here; the worker process owns the schedule.
	var tasks api.TaskRunner
	if cfg.Scheduler.Enabled {
		s, err := a.Scheduler()
		if err != nil {
			logger.Error("failed to build scheduler", "error", err.Error())
			os.Exit(1)
		}
		tasks = s
	}

	handlers := api.NewHandlers(a.Campaigns, a.Invoices, a.Notifications, tasks)
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.SetupRoutes(handlers, cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      11 * time.Minute,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err.Error())
	}
	logger.Info("server stopped")
}
