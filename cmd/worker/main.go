package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/resource-workflow/internal/app"
	"github.com/ignite/resource-workflow/internal/config"
	"github.com/ignite/resource-workflow/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	runOnce := flag.String("run", "", "run one task immediately and exit")
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

	scheduler, err := a.Scheduler()
	if err != nil {
		logger.Error("failed to build scheduler", "error", err.Error())
		os.Exit(1)
	}

	if *runOnce != "" {
		if err := scheduler.RunNow(ctx, *runOnce); err != nil {
			logger.Error("task failed", "task", *runOnce, "error", err.Error())
			os.Exit(1)
		}
		return
	}

	if !cfg.Scheduler.Enabled {
		logger.Warn("scheduler disabled by configuration, nothing to do")
		return
	}

	scheduler.Start()
	logger.Info("worker running", "tasks", scheduler.Tasks(), "timezone", cfg.Scheduler.Timezone)

	<-ctx.Done()
	logger.Info("shutting down worker, waiting for running tasks")
	scheduler.StopAll()
	logger.Info("worker stopped")
}
