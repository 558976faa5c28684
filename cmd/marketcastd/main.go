// Command marketcastd runs the pipeline scheduling daemon.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"marketcast/internal/clock"
	"marketcast/internal/config"
	"marketcast/internal/daemon"
	"marketcast/internal/history"
	"marketcast/internal/logging"
	"marketcast/internal/orchestrator"
	"marketcast/internal/pipeline"
	"marketcast/internal/runlock"
	"marketcast/internal/runlog"
	"marketcast/internal/state"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, resolvedPath, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare runtime directory: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	zone, err := clock.NewZone(cfg.Service.TimeZone)
	if err != nil {
		log.Fatalf("resolve time zone: %v", err)
	}

	var archive *history.Store
	if cfg.History.Enabled {
		archive, err = history.Open(cfg.HistoryPath())
		if err != nil {
			log.Fatalf("open run history: %v", err)
		}
		defer archive.Close()
	}

	service := orchestrator.New(orchestrator.Deps{
		Config:  cfg,
		Clock:   zone,
		Store:   state.NewStore(cfg.StatePath()),
		Locker:  runlock.NewFile(cfg.LockPath()),
		Sink:    runlog.New(cfg.RunLogPath(), cfg.RunLog.MaxBytes, cfg.RunLog.TailReadBytes),
		Runner:  pipeline.NewRunner(cfg.Pipeline, logger),
		History: archive,
		Logger:  logger,
	})
	service.Start(ctx)

	server := daemon.NewServer(cfg, service, logger)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("start api server: %v", err)
	}

	watchConfig(ctx, resolvedPath, service, logger)

	logger.Info("marketcastd running",
		logging.String("bind", server.Addr()),
		logging.String("time_zone", zone.Location().String()),
		logging.String("runtime_dir", cfg.Service.RuntimeDir))

	<-ctx.Done()
	logger.Info("marketcastd shutting down")
	service.Wait()
}

func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	paths := []string{"stdout"}
	if cfg.Logging.File {
		paths = append(paths, cfg.ProcessLogPath())
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Paths:  paths,
	})
}

// watchConfig hot-reloads the schedule section when the config file changes.
// Service identity (bind address, runtime dir, token) stays fixed until
// restart.
func watchConfig(ctx context.Context, path string, service *orchestrator.Service, logger *slog.Logger) {
	if path == "" {
		return
	}
	watcher, err := config.NewWatcher(path)
	if err != nil {
		logger.Warn("config watch unavailable", logging.Error(err))
		return
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watch unavailable", logging.Error(err))
		_ = watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-watcher.Events():
				if event.Err != nil {
					logger.Warn("config reload failed", logging.Error(event.Err))
					continue
				}
				service.UpdateSchedule(event.Config.Schedule)
			}
		}
	}()
}
