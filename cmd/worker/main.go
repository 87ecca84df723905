package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/kokorotts/internal/config"
	"github.com/nikhilbhutani/kokorotts/internal/database"
	"github.com/nikhilbhutani/kokorotts/internal/queue"
	"github.com/nikhilbhutani/kokorotts/internal/queue/workers"
	"github.com/nikhilbhutani/kokorotts/internal/users"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a TOML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	if !cfg.Redis.QueueEnabled() {
		slog.Error("REDIS_ADDR is required to run the worker")
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to configure database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		slog.Warn("database unavailable, history tasks will retry", "error", err)
	}

	redisOpt := queue.RedisOpt(cfg.Redis)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	})

	registry := queue.NewHandlersRegistry(logger)

	// Register workers
	historyWorker := workers.NewHistoryWorker(users.NewPostgresRepository(pool))
	sweepWorker := workers.NewSweepWorker(cfg.TTS.OutputDir, cfg.Worker.ArtifactMaxAge)

	registry.Register(queue.TypeHistoryRecord, asynq.HandlerFunc(historyWorker.ProcessTask))
	registry.Register(queue.TypeArtifactSweep, asynq.HandlerFunc(sweepWorker.ProcessTask))

	scheduler := asynq.NewScheduler(redisOpt, nil)
	sweepTask, err := queue.NewSweepTask(cfg.Worker.ArtifactMaxAge)
	if err != nil {
		slog.Error("failed to build sweep task", "error", err)
		os.Exit(1)
	}
	if _, err := scheduler.Register(cfg.Worker.SweepSchedule, sweepTask, asynq.Queue("low")); err != nil {
		slog.Error("failed to schedule sweep", "schedule", cfg.Worker.SweepSchedule, "error", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		slog.Error("scheduler error", "error", err)
		os.Exit(1)
	}
	defer scheduler.Shutdown()

	slog.Info("starting worker",
		"concurrency", cfg.Worker.Concurrency,
		"output_dir", cfg.TTS.OutputDir,
		"sweep_schedule", cfg.Worker.SweepSchedule,
	)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
