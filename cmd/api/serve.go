package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/kokorotts/internal/api"
	"github.com/nikhilbhutani/kokorotts/internal/api/handlers"
	"github.com/nikhilbhutani/kokorotts/internal/auth"
	"github.com/nikhilbhutani/kokorotts/internal/config"
	"github.com/nikhilbhutani/kokorotts/internal/database"
	"github.com/nikhilbhutani/kokorotts/internal/queue"
	"github.com/nikhilbhutani/kokorotts/internal/tts"
	"github.com/nikhilbhutani/kokorotts/internal/users"
)

func newServeCommand(configPath *string) *cobra.Command {
	var memory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return serve(*configPath, memory)
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "Keep accounts in process memory instead of PostgreSQL")

	return cmd
}

// openUserStore returns the account store and a release func. With memory
// set no database is contacted and accounts are lost on exit.
func openUserStore(ctx context.Context, cfg *config.Config, memory bool, logger *slog.Logger) (users.Repository, func(), error) {
	if memory {
		logger.Warn("using in-memory account store, accounts are lost on restart")
		return users.NewMemoryRepository(), func() {}, nil
	}

	// The pool connects lazily; a database that is down at startup only
	// degrades the account routes.
	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("connecting to database", "url", config.RedactedDatabaseURL(cfg.Database.URL))
	if err := pool.Ping(ctx); err != nil {
		logger.Warn("database unavailable, account routes will fail until it is reachable", "error", err)
	} else if err := database.RunMigrations(ctx, pool); err != nil {
		logger.Warn("migrations failed", "error", err)
	}
	return users.NewPostgresRepository(pool), pool.Close, nil
}

func serve(configPath string, memory bool) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, release, err := openUserStore(ctx, cfg, memory, logger)
	if err != nil {
		return err
	}
	defer release()

	// History goes through the task queue when redis is configured.
	var history handlers.HistoryRecorder = repo
	var rdb *redis.Client
	if cfg.Redis.QueueEnabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, history tasks will fail to enqueue", "error", err)
		}

		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		history = qc
	}

	probe := func() (string, error) { return tts.Probe(cfg.TTS.Command) }
	if path, err := probe(); err != nil {
		logger.Warn("tts tool not found, synthesis requests will fail", "error", err)
	} else {
		logger.Info("tts tool resolved", "path", path)
	}

	inv, err := tts.NewInvoker(
		tts.NewKokoroCLI(tts.KokoroConfig{Command: cfg.TTS.Command, Module: cfg.TTS.Module}),
		tts.InvokerConfig{
			OutputDir: cfg.TTS.OutputDir,
			Voice:     cfg.TTS.Voice,
			Speed:     cfg.TTS.Speed,
			Timeout:   cfg.TTS.Timeout,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("init synthesis: %w", err)
	}

	authSvc := auth.NewService(repo, auth.NewTokenIssuer(cfg.Auth.SecretKey, cfg.Auth.AccessTokenTTL), logger)

	router := api.NewRouter(api.Deps{
		Users:          repo,
		Auth:           authSvc,
		Invoker:        inv,
		History:        history,
		Redis:          rdb,
		Probe:          probe,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.TTS.Timeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", cfg.Addr(), "output_dir", inv.OutputDir(), "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}
