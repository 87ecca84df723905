package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/kokorotts/internal/config"
)

var version = "1.0.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		memory     bool
	)

	cmd := &cobra.Command{
		Use:           "kokoro-api",
		Short:         "Kokoro TTS HTTP API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return serve(configPath, memory)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_FILE"), "Path to a TOML config file")
	cmd.Flags().BoolVar(&memory, "memory", false, "Keep accounts in process memory instead of PostgreSQL")

	cmd.AddCommand(
		newServeCommand(&configPath),
		newMigrateCommand(&configPath),
		newDBCheckCommand(&configPath),
	)

	return cmd
}

// loadConfig reads the configuration and installs the JSON logger as the
// process default.
func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	slog.SetDefault(newLogger(slog.LevelInfo))

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(config.ParseLogLevel(cfg.Server.LogLevel))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
