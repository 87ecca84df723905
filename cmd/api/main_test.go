package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/kokorotts/internal/config"
	"github.com/nikhilbhutani/kokorotts/internal/database"
	"github.com/nikhilbhutani/kokorotts/internal/users"
)

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := newRootCommand()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["dbcheck"])

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)

	require.NotNil(t, cmd.Flags().Lookup("memory"))
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	require.NotNil(t, serveCmd.Flags().Lookup("memory"))
}

func TestOpenUserStore_Memory(t *testing.T) {
	// An unreachable URL proves the memory store never dials.
	cfg := &config.Config{Database: config.DatabaseConfig{URL: "postgres://nobody@127.0.0.1:1/none"}}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	repo, release, err := openUserStore(context.Background(), cfg, true, logger)
	require.NoError(t, err)
	defer release()

	_, ok := repo.(*users.MemoryRepository)
	assert.True(t, ok)
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &database.Report{
		Version:    "PostgreSQL 16.2",
		Tables:     []string{"goose_db_version", "users"},
		UsersTable: true,
		UserCount:  3,
	})

	out := buf.String()
	assert.Contains(t, out, "PostgreSQL 16.2")
	assert.Contains(t, out, "- users")
	assert.Contains(t, out, "users table  true")
	assert.NotContains(t, out, "migrated")
}
