package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Report is the outcome of a connectivity diagnostic.
type Report struct {
	Version    string
	Tables     []string
	UsersTable bool
	Migrated   bool
	UserCount  int64
}

// Check verifies connectivity, lists public tables, applies migrations when
// the users table is missing and counts users.
func Check(ctx context.Context, pool *pgxpool.Pool) (*Report, error) {
	var one int
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return nil, fmt.Errorf("connectivity check: %w", err)
	}
	if one != 1 {
		return nil, fmt.Errorf("connectivity check: unexpected result %d", one)
	}

	rep := &Report{}
	var version string
	if err := pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return nil, fmt.Errorf("server version: %w", err)
	}
	rep.Version, _, _ = strings.Cut(version, ",")

	rows, err := pool.Query(ctx, `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		rep.Tables = append(rep.Tables, name)
		if name == "users" {
			rep.UsersTable = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	if !rep.UsersTable {
		if err := RunMigrations(ctx, pool); err != nil {
			return nil, err
		}
		rep.Migrated = true
	}

	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&rep.UserCount); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	return rep, nil
}
