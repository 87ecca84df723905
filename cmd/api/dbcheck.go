package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/kokorotts/internal/config"
	"github.com/nikhilbhutani/kokorotts/internal/database"
)

func newDBCheckCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dbcheck",
		Short: "Check database connectivity and schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Database.ConnectTimeout+30*time.Second)
			defer cancel()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connecting to %s\n", config.RedactedDatabaseURL(cfg.Database.URL))

			pool, err := database.NewPool(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			rep, err := database.Check(ctx, pool)
			if err != nil {
				return err
			}
			printReport(out, rep)
			return nil
		},
	}
}

func printReport(out io.Writer, rep *database.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "connection\tok\n")
	fmt.Fprintf(w, "server\t%s\n", rep.Version)
	fmt.Fprintf(w, "tables\t%d\n", len(rep.Tables))
	for _, t := range rep.Tables {
		fmt.Fprintf(w, "\t- %s\n", t)
	}
	fmt.Fprintf(w, "users table\t%v\n", rep.UsersTable)
	if rep.Migrated {
		fmt.Fprintf(w, "migrated\tyes\n")
	}
	fmt.Fprintf(w, "users\t%d\n", rep.UserCount)
}
