package main

import (
	"fmt"

	"github.com/phrazzld/tokensmith/internal/platform/postgres"
	"github.com/spf13/cobra"
)

// migrateCommands are the goose commands exposed by `tokensmith migrate`.
var migrateCommands = []string{"up", "down", "status", "version", "redo", "reset"}

func newMigrateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version|redo|reset]",
		Short:     "Manage the database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.loadConfig()
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			db, err := postgres.Open(ctx, cfg.Database.URL, 1)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := db.Close(); cerr != nil {
					log.Error("failed to close database connection", "error", cerr)
				}
			}()

			if err := postgres.Migrate(ctx, db, log, args[0]); err != nil {
				return fmt.Errorf("migrate %s: %w", args[0], err)
			}
			return nil
		},
	}
}
