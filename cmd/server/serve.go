package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type serveOptions struct {
	migrate  bool
	inMemory bool
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, job dispatcher and background scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var b *backends
			if opts.inMemory {
				b = newMemoryBackends(log)
			} else {
				b, err = openBackends(ctx, cfg, log, opts.migrate)
				if err != nil {
					return err
				}
			}

			app, err := newApplication(ctx, cfg, log, b)
			if err != nil {
				_ = b.Close()
				return err
			}
			return app.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply pending migrations before serving")
	cmd.Flags().BoolVar(&opts.inMemory, "in-memory", false,
		"keep jobs, styles and objects in process memory instead of Postgres and object storage")
	return cmd
}

// commandContext returns the command's context, or Background when run
// outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
