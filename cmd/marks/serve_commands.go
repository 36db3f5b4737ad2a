package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marks/internal/app"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the bookmark API and ops routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMode(cmd, ctx, app.Mode{API: true})
		},
	}
}

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume enrichment jobs and run the maintenance loops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMode(cmd, ctx, app.Mode{Worker: true})
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Serve the API and process jobs in one process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMode(cmd, ctx, app.Mode{API: true, Worker: true})
		},
	}
}

func runMode(cmd *cobra.Command, ctx *commandContext, mode app.Mode) error {
	cfg, log, err := ctx.load()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(cmd.Context(), cfg, log, app.Options{Redis: true})
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(cmd.Context(), mode)
}
