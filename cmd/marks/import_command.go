package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marks/internal/app"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var (
		file    string
		userID  int64
		ai      bool
		enqueue bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a Homepage bookmarks.yaml for one user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			if userID <= 0 {
				return errors.New("--user is required")
			}
			cfg, log, err := ctx.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			a, err := app.New(cmd.Context(), cfg, log, app.Options{Redis: ai && enqueue})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.ImportHomepage(cmd.Context(), file, userID, ai)
			fmt.Fprintf(cmd.OutOrStdout(), "created=%d enqueued=%d skipped=%d\n", res.Created, res.Enqueued, res.Skipped)
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to a Homepage bookmarks.yaml")
	cmd.Flags().Int64Var(&userID, "user", 0, "owning user id")
	cmd.Flags().BoolVar(&ai, "ai", false, "create the bookmarks with AI enrichment enabled")
	cmd.Flags().BoolVar(&enqueue, "enqueue", true, "with --ai, enqueue jobs right away instead of waiting for the requeuer")
	return cmd
}
