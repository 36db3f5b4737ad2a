package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marks/internal/app"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <bookmark-id>...",
		Short: "Re-run enrichment for bookmarks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, raw := range args {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid bookmark id %q", raw)
				}
				ids = append(ids, id)
			}

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

			var failed int
			for _, id := range ids {
				queued, err := a.Enqueue(cmd.Context(), id)
				switch {
				case err != nil:
					failed++
					cmd.PrintErrf("%d: %v\n", id, err)
				case queued:
					fmt.Fprintf(cmd.OutOrStdout(), "%d: enqueued\n", id)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "%d: already queued\n", id)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d bookmarks not enqueued", failed, len(ids))
			}
			return nil
		},
	}
}
