package main

import (
	"sync"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marks/internal/config"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/version"
)

type commandContext struct {
	envFile string

	once   sync.Once
	cfg    *config.Config
	logger logger.Logger
	err    error
}

// load reads the env file once, then the full configuration.
func (c *commandContext) load() (*config.Config, logger.Logger, error) {
	c.once.Do(func() {
		if err := config.LoadEnvFile(c.envFile); err != nil {
			c.err = err
			return
		}
		c.cfg = config.Load()
		c.logger = logger.New(c.cfg.LogLevel, c.cfg.PrettyLog)
	})
	return c.cfg, c.logger, c.err
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "marks",
		Short:         "Bookmark service with asynchronous AI enrichment",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.envFile, "env-file", ".env", "dotenv file loaded before reading MARKS_* variables")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newWorkerCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newEnqueueCommand(ctx))

	return rootCmd
}
