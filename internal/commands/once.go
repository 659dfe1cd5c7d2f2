package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/vsflux/internal/pipeline"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single collection cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		out, closer, err := buildSink(logger, cfg)
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		collector := pipeline.NewCollector(logger.Named("collector"), newConnector(logger, cfg), out, cfg.PipelineConfig())

		// The cycle summary is already logged by the collector; the error is
		// reported once by the caller.
		_, err = collector.RunOnce(ctx)
		return err
	},
}
