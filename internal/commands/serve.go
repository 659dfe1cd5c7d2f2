package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aaronlmathis/vsflux/internal/api"
	"github.com/aaronlmathis/vsflux/internal/pipeline"
	"github.com/aaronlmathis/vsflux/internal/sink"
	"github.com/aaronlmathis/vsflux/internal/stream"
	"github.com/aaronlmathis/vsflux/internal/version"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Collect periodically and serve status endpoints",
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

		info := version.Get()
		logger.Info("Starting vsflux",
			zap.String("version", info.Version),
			zap.String("gitCommit", info.GitCommit),
			zap.String("buildDate", info.BuildDate),
			zap.String("goVersion", info.GoVersion),
			zap.Duration("interval", cfg.Collector.Interval),
		)

		primary, closer, err := buildSink(logger, cfg)
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var (
			out pipeline.Sink = primary
			hub *stream.Hub
		)
		if cfg.Server.Enabled {
			hub = stream.NewHub(logger.Named("stream"))
			go hub.Run(ctx)
			out = sink.NewTee(primary, hub)
		}

		collector := pipeline.NewCollector(logger.Named("collector"), newConnector(logger, cfg), out, cfg.PipelineConfig())

		var server *http.Server
		if cfg.Server.Enabled {
			server = &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           api.NewServer(logger.Named("api"), collector.Health(), hub).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				logger.Info("Status server starting", zap.String("addr", cfg.Server.Addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("Status server failed", zap.Error(err))
					stop()
				}
			}()
		}

		if err := collector.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		logger.Info("Shutting down...")

		collector.Stop()

		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("Status server forced to shutdown", zap.Error(err))
				return err
			}
		}

		logger.Info("vsflux exited")
		return nil
	},
}
