package commands

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/aaronlmathis/vsflux/internal/config"
	"github.com/aaronlmathis/vsflux/internal/logging"
	"github.com/aaronlmathis/vsflux/internal/pipeline"
	"github.com/aaronlmathis/vsflux/internal/sink"
	"github.com/aaronlmathis/vsflux/internal/vsphere"
)

// loadConfig loads the file and environment configuration, applies flag
// overrides and validates the result
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFromFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// nopCloser is returned for sinks that hold no resources
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// buildSink returns the HTTP sink when a write URL is configured, otherwise a
// file sink (stdout when no path is set)
func buildSink(logger *zap.Logger, cfg *config.Config) (pipeline.Sink, io.Closer, error) {
	if cfg.Output.URL != "" {
		s, err := sink.NewHTTPSink(logger.Named("sink"), cfg.Output.URL, cfg.Output.Timeout)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	}

	s, err := sink.NewFileSink(cfg.Output.Path)
	if err != nil {
		return nil, nil, err
	}
	return s, s, nil
}

func newConnector(logger *zap.Logger, cfg *config.Config) *vsphere.Connector {
	return vsphere.NewConnector(logger.Named("vsphere"), vsphere.Config{
		URL:        cfg.VSphere.URL,
		Username:   cfg.VSphere.Username,
		Password:   cfg.VSphere.Password,
		Insecure:   cfg.VSphere.Insecure,
		Datacenter: cfg.VSphere.Datacenter,
		IntervalID: cfg.VSphere.IntervalID,
	})
}
