package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/aaronlmathis/vsflux/internal/aggregate"
	"github.com/aaronlmathis/vsflux/internal/pipeline"
)

// Config represents the application configuration
type Config struct {
	VSphere   VSphereConfig   `yaml:"vsphere"`
	Collector CollectorConfig `yaml:"collector"`
	Output    OutputConfig    `yaml:"output"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// VSphereConfig represents the vCenter connection configuration
type VSphereConfig struct {
	URL        string `yaml:"url" validate:"required,url"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Insecure   bool   `yaml:"insecure"`
	Datacenter string `yaml:"datacenter"`

	// IntervalID selects the performance interval; 20 is the realtime interval
	IntervalID int32 `yaml:"interval_id" validate:"gte=0"`
}

// CollectorConfig represents the collection loop configuration
type CollectorConfig struct {
	Interval      time.Duration `yaml:"interval"`
	Workers       int           `yaml:"workers" validate:"min=1,max=64"`
	FetchRate     float64       `yaml:"fetch_rate" validate:"gte=0"`
	FetchBurst    int           `yaml:"fetch_burst" validate:"min=1"`
	IncludeHosts  bool          `yaml:"include_hosts"`
	IncludeGuests bool          `yaml:"include_guests"`
	Trust         TrustConfig   `yaml:"trust"`
}

// TrustConfig represents the sample trust heuristic configuration
type TrustConfig struct {
	Threshold int     `yaml:"threshold" validate:"gte=0"`
	Sentinel  float64 `yaml:"sentinel"`
}

// OutputConfig represents where line protocol is written. With no URL the
// records go to Path, or stdout when Path is empty too.
type OutputConfig struct {
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout"`
	Path    string        `yaml:"path"`
}

// ServerConfig represents the status server configuration
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_if=Enabled true"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
	File   string `yaml:"file"`
}

// Load loads the configuration from environment variables and defaults
func Load() (*Config, error) {
	return loadWithDefaults("")
}

// LoadFromFile loads configuration from a YAML file, with environment variable overrides
func LoadFromFile(configPath string) (*Config, error) {
	return loadWithDefaults(configPath)
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	trust := aggregate.DefaultTrustConfig()
	return &Config{
		VSphere: VSphereConfig{
			IntervalID: 20,
		},
		Collector: CollectorConfig{
			Interval:      60 * time.Second,
			Workers:       1,
			FetchBurst:    1,
			IncludeHosts:  true,
			IncludeGuests: true,
			Trust: TrustConfig{
				Threshold: trust.Threshold,
				Sentinel:  trust.Sentinel,
			},
		},
		Output: OutputConfig{
			Timeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    "0.0.0.0:9273",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadWithDefaults layers defaults, the optional file and the environment.
// Environment variables take precedence over file values.
func loadWithDefaults(configPath string) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		if err := loadFromYAMLFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configPath, err)
		}
	}

	applyEnv(cfg)

	return cfg, nil
}

// loadFromYAMLFile decodes a YAML file over cfg; keys absent from the file
// keep their current values
func loadFromYAMLFile(configPath string, cfg *Config) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return nil
}

func applyEnv(cfg *Config) {
	cfg.VSphere.URL = getEnv("VSFLUX_VSPHERE_URL", cfg.VSphere.URL)
	cfg.VSphere.Username = getEnv("VSFLUX_VSPHERE_USERNAME", cfg.VSphere.Username)
	cfg.VSphere.Password = getEnv("VSFLUX_VSPHERE_PASSWORD", cfg.VSphere.Password)
	cfg.VSphere.Insecure = getEnvBool("VSFLUX_VSPHERE_INSECURE", cfg.VSphere.Insecure)
	cfg.VSphere.Datacenter = getEnv("VSFLUX_VSPHERE_DATACENTER", cfg.VSphere.Datacenter)

	cfg.Collector.Interval = getEnvDuration("VSFLUX_COLLECTOR_INTERVAL", cfg.Collector.Interval)
	cfg.Collector.Workers = getEnvInt("VSFLUX_COLLECTOR_WORKERS", cfg.Collector.Workers)
	cfg.Collector.FetchRate = getEnvFloat("VSFLUX_FETCH_RATE", cfg.Collector.FetchRate)
	cfg.Collector.FetchBurst = getEnvInt("VSFLUX_FETCH_BURST", cfg.Collector.FetchBurst)
	cfg.Collector.IncludeHosts = getEnvBool("VSFLUX_INCLUDE_HOSTS", cfg.Collector.IncludeHosts)
	cfg.Collector.IncludeGuests = getEnvBool("VSFLUX_INCLUDE_GUESTS", cfg.Collector.IncludeGuests)
	cfg.Collector.Trust.Threshold = getEnvInt("VSFLUX_TRUST_THRESHOLD", cfg.Collector.Trust.Threshold)
	cfg.Collector.Trust.Sentinel = getEnvFloat("VSFLUX_TRUST_SENTINEL", cfg.Collector.Trust.Sentinel)

	cfg.Output.URL = getEnv("VSFLUX_OUTPUT_URL", cfg.Output.URL)
	cfg.Output.Timeout = getEnvDuration("VSFLUX_OUTPUT_TIMEOUT", cfg.Output.Timeout)
	cfg.Output.Path = getEnv("VSFLUX_OUTPUT_PATH", cfg.Output.Path)

	cfg.Server.Enabled = getEnvBool("VSFLUX_SERVER_ENABLED", cfg.Server.Enabled)
	cfg.Server.Addr = getEnv("VSFLUX_SERVER_ADDR", cfg.Server.Addr)

	cfg.Logging.Level = getEnv("VSFLUX_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("VSFLUX_LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.File = getEnv("VSFLUX_LOG_FILE", cfg.Logging.File)

	// Override port if PORT env var is set
	if port := getEnv("PORT", ""); port != "" {
		cfg.Server.Addr = "0.0.0.0:" + port
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Collector.Interval <= 0 {
		return fmt.Errorf("collector interval must be positive")
	}
	if c.Output.Timeout <= 0 {
		return fmt.Errorf("output timeout must be positive")
	}
	if !c.Collector.IncludeHosts && !c.Collector.IncludeGuests {
		return fmt.Errorf("at least one of include_hosts or include_guests must be enabled")
	}

	return nil
}

// PipelineConfig creates the collector configuration from the main config
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Interval:      c.Collector.Interval,
		Workers:       c.Collector.Workers,
		FetchRate:     c.Collector.FetchRate,
		FetchBurst:    c.Collector.FetchBurst,
		IncludeHosts:  c.Collector.IncludeHosts,
		IncludeGuests: c.Collector.IncludeGuests,
		Trust: aggregate.TrustConfig{
			Threshold: c.Collector.Trust.Threshold,
			Sentinel:  c.Collector.Trust.Sentinel,
		},
	}
}
