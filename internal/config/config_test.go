package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9273", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 60*time.Second, cfg.Collector.Interval)
	assert.Equal(t, 1, cfg.Collector.Workers)
	assert.Equal(t, 20, cfg.Collector.Trust.Threshold)
	assert.Equal(t, 1.0, cfg.Collector.Trust.Sentinel)
	assert.Equal(t, int32(20), cfg.VSphere.IntervalID)
	assert.True(t, cfg.Collector.IncludeHosts)
	assert.True(t, cfg.Collector.IncludeGuests)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("VSFLUX_LOG_LEVEL", "debug")
	t.Setenv("VSFLUX_VSPHERE_URL", "https://vcenter.example.com/sdk")
	t.Setenv("VSFLUX_COLLECTOR_WORKERS", "4")
	t.Setenv("VSFLUX_COLLECTOR_INTERVAL", "30s")
	t.Setenv("VSFLUX_TRUST_THRESHOLD", "50")
	t.Setenv("VSFLUX_INCLUDE_GUESTS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "https://vcenter.example.com/sdk", cfg.VSphere.URL)
	assert.Equal(t, 4, cfg.Collector.Workers)
	assert.Equal(t, 30*time.Second, cfg.Collector.Interval)
	assert.Equal(t, 50, cfg.Collector.Trust.Threshold)
	assert.False(t, cfg.Collector.IncludeGuests)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vsflux.yaml")
	content := `
vsphere:
  url: https://vcenter.lab/sdk
  username: collector@vsphere.local
  insecure: true
collector:
  interval: 15s
  workers: 2
  trust:
    threshold: 30
output:
  url: http://influx:8086/write?db=vmware
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("VSFLUX_COLLECTOR_WORKERS", "8")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://vcenter.lab/sdk", cfg.VSphere.URL)
	assert.True(t, cfg.VSphere.Insecure)
	assert.Equal(t, 15*time.Second, cfg.Collector.Interval)
	assert.Equal(t, 8, cfg.Collector.Workers, "environment overrides file")
	assert.Equal(t, 30, cfg.Collector.Trust.Threshold)
	assert.Equal(t, 1.0, cfg.Collector.Trust.Sentinel, "absent keys keep defaults")
	assert.Equal(t, 10*time.Second, cfg.Output.Timeout)
	assert.Equal(t, "http://influx:8086/write?db=vmware", cfg.Output.URL)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Defaults()
		cfg.VSphere.URL = "https://vcenter.example.com/sdk"
		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing vsphere url", mutate: func(c *Config) { c.VSphere.URL = "" }, wantError: true},
		{name: "zero workers", mutate: func(c *Config) { c.Collector.Workers = 0 }, wantError: true},
		{name: "zero interval", mutate: func(c *Config) { c.Collector.Interval = 0 }, wantError: true},
		{name: "invalid log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantError: true},
		{name: "invalid output url", mutate: func(c *Config) { c.Output.URL = "not a url" }, wantError: true},
		{name: "server enabled without addr", mutate: func(c *Config) { c.Server.Addr = "" }, wantError: true},
		{name: "server disabled without addr", mutate: func(c *Config) {
			c.Server.Enabled = false
			c.Server.Addr = ""
		}},
		{name: "no kinds selected", mutate: func(c *Config) {
			c.Collector.IncludeHosts = false
			c.Collector.IncludeGuests = false
		}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPipelineConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Collector.Workers = 3
	cfg.Collector.Trust.Threshold = 40

	pc := cfg.PipelineConfig()
	assert.Equal(t, 3, pc.Workers)
	assert.Equal(t, 40, pc.Trust.Threshold)
	assert.Equal(t, 60*time.Second, pc.Interval)
}
