package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Project)
	assert.Equal(t, 60*time.Second, cfg.Readiness.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Readiness.Interval)
	assert.Equal(t, "127.0.0.1", cfg.Readiness.Host)
	assert.Equal(t, time.Second, cfg.Restart.Delay)
	assert.Equal(t, 10, cfg.Docker.StopTimeout)
	assert.False(t, cfg.Logging.Development)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "yardmaster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
project: crawl
readiness:
  timeout: 2m
  interval: 1s
docker:
  host: unix:///var/run/docker.sock
metrics:
  addr: ":9090"
`), 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "crawl", cfg.Project)
	assert.Equal(t, 2*time.Minute, cfg.Readiness.Timeout)
	assert.Equal(t, time.Second, cfg.Readiness.Interval)
	assert.Equal(t, "unix:///var/run/docker.sock", cfg.Docker.Host)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoadHomeFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".yardmaster.yaml"), []byte("logging:\n  development: true\n"), 0o600))

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("YARDMASTER_READINESS_TIMEOUT", "90s")
	t.Setenv("YARDMASTER_PROJECT", "undercrawler")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Readiness.Timeout)
	assert.Equal(t, "undercrawler", cfg.Project)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	valid := Config{
		Readiness: ReadinessConfig{Timeout: time.Minute, Interval: time.Second, Host: "127.0.0.1"},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero timeout", func(c *Config) { c.Readiness.Timeout = 0 }, "readiness.timeout"},
		{"zero interval", func(c *Config) { c.Readiness.Interval = 0 }, "readiness.interval must be > 0"},
		{"interval above timeout", func(c *Config) { c.Readiness.Interval = 2 * time.Minute }, "must not exceed"},
		{"hostname", func(c *Config) { c.Readiness.Host = "localhost" }, "readiness.host"},
		{"negative delay", func(c *Config) { c.Restart.Delay = -time.Second }, "restart.delay"},
		{"negative stop timeout", func(c *Config) { c.Docker.StopTimeout = -1 }, "docker.stop_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
