// Package config loads yardmaster settings via Viper.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. YARDMASTER_READINESS_TIMEOUT=2m.
const EnvPrefix = "YARDMASTER"

// Config captures every setting the CLI reads.
type Config struct {
	Project   string          `mapstructure:"project"`
	Readiness ReadinessConfig `mapstructure:"readiness"`
	Restart   RestartConfig   `mapstructure:"restart"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ReadinessConfig controls how long and how often endpoints are probed.
type ReadinessConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Interval time.Duration `mapstructure:"interval"`
	Host     string        `mapstructure:"host"`
}

// RestartConfig sets the pause before a crashed service is started again.
type RestartConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

// DockerConfig points the runtime at a daemon.
type DockerConfig struct {
	Host        string `mapstructure:"host"`
	StopTimeout int    `mapstructure:"stop_timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// New returns a Viper instance with defaults and environment overrides
// installed. Callers bind flags into it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("project", "")
	v.SetDefault("readiness.timeout", 60*time.Second)
	v.SetDefault("readiness.interval", 500*time.Millisecond)
	v.SetDefault("readiness.host", "127.0.0.1")
	v.SetDefault("restart.delay", time.Second)
	v.SetDefault("docker.host", "")
	v.SetDefault("docker.stop_timeout", 10)
	v.SetDefault("logging.development", false)
	v.SetDefault("metrics.addr", "")
}

// Load reads the config file at path, or $HOME/.yardmaster.yaml when path is
// empty, and decodes the merged settings. A missing default file is not an
// error.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(filepath.Join(home, ".yardmaster.yaml"))
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Readiness.Timeout <= 0 {
		return fmt.Errorf("readiness.timeout must be > 0")
	}
	if c.Readiness.Interval <= 0 {
		return fmt.Errorf("readiness.interval must be > 0")
	}
	if c.Readiness.Interval > c.Readiness.Timeout {
		return fmt.Errorf("readiness.interval must not exceed readiness.timeout")
	}
	if _, err := netip.ParseAddr(c.Readiness.Host); err != nil {
		return fmt.Errorf("readiness.host must be an IP address: %w", err)
	}
	if c.Restart.Delay < 0 {
		return fmt.Errorf("restart.delay must be >= 0")
	}
	if c.Docker.StopTimeout < 0 {
		return fmt.Errorf("docker.stop_timeout must be >= 0")
	}
	return nil
}
