// Package config loads service settings from defaults, an optional YAML
// file and PORKCHOP_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Ephemeris source names.
const (
	SourceHorizons = "horizons"
	SourceElements = "elements"
)

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// RateLimitConfig holds per-client request limits for compute endpoints.
type RateLimitConfig struct {
	PerMinute int `mapstructure:"perMinute"`
	Burst     int `mapstructure:"burst"`
}

// TLSConfig holds autocert settings.
type TLSConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Hosts         []string `mapstructure:"hosts"`
	CacheDir      string   `mapstructure:"cacheDir"`
	ChallengeAddr string   `mapstructure:"challengeAddr"` // ACME HTTP-01 listener
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr         string          `mapstructure:"addr"`
	MetricsAddr  string          `mapstructure:"metricsAddr"`
	ReadTimeout  time.Duration   `mapstructure:"readTimeout"`
	WriteTimeout time.Duration   `mapstructure:"writeTimeout"`
	RateLimit    RateLimitConfig `mapstructure:"rateLimit"`
	TLS          TLSConfig       `mapstructure:"tls"`
}

// EphemerisConfig selects and tunes the ephemeris source.
type EphemerisConfig struct {
	Source    string        `mapstructure:"source"`
	BaseURL   string        `mapstructure:"baseURL"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheTTL  time.Duration `mapstructure:"cacheTTL"`
	CacheSize int           `mapstructure:"cacheSize"`
}

// PorkchopConfig tunes the grid builder.
type PorkchopConfig struct {
	DefaultResolution int `mapstructure:"defaultResolution"`
}

// Config is the full service configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Ephemeris EphemerisConfig `mapstructure:"ephemeris"`
	Porkchop  PorkchopConfig  `mapstructure:"porkchop"`
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.file", "")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.metricsAddr", ":9090")
	viper.SetDefault("server.readTimeout", "1m")
	viper.SetDefault("server.writeTimeout", "5m")
	viper.SetDefault("server.rateLimit.perMinute", 30)
	viper.SetDefault("server.rateLimit.burst", 5)
	viper.SetDefault("server.tls.enabled", false)
	viper.SetDefault("server.tls.hosts", []string{})
	viper.SetDefault("server.tls.cacheDir", "certs")
	viper.SetDefault("server.tls.challengeAddr", ":80")

	viper.SetDefault("ephemeris.source", SourceHorizons)
	viper.SetDefault("ephemeris.baseURL", "https://ssd.jpl.nasa.gov/api/horizons.api")
	viper.SetDefault("ephemeris.timeout", "30s")
	viper.SetDefault("ephemeris.cacheTTL", "30m")
	viper.SetDefault("ephemeris.cacheSize", 256)

	viper.SetDefault("porkchop.defaultResolution", 50)
}

// Load reads configuration into the global viper instance and returns a
// typed snapshot. An empty path looks for porkchop.yaml in the working
// directory and tolerates its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix("PORKCHOP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		viper.SetConfigName("porkchop")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Ephemeris.Source {
	case SourceHorizons, SourceElements:
	default:
		return fmt.Errorf("invalid ephemeris.source %q: must be %s or %s", c.Ephemeris.Source, SourceHorizons, SourceElements)
	}
	if c.Ephemeris.Timeout <= 0 {
		return fmt.Errorf("invalid ephemeris.timeout %s: must be positive", c.Ephemeris.Timeout)
	}
	if c.Server.RateLimit.PerMinute < 0 || c.Server.RateLimit.Burst < 0 {
		return errors.New("invalid server.rateLimit: values must not be negative")
	}
	if c.Server.TLS.Enabled && len(c.Server.TLS.Hosts) == 0 {
		return errors.New("server.tls.enabled requires at least one entry in server.tls.hosts")
	}
	return nil
}
