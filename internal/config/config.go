// Package config provides Viper-based configuration loading for the
// lobby server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP/websocket listener settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`
	// Port is the TCP port serving the bootstrap, health, and
	// websocket endpoints.
	Port int `mapstructure:"port"`
	// AllowedOrigins lists acceptable websocket Origin headers.
	// "*" allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MatchmakingConfig holds queue and match-table tuning.
type MatchmakingConfig struct {
	// QueueTimeout is how long a player may wait before being evicted.
	QueueTimeout time.Duration `mapstructure:"queue_timeout"`
	// SweepInterval is the period of the timeout/re-pairing sweep.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// MatchTTL bounds retention of formed match records.
	MatchTTL time.Duration `mapstructure:"match_ttl"`
}

// TransportConfig holds per-connection websocket tuning.
type TransportConfig struct {
	// SendBuffer is the outbound frame buffer per connection.
	SendBuffer int `mapstructure:"send_buffer"`
	// WriteTimeout bounds each websocket write.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PongTimeout closes connections silent for longer than this.
	PongTimeout time.Duration `mapstructure:"pong_timeout"`
	// PingInterval is the keepalive ping period.
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Transport   TransportConfig   `mapstructure:"transport"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// Validate checks all configuration invariants, aggregating every
// violation into a single error.
func (c Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Matchmaking.QueueTimeout <= 0 {
		errs = append(errs, "matchmaking.queue_timeout must be > 0")
	}
	if c.Matchmaking.SweepInterval <= 0 {
		errs = append(errs, "matchmaking.sweep_interval must be > 0")
	}
	if c.Matchmaking.MatchTTL <= 0 {
		errs = append(errs, "matchmaking.match_ttl must be > 0")
	}
	if c.Transport.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("transport.send_buffer must be >= 1, got %d", c.Transport.SendBuffer))
	}
	if c.Transport.WriteTimeout <= 0 {
		errs = append(errs, "transport.write_timeout must be > 0")
	}
	if c.Transport.PingInterval <= 0 {
		errs = append(errs, "transport.ping_interval must be > 0")
	}
	if c.Transport.PongTimeout <= c.Transport.PingInterval {
		errs = append(errs, "transport.pong_timeout must exceed transport.ping_interval")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Sprintf("logging.format must be one of [json, console], got %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies
// environment variable overrides, and validates the result. An empty
// path skips the file and uses defaults plus environment only.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetEnvPrefix("LOBBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 10000)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("matchmaking.queue_timeout", "30s")
	v.SetDefault("matchmaking.sweep_interval", "5s")
	v.SetDefault("matchmaking.match_ttl", "1h")

	v.SetDefault("transport.send_buffer", 256)
	v.SetDefault("transport.write_timeout", "10s")
	v.SetDefault("transport.pong_timeout", "60s")
	v.SetDefault("transport.ping_interval", "54s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
