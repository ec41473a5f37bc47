package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MinMessageSize is the smallest maximum-message-size the protocol permits.
const MinMessageSize = 480

// Defaults applied before the YAML file and environment are read.
const (
	DefaultListenAddress  = "127.0.0.1"
	DefaultListenBacklog  = 128
	DefaultReadTimeout    = 30.0 // seconds
	DefaultMaxMessageSize = 2048
)

// Config represents the complete service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Monitor MonitorConfig `yaml:"monitor"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains the syslog listener configuration. It is immutable
// after Load returns.
type ServerConfig struct {
	// ListenAddress is the local address both listeners bind to.
	ListenAddress string `yaml:"listen_address" env:"SYSLOG_LISTEN_ADDRESS"`

	// TCPPort and UDPPort select the listening ports. A port of 0 disables
	// that protocol entirely.
	TCPPort int `yaml:"tcp_port" env:"SYSLOG_TCP_PORT"`
	UDPPort int `yaml:"udp_port" env:"SYSLOG_UDP_PORT"`

	// ListenBacklog is the requested pending-connection queue depth. The Go
	// runtime manages the kernel backlog itself, so the value is advisory.
	ListenBacklog int `yaml:"listen_backlog" env:"SYSLOG_LISTEN_BACKLOG"`

	// ReadTimeout bounds each individual socket read, in seconds.
	ReadTimeout float64 `yaml:"read_timeout" env:"SYSLOG_READ_TIMEOUT"`

	// MaxMessageSize is the largest accepted message in bytes. A TCP buffer
	// growing past it without a delimiter ends the session; a larger UDP
	// datagram ends the UDP loop.
	MaxMessageSize int `yaml:"max_message_size" env:"SYSLOG_MAX_MESSAGE_SIZE"`
}

// MonitorConfig contains the HTTP monitoring server configuration.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled" env:"SYSLOG_MONITOR_ENABLED"`
	Address string `yaml:"address" env:"SYSLOG_MONITOR_ADDRESS"`
	Port    int    `yaml:"port" env:"SYSLOG_MONITOR_PORT"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"SYSLOG_LOG_LEVEL"`
	Format string `yaml:"format" env:"SYSLOG_LOG_FORMAT"`
	Output string `yaml:"output" env:"SYSLOG_LOG_OUTPUT"`
}

// Default returns a configuration populated with defaults: TCP enabled on the
// conventional syslog port, UDP disabled, monitoring disabled.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:  DefaultListenAddress,
			TCPPort:        6514,
			UDPPort:        0,
			ListenBacklog:  DefaultListenBacklog,
			ReadTimeout:    DefaultReadTimeout,
			MaxMessageSize: DefaultMaxMessageSize,
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    9514,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and environment variable overrides, then validates it.
func Load(path string) (*Config, error) {
	// Attempt to load a .env file for local development.
	_ = godotenv.Load()

	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of the complete configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates the listener configuration. Out-of-range values fail
// immediately; nothing is silently clamped.
func (s *ServerConfig) Validate() error {
	if s.ListenAddress == "" {
		return fmt.Errorf("listen_address cannot be empty")
	}

	if s.TCPPort < 0 || s.TCPPort > 65535 {
		return fmt.Errorf("tcp_port must be between 0 and 65535, got %d", s.TCPPort)
	}

	if s.UDPPort < 0 || s.UDPPort > 65535 {
		return fmt.Errorf("udp_port must be between 0 and 65535, got %d", s.UDPPort)
	}

	if s.ListenBacklog < 1 {
		return fmt.Errorf("listen_backlog must be at least 1, got %d", s.ListenBacklog)
	}

	if s.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive, got %g", s.ReadTimeout)
	}

	if s.MaxMessageSize < MinMessageSize {
		return fmt.Errorf("max_message_size must be at least %d bytes, got %d",
			MinMessageSize, s.MaxMessageSize)
	}

	return nil
}

// Validate validates the monitoring server configuration.
func (m *MonitorConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", m.Port)
		}

		if m.Address == "" {
			return fmt.Errorf("address cannot be empty when monitoring is enabled")
		}
	}

	return nil
}

// Validate validates the logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetReadTimeout returns the per-read timeout as a time.Duration.
func (s *ServerConfig) GetReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeout * float64(time.Second))
}
