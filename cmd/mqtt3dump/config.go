package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vitalvas/mqtt3"
)

// Config is the dump tool configuration.
type Config struct {
	Listeners     []string       `yaml:"listeners"`
	MaxConns      int            `yaml:"max_conns"`
	MaxPacketSize uint32         `yaml:"max_packet_size"`
	RateLimit     float64        `yaml:"rate_limit"`
	RateBurst     int            `yaml:"rate_burst"`
	LogLevel      string         `yaml:"log_level"`
	Capture       string         `yaml:"capture"`
	TLS           TLSConfig      `yaml:"tls"`
	Dispatch      DispatchConfig `yaml:"dispatch"`
}

// TLSConfig names the server certificate used by tls, quic and wss listeners.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DispatchConfig sizes the packet dispatcher.
type DispatchConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

var (
	errNoListeners   = errors.New("at least one listener is required")
	errTLSIncomplete = errors.New("tls cert_file and key_file must be set together")
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Listeners: []string{"tcp://:1883"},
		RateBurst: 1,
		LogLevel:  "info",
		Dispatch: DispatchConfig{
			Workers:   4,
			QueueSize: 1024,
		},
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes YAML over the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration can be served.
func (c Config) Validate() error {
	if len(c.Listeners) == 0 {
		return errNoListeners
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return errTLSIncomplete
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("max_conns must not be negative: %d", c.MaxConns)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative: %v", c.RateLimit)
	}
	if c.Dispatch.Workers < 1 {
		return fmt.Errorf("dispatch workers must be positive: %d", c.Dispatch.Workers)
	}
	if c.Dispatch.QueueSize < 0 {
		return fmt.Errorf("dispatch queue_size must not be negative: %d", c.Dispatch.QueueSize)
	}
	if _, err := mqtt3.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
