package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	t.Run("empty keeps defaults", func(t *testing.T) {
		cfg, err := ParseConfig(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("overrides", func(t *testing.T) {
		data := []byte(`
listeners:
  - tcp://127.0.0.1:1883
  - ws://127.0.0.1:8080/mqtt
max_conns: 100
max_packet_size: 65536
rate_limit: 50
rate_burst: 10
log_level: debug
capture: /tmp/packets.cbor
tls:
  cert_file: server.crt
  key_file: server.key
dispatch:
  workers: 8
`)
		cfg, err := ParseConfig(data)
		require.NoError(t, err)

		assert.Equal(t, []string{"tcp://127.0.0.1:1883", "ws://127.0.0.1:8080/mqtt"}, cfg.Listeners)
		assert.Equal(t, 100, cfg.MaxConns)
		assert.Equal(t, uint32(65536), cfg.MaxPacketSize)
		assert.Equal(t, 50.0, cfg.RateLimit)
		assert.Equal(t, 10, cfg.RateBurst)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "/tmp/packets.cbor", cfg.Capture)
		assert.Equal(t, TLSConfig{CertFile: "server.crt", KeyFile: "server.key"}, cfg.TLS)
		assert.Equal(t, 8, cfg.Dispatch.Workers)
		assert.Equal(t, 1024, cfg.Dispatch.QueueSize)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := ParseConfig([]byte("listeners: [unterminated"))
		assert.Error(t, err)
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mqtt3dump.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_conns: 5\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxConns)
	assert.Equal(t, []string{"tcp://:1883"}, cfg.Listeners)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no listeners", func(c *Config) { c.Listeners = nil }, true},
		{"cert without key", func(c *Config) { c.TLS.CertFile = "server.crt" }, true},
		{"cert and key", func(c *Config) { c.TLS = TLSConfig{CertFile: "a", KeyFile: "b"} }, false},
		{"negative max conns", func(c *Config) { c.MaxConns = -1 }, true},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, true},
		{"zero workers", func(c *Config) { c.Dispatch.Workers = 0 }, true},
		{"negative queue", func(c *Config) { c.Dispatch.QueueSize = -1 }, true},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"upper case log level", func(c *Config) { c.LogLevel = "WARN" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"tcp://:1883", "ws://:8080"}, splitList(" tcp://:1883, ,ws://:8080 "))
	assert.Nil(t, splitList(""))
}
