package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   ":memory:",
		},
		Auth: AuthConfig{
			JWTSecret:   strings.Repeat("s", 32),
			TokenTTL:    24 * time.Hour,
			BcryptCost:  12,
			DefaultRole: "USER",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "database.driver",
		},
		{
			name:    "sqlite needs a path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "short" },
			wantErr: "auth.jwt_secret",
		},
		{
			name:    "token ttl zero",
			mutate:  func(c *Config) { c.Auth.TokenTTL = 0 },
			wantErr: "auth.token_ttl",
		},
		{
			name:    "token ttl below an hour",
			mutate:  func(c *Config) { c.Auth.TokenTTL = 30 * time.Minute },
			wantErr: "auth.token_ttl",
		},
		{
			name:    "token ttl above a day",
			mutate:  func(c *Config) { c.Auth.TokenTTL = 25 * time.Hour },
			wantErr: "auth.token_ttl",
		},
		{
			name:    "unknown default role",
			mutate:  func(c *Config) { c.Auth.DefaultRole = "ROOT" },
			wantErr: "auth.default_role",
		},
		{
			name:    "notifications need redis",
			mutate:  func(c *Config) { c.Notify.Enabled = true; c.Notify.SMTPHost = "mail.local" },
			wantErr: "redis",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidate_TokenTTLBounds(t *testing.T) {
	for _, ttl := range []time.Duration{time.Hour, 8 * time.Hour, 24 * time.Hour} {
		cfg := validConfig()
		cfg.Auth.TokenTTL = ttl
		assert.NoError(t, cfg.Validate(), "ttl %s should be accepted", ttl)
	}
}
