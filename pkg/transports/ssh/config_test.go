package ssh

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("web1.example.com", "deploy")
	if cfg.Port != 22 {
		t.Errorf("Port = %d, want 22", cfg.Port)
	}
	if cfg.AuthMethod != AuthMethodKey {
		t.Errorf("AuthMethod = %q, want key", cfg.AuthMethod)
	}
	if !cfg.StrictHostKeyChecking {
		t.Error("StrictHostKeyChecking should default to true")
	}
	if cfg.ConnectionTimeout != 30*time.Second {
		t.Errorf("ConnectionTimeout = %v", cfg.ConnectionTimeout)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid key auth",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Host = "" },
			wantErr: true,
		},
		{
			name:    "missing user",
			mutate:  func(c *Config) { c.User = "" },
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "unknown auth method",
			mutate:  func(c *Config) { c.AuthMethod = "kerberos" },
			wantErr: true,
		},
		{
			name:    "password auth without password",
			mutate:  func(c *Config) { c.AuthMethod = AuthMethodPassword },
			wantErr: true,
		},
		{
			name: "password auth with password",
			mutate: func(c *Config) {
				c.AuthMethod = AuthMethodPassword
				c.Password = "secret"
			},
		},
		{
			name: "key auth without key path",
			mutate: func(c *Config) {
				c.AuthMethod = AuthMethodKey
				c.PrivateKeyPath = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("web1", "deploy")
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(&Config{}); err == nil {
		t.Error("New() with empty config expected error")
	}
}
