package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Auth.AdminRole != "1" {
		t.Errorf("expected default admin role %q, got %q", "1", cfg.Auth.AdminRole)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("expected default port %d, got %d", DefaultPort, cfg.Server.Port)
	}
	if cfg.Database.Path != DefaultDatabasePath {
		t.Errorf("expected default database path %q, got %q", DefaultDatabasePath, cfg.Database.Path)
	}
	if cfg.Cache.RedisAddr != "" {
		t.Errorf("expected cache disabled by default, got %q", cfg.Cache.RedisAddr)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portal.yml")

	original := DefaultConfig()
	original.Database.Path = "/var/lib/portal/portal.db"
	original.Server.Port = 9090
	original.Server.BasePath = "/api/chatbox"
	original.Auth.AdminRole = "admin"
	original.Cache.RedisAddr = "localhost:6379"
	original.Cache.TTL = 5 * time.Minute

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Database.Path != original.Database.Path {
		t.Errorf("database.path: got %q, want %q", loaded.Database.Path, original.Database.Path)
	}
	if loaded.Server.Port != original.Server.Port {
		t.Errorf("server.port: got %d, want %d", loaded.Server.Port, original.Server.Port)
	}
	if loaded.Server.BasePath != original.Server.BasePath {
		t.Errorf("server.base_path: got %q, want %q", loaded.Server.BasePath, original.Server.BasePath)
	}
	if loaded.Auth.AdminRole != original.Auth.AdminRole {
		t.Errorf("auth.admin_role: got %q, want %q", loaded.Auth.AdminRole, original.Auth.AdminRole)
	}
	if loaded.Cache.RedisAddr != original.Cache.RedisAddr {
		t.Errorf("cache.redis_addr: got %q, want %q", loaded.Cache.RedisAddr, original.Cache.RedisAddr)
	}
	if loaded.Cache.TTL != original.Cache.TTL {
		t.Errorf("cache.ttl: got %v, want %v", loaded.Cache.TTL, original.Cache.TTL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Auth.AdminRole != DefaultAdminRole {
		t.Errorf("expected default admin role, got %q", cfg.Auth.AdminRole)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portal.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("PORTAL_AUTH__ADMIN_ROLE", "7")
	t.Setenv("PORTAL_SERVER__PORT", "8181")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Auth.AdminRole != "7" {
		t.Errorf("env override failed: got %q, want %q", loaded.Auth.AdminRole, "7")
	}
	if loaded.Server.Port != 8181 {
		t.Errorf("env override failed: got %d, want %d", loaded.Server.Port, 8181)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portal.yml")
	content := `
server:
  port: 3000
  request_timeout: 15s
auth:
  admin_role: "2"
  token_ttl: 1h
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 15*time.Second {
		t.Errorf("request_timeout = %v, want 15s", cfg.Server.RequestTimeout)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("token_ttl = %v, want 1h", cfg.Auth.TokenTTL)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Database.Path != DefaultDatabasePath {
		t.Errorf("database.path = %q, want default", cfg.Database.Path)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"relative base path", func(c *Config) { c.Server.BasePath = "api" }},
		{"blank admin role", func(c *Config) { c.Auth.AdminRole = "  " }},
		{"token required without secret", func(c *Config) { c.Auth.RequireToken = true }},
		{"zero token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
		{"unknown log mode", func(c *Config) { c.Log.Mode = "verbose" }},
		{"relative metrics path", func(c *Config) { c.Metrics.Path = "metrics" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidatePort(t *testing.T) {
	if err := validatePort("8080"); err != nil {
		t.Errorf("validatePort(8080): %v", err)
	}
	for _, bad := range []string{"", "abc", "0", "65536"} {
		if err := validatePort(bad); err == nil {
			t.Errorf("validatePort(%q) should fail", bad)
		}
	}
}

func TestAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 9000
	if got := cfg.Addr(); got != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q", got)
	}
}
