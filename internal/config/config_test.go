package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("WS_INSECURE_SKIP_VERIFY", "")

	cfg := Load()
	if cfg.Port != 8084 {
		t.Errorf("default port = %d, want 8084", cfg.Port)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Errorf("default ttl = %v, want 168h", cfg.TokenTTL)
	}
	if cfg.WSInsecureSkipVerify {
		t.Error("ws origin check should be on by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("WS_INSECURE_SKIP_VERIFY", "true")
	t.Setenv("DB_DSN", "user:pass@tcp(localhost)/chat")

	cfg := Load()
	if cfg.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Port)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Errorf("ttl = %v, want 30m", cfg.TokenTTL)
	}
	if !cfg.WSInsecureSkipVerify {
		t.Error("ws insecure flag not picked up")
	}
	if cfg.DBDSN != "user:pass@tcp(localhost)/chat" {
		t.Errorf("dsn = %q", cfg.DBDSN)
	}
}

func TestLoadIgnoresBadValues(t *testing.T) {
	t.Setenv("APP_PORT", "not-a-number")
	t.Setenv("TOKEN_TTL", "soon")

	cfg := Load()
	if cfg.Port != 8084 {
		t.Errorf("bad port should fall back to default, got %d", cfg.Port)
	}
	if cfg.TokenTTL != 7*24*time.Hour {
		t.Errorf("bad ttl should fall back to default, got %v", cfg.TokenTTL)
	}
}
