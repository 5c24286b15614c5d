package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PALCHAT_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 8080 {
		t.Fatalf("expected default port 8080 got %d", cfg.AppPort)
	}
	if cfg.AccessTokenTTL != time.Hour {
		t.Fatalf("expected access ttl 1h got %s", cfg.AccessTokenTTL)
	}
	if cfg.ObjectStore.Enabled() {
		t.Fatal("object store should be disabled without a bucket")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "palchat.yaml")
	contents := []byte(`
port: 9090
jwt_secret: from-file
access_token_ttl: 30m
chat:
  allowed_origins: ["https://chat.example.com"]
  send_buffer: 8
ws_rate_limit:
  requests: 120
object_store:
  bucket: transcripts
`)
	if err := os.WriteFile(path, contents, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PALCHAT_CONFIG", path)
	t.Setenv("PALCHAT_PORT", "7070")
	t.Setenv("PALCHAT_WS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("PALCHAT_WS_RATE_BURST", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.AppPort != 7070 {
		t.Fatalf("expected env port to win, got %d", cfg.AppPort)
	}
	if cfg.JWTSecret != "from-file" {
		t.Fatalf("expected jwt secret from file, got %q", cfg.JWTSecret)
	}
	if cfg.AccessTokenTTL != 30*time.Minute {
		t.Fatalf("expected access ttl from file, got %s", cfg.AccessTokenTTL)
	}
	if cfg.Chat.SendBuffer != 8 {
		t.Fatalf("expected send buffer 8 got %d", cfg.Chat.SendBuffer)
	}
	if len(cfg.Chat.AllowedOrigins) != 2 || cfg.Chat.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins: %v", cfg.Chat.AllowedOrigins)
	}
	if cfg.Chat.PongWait != 60*time.Second {
		t.Fatalf("expected untouched defaults to survive overlay, got %s", cfg.Chat.PongWait)
	}
	if cfg.WSLimit.Requests != 120 || cfg.WSLimit.Burst != 50 || cfg.WSLimit.Window != time.Minute {
		t.Fatalf("unexpected websocket rate limit: %+v", cfg.WSLimit)
	}
	if cfg.AuthLimit != Defaults().AuthLimit {
		t.Fatalf("auth rate limit must not follow websocket settings: %+v", cfg.AuthLimit)
	}
	if !cfg.ObjectStore.Enabled() {
		t.Fatal("expected object store enabled")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("PALCHAT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without jwt secret")
	}

	cfg.JWTSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Chat.PingInterval = cfg.Chat.PongWait
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when ping interval is not below pong wait")
	}
}
