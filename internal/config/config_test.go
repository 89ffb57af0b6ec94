package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  ws_url: ws://tutor.internal/ws
timeouts:
  request: 3s
redis:
  addr: localhost:6379
  ttl: 1h
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.WSURL != "ws://tutor.internal/ws" {
		t.Fatalf("unexpected ws url %s", cfg.Server.WSURL)
	}
	if cfg.Server.APIURL != "http://localhost:8000/api" {
		t.Fatalf("expected default api url, got %s", cfg.Server.APIURL)
	}
	if cfg.Redis.Addr != "localhost:6379" || Duration(cfg.Redis.TTL, 0) != time.Hour {
		t.Fatalf("unexpected redis config %+v", cfg.Redis)
	}
	if Duration(cfg.Timeouts.Request, time.Minute) != 3*time.Second {
		t.Fatalf("unexpected request timeout %s", cfg.Timeouts.Request)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	_ = os.WriteFile(path, []byte("server: [unclosed"), 0o600)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDuration(t *testing.T) {
	if Duration("", time.Second) != time.Second {
		t.Fatalf("expected fallback for empty")
	}
	if Duration("nonsense", time.Second) != time.Second {
		t.Fatalf("expected fallback for invalid")
	}
	if Duration("250ms", time.Second) != 250*time.Millisecond {
		t.Fatalf("expected parsed duration")
	}
}
