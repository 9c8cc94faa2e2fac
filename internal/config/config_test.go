package config

import (
	"os"
	"path/filepath"
	"testing"

	feedv1 "github.com/mirador/newswire/pkg/feed/v1"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
servers:
  - name: primary
    source: a
    websocket_url: wss://feed-a.example.com/ws
    api_url: https://feed-a.example.com/news
    token: secret-a
  - name: secondary
    source: b
    websocket_url: ws://feed-b.example.com/ws
keywords:
  - listing
  - hack
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Servers) != 2 {
		t.Fatalf("servers = %d, want 2", len(cfg.Servers))
	}
	if cfg.Servers[0].SourceSystem() != feedv1.SourceSystem_SOURCE_A {
		t.Errorf("first server source = %v, want SOURCE_A", cfg.Servers[0].SourceSystem())
	}
	if cfg.Servers[1].SourceSystem() != feedv1.SourceSystem_SOURCE_B {
		t.Errorf("second server source = %v, want SOURCE_B", cfg.Servers[1].SourceSystem())
	}
	if len(cfg.Keywords) != 2 {
		t.Errorf("keywords = %v", cfg.Keywords)
	}
	// Defaults survive the file load.
	if !cfg.ShowReposts || !cfg.APIFetchEnabled {
		t.Error("defaults not applied")
	}
	if cfg.MaxStoreSize != 100 {
		t.Errorf("MaxStoreSize = %d, want 100", cfg.MaxStoreSize)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NEWSWIRE_SHOW_REPOSTS", "false")
	t.Setenv("NEWSWIRE_MAX_STORE_SIZE", "250")
	t.Setenv("NEWSWIRE_ALERT_SINK", "nats")
	t.Setenv("NEWSWIRE_ALERT_NATS_URL", "nats://localhost:4222")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ShowReposts {
		t.Error("env override for show_reposts not applied")
	}
	if cfg.MaxStoreSize != 250 {
		t.Errorf("MaxStoreSize = %d, want 250", cfg.MaxStoreSize)
	}
	if cfg.Alert.Sink != "nats" {
		t.Errorf("Alert.Sink = %q, want nats", cfg.Alert.Sink)
	}
}

func TestValidateRejectsBadScheme(t *testing.T) {
	yaml := `
servers:
  - name: broken
    source: a
    websocket_url: https://not-a-websocket.example.com
`
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Fatal("expected scheme validation error")
	}
}

func TestValidateRejectsUnknownSource(t *testing.T) {
	yaml := `
servers:
  - name: broken
    source: c
    websocket_url: wss://x.example.com/ws
`
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Fatal("expected unknown source error")
	}
}

func TestValidateRejectsDuplicateSource(t *testing.T) {
	yaml := `
servers:
  - name: one
    source: a
    websocket_url: wss://x.example.com/ws
  - name: two
    source: a
    websocket_url: wss://y.example.com/ws
`
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Fatal("expected duplicate source error")
	}
}

func TestValidateRejectsEmptyServers(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatal("expected error for empty server list")
	}
}

func TestValidateRejectsUnknownSink(t *testing.T) {
	cfg := Default()
	cfg.Servers = []ServerConfig{{
		Name: "ok", Source: "a", WebsocketURL: "wss://x.example.com/ws",
	}}
	cfg.Alert.Sink = "carrier-pigeon"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown sink error")
	}
}
