package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SWARMGATE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Gateway.Port)
	}
	if cfg.Gateway.ConnectTimeout != 30*time.Second {
		t.Errorf("expected 30s connect timeout, got %s", cfg.Gateway.ConnectTimeout)
	}
	if cfg.Providers.OpenAI.BaseURL != "https://api.openai.com" {
		t.Errorf("unexpected openai base url: %s", cfg.Providers.OpenAI.BaseURL)
	}
	if !cfg.Rollup.Enabled || cfg.Rollup.Schedule == "" {
		t.Errorf("unexpected rollup defaults: %+v", cfg.Rollup)
	}
	if cfg.NATS.ReadyTimeout != 5*time.Second {
		t.Errorf("expected 5s nats ready timeout, got %s", cfg.NATS.ReadyTimeout)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarmgate.yaml")
	data := `
gateway:
  port: 9999
  connect_timeout: 5s
store:
  path: /tmp/custom.db
providers:
  anthropic:
    base_url: https://proxy.internal
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SWARMGATE_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Gateway.Port)
	}
	if cfg.Gateway.ConnectTimeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.Gateway.ConnectTimeout)
	}
	if cfg.Store.Path != "/tmp/custom.db" {
		t.Errorf("unexpected store path: %s", cfg.Store.Path)
	}
	if cfg.Providers.Anthropic.BaseURL != "https://proxy.internal" {
		t.Errorf("unexpected anthropic base url: %s", cfg.Providers.Anthropic.BaseURL)
	}
	// Unset sections keep their defaults
	if cfg.Providers.Google.BaseURL != "https://generativelanguage.googleapis.com" {
		t.Errorf("google default lost: %s", cfg.Providers.Google.BaseURL)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SWARMGATE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SWARMGATE_PORT", "7070")
	t.Setenv("SWARMGATE_AUTH_SECRET", "hush")
	t.Setenv("SWARMGATE_CONNECT_TIMEOUT", "10s")
	t.Setenv("OPENAI_BASE_URL", "https://openai.proxy")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.Port != 7070 {
		t.Errorf("expected port 7070, got %d", cfg.Gateway.Port)
	}
	if cfg.Gateway.AuthSecret != "hush" {
		t.Errorf("auth secret not applied")
	}
	if cfg.Gateway.ConnectTimeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %s", cfg.Gateway.ConnectTimeout)
	}
	if cfg.Providers.OpenAI.BaseURL != "https://openai.proxy" {
		t.Errorf("openai base url override not applied: %s", cfg.Providers.OpenAI.BaseURL)
	}
}

func TestYAMLEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarmgate.yaml")
	data := "vault:\n  passphrase: ${TEST_VAULT_PASS}\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SWARMGATE_CONFIG", path)
	t.Setenv("TEST_VAULT_PASS", "expanded-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Vault.Passphrase != "expanded-secret" {
		t.Errorf("env expansion failed: %q", cfg.Vault.Passphrase)
	}
}
