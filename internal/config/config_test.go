// File path: internal/config/config_test.go
package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "COPILOT_STORE_PATH", "COPILOT_ALLOWED_TABLES", "COPILOT_MAX_ROWS", "COPILOT_QUERY_TIMEOUT", "SYSTEM_PROMPT"} {
		t.Setenv(key, "")
	}
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.MaxRows != 50 {
		t.Fatalf("expected default row cap 50, got %d", cfg.MaxRows)
	}
	if cfg.QueryTimeout != 30*time.Second {
		t.Fatalf("expected default query timeout, got %s", cfg.QueryTimeout)
	}
	if len(cfg.AllowedTables) != 3 {
		t.Fatalf("expected default table whitelist, got %v", cfg.AllowedTables)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("COPILOT_ALLOWED_TABLES", "virtual_machines, network_interfaces")
	t.Setenv("COPILOT_MAX_ROWS", "10")
	t.Setenv("COPILOT_QUERY_TIMEOUT", "5s")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.Addr)
	}
	if len(cfg.AllowedTables) != 2 || cfg.AllowedTables[1] != "network_interfaces" {
		t.Fatalf("unexpected whitelist: %v", cfg.AllowedTables)
	}
	if cfg.MaxRows != 10 || cfg.QueryTimeout != 5*time.Second {
		t.Fatalf("unexpected overrides: %d %s", cfg.MaxRows, cfg.QueryTimeout)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("COPILOT_MAX_ROWS", "zero")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for invalid COPILOT_MAX_ROWS")
	}
}

func TestMergePrefersOverride(t *testing.T) {
	base, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	merged := base.Merge(Config{Addr: ":7070", MaxRows: 5})
	if merged.Addr != ":7070" || merged.MaxRows != 5 {
		t.Fatalf("merge did not apply override: %+v", merged)
	}
	if merged.QueryTimeout != base.QueryTimeout {
		t.Fatalf("merge clobbered unset field: %+v", merged)
	}
}
