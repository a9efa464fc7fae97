package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Workers.Max != 4 {
		t.Errorf("unexpected default workers.max: %d", cfg.Workers.Max)
	}
	if cfg.Timeouts.UnitAbsolute != 10*time.Minute {
		t.Errorf("unexpected default unit_absolute: %s", cfg.Timeouts.UnitAbsolute)
	}
	if cfg.MaxIterations() != 24 {
		t.Errorf("expected 8*3=24 max iterations, got %d", cfg.MaxIterations())
	}
}

func TestMaxIterationsClamps(t *testing.T) {
	cfg := &Config{Limits: LimitsConfig{PlannerCycles: 0, IterationMultiplier: -1}}
	if cfg.MaxIterations() != 1 {
		t.Errorf("degenerate limits must clamp to 1, got %d", cfg.MaxIterations())
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
anthropic:
  model: claude-sonnet-4-20250514
workers:
  max: 2
timeouts:
  unit_idle: 30s
limits:
  planner_cycles: 5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers.Max != 2 {
		t.Errorf("file value not applied: %d", cfg.Workers.Max)
	}
	if cfg.Timeouts.UnitIdle != 30*time.Second {
		t.Errorf("duration not parsed: %s", cfg.Timeouts.UnitIdle)
	}
	if cfg.Limits.PlannerCycles != 5 {
		t.Errorf("limit not applied: %d", cfg.Limits.PlannerCycles)
	}
	// Untouched settings keep their defaults.
	if cfg.Limits.CompactChars != 24000 {
		t.Errorf("default lost: %d", cfg.Limits.CompactChars)
	}
}

func TestLoadFromPathExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DISPATCH_KEY", "sk-ant-test12345678901234")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("anthropic:\n  api_key: ${TEST_DISPATCH_KEY}\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-test12345678901234" {
		t.Errorf("env reference not expanded: %q", cfg.Anthropic.APIKey)
	}
}

func TestGetAPIKeyPrecedence(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-fromenv123456789012")
	cfg := &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-fromfile12345678901"}}

	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("get key: %v", err)
	}
	if key != "sk-ant-fromenv123456789012" {
		t.Errorf("env must win over config: %q", key)
	}
}

func TestGetAPIKeyMissing(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := GetAPIKey(&Config{}); err != ErrNoAPIKey {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestValidateAPIKey(t *testing.T) {
	if err := ValidateAPIKey("sk-ant-abcdefgh12345678"); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
	if err := ValidateAPIKey("not-a-key"); err == nil {
		t.Error("wrong prefix must be rejected")
	}
	if err := ValidateAPIKey(""); err != ErrNoAPIKey {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestMaskAPIKey(t *testing.T) {
	masked := MaskAPIKey("sk-ant-abcdefgh12345678")
	if masked != "sk-ant-...5678" {
		t.Errorf("unexpected mask: %q", masked)
	}
	if MaskAPIKey("") != "(not set)" {
		t.Error("empty key should render as not set")
	}
}
