package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("TEXT_ENGINE_GENERATOR_TIMEOUT", "5s")
	t.Setenv("TEXT_ENGINE_EXPAND_WORLD", "false")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.GeminiModel != "gemini-2.5-flash" || cfg.DBPath != "text-engine.db" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.GeneratorTimeout != 5*time.Second || cfg.ExpandWorld {
		t.Errorf("expected overrides, got %+v", cfg)
	}
	if err := cfg.RequireAPIKey(); err == nil {
		t.Error("expected missing key to be reported")
	}
}

func TestLoadConfigBadValue(t *testing.T) {
	t.Setenv("TEXT_ENGINE_SEED", "not-a-number")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("bogus") != slog.LevelInfo {
		t.Error("unexpected level mapping")
	}
}

func TestLoadTuning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("default_difficulty: 15\nurgency_turns: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tun, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if tun.DefaultDifficulty != 15 || tun.UrgencyTurns != 3 || tun.PortalRadius != 16 {
		t.Errorf("unexpected tuning %+v", tun)
	}
	if _, err := LoadTuning(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected missing file error")
	}
	def, _ := LoadTuning("")
	if def != DefaultTuning() {
		t.Errorf("expected defaults for empty path, got %+v", def)
	}
}
