package main

import (
	"path/filepath"
	"testing"
)

func TestReplayPath(t *testing.T) {
	tests := []struct {
		path string
		run  int
		want string
	}{
		{"runs/replay.hcrp", 1, "runs/replay.hcrp"},
		{"runs/replay.hcrp", 2, "runs/replay-2.hcrp"},
		{"replay", 3, "replay-3"},
	}
	for _, tt := range tests {
		if got := replayPath(tt.path, tt.run); got != tt.want {
			t.Errorf("replayPath(%q, %d) = %q, want %q", tt.path, tt.run, got, tt.want)
		}
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	t.Setenv("HORDECORE_CONFIG", "")
	t.Chdir(t.TempDir())
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Population.MaxLive != 20000 {
		t.Errorf("max_live = %d, want default 20000", cfg.Population.MaxLive)
	}
}

func TestLoadConfigExplicitPathMustExist(t *testing.T) {
	t.Setenv("HORDECORE_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error for a missing explicit config")
	}
}
