package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Run from a scratch dir so no stray hypermem.yaml is picked up.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dimension != 8 {
		t.Errorf("dimension %d, want 8", cfg.Dimension)
	}
	if cfg.Consolidation.Strategy != "semantic" {
		t.Errorf("strategy %q, want semantic", cfg.Consolidation.Strategy)
	}
	if cfg.Compression.Algorithm != "brotli" || cfg.Compression.Level != 6 {
		t.Errorf("compression %q/%d, want brotli/6", cfg.Compression.Algorithm, cfg.Compression.Level)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hypermem.yaml")
	data := `
dimension: 16
consolidation:
  strategy: temporal
  epsilon: 0.2
  window: 30m
compression:
  algorithm: gzip
  level: 9
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dimension != 16 {
		t.Errorf("dimension %d, want 16", cfg.Dimension)
	}
	if cfg.Consolidation.Strategy != "temporal" || cfg.Consolidation.Epsilon != 0.2 {
		t.Errorf("consolidation %+v", cfg.Consolidation)
	}
	if cfg.Consolidation.Window != 30*time.Minute {
		t.Errorf("window %v, want 30m", cfg.Consolidation.Window)
	}
	if cfg.Compression.Algorithm != "gzip" || cfg.Compression.Level != 9 {
		t.Errorf("compression %+v", cfg.Compression)
	}
	// File overrides merge over defaults, not replace them.
	if cfg.StateKey != "hypermem/state" {
		t.Errorf("state key %q lost its default", cfg.StateKey)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hypermem.yaml")
	os.WriteFile(path, []byte("compression:\n  level: 12\n"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected error for compression level 12")
	}
}
