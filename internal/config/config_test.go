package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Search.HashSize != 16 || cfg.Search.MaxCandidates != 5 {
		t.Errorf("unexpected defaults: %+v", cfg.Search)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
search:
  hash_size: 8
  max_candidates: 3
render:
  sound: false
stabilize:
  enabled: false
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Search.HashSize != 8 || cfg.Search.MaxCandidates != 3 {
		t.Errorf("search overrides not applied: %+v", cfg.Search)
	}
	if cfg.Render.Sound || cfg.Stabilize.Enabled {
		t.Error("bool overrides not applied")
	}
	// untouched keys keep their defaults
	if cfg.Search.SampleStride != 5 || cfg.Render.Width != 500 {
		t.Errorf("defaults lost: stride=%d width=%d", cfg.Search.SampleStride, cfg.Render.Width)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("search:\n  hash_size: 12\n  sample_stride: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "hash_size") || !strings.Contains(err.Error(), "sample_stride") {
		t.Errorf("expected both problems reported, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Workspace.RetainTempFiles = true

	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.Workspace.RetainTempFiles {
		t.Error("retain_temp_files lost")
	}
}

func TestContext(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "json"

	ctx := WithConfig(context.Background(), cfg)
	if got := FromContext(ctx); got != cfg {
		t.Error("expected stored config")
	}
	if got := FromContext(context.Background()); got.LogFormat != "console" {
		t.Error("expected defaults without stored config")
	}
}
