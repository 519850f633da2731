package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-ref/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ref/log"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oxyref.json")
	if err := os.WriteFile(path, []byte(`{"width": 1024, "height": 768, "backend": "wgpu", "log_level": "debug"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Width != 1024 || cfg.Height != 768 {
		t.Errorf("size = %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.DecalCapacity != DefaultConfig().DecalCapacity {
		t.Errorf("expected unset fields to keep their defaults, decal capacity %d", cfg.DecalCapacity)
	}
	if bt, _ := cfg.BackendType(); bt != renderer.BackendTypeWGPU {
		t.Errorf("backend = %s", bt)
	}
	if lvl, _ := cfg.Level(); lvl != log.Debug {
		t.Errorf("level = %d", lvl)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"width":`},
		{"unknown backend", `{"backend": "vulkan"}`},
		{"bad size", `{"width": 0}`},
		{"bad msaa", `{"msaa": 3}`},
		{"bad log level", `{"log_level": "loud"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "oxyref.json")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "oxyref.json")
	cfg := DefaultConfig()
	cfg.Developer = true
	cfg.DecalStore = "decals.db"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *cfg {
		t.Errorf("got %+v, want %+v", got, cfg)
	}
}

func TestOptionsAndGlobals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ComputeWorkers = 2
	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if len(opts) == 0 {
		t.Fatal("expected options")
	}

	g := cfg.Globals()
	if g.Width != cfg.Width || g.Height != cfg.Height || g.FovX != cfg.FovX {
		t.Errorf("globals = %+v", g)
	}

	cfg.Backend = "none"
	if _, err := cfg.Options(); err == nil {
		t.Error("expected an invalid config to fail")
	}
}
