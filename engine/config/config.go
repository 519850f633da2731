// Package config loads the renderer host configuration from a JSON file and turns it into
// renderer options.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-ref/engine/refapi"
	"github.com/Carmen-Shannon/oxy-ref/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ref/engine/window"
	"github.com/Carmen-Shannon/oxy-ref/log"
)

// DefaultFile is the config file name looked up next to the executable.
const DefaultFile = "oxyref.json"

// Config holds the settings of a renderer host.
type Config struct {
	// Display
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Title      string  `json:"title"`
	FullScreen bool    `json:"fullscreen"`
	WideScreen bool    `json:"widescreen"`
	FovX       float32 `json:"fov_x"`

	// Backend
	Backend              string `json:"backend"`
	Window               bool   `json:"window"`
	VSync                bool   `json:"vsync"`
	MSAA                 int    `json:"msaa"`
	ForceFallbackAdapter bool   `json:"force_fallback_adapter"`

	// Limits
	SceneStackDepth int `json:"scene_stack_depth"`
	ComputeWorkers  int `json:"compute_workers"`
	MaxEntities     int `json:"max_entities"`
	DecalCapacity   int `json:"decal_capacity"`
	TextureCapacity int `json:"texture_capacity"`

	// Output
	CaptureDirectory string `json:"capture_directory"`
	DecalStore       string `json:"decal_store"` // sqlite file for saved decal lists, "" disables

	// Diagnostics
	LogLevel          string `json:"log_level"`
	Developer         bool   `json:"developer"`
	ProfileIntervalMS int    `json:"profile_interval_ms"`
	DiagAddr          string `json:"diag_addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Width:  640,
		Height: 480,
		Title:  "oxyref",
		FovX:   90,

		Backend: "software",
		VSync:   true,
		MSAA:    1,

		SceneStackDepth: 2,
		MaxEntities:     512,
		DecalCapacity:   4096,
		TextureCapacity: 4096,

		CaptureDirectory: "screenshots",

		LogLevel:          "notice",
		ProfileIntervalMS: 1000,
		DiagAddr:          "127.0.0.1:8090",
	}
}

// Path returns DefaultFile in the directory of the running executable.
func Path() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultFile
	}
	return filepath.Join(filepath.Dir(exe), DefaultFile)
}

// Load reads the configuration from path on top of the defaults. A missing file yields the
// defaults.
//
// Parameters:
//   - path: the JSON file
//
// Returns:
//   - *Config: the configuration
//   - error: error if the file cannot be read, parsed or fails validation
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the values that have no sensible fallback.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid size %dx%d", c.Width, c.Height)
	}
	if _, err := c.BackendType(); err != nil {
		return err
	}
	if c.MSAA != int(renderer.MSAAOff) && c.MSAA != int(renderer.MSAA4x) {
		return fmt.Errorf("msaa must be 1 or 4, got %d", c.MSAA)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// BackendType maps the backend name to its type.
func (c *Config) BackendType() (renderer.RendererBackendType, error) {
	switch strings.ToLower(c.Backend) {
	case "", "software":
		return renderer.BackendTypeSoftware, nil
	case "wgpu":
		return renderer.BackendTypeWGPU, nil
	}
	return 0, fmt.Errorf("unknown backend %q", c.Backend)
}

// Level maps the log level name to a log.Level.
func (c *Config) Level() (log.Level, error) {
	return log.ParseLevel(c.LogLevel)
}

// Globals returns a render state record initialised from the display settings.
func (c *Config) Globals() *refapi.Globals {
	return &refapi.Globals{
		Developer:  c.Developer,
		Width:      c.Width,
		Height:     c.Height,
		FullScreen: c.FullScreen,
		WideScreen: c.WideScreen,
		FovX:       c.FovX,
	}
}

// Options converts the configuration into renderer options.
//
// Returns:
//   - []renderer.RendererBuilderOption: the options, in the order GetRefAPI applies them
//   - error: error if the configuration is invalid
func (c *Config) Options() ([]renderer.RendererBuilderOption, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	bt, _ := c.BackendType()
	present := renderer.PresentModeVSync
	if !c.VSync {
		present = renderer.PresentModeUncapped
	}

	opts := []renderer.RendererBuilderOption{
		renderer.WithBackendType(bt),
		renderer.WithPresentMode(present),
		renderer.WithMSAA(renderer.MSAASampleCount(c.MSAA)),
		renderer.WithForceSoftwareRenderer(c.ForceFallbackAdapter),
		renderer.WithSceneStackDepth(c.SceneStackDepth),
		renderer.WithMaxEntities(c.MaxEntities),
		renderer.WithDecalCapacity(c.DecalCapacity),
		renderer.WithTextureCapacity(c.TextureCapacity),
		renderer.WithProfileInterval(time.Duration(c.ProfileIntervalMS) * time.Millisecond),
	}
	if c.ComputeWorkers > 0 {
		opts = append(opts, renderer.WithComputeWorkers(c.ComputeWorkers))
	}
	if c.CaptureDirectory != "" {
		opts = append(opts, renderer.WithCaptureDirectory(c.CaptureDirectory))
	}
	if c.Title != "" {
		opts = append(opts, renderer.WithWindowOptions(window.WithTitle(c.Title)))
	}
	return opts, nil
}
