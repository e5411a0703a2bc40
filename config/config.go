// Package config loads engine and harness settings from YAML and the
// environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvBackend  = "VIEWPORT_BACKEND"
	EnvLogLevel = "VIEWPORT_LOG_LEVEL"
)

type Config struct {
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Backend  string `yaml:"backend"`
	LogLevel string `yaml:"log_level"`

	ClearColor [4]float32 `yaml:"clear_color"`
	Ambient    [3]float32 `yaml:"ambient"`

	Camera  CameraConfig  `yaml:"camera"`
	Post    PostConfig    `yaml:"post"`
	Limits  LimitsConfig  `yaml:"limits"`
	Culling bool          `yaml:"frustum_culling"`
	Overlay OverlayConfig `yaml:"overlay"`
}

type CameraConfig struct {
	FOV      float32    `yaml:"fov"`
	Near     float32    `yaml:"near"`
	Far      float32    `yaml:"far"`
	Distance float32    `yaml:"distance"`
	Yaw      float32    `yaml:"yaw"`
	Pitch    float32    `yaml:"pitch"`
	Target   [3]float32 `yaml:"target"`
	Smooth   bool       `yaml:"smooth"`
}

type PostConfig struct {
	Fog struct {
		Enabled bool       `yaml:"enabled"`
		Color   [3]float32 `yaml:"color"`
		Start   float32    `yaml:"start"`
		End     float32    `yaml:"end"`
		Density float32    `yaml:"density"`
		Mode    string     `yaml:"mode"`
	} `yaml:"fog"`
	Tonemap struct {
		Enabled  bool    `yaml:"enabled"`
		Exposure float32 `yaml:"exposure"`
		Operator string  `yaml:"operator"`
	} `yaml:"tonemap"`
	Gamma struct {
		Enabled bool    `yaml:"enabled"`
		Value   float32 `yaml:"value"`
	} `yaml:"gamma"`
	Vignette struct {
		Enabled  bool    `yaml:"enabled"`
		Strength float32 `yaml:"strength"`
		Radius   float32 `yaml:"radius"`
	} `yaml:"vignette"`
}

// LimitsConfig may lower, never raise, the engine's bounded arenas.
type LimitsConfig struct {
	MaxLights        int `yaml:"max_lights"`
	DrawsPerFrame    int `yaml:"draws_per_frame"`
	PipelineCache    int `yaml:"pipeline_cache"`
	StagingSizeBytes int `yaml:"staging_size_bytes"`
}

type OverlayConfig struct {
	Wireframe bool `yaml:"wireframe"`
	Normals   bool `yaml:"normals"`
	Bounds    bool `yaml:"bounds"`
	Selection bool `yaml:"selection"`
	Grid      bool `yaml:"grid"`
}

func Default() Config {
	c := Config{
		Width:      800,
		Height:     600,
		Backend:    "cpu",
		LogLevel:   "info",
		ClearColor: [4]float32{0.1, 0.1, 0.12, 1},
		Ambient:    [3]float32{0.08, 0.08, 0.1},
		Camera: CameraConfig{
			FOV:      0.7854,
			Near:     0.1,
			Far:      100,
			Distance: 6,
			Yaw:      0.6,
			Pitch:    0.4,
		},
		Culling: true,
		Limits: LimitsConfig{
			MaxLights:        8,
			DrawsPerFrame:    4096,
			PipelineCache:    64,
			StagingSizeBytes: 4 << 20,
		},
		Overlay: OverlayConfig{Selection: true},
	}
	c.Post.Fog.Mode = "linear"
	c.Post.Fog.Start, c.Post.Fog.End, c.Post.Fog.Density = 10, 50, 0.05
	c.Post.Tonemap.Exposure = 1
	c.Post.Tonemap.Operator = "reinhard"
	c.Post.Gamma.Value = 1
	c.Post.Vignette.Strength, c.Post.Vignette.Radius = 0.4, 0.75
	return c
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults with the environment applied.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// ApplyEnv overlays VIEWPORT_BACKEND and VIEWPORT_LOG_LEVEL.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvBackend)); v != "" {
		c.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid size %dx%d", c.Width, c.Height)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("invalid clip range %v..%v", c.Camera.Near, c.Camera.Far)
	}
	return nil
}

// Level maps LogLevel to a slog level, defaulting to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the text logger harnesses install on stderr.
func (c Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.Level()}))
}
