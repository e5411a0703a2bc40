package harness

import (
	"github.com/spf13/cobra"

	"viewport-engine/config"
	"viewport-engine/core"
)

// Flags are the configuration flags every host accepts.
type Flags struct {
	ConfigPath string
	Backend    string
	LogLevel   string
	Width      int
	Height     int
}

// Bind registers the flags as persistent flags of cmd with the given
// default framebuffer size.
func (f *Flags) Bind(cmd *cobra.Command, width, height int) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.ConfigPath, "config", "c", "", "YAML configuration file")
	pf.StringVarP(&f.Backend, "backend", "b", "cpu", "backend: cpu, opengl or vulkan (env "+config.EnvBackend+")")
	pf.StringVar(&f.LogLevel, "log-level", "info", "debug, info, warn or error (env "+config.EnvLogLevel+")")
	pf.IntVar(&f.Width, "width", width, "framebuffer width")
	pf.IntVar(&f.Height, "height", height, "framebuffer height")
}

// Load reads the configuration file, applies the environment and then
// any flag the user set explicitly. The resulting logger becomes the
// engine default.
func (f *Flags) Load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = f.Backend
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.LogLevel
	}
	if flags.Changed("width") {
		cfg.Width = f.Width
	}
	if flags.Changed("height") {
		cfg.Height = f.Height
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	core.SetLogger(cfg.NewLogger())
	return cfg, nil
}
