// Package config loads render-interop settings from defaults, a YAML file,
// RENDER_INTEROP_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"render-interop/core"
	"render-interop/interop"
)

// EnvPrefix prefixes every environment override, e.g. RENDER_INTEROP_INTEROP_MSAA.
const EnvPrefix = "RENDER_INTEROP"

// Config represents the application configuration
type Config struct {
	Interop InteropConfig `mapstructure:"interop"`
	Window  WindowConfig  `mapstructure:"window"`
	Assets  AssetsConfig  `mapstructure:"assets"`
	Backend string        `mapstructure:"backend"`
	Vulkan  VulkanConfig  `mapstructure:"vulkan"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type InteropConfig struct {
	Format       string        `mapstructure:"format"`
	HandleType   string        `mapstructure:"handle_type"`
	MSAA         int           `mapstructure:"msaa"`
	Owner        string        `mapstructure:"owner"`
	FenceTimeout time.Duration `mapstructure:"fence_timeout"`
	ClearColor   []float64     `mapstructure:"clear_color"`
	Depth        bool          `mapstructure:"depth"`
	SkipSameSize bool          `mapstructure:"skip_same_size"`
}

type WindowConfig struct {
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	Title  string `mapstructure:"title"`
	VSync  bool   `mapstructure:"vsync"`
}

type AssetsConfig struct {
	Model          string `mapstructure:"model"`
	VertexShader   string `mapstructure:"vertex_shader"`
	FragmentShader string `mapstructure:"fragment_shader"`
}

type VulkanConfig struct {
	Validation bool `mapstructure:"validation"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

// Backend choices.
const (
	BackendAuto   = "auto"
	BackendNative = "native"
	BackendSoft   = "soft"
)

var (
	validBackends = []string{BackendAuto, BackendNative, BackendSoft}
	validLevels   = []string{"trace", "debug", "info", "warn", "error"}
)

// DefaultHandleType is the handle type the native backends of this platform share through.
func DefaultHandleType() string {
	if runtime.GOOS == "windows" {
		return interop.HandleD3D11Texture.String()
	}
	return interop.HandleOpaqueFD.String()
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Interop: InteropConfig{
			Format:       interop.FormatBGRA8Unorm.String(),
			HandleType:   DefaultHandleType(),
			MSAA:         1,
			Owner:        interop.OwnerAuto.String(),
			FenceTimeout: 5 * time.Second,
			ClearColor:   []float64{0.1, 0.1, 0.15, 1},
			Depth:        true,
		},
		Window: WindowConfig{
			Width:  800,
			Height: 600,
			Title:  "render-interop",
			VSync:  true,
		},
		Assets: AssetsConfig{
			VertexShader:   "shaders/scene.vert.spv",
			FragmentShader: "shaders/scene.frag.spv",
		},
		Backend: BackendAuto,
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load loads configuration from file, environment, and defaults. Flags in fs
// whose names match a config key (dots replaced by dashes) take precedence.
func Load(cfgFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("finding home directory: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".render-interop"))
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ExpandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// flagKey maps a flag name to a config key: the first dash separates the
// section, later dashes become underscores (--interop-handle-type is
// interop.handle_type). It returns false when no key matches.
func flagKey(keys []string, name string) (string, bool) {
	candidates := []string{name, strings.ReplaceAll(name, "-", "_")}
	if section, rest, ok := strings.Cut(name, "-"); ok {
		candidates = append(candidates, section+"."+strings.ReplaceAll(rest, "-", "_"))
	}
	for _, key := range candidates {
		if slices.Contains(keys, key) {
			return key, true
		}
	}
	return "", false
}

// bindFlags binds every flag named after a config key, e.g. --interop-msaa or --window-width.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	keys := v.AllKeys()
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKey(keys, f.Name)
		if !ok {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil && err == nil {
			err = fmt.Errorf("binding flag --%s: %w", f.Name, bindErr)
		}
	})
	return err
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	f, err := interop.ParseFormat(c.Interop.Format)
	if err != nil {
		return fmt.Errorf("interop.format: %w", err)
	}
	if !f.Shareable() {
		return fmt.Errorf("interop.format: %s has no cross-API mapping", f)
	}
	if _, err := interop.ParseHandleType(c.Interop.HandleType); err != nil {
		return fmt.Errorf("interop.handle_type: %w", err)
	}
	if !interop.SampleCount(c.Interop.MSAA).Valid() {
		return fmt.Errorf("interop.msaa must be one of 1, 2, 4, 8 (got %d)", c.Interop.MSAA)
	}
	if _, err := interop.ParseOwner(c.Interop.Owner); err != nil {
		return fmt.Errorf("interop.owner: %w", err)
	}
	if c.Interop.FenceTimeout < 0 {
		return errors.New("interop.fence_timeout must not be negative")
	}
	if n := len(c.Interop.ClearColor); n != 3 && n != 4 {
		return fmt.Errorf("interop.clear_color needs 3 or 4 components (got %d)", n)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size must be positive (got %dx%d)", c.Window.Width, c.Window.Height)
	}
	if !slices.Contains(validBackends, c.Backend) {
		return fmt.Errorf("backend must be one of: %v", validBackends)
	}
	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}
	return nil
}

// ExpandPaths expands ~ and environment variables in paths
func (c *Config) ExpandPaths() {
	c.Assets.Model = expandPath(c.Assets.Model)
	c.Assets.VertexShader = expandPath(c.Assets.VertexShader)
	c.Assets.FragmentShader = expandPath(c.Assets.FragmentShader)
	c.Logging.File = expandPath(c.Logging.File)
}

// Size returns the initial window extent.
func (c *Config) Size() interop.Extent {
	return interop.Extent{Width: uint32(c.Window.Width), Height: uint32(c.Window.Height)}
}

// EngineConfig converts a validated configuration into engine options.
func (c *Config) EngineConfig() interop.EngineConfig {
	ec := interop.DefaultEngineConfig()
	ec.Format, _ = interop.ParseFormat(c.Interop.Format)
	ec.HandleType, _ = interop.ParseHandleType(c.Interop.HandleType)
	ec.Owner, _ = interop.ParseOwner(c.Interop.Owner)
	ec.Samples = interop.SampleCount(c.Interop.MSAA)
	ec.Depth = c.Interop.Depth
	ec.FenceTimeout = c.Interop.FenceTimeout
	ec.SkipSameSize = c.Interop.SkipSameSize
	ec.Debug = c.Vulkan.Validation

	cc := c.Interop.ClearColor
	ec.Clear = core.Color{R: float32(cc[0]), G: float32(cc[1]), B: float32(cc[2]), A: 1}
	if len(cc) == 4 {
		ec.Clear.A = float32(cc[3])
	}
	return ec
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("interop.format", cfg.Interop.Format)
	v.SetDefault("interop.handle_type", cfg.Interop.HandleType)
	v.SetDefault("interop.msaa", cfg.Interop.MSAA)
	v.SetDefault("interop.owner", cfg.Interop.Owner)
	v.SetDefault("interop.fence_timeout", cfg.Interop.FenceTimeout)
	v.SetDefault("interop.clear_color", cfg.Interop.ClearColor)
	v.SetDefault("interop.depth", cfg.Interop.Depth)
	v.SetDefault("interop.skip_same_size", cfg.Interop.SkipSameSize)

	v.SetDefault("window.width", cfg.Window.Width)
	v.SetDefault("window.height", cfg.Window.Height)
	v.SetDefault("window.title", cfg.Window.Title)
	v.SetDefault("window.vsync", cfg.Window.VSync)

	v.SetDefault("assets.model", cfg.Assets.Model)
	v.SetDefault("assets.vertex_shader", cfg.Assets.VertexShader)
	v.SetDefault("assets.fragment_shader", cfg.Assets.FragmentShader)

	v.SetDefault("backend", cfg.Backend)
	v.SetDefault("vulkan.validation", cfg.Vulkan.Validation)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
}
