package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-interop/core"
	"render-interop/interop"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	ec := cfg.EngineConfig()
	assert.Equal(t, interop.FormatBGRA8Unorm, ec.Format)
	assert.Equal(t, interop.Samples1, ec.Samples)
	assert.Equal(t, 5*time.Second, ec.FenceTimeout)
	assert.Equal(t, interop.Extent{Width: 800, Height: 600}, cfg.Size())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
interop:
  format: rgba8_srgb
  handle_type: opaque-fd
  msaa: 4
  fence_timeout: 250ms
  clear_color: [1, 0, 0]
window:
  width: 1024
backend: soft
`)
	t.Setenv("RENDER_INTEROP_WINDOW_HEIGHT", "512")
	t.Setenv("RENDER_INTEROP_INTEROP_OWNER", "producer")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Window.Width)
	assert.Equal(t, 512, cfg.Window.Height)
	assert.Equal(t, BackendSoft, cfg.Backend)

	ec := cfg.EngineConfig()
	assert.Equal(t, interop.FormatRGBA8Srgb, ec.Format)
	assert.Equal(t, interop.HandleOpaqueFD, ec.HandleType)
	assert.Equal(t, interop.OwnerProducer, ec.Owner)
	assert.Equal(t, interop.Samples4, ec.Samples)
	assert.Equal(t, 250*time.Millisecond, ec.FenceTimeout)
	assert.Equal(t, core.Color{R: 1, A: 1}, ec.Clear)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "interop:\n  msaa: 4\n")
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("interop-msaa", 1, "")
	fs.String("backend", "auto", "")
	require.NoError(t, fs.Parse([]string{"--interop-msaa=8", "--backend=soft"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Interop.MSAA)
	assert.Equal(t, BackendSoft, cfg.Backend)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.ErrorContains(t, err, "reading config")
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"depth format", func(c *Config) { c.Interop.Format = "d32_float" }, "no cross-API mapping"},
		{"unknown format", func(c *Config) { c.Interop.Format = "rgb565" }, "interop.format"},
		{"unknown handle", func(c *Config) { c.Interop.HandleType = "dma-buf" }, "interop.handle_type"},
		{"msaa", func(c *Config) { c.Interop.MSAA = 3 }, "interop.msaa"},
		{"owner", func(c *Config) { c.Interop.Owner = "both" }, "interop.owner"},
		{"timeout", func(c *Config) { c.Interop.FenceTimeout = -time.Second }, "fence_timeout"},
		{"clear color", func(c *Config) { c.Interop.ClearColor = []float64{1} }, "clear_color"},
		{"zero size", func(c *Config) { c.Window.Width = 0 }, "window size"},
		{"backend", func(c *Config) { c.Backend = "metal" }, "backend"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestFlagKey(t *testing.T) {
	keys := []string{"backend", "interop.handle_type", "interop.msaa", "window.width"}
	for name, want := range map[string]string{
		"backend":             "backend",
		"interop-handle-type": "interop.handle_type",
		"interop-msaa":        "interop.msaa",
		"window-width":        "window.width",
	} {
		got, ok := flagKey(keys, name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got)
	}
	_, ok := flagKey(keys, "frames")
	assert.False(t, ok)
}
