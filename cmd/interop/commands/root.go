package commands

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"render-interop/config"
	"render-interop/logging"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "interop",
	Short: "Render with Vulkan and present through a second graphics API",
	Long: `interop renders a scene with Vulkan into memory shared with a second,
platform-native API (Direct3D 11 on Windows, OpenGL elsewhere), which
copies every frame to its own surface without a CPU round trip.

The software backend (--backend soft) runs the same protocol in-process
and needs no GPU.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.render-interop/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	// Names match config keys, see config.Load.
	def := config.DefaultConfig()
	flags.String("backend", def.Backend, "backend pair: auto, native or soft")
	flags.String("interop-format", def.Interop.Format, "shared image format")
	flags.String("interop-handle-type", def.Interop.HandleType, "OS handle type used for sharing")
	flags.Int("interop-msaa", def.Interop.MSAA, "requested sample count (1, 2, 4, 8)")
	flags.String("interop-owner", def.Interop.Owner, "side that allocates the shared memory: auto, producer or consumer")
	flags.Int("window-width", def.Window.Width, "initial surface width")
	flags.Int("window-height", def.Window.Height, "initial surface height")
	flags.String("assets-model", def.Assets.Model, "glTF model to render (default: a triangle)")
	flags.Bool("vulkan-validation", def.Vulkan.Validation, "enable the Vulkan validation layer")
	flags.String("logging-level", def.Logging.Level, "log level")
}

// setup loads the configuration for cmd and initializes logging.
func setup(cmd *cobra.Command) (*config.Config, logrus.FieldLogger, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Init(cfg.Logging.Level, cfg.Logging.File, cfg.Logging.Console); err != nil {
		return nil, nil, fmt.Errorf("initializing logging: %w", err)
	}
	return cfg, logging.Get(), nil
}
