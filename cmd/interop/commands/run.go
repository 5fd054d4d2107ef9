package commands

import (
	"github.com/spf13/cobra"

	"render-interop/renderer"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Render into a window",
	Long: `Open a window and render the scene every frame until the window is
closed, Escape is pressed or the process is interrupted. Resizing the
window rebuilds the shared image and everything that depends on it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		return renderer.RunWindowed(cmd.Context(), cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
