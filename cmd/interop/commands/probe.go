package commands

import (
	"github.com/spf13/cobra"

	"render-interop/renderer"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report external-memory support of every device",
	Long: `List each physical device of the producing API with its adapter LUID and
which handle types it can export or import at the configured format, then
show which device the engine would select. Nothing is allocated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		drv, err := renderer.OpenProducer(cfg, log)
		if err != nil {
			return err
		}
		defer drv.Destroy()

		report, err := renderer.Probe(drv, cfg)
		if err != nil {
			return err
		}
		return report.Write(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
