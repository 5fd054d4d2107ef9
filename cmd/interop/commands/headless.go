package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"render-interop/renderer"
)

var (
	headlessFrames  int
	headlessResizes []string
	headlessOut     string
)

var headlessCmd = &cobra.Command{
	Use:   "headless",
	Short: "Render frames offscreen and write the last one as PNG",
	Long: `Render a fixed number of frames without showing a window, apply the
requested resizes on the way, and read the last frame back.

Example:
  interop headless --frames 30 --resize 400x300@10 --out frame.png`,
	Args: cobra.NoArgs,
	RunE: runHeadless,
}

func init() {
	headlessCmd.Flags().IntVar(&headlessFrames, "frames", 1, "number of frames to render")
	headlessCmd.Flags().StringArrayVar(&headlessResizes, "resize", nil, "resize before a frame, WIDTHxHEIGHT@FRAME (repeatable)")
	headlessCmd.Flags().StringVarP(&headlessOut, "out", "o", "frame.png", "PNG output path, empty to skip")
	rootCmd.AddCommand(headlessCmd)
}

func runHeadless(cmd *cobra.Command, args []string) error {
	if headlessFrames < 1 {
		return fmt.Errorf("--frames must be at least 1")
	}
	steps := make([]renderer.ResizeStep, 0, len(headlessResizes))
	for _, s := range headlessResizes {
		step, err := renderer.ParseResizeStep(s)
		if err != nil {
			return err
		}
		steps = append(steps, step)
	}

	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	res, err := renderer.RunHeadless(cmd.Context(), renderer.Options{
		Config:  cfg,
		Frames:  headlessFrames,
		Resizes: steps,
		Output:  headlessOut,
	}, log)
	if err != nil {
		return err
	}

	s := res.Stats
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "device:         %s (owner %s)\n", s.Device, s.Owner)
	fmt.Fprintf(out, "frames:         %d\n", s.Frames)
	fmt.Fprintf(out, "final extent:   %s, %dx MSAA\n", s.Extent, s.Samples)
	fmt.Fprintf(out, "resizes:        %d\n", s.Resizes)
	fmt.Fprintf(out, "render targets: %d created, %d destroyed\n", s.RenderTargetsCreated, s.RenderTargetsDestroyed)
	return nil
}
