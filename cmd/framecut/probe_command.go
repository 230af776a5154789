package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"framecut/internal/config"
	"framecut/internal/detect"
)

type probeReport struct {
	videoInfo
	Downscale int `json:"auto_downscale_factor"`
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "probe <video>",
		Short: "Show the stream properties detect will use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			info, err := probeVideo(cmd.Context(), newProber(cfg), path)
			if err != nil {
				return err
			}
			report := probeReport{
				videoInfo: info,
				Downscale: detect.ComputeDownscaleFactor(info.Width, cfg.Detection.MinWidth),
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}

			rows := [][]string{
				{"Path", info.Path},
				{"Codec", info.Codec},
				{"Resolution", fmt.Sprintf("%dx%d", info.Width, info.Height)},
				{"Frame rate", formatFPS(info.FPS)},
				{"Frames", formatCount(info.Frames)},
				{"Duration", formatSeconds(info.Duration)},
				{"Size", formatBytes(info.Size)},
				{"Auto downscale", fmt.Sprintf("%d (min width %d)", report.Downscale, cfg.Detection.MinWidth)},
			}
			if info.PixFmt != "" {
				rows = append(rows[:2], append([][]string{{"Pixel format", info.PixFmt}}, rows[2:]...)...)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable("", []string{"Property", "Value"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}
