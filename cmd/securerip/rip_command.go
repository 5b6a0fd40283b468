package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"securerip/internal/services"
)

func newRipCommand(ctx *commandContext) *cobra.Command {
	var image bool
	var device string

	cmd := &cobra.Command{
		Use:   "rip [track...]",
		Short: "Rip tracks with multi-trial verification",
		Long: `Rip audio tracks, reading each track several times and comparing the reads
sector by sector. Divergent sectors are re-read until enough reads agree or
secure.max_tries is exhausted. Without track arguments every track is ripped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracks, err := parseTracks(args)
			if err != nil {
				return err
			}
			if image && len(tracks) > 0 {
				return services.Wrap(services.ErrValidation, "rip", "parse arguments",
					"--image cannot be combined with track numbers", nil)
			}
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			if device = strings.TrimSpace(device); device != "" {
				local := *cfg
				local.Drive.Device = device
				cfg = &local
			}
			tools, err := ctx.newTools(cfg, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			summary, ripErr := runRipSession(cmd.Context(), cfg, logger, tools, ripRequest{
				tracks: tracks,
				image:  image,
			})
			renderRipSummary(out, summary, shouldColorize(out))
			if ripErr != nil {
				return ripErr
			}
			if summary != nil && summary.degraded() > 0 {
				return fmt.Errorf("%d track(s) kept unresolved sectors", summary.degraded())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&image, "image", false, "Rip the whole disc as a single image")
	cmd.Flags().StringVarP(&device, "device", "d", "", "Optical drive to read (overrides drive.device)")
	return cmd
}

func parseTracks(args []string) ([]int, error) {
	tracks := make([]int, 0, len(args))
	for _, arg := range args {
		for field := range strings.SplitSeq(arg, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			track, err := strconv.Atoi(field)
			if err != nil || track < 1 {
				return nil, services.Wrap(services.ErrValidation, "rip", "parse arguments",
					fmt.Sprintf("invalid track number %q", field), nil)
			}
			tracks = append(tracks, track)
		}
	}
	return tracks, nil
}
