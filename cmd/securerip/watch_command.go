package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"securerip/internal/disc"
	"securerip/internal/discwatch"
	"securerip/internal/logging"
)

const (
	readyPolls        = 30
	readyPollInterval = time.Second
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Rip every audio CD inserted into the configured drive",
		Long: `Watch udev for audio media in drive.device and rip the whole disc each time
one is inserted. Insertions while a rip is running are ignored. Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			tools, err := ctx.newTools(cfg, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			handler := func(runCtx context.Context, device string) error {
				state, err := disc.WaitForAudioDisc(runCtx, device, readyPolls, readyPollInterval)
				if err != nil {
					return err
				}
				logger.Debug("drive ready", logging.String("device", device), logging.String("status", state.String()))
				summary, err := runRipSession(runCtx, cfg, logger, tools, ripRequest{device: device})
				renderRipSummary(out, summary, shouldColorize(out))
				return err
			}
			watcher, err := discwatch.New(cfg.Drive.Device, handler, logger)
			if err != nil {
				return err
			}
			return watcher.Run(cmd.Context())
		},
	}
}
