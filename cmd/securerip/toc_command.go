package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"securerip/internal/sector"
	"securerip/internal/services"
)

func newTOCCommand(ctx *commandContext) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "toc",
		Short: "Show the table of contents of the loaded disc",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.session()
			if err != nil {
				return err
			}
			tools, err := ctx.newTools(cfg, logger)
			if err != nil {
				return err
			}
			target := strings.TrimSpace(device)
			if target == "" {
				target = cfg.Drive.Device
			}
			toc, err := tools.scanner.Scan(cmd.Context(), target)
			if err != nil {
				return services.Wrap(services.ErrExternalTool, "toc", "read toc",
					"failed to read the disc table of contents", err)
			}

			rows := make([][]string, 0, len(toc.Tracks))
			for _, info := range toc.Tracks {
				rows = append(rows, []string{
					trackLabel(info.Number),
					groupInt(info.StartSector),
					groupInt(info.LengthSectors),
					sector.CDDA.Timestamp(info.LengthSectors * sector.BlockSize),
					groupInt(toc.ExpectedByteLength(info.Number)),
					yesNo(info.PreEmphasis),
					yesNo(info.CopyPermitted),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Track", "Start", "Sectors", "Length", "Bytes", "Pre-emphasis", "Copy"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "Device:      %s\n", target)
			fmt.Fprintf(out, "Fingerprint: %s\n", toc.Fingerprint())
			fmt.Fprintf(out, "Total:       %s (%s sectors)\n",
				sector.CDDA.Timestamp(toc.TotalSectors()*sector.BlockSize), groupInt(toc.TotalSectors()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "Optical drive to query (overrides drive.device)")
	return cmd
}
