package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"securerip/internal/history"
	"securerip/internal/ripping"
	"securerip/internal/sector"
	"securerip/internal/services"
)

const historyTimeLayout = "2006-01-02 15:04"

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded rip sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No rip sessions recorded")
				return nil
			}
			rows := make([][]string, 0, len(sessions))
			for _, s := range sessions {
				rows = append(rows, []string{
					s.ID,
					formatTime(s.StartedAt),
					string(s.Status),
					fmt.Sprint(s.TrackCount),
					s.Fingerprint,
					s.Device,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Session", "Started", "Status", "Tracks", "Fingerprint", "Device"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions to list")
	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show tracks and mismatch reports of one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			id := strings.TrimSpace(args[0])
			session, err := store.Session(cmd.Context(), id)
			if err != nil {
				return err
			}
			if session == nil {
				return services.Wrap(services.ErrValidation, "history", "show",
					fmt.Sprintf("no rip session with id %q", id), nil)
			}
			tracks, err := store.Tracks(cmd.Context(), id)
			if err != nil {
				return err
			}
			mismatches, err := store.Mismatches(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:     %s\n", session.ID)
			fmt.Fprintf(out, "Status:      %s\n", session.Status)
			fmt.Fprintf(out, "Fingerprint: %s\n", session.Fingerprint)
			fmt.Fprintf(out, "Device:      %s\n", session.Device)
			fmt.Fprintf(out, "Started:     %s\n", formatTime(session.StartedAt))
			if !session.FinishedAt.IsZero() {
				fmt.Fprintf(out, "Finished:    %s\n", formatTime(session.FinishedAt))
			}

			rows := make([][]string, 0, len(tracks))
			for _, rec := range tracks {
				crc := ""
				if rec.HasCRC {
					crc = ripping.Integrity{CRC32: rec.CRC32}.CRC32Hex()
				}
				rows = append(rows, []string{
					trackLabel(rec.Track),
					rec.Outcome,
					fmt.Sprint(rec.Trials),
					fmt.Sprint(rec.Corrected),
					fmt.Sprint(len(rec.Unresolved)),
					crc,
					rec.MD5,
					rec.Error,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Track", "Outcome", "Trials", "Corrected", "Unresolved", "CRC32", "MD5", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))

			if len(mismatches) == 0 {
				return nil
			}
			reports := make([][]string, 0, len(mismatches))
			for _, m := range mismatches {
				kind := "round"
				if m.Final {
					kind = "final"
				}
				reports = append(reports, []string{
					trackLabel(m.Track),
					fmt.Sprint(m.Trial),
					kind,
					fmt.Sprint(len(m.Sectors)),
					strings.Join(sector.CDDA.Timestamps(m.Sectors), " "),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Track", "Trial", "Report", "Sectors", "Positions"},
				reports,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
			))
			return nil
		},
	}
}

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Paths.HistoryDB == "" {
		return nil, services.Wrap(services.ErrConfiguration, "history", "open",
			"session history is disabled; set paths.history_db", nil)
	}
	return history.Open(cfg.Paths.HistoryDB)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(historyTimeLayout)
}
