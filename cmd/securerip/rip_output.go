package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"

	"securerip/internal/disc"
	"securerip/internal/ripping"
	"securerip/internal/sector"
)

// maxListedSectors caps the positions printed per degraded track.
const maxListedSectors = 12

func trackLabel(track int) string {
	if track == disc.ImageTrack {
		return "image"
	}
	return fmt.Sprintf("%02d", track)
}

func renderRipSummary(out io.Writer, summary *ripSummary, colorize bool) {
	if summary == nil {
		return
	}
	rows := make([][]string, 0, len(summary.results))
	for _, res := range summary.results {
		row := []string{
			trackLabel(res.Track),
			outcomeLabel(res.Outcome, colorize),
			fmt.Sprint(res.Trials),
			fmt.Sprint(len(res.Corrected)),
			fmt.Sprint(len(res.Unresolved)),
			"",
			"",
			"",
			groupInt(summary.toc.ExpectedByteLength(res.Track)),
		}
		if res.Outcome != ripping.OutcomeCancelled {
			row[5] = fmt.Sprintf("%.1f%%", res.Integrity.PeakPercent)
			row[6] = res.Integrity.CRC32Hex()
			row[7] = res.Integrity.MD5
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Track", "Outcome", "Trials", "Corrected", "Unresolved", "Peak", "CRC32", "MD5", "Bytes"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft, alignRight},
	))

	for _, res := range summary.results {
		if len(res.Unresolved) == 0 {
			continue
		}
		stamps := sector.CDDA.Timestamps(res.Unresolved)
		listed := stamps
		if len(listed) > maxListedSectors {
			listed = listed[:maxListedSectors]
		}
		line := fmt.Sprintf("Track %s: %d unresolved sectors at %s", trackLabel(res.Track), len(stamps), strings.Join(listed, ", "))
		if extra := len(stamps) - len(listed); extra > 0 {
			line += fmt.Sprintf(" and %d more", extra)
		}
		fmt.Fprintln(out, paint(line, colorize, text.FgYellow))
	}

	fmt.Fprintf(out, "Session:     %s\n", summary.sessionID)
	fmt.Fprintf(out, "Fingerprint: %s\n", summary.fingerprint)
	fmt.Fprintf(out, "Output:      %s\n", summary.outputDir)
	if summary.cancelled {
		fmt.Fprintln(out, paint("Rip cancelled; the interrupted track stays in the work directory.", colorize, text.FgRed))
	}
}

func outcomeLabel(outcome ripping.Outcome, colorize bool) string {
	switch outcome {
	case ripping.OutcomeAccepted:
		return paint(string(outcome), colorize, text.FgGreen)
	case ripping.OutcomeDegraded:
		return paint(string(outcome), colorize, text.FgYellow)
	case ripping.OutcomeCancelled:
		return paint(string(outcome), colorize, text.FgRed)
	default:
		return string(outcome)
	}
}
