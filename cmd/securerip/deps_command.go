package main

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"securerip/internal/deps"
	"securerip/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external binaries, directories and the drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			statuses := deps.Check(deps.Requirements(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, st := range statuses {
				state := paint("ok", colorize, text.FgGreen)
				detail := st.Path
				if !st.Available {
					detail = st.Detail
					state = paint("missing", colorize, text.FgRed)
					if st.Optional {
						state = paint("missing (optional)", colorize, text.FgYellow)
					}
				}
				rows = append(rows, []string{st.Name, st.Description, state, detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Binary", "Purpose", "Status", "Detail"}, rows, nil))

			checks := preflight.RunAll(cfg)
			checkRows := make([][]string, 0, len(checks))
			for _, check := range checks {
				state := paint("ok", colorize, text.FgGreen)
				if !check.Passed {
					state = paint("failed", colorize, text.FgRed)
				}
				checkRows = append(checkRows, []string{check.Name, state, check.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, checkRows, nil))
			return errors.Join(deps.Verify(statuses), preflight.Verify(checks))
		},
	}
}
