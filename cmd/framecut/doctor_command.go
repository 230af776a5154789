package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"framecut/internal/deps"
	"framecut/internal/preflight"
	"framecut/internal/services"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external binaries and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			depRows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				detail := s.Version
				if !s.Available || detail == "" {
					detail = s.Detail
				}
				depRows = append(depRows, []string{s.Name, yesNo(s.Available), s.Command, detail})
			}
			fmt.Fprintln(out, renderTable("Dependencies", []string{"Name", "Available", "Command", "Detail"}, depRows, nil))

			results := preflight.RunAll(cmd.Context(), cfg)
			checkRows := make([][]string, 0, len(results))
			for _, r := range results {
				checkRows = append(checkRows, []string{r.Name, yesNo(r.Passed), r.Detail})
			}
			fmt.Fprintln(out, renderTable("Checks", []string{"Check", "Passed", "Detail"}, checkRows, nil))

			if missing := deps.Missing(statuses); len(missing) > 0 {
				return services.Wrap(services.ErrExternalTool, "doctor", "dependencies",
					fmt.Sprintf("%d required binaries unavailable", len(missing)), nil)
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return services.Wrap(services.ErrConfiguration, "doctor", "checks",
					fmt.Sprintf("%d checks failed", len(failed)), nil)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
