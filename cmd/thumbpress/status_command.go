package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"thumbpress/internal/deps"
	"thumbpress/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and filesystem health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			out := cmd.OutOrStdout()

			daemonState := "not running"
			if ctx.daemonReachable() {
				var health struct {
					Status  string `json:"status"`
					Running bool   `json:"running"`
				}
				if err := ctx.adminGet("/health", &health); err == nil && health.Running {
					daemonState = fmt.Sprintf("running (%s)", cfg.Paths.HealthBind)
				}
			}
			fmt.Fprintf(out, "Daemon: %s\n\n", daemonState)

			checks := preflight.RunAll(cmd.Context(), cfg)
			checkRows := make([][]string, 0, len(checks))
			for _, check := range checks {
				state := "FAIL"
				if check.Passed {
					state = "ok"
				}
				checkRows = append(checkRows, []string{check.Name, state, check.Detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Check", "State", "Detail"},
				checkRows,
			))

			binaries := preflight.CheckSystemDeps(cfg)
			binaryRows := make([][]string, 0, len(binaries))
			for _, status := range binaries {
				state := "missing"
				location := status.Command
				if status.Available {
					state = "ok"
					location = status.Path
					if version := deps.BinaryVersion(cmd.Context(), status.Command); version != "" {
						state = version
					}
				} else if status.Optional {
					state = "missing (optional)"
				}
				binaryRows = append(binaryRows, []string{status.Name, location, state})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Binary", "Command", "State"},
				binaryRows,
			))
			return nil
		},
	}
}
