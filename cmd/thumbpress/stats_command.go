package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"thumbpress/internal/entitlement"
	"thumbpress/internal/logging"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show global usage counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats entitlement.Stats
			if ctx.daemonReachable() {
				var payload struct {
					TotalUsers         int64 `json:"total_users"`
					TotalVideos        int64 `json:"total_videos"`
					TotalKeysGenerated int64 `json:"total_keys_generated"`
				}
				if err := ctx.adminGet("/api/stats", &payload); err != nil {
					return err
				}
				stats = entitlement.Stats{
					TotalUsers:         payload.TotalUsers,
					TotalVideos:        payload.TotalVideos,
					TotalKeysGenerated: payload.TotalKeysGenerated,
				}
			} else {
				cfg := ctx.configValue()
				store, err := entitlement.Open(cfg.Paths.DatabasePath, logging.NewNop())
				if err != nil {
					return err
				}
				stats = store.GetStats()
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Metric", "Value"},
				[][]string{
					{"Total users", fmt.Sprintf("%d", stats.TotalUsers)},
					{"Videos processed", fmt.Sprintf("%d", stats.TotalVideos)},
					{"Keys generated", fmt.Sprintf("%d", stats.TotalKeysGenerated)},
				},
				1,
			))
			return nil
		},
	}
}
