package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"thumbpress/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var userID int64
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently processed videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			ledger, err := history.Open(cfg.Paths.HistoryDBPath)
			if err != nil {
				return err
			}
			defer ledger.Close()

			var entries []history.Entry
			if userID != 0 {
				entries, err = ledger.ForUser(cmd.Context(), userID, limit)
			} else {
				entries, err = ledger.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No processed videos recorded.")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				backup := "-"
				if entry.BackupURL != "" {
					backup = entry.BackupURL
				}
				rows = append(rows, []string{
					entry.CreatedAt.Local().Format("2006-01-02 15:04"),
					fmt.Sprintf("%d", entry.UserID),
					entry.VideoName,
					yesNo(entry.Reencoded),
					(time.Duration(entry.DurationMS) * time.Millisecond).Round(time.Millisecond).String(),
					backup,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"When", "User", "Video", "Re-encoded", "Took", "Backup"},
				rows,
				1, 4,
			))
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "Only show entries for this user id")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to display")
	return cmd
}
