package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"thumbpress/internal/duration"
	"thumbpress/internal/entitlement"
	"thumbpress/internal/logging"
)

func newGenkeyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "genkey <duration>",
		Short: "Generate a single-use access key (e.g. 12h, 30d)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			durationText := args[0]
			if _, err := duration.Parse(durationText); err != nil {
				return err
			}

			// Route through the daemon when one is running so its in-memory
			// state and the JSON document stay consistent.
			if ctx.daemonReachable() {
				var reply struct {
					Key string `json:"key"`
				}
				err := ctx.adminPost("/api/keys", map[string]string{"duration": durationText}, &reply)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), reply.Key)
				return nil
			}

			cfg := ctx.configValue()
			store, err := entitlement.Open(cfg.Paths.DatabasePath, logging.NewNop())
			if err != nil {
				return err
			}
			seconds, err := duration.Parse(durationText)
			if err != nil {
				return err
			}
			key, err := store.CreateAuthKey(seconds)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newKeysCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List generated access keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries, err := loadKeySummaries(ctx)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No keys generated yet.")
				return nil
			}

			rows := make([][]string, 0, len(summaries))
			for _, key := range summaries {
				usedBy := "-"
				if key.UsedBy != nil {
					usedBy = fmt.Sprintf("%d", *key.UsedBy)
				}
				rows = append(rows, []string{
					key.Key,
					duration.Format(key.DurationSeconds),
					key.CreatedAt.Local().Format("2006-01-02 15:04"),
					yesNo(key.Used),
					usedBy,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Key", "Duration", "Created", "Used", "Used By"},
				rows,
				4,
			))
			return nil
		},
	}
}

func loadKeySummaries(ctx *commandContext) ([]entitlement.KeySummary, error) {
	if ctx.daemonReachable() {
		var views []struct {
			Key             string `json:"key"`
			DurationSeconds int64  `json:"duration_seconds"`
			CreatedAt       string `json:"created_at"`
			Used            bool   `json:"used"`
			UsedBy          int64  `json:"used_by"`
		}
		if err := ctx.adminGet("/api/keys", &views); err != nil {
			return nil, err
		}
		summaries := make([]entitlement.KeySummary, 0, len(views))
		for _, view := range views {
			summary := entitlement.KeySummary{
				Key:             view.Key,
				DurationSeconds: view.DurationSeconds,
				Used:            view.Used,
			}
			if ts, err := time.Parse(time.RFC3339, view.CreatedAt); err == nil {
				summary.CreatedAt = ts
			}
			if view.UsedBy != 0 {
				usedBy := view.UsedBy
				summary.UsedBy = &usedBy
			}
			summaries = append(summaries, summary)
		}
		return summaries, nil
	}

	cfg := ctx.configValue()
	store, err := entitlement.Open(cfg.Paths.DatabasePath, logging.NewNop())
	if err != nil {
		return nil, err
	}
	return store.ListKeys(), nil
}
