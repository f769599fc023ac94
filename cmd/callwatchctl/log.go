package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func logCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the communication log",
		Long: `Show the most recent communication log entries, newest first.

Examples:
  # Show the last 50 entries
  callwatchctl log

  # Show the last 10 entries as JSON
  callwatchctl log --limit 10 -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := getStore()
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}

			comms, err := st.ListCommunications(context.Background(), limit)
			if err != nil {
				return fmt.Errorf("failed to list communications: %w", err)
			}

			result := CommLogResult{Total: len(comms)}
			for _, c := range comms {
				result.Communications = append(result.Communications, CommInfo{
					LeadID:    c.LeadID,
					Type:      string(c.Type),
					Direction: string(c.Direction),
					Recipient: c.Recipient,
					Body:      c.Body,
					Status:    c.Status,
					Timestamp: formatTime(c.Timestamp),
				})
			}

			return outputResult(result, outputFmt)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries to show")

	return cmd
}
