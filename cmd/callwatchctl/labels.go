package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func labelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "List lead category labels",
		Long: `List the category labels offered on the new-contact form.

Falls back to the built-in defaults when the labels table is empty.

Examples:
  callwatchctl labels`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := getStore()
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}

			labels := st.ListLabels(context.Background())
			return outputResult(LabelsResult{Labels: labels}, outputFmt)
		},
	}

	return cmd
}
