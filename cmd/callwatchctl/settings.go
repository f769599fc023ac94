package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write runtime settings",
		Long: `Read and write the key/value settings the daemon consults at
runtime, such as the auto-reply policy.

Examples:
  callwatchctl settings get auto_messages_enabled
  callwatchctl settings set auto_messages_enabled true
  callwatchctl settings set auto_message_text "On a call, back shortly."`,
	}

	cmd.AddCommand(settingsGetCmd())
	cmd.AddCommand(settingsSetCmd())
	return cmd
}

func settingsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := getStore()
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}

			value := st.GetSetting(context.Background(), args[0], "")
			return outputResult(SettingResult{Key: args[0], Value: value}, outputFmt)
		},
	}
}

func settingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := getStore()
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}

			if err := st.SetSetting(context.Background(), args[0], args[1]); err != nil {
				return fmt.Errorf("failed to write setting: %w", err)
			}
			return outputResult(SettingResult{Key: args[0], Value: args[1]}, outputFmt)
		},
	}
}
