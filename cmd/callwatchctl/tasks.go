package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/callwatchio/callwatch/internal/types"
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List follow-up tasks",
		Long: `List the follow-up tasks attached to leads.

Examples:
  callwatchctl tasks
  callwatchctl tasks add --lead 3 "Send proposal"`,
		RunE: runTasks,
	}

	cmd.AddCommand(tasksAddCmd())
	return cmd
}

func runTasks(cmd *cobra.Command, args []string) error {
	st, err := getStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	tasks, err := st.ListTasks(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	result := TasksResult{Total: len(tasks)}
	for _, t := range tasks {
		result.Tasks = append(result.Tasks, TaskInfo{
			ID:       t.ID,
			Task:     t.Task,
			LeadID:   t.LeadID,
			Priority: t.Priority,
			IsDone:   t.IsDone,
		})
	}

	return outputResult(result, outputFmt)
}

func tasksAddCmd() *cobra.Command {
	var (
		leadID   int64
		priority string
	)

	cmd := &cobra.Command{
		Use:   "add <task text>",
		Short: "Add a follow-up task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := getStore()
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}

			text := strings.Join(args, " ")
			id, err := st.InsertTask(context.Background(), types.Task{
				Task:     text,
				LeadID:   leadID,
				Priority: priority,
			})
			if err != nil {
				return fmt.Errorf("failed to insert task: %w", err)
			}

			return outputResult(TaskInfo{
				ID:       id,
				Task:     text,
				LeadID:   leadID,
				Priority: priority,
			}, outputFmt)
		},
	}

	cmd.Flags().Int64Var(&leadID, "lead", 0, "Lead id the task belongs to")
	cmd.Flags().StringVar(&priority, "priority", "normal", "Task priority")

	return cmd
}
