package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/callwatchio/callwatch/internal/resolver"
	"github.com/callwatchio/callwatch/internal/types"
)

func leadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List saved leads",
		Long: `List every lead in the database.

Examples:
  # List leads
  callwatchctl leads

  # Output as JSON
  callwatchctl leads -o json`,
		RunE: runLeads,
	}

	cmd.AddCommand(leadsAddCmd())
	cmd.AddCommand(leadsShowCmd())
	return cmd
}

func runLeads(cmd *cobra.Command, args []string) error {
	st, err := getStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	leads, err := st.ListLeads(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list leads: %w", err)
	}

	result := LeadsResult{Total: len(leads)}
	for _, l := range leads {
		result.Leads = append(result.Leads, LeadInfo{
			ID:          l.ID,
			Name:        l.Name,
			PhoneNumber: l.PhoneNumber,
			Email:       l.Email,
			Category:    l.Category,
			Status:      l.Status,
			IsVIP:       l.IsVIP,
			CreatedAt:   formatTime(l.CreatedAt),
		})
	}

	return outputResult(result, outputFmt)
}

func leadsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid lead id %q", args[0])
			}

			st, err := getStore()
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}

			lead, err := st.GetLead(context.Background(), id)
			if err != nil {
				return fmt.Errorf("failed to get lead %d: %w", id, err)
			}

			return outputResult(LeadInfo{
				ID:          lead.ID,
				Name:        lead.Name,
				PhoneNumber: lead.PhoneNumber,
				Email:       lead.Email,
				Category:    lead.Category,
				Status:      lead.Status,
				IsVIP:       lead.IsVIP,
				CreatedAt:   formatTime(lead.CreatedAt),
			}, outputFmt)
		},
	}
}

func leadsAddCmd() *cobra.Command {
	var (
		name     string
		phone    string
		email    string
		category string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a lead",
		Long: `Add a lead to the database.

Examples:
  callwatchctl leads add --name "Ada Lovelace" --phone "+1 555 0100" --category Client`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || phone == "" {
				return fmt.Errorf("--name and --phone are required")
			}
			if !resolver.Valid(phone) {
				return fmt.Errorf("phone number %q has fewer than %d digits", phone, resolver.MinDigits)
			}

			st, err := getStore()
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}

			id, err := st.InsertLead(context.Background(), types.CallerRecord{
				Name:        name,
				PhoneNumber: phone,
				Email:       email,
				Category:    category,
				Status:      "New",
			})
			if err != nil {
				return fmt.Errorf("failed to insert lead: %w", err)
			}

			return outputResult(LeadInfo{
				ID:          id,
				Name:        name,
				PhoneNumber: phone,
				Email:       email,
				Category:    category,
				Status:      "New",
			}, outputFmt)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Lead name (required)")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&category, "category", "General", "Category label")

	return cmd
}
