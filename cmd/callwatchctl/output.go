package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// LeadInfo represents a lead in list results.
type LeadInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email,omitempty"`
	Category    string `json:"category,omitempty"`
	Status      string `json:"status,omitempty"`
	IsVIP       bool   `json:"isVip,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// LeadsResult is the result of the leads command.
type LeadsResult struct {
	Leads []LeadInfo `json:"leads"`
	Total int        `json:"total"`
}

// CommInfo represents a communication log entry.
type CommInfo struct {
	LeadID    int64  `json:"leadId"`
	Type      string `json:"type"`
	Direction string `json:"direction"`
	Recipient string `json:"recipient"`
	Body      string `json:"body,omitempty"`
	Status    string `json:"status,omitempty"`
	Timestamp string `json:"timestamp"`
}

// CommLogResult is the result of the log command.
type CommLogResult struct {
	Communications []CommInfo `json:"communications"`
	Total          int        `json:"total"`
}

// LabelsResult is the result of the labels command.
type LabelsResult struct {
	Labels []string `json:"labels"`
}

// TaskInfo represents a follow-up task.
type TaskInfo struct {
	ID       int64  `json:"id"`
	Task     string `json:"task"`
	LeadID   int64  `json:"leadId,omitempty"`
	Priority string `json:"priority,omitempty"`
	IsDone   bool   `json:"isDone"`
}

// TasksResult is the result of the tasks command.
type TasksResult struct {
	Tasks []TaskInfo `json:"tasks"`
	Total int        `json:"total"`
}

// SettingResult is the result of a settings get/set.
type SettingResult struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// outputResult outputs the result in the specified format.
func outputResult(result interface{}, format string) error {
	switch format {
	case "json":
		return outputJSON(result)
	case "yaml":
		return outputYAML(result)
	default:
		return outputTable(result)
	}
}

func outputJSON(result interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputYAML(result interface{}) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func outputTable(result interface{}) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch r := result.(type) {
	case LeadsResult:
		return outputLeadsTable(w, r)
	case CommLogResult:
		return outputCommLogTable(w, r)
	case LabelsResult:
		return outputLabelsTable(w, r)
	case TasksResult:
		return outputTasksTable(w, r)
	case SettingResult:
		fmt.Fprintf(w, "%s\t%s\n", r.Key, r.Value)
		return nil
	default:
		// Fall back to JSON for unknown types
		return outputJSON(result)
	}
}

func outputLeadsTable(w *tabwriter.Writer, r LeadsResult) error {
	fmt.Fprintf(w, "TOTAL\t%d\n\n", r.Total)
	fmt.Fprintln(w, "ID\tNAME\tPHONE\tCATEGORY\tSTATUS\tVIP")
	for _, l := range r.Leads {
		vip := ""
		if l.IsVIP {
			vip = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.Name, l.PhoneNumber, l.Category, l.Status, vip)
	}
	return nil
}

func outputCommLogTable(w *tabwriter.Writer, r CommLogResult) error {
	fmt.Fprintf(w, "TOTAL\t%d\n\n", r.Total)
	fmt.Fprintln(w, "TIMESTAMP\tTYPE\tDIRECTION\tRECIPIENT\tLEAD\tSTATUS")
	for _, c := range r.Communications {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			c.Timestamp, c.Type, c.Direction, c.Recipient, c.LeadID, c.Status)
	}
	return nil
}

func outputLabelsTable(w *tabwriter.Writer, r LabelsResult) error {
	fmt.Fprintln(w, "LABEL")
	for _, l := range r.Labels {
		fmt.Fprintf(w, "%s\n", l)
	}
	return nil
}

func outputTasksTable(w *tabwriter.Writer, r TasksResult) error {
	fmt.Fprintf(w, "TOTAL\t%d\n\n", r.Total)
	fmt.Fprintln(w, "ID\tTASK\tLEAD\tPRIORITY\tDONE")
	for _, t := range r.Tasks {
		done := ""
		if t.IsDone {
			done = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			t.ID, t.Task, t.LeadID, t.Priority, done)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
