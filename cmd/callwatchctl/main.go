// callwatchctl is a CLI tool for inspecting the callwatch database.
//
// Installation:
//
//	go build -o callwatchctl ./cmd/callwatchctl
//	mv callwatchctl /usr/local/bin/
//
// Usage:
//
//	callwatchctl leads
//	callwatchctl log --limit 20
//	callwatchctl labels
//	callwatchctl tasks add --lead 3 "Send proposal"
//	callwatchctl settings set auto_messages_enabled true
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/callwatchio/callwatch/internal/store"
)

var (
	version   = "dev"
	outputFmt string
	dbPath    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "callwatchctl",
		Short: "Inspect and edit the callwatch call database",
		Long: `callwatchctl reads and writes the SQLite database shared between
callwatchd and the host application: leads, the communication log,
category labels, follow-up tasks and runtime settings.`,
		Version: version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "callwatch.db", "Path to the SQLite database")

	// Add subcommands
	rootCmd.AddCommand(leadsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(labelsCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(settingsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getStoreFunc is the function used to open the store. It can be overridden
// in tests to inject a temp database.
var getStoreFunc = defaultGetStore

func getStore() (*store.Store, error) {
	return getStoreFunc()
}

func defaultGetStore() (*store.Store, error) {
	return store.New(dbPath, zap.NewNop())
}
