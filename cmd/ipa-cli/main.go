package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configDir string
	queryID   string
)

var rootCmd = &cobra.Command{
	Use:   "ipa-cli",
	Short: "CLI for running OPRF IPA attribution queries",
	Long: `ipa-cli drives a three-helper IPA aggregation query locally: it
loads each helper's input stream and config, runs the query end to end,
and persists the resulting breakdown-key histogram for status/result to
read back.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

var startQueryCmd = &cobra.Command{
	Use:   "start-query",
	Short: "Run an IPA query and persist its result",
	RunE:  runStartQuery,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a query has completed",
	RunE:  runStatus,
}

var resultCmd = &cobra.Command{
	Use:   "result",
	Short: "Print a completed query's breakdown-key histogram",
	RunE:  runResult,
}

var (
	inputDir   string
	configPath string
	querySize  int
	resultFmt  string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "state-dir", "d", "./ipa-data", "Directory for persisted query state")
	rootCmd.PersistentFlags().StringVarP(&queryID, "query-id", "q", "", "Query identifier (required)")
	rootCmd.MarkPersistentFlagRequired("query-id")

	startQueryCmd.Flags().StringVar(&inputDir, "input-dir", "", "Directory containing h1.bin, h2.bin, h3.bin (required)")
	startQueryCmd.Flags().StringVar(&configPath, "config", "", "Path to IpaQueryConfig JSON (required)")
	startQueryCmd.Flags().IntVar(&querySize, "query-size", 0, "Truncate parsed input to this many rows (0 = no truncation)")
	startQueryCmd.MarkFlagRequired("input-dir")
	startQueryCmd.MarkFlagRequired("config")

	resultCmd.Flags().StringVar(&resultFmt, "format", "hex", "Output format: hex or decimal")

	rootCmd.AddCommand(startQueryCmd, statusCmd, resultCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}
