package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagFormat  string
	flagOutput  string
	flagNoColor bool
	flagDebug   bool
)

var rootCmd = &cobra.Command{
	Use:   "nexscan",
	Short: "Vulnerability scanner for Nexus artifact repositories",
	Long:  `Nexscan walks every hosted repository of a Nexus server, classifies each asset, and scans it with Trivy, producing normalized vulnerability records and per-repository statistics.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", ".", "Directory containing .nexscan.yml")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "", "Output format (terminal, json, csv); overrides config")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "Output file path (default: stdout)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Verbose logging and unquieted engine output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
