package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mfaraco/nexscan"
	"github.com/mfaraco/nexscan/internal/output"
	"github.com/mfaraco/nexscan/internal/types"
)

var flagFailOn string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan all hosted repositories once",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&flagFailOn, "fail-on", "", "Exit with code 1 if findings at or above this severity (critical, high, medium, low)")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := contextWithInterrupt()
	defer cancel()

	result, err := nexscan.Run(ctx, cfg, newLogger())
	if err != nil {
		return err
	}

	if err := writeOutput(cfg.Format, result); err != nil {
		return err
	}
	return checkFailOnThreshold(result)
}

func loadConfig() (nexscan.Config, error) {
	cfg, err := nexscan.LoadConfig(flagConfig)
	if err != nil {
		return nexscan.Config{}, err
	}
	if flagFormat != "" {
		cfg.Format = flagFormat
	}
	if flagDebug {
		cfg.Debug = true
	}
	return cfg, nil
}

func writeOutput(format string, result *nexscan.Result) error {
	f, err := output.New(format)
	if err != nil {
		return err
	}
	if tf, ok := f.(*output.TerminalFormatter); ok {
		tf.NoColor = flagNoColor || flagOutput != ""
	}

	var w io.Writer = os.Stdout
	if flagOutput != "" {
		file, err := os.Create(flagOutput)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer file.Close()
		w = file
	}
	return f.Format(w, result)
}

func checkFailOnThreshold(result *nexscan.Result) error {
	if flagFailOn == "" {
		return nil
	}
	threshold, err := types.ParseSeverity(flagFailOn)
	if err != nil {
		return fmt.Errorf("invalid --fail-on: %w", err)
	}
	for _, rec := range result.Records {
		if rec.Severity >= threshold {
			return fmt.Errorf("found vulnerabilities at or above %s", threshold)
		}
	}
	return nil
}

func contextWithInterrupt() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
