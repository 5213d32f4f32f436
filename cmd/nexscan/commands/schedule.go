package commands

import (
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/mfaraco/nexscan"
)

var flagCron string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run recurring scans on a cron schedule",
	Long:  `Runs a full scan session on the given cron schedule until interrupted. Sessions never overlap: a tick that fires while a scan is still running is dropped.`,
	Args:  cobra.NoArgs,
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&flagCron, "cron", "0 2 * * *", "Cron expression (standard 5-field syntax)")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger()

	ctx, cancel := contextWithInterrupt()
	defer cancel()

	running := make(chan struct{}, 1)
	c := cron.New()
	_, err = c.AddFunc(flagCron, func() {
		select {
		case running <- struct{}{}:
			defer func() { <-running }()
		default:
			log.Warn("previous scan still running, skipping this tick")
			return
		}

		result, err := nexscan.Run(ctx, cfg, log)
		if err != nil {
			log.Error("scheduled scan failed", "err", err)
			return
		}
		if err := writeOutput(cfg.Format, result); err != nil {
			log.Error("writing scan output", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", flagCron, err)
	}

	fmt.Fprintf(os.Stderr, "scheduling scans: %s\n", flagCron)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
