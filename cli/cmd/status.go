package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vippsas/kqlcore/schedule"
)

// statusCmd prints the resource_usage() snapshot (spec §4.7) a freshly
// constructed scheduler reports for the current config: with no queries in
// flight in a one-shot CLI process this is mostly a config sanity check
// (effective per-priority caps, memory ceiling), not a live picture of a
// running server's queue.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the scheduler's resource usage snapshot for the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadEngineConfig()
		if err != nil {
			return err
		}

		sched := schedule.New(cfg.SchedulerConfig(), logrus.StandardLogger())
		defer sched.Close()

		snap := sched.Snapshot()
		fmt.Printf("health:            %s\n", snap.Health)
		fmt.Printf("memory:            %d / %d bytes\n", snap.CurrentMemory, snap.MemLimit)
		fmt.Printf("active by priority: critical=%d high=%d normal=%d low=%d\n",
			snap.ActiveByPriority[schedule.Critical], snap.ActiveByPriority[schedule.High],
			snap.ActiveByPriority[schedule.Normal], snap.ActiveByPriority[schedule.Low])
		fmt.Printf("queued by priority: critical=%d high=%d normal=%d low=%d\n",
			snap.QueuedByPriority[schedule.Critical], snap.QueuedByPriority[schedule.High],
			snap.QueuedByPriority[schedule.Normal], snap.QueuedByPriority[schedule.Low])
		fmt.Printf("avg queue wait:    %s\n", snap.AvgQueueWait)
		fmt.Printf("completed:         %d\n", snap.Completed)
		fmt.Printf("failed:            %d\n", snap.Failed)
		fmt.Printf("cancelled:         %d\n", snap.Cancelled)
		fmt.Printf("timed out (exec):  %d\n", snap.TimedOut)
		fmt.Printf("timed out (queue): %d\n", snap.QueueTimedOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
