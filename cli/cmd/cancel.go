package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

// cancelCmd documents the scheduler's cancel primitive (spec §4.7). A
// one-shot CLI invocation never shares a Scheduler with any other running
// query, so there is nothing in this process to cancel; a long-lived
// server embedding execcore.Facade would call Facade.Cancel(id) on the
// same Facade that admitted the query.
var cancelCmd = &cobra.Command{
	Use:   "cancel <query-id>",
	Short: "Cancel a queued or running query (requires a long-lived server process)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			_ = cmd.Help()
			return errors.New("expected exactly one argument: the query id")
		}
		return errors.New("cancel has no effect from a one-shot CLI invocation: each `run` starts and tears down its own scheduler, so there is no in-process query left to cancel by the time this command runs; embed execcore.Facade in a long-lived process and call Facade.Cancel directly")
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
