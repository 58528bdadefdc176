package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/walter/stb/internal/output"
)

var syncCmd = &cobra.Command{
	Use:   "sync <local_store>",
	Short: "Pull then push in one step",
	Long: `Reconciles the local store with the server: first pulls the server's
changes, then pushes local edits. Each phase is saved as soon as it
completes, so a failed push never loses pulled rows.

Examples:
  stb sync people.xml`,
	GroupID: "sync",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl, err := openTable(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer tbl.Close()

		changes, conflicts, err := tbl.Pull()
		if err != nil {
			reportSyncError(err)
			return err
		}
		if err := tbl.Save(); err != nil {
			output.Error("%v", err)
			return err
		}
		fmt.Println(output.PullSummary(changes, conflicts))

		stats, err := tbl.Push()
		if err != nil {
			reportSyncError(err)
			return err
		}
		if err := tbl.Save(); err != nil {
			output.Error("%v", err)
			return err
		}
		fmt.Println(output.PushSummary(stats.Submitted, stats.Accepted, stats.Conflicts))

		if n := conflicts + stats.Conflicts; n > 0 {
			output.Warning("run \"stb resolve %s\" to settle conflicted rows", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
