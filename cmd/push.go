package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/walter/stb/internal/output"
)

var pushCmd = &cobra.Command{
	Use:   "push <local_store>",
	Short: "Submit local edits and new rows to the server",
	Long: `Uploads modified and newly added rows. Edits the server accepted are
marked synced; edits it rejected stay modified and will come back as
conflicts on the next pull.

Examples:
  stb push people.xml`,
	GroupID: "sync",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl, err := openTable(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer tbl.Close()

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
		if stats.Conflicts > 0 {
			output.Warning("run \"stb pull %s\" to fetch the winning versions", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
}
