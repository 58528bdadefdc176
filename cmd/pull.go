package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/walter/stb/internal/client"
	"github.com/walter/stb/internal/output"
)

var pullCmd = &cobra.Command{
	Use:   "pull <local_store>",
	Short: "Fetch new row versions from the server",
	Long: `Downloads every row the server changed since the last pull and folds
it into the local store. Rows edited both locally and on the server
become conflicts.

Examples:
  stb pull people.xml`,
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
		if conflicts > 0 {
			output.Warning("run \"stb resolve %s\" to settle conflicted rows", args[0])
		}
		return nil
	},
}

// reportSyncError prints err with a hint when the failure is a table
// format mismatch rather than a transient one.
func reportSyncError(err error) {
	output.Error("%v", err)
	if errors.Is(err, client.ErrFormat) {
		fmt.Println("The local table format does not match the server's. Check --format.")
	}
}

func init() {
	rootCmd.AddCommand(pullCmd)
}
