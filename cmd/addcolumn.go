package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/walter/stb/internal/output"
)

var addColumnCmd = &cobra.Command{
	Use:   "add-column <local_store> <after_column> <new_column>",
	Short: "Insert a CSV column after an existing one",
	Long: `Inserts a new column into the header row and an empty field into every
local row, synced, conflicted and pending alike. Rows are not marked
modified; the server side must apply the same change with
"stb-server admin add-column" before the next sync.

Examples:
  stb add-column people.xml Name Email`,
	GroupID: "data",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl, err := openTable(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer tbl.Close()

		if err := tbl.AddColumn(args[1], args[2]); err != nil {
			output.Error("%v", err)
			return err
		}
		if err := tbl.Save(); err != nil {
			output.Error("%v", err)
			return err
		}

		output.Success("column %q added after %q", args[2], args[1])
		fmt.Println("Apply the same change on the server before the next sync.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addColumnCmd)
}
