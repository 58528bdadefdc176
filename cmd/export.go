package cmd

import (
	"github.com/spf13/cobra"

	"github.com/walter/stb/internal/output"
)

var exportCmd = &cobra.Command{
	Use:   "export <local_store> <file>",
	Short: "Write the local table to a CSV or Excel file",
	Long: `Writes the local view of the table, synced rows in id order followed by
pending new rows, to a .csv or .xlsx file. The local store itself is
left untouched.

Examples:
  stb export people.xml people.csv
  stb export people.xml report.xlsx`,
	GroupID: "data",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl, err := openTable(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer tbl.Close()

		records, err := tbl.Reader().ReadAll()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if err := writeRecords(args[1], records); err != nil {
			output.Error("%v", err)
			return err
		}

		output.Success("%d %s exported to %s", len(records), pluralRows(len(records)), args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
