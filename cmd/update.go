package cmd

import (
	"github.com/spf13/cobra"

	"github.com/walter/stb/internal/output"
)

var updateCmd = &cobra.Command{
	Use:   "update <local_store> <file>",
	Short: "Overwrite the local table from a CSV or Excel file",
	Long: `Rewrites the local table positionally from a .csv or .xlsx file: the
k-th file record replaces the k-th local row. Changed rows are marked
modified; records past the end of the table are appended as pending
new rows. The file must keep the row order of a previous export.

Examples:
  stb export people.xml people.csv   # edit people.csv, then:
  stb update people.xml people.csv`,
	GroupID: "data",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := readRecords(args[1])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		tbl, err := openTable(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer tbl.Close()

		// The snapshot fixes the positions the file records map onto.
		if _, err := tbl.Reader().ReadAll(); err != nil {
			output.Error("%v", err)
			return err
		}
		w, err := tbl.Writer()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := w.WriteAll(records); err != nil {
			output.Error("%v", err)
			return err
		}

		if err := tbl.Save(); err != nil {
			output.Error("%v", err)
			return err
		}

		output.Success("%d %s applied from %s", len(records), pluralRows(len(records)), args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
