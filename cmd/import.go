package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/walter/stb/internal/client"
	"github.com/walter/stb/internal/csvline"
	"github.com/walter/stb/internal/localstore"
	"github.com/walter/stb/internal/output"
)

var importCmd = &cobra.Command{
	Use:   "import <local_store> <file>",
	Short: "Append rows from a CSV or Excel file",
	Long: `Reads records from a .csv or .xlsx file and appends each one to the
local store as a pending new row. The rows are assigned ids by the
server on the next push.

Examples:
  stb import people.xml newhires.csv
  stb import people.xml newhires.xlsx`,
	GroupID: "data",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := readRecords(args[1])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		store, err := localstore.Open(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer store.Close()

		// In stbcsv the header row must exist before data rows can be
		// queued, or the server would assign a data row the header's id.
		if string(tableFormat) == client.FormatSTBCSV && store.Row(0) == nil {
			err := errors.New("table has no header row yet; pull or update it first")
			output.Error("%v", err)
			return err
		}

		for _, record := range records {
			line, err := csvline.Join(record)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			store.AddRow(line)
		}

		if err := store.Save(); err != nil {
			output.Error("%v", err)
			return err
		}

		output.Success("%d %s imported from %s", len(records), pluralRows(len(records)), args[1])
		return nil
	},
}

func pluralRows(n int) string {
	if n == 1 {
		return "row"
	}
	return "rows"
}

func init() {
	rootCmd.AddCommand(importCmd)
}
