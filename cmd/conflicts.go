package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/walter/stb/internal/localstore"
	"github.com/walter/stb/internal/output"
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts <local_store>",
	Short: "List open conflicts with both versions",
	Long: `Shows every conflicted row side by side: the locally edited record and
the record the server holds.

Examples:
  stb conflicts people.xml`,
	GroupID: "store",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := localstore.Open(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer store.Close()

		conflicts := store.Conflicts()
		if len(conflicts) == 0 {
			output.Info("no conflicts")
			return nil
		}

		width := output.TerminalWidth(80)
		for _, c := range conflicts {
			local := store.Row(c.ID)
			if local == nil {
				// A conflict without its synced row means the store file
				// was edited by hand; report it rather than crash.
				output.Warning("conflict for unknown row %d", c.ID)
				continue
			}
			fmt.Println(output.ConflictHeading(c.ID, local.Version, c.Version))
			fmt.Printf("  local : %s\n", output.Truncate(local.Data, width-10))
			fmt.Printf("  server: %s\n", output.Truncate(c.Data, width-10))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(conflictsCmd)
}
