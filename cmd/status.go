package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/walter/stb/internal/localstore"
	"github.com/walter/stb/internal/output"
)

var statusCmd = &cobra.Command{
	Use:     "status <local_store>",
	Aliases: []string{"st"},
	Short:   "Show the local store and what a push would submit",
	Long: `Prints the repository coordinates, the sync cursor and the row counts,
then lists everything push would send: modified rows (*), pending new
rows (+) and open conflicts (!).

Examples:
  stb status people.xml
  stb status people.xml --all   # list unmodified rows too`,
	GroupID: "store",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := localstore.Open(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer store.Close()

		all, _ := cmd.Flags().GetBool("all")
		printStatus(store, all)
		return nil
	},
}

// printStatus renders the store summary. With all set, unmodified rows
// are listed as well.
func printStatus(store *localstore.Store, all bool) {
	width := output.TerminalWidth(80)

	fmt.Println(output.Title(store.Path()))
	fmt.Println(output.Subtle(fmt.Sprintf("%s  %s@%s  pulled v%d",
		store.Repository.URL,
		store.Repository.Username,
		store.Repository.Realm,
		store.Repository.PulledVersion)))

	rows := store.Rows()
	conflicts := store.Conflicts()
	pending := store.Pending()

	modified := 0
	for _, r := range rows {
		if r.Modified {
			modified++
		}
	}
	fmt.Printf("%d rows (%d modified), %d conflicts, %d pending\n",
		len(rows), modified, len(conflicts), len(pending))

	listed := 0
	for _, r := range rows {
		if !all && !r.Modified {
			continue
		}
		if listed == 0 {
			fmt.Print(output.SectionHeader("rows"))
		}
		conflicted := store.Conflict(r.ID) != nil
		fmt.Println(output.RowLine(r.ID, r.Version, r.Modified, conflicted, output.Truncate(r.Data, width-14)))
		listed++
	}

	if len(pending) > 0 {
		fmt.Print(output.SectionHeader("pending"))
		for _, n := range pending {
			fmt.Println(output.PendingLine(output.Truncate(n.Data, width-14)))
		}
	}

	if len(conflicts) > 0 {
		fmt.Print(output.SectionHeader("conflicts"))
		for _, c := range conflicts {
			local := store.Row(c.ID)
			if local == nil {
				continue
			}
			fmt.Println(output.ConflictHeading(c.ID, local.Version, c.Version))
		}
		fmt.Println()
		output.Warning("resolve conflicts before they pile up: stb resolve %s", store.Path())
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Bool("all", false, "List unmodified rows too")
}
