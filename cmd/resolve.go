package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/walter/stb/internal/client"
	"github.com/walter/stb/internal/output"
	"github.com/walter/stb/internal/tui/resolve"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <local_store>",
	Short: "Interactively resolve conflicted rows",
	Long: `Opens a picker over the conflicted rows. For each one, keep the local
record or take the server's; skipped rows stay conflicted. Applied
choices fold the server version into the row so the next push can
submit it.

Examples:
  stb resolve people.xml`,
	GroupID: "sync",
	Args:    cobra.ExactArgs(1),
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
		handles, err := tbl.Conflicts()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if len(handles) == 0 {
			output.Info("no conflicts")
			return nil
		}

		items, err := conflictItems(tbl, records, handles)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		p := tea.NewProgram(resolve.NewModel(items), tea.WithAltScreen())
		final, err := p.Run()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		m, ok := final.(resolve.Model)
		if !ok || !m.Accepted() {
			output.Info("aborted, nothing changed")
			return nil
		}

		resolved, err := applyResolutions(tbl, records, handles, m.Items)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if resolved == 0 {
			output.Info("nothing resolved")
			return nil
		}

		if err := tbl.Save(); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("%d %s resolved", resolved, pluralConflicts(resolved))
		fmt.Printf("Run \"stb push %s\" to submit the merged rows.\n", args[0])
		return nil
	},
}

// conflictItems pairs each conflict handle with the snapshot record at
// its position.
func conflictItems(tbl *client.Table, records [][]string, handles []*client.Conflict) ([]resolve.Item, error) {
	items := make([]resolve.Item, 0, len(handles))
	for _, h := range handles {
		if h.Index() < 0 || h.Index() >= len(records) {
			return nil, fmt.Errorf("conflict for row %d points outside the snapshot", h.ID())
		}
		local := tbl.Store().Row(h.ID())
		if local == nil {
			return nil, fmt.Errorf("conflict for unknown row %d", h.ID())
		}
		server, err := h.Row()
		if err != nil {
			return nil, fmt.Errorf("conflict row %d: %w", h.ID(), err)
		}
		items = append(items, resolve.Item{
			ID:            h.ID(),
			Index:         h.Index(),
			LocalVersion:  local.Version,
			ServerVersion: h.Version(),
			Local:         records[h.Index()],
			Server:        server,
		})
	}
	return items, nil
}

// applyResolutions folds the accepted choices into the table. Rows with
// a choice are resolved to the server's version number; "take server"
// additionally replaces the record text. The whole snapshot is then
// rewritten so the store picks up the changes.
func applyResolutions(tbl *client.Table, records [][]string, handles []*client.Conflict, items []resolve.Item) (int, error) {
	byIndex := make(map[int]*client.Conflict, len(handles))
	for _, h := range handles {
		byIndex[h.Index()] = h
	}

	resolved := 0
	for _, it := range items {
		if it.Choice == resolve.ChoiceSkip {
			continue
		}
		h := byIndex[it.Index]
		if h == nil {
			return 0, fmt.Errorf("no conflict at snapshot position %d", it.Index)
		}
		h.Resolve()
		if it.Choice == resolve.ChoiceServer {
			records[it.Index] = it.Server
		}
		resolved++
	}
	if resolved == 0 {
		return 0, nil
	}

	w, err := tbl.Writer()
	if err != nil {
		return 0, err
	}
	if err := w.WriteAll(records); err != nil {
		return 0, err
	}
	return resolved, nil
}

func pluralConflicts(n int) string {
	if n == 1 {
		return "conflict"
	}
	return "conflicts"
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
