package resolve

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// renderView draws the full picker screen.
func (m Model) renderView() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Resolve conflicts"))
	sb.WriteString(subtleStyle.Render(fmt.Sprintf("  %d conflicted %s", len(m.Items), plural(len(m.Items)))))
	sb.WriteString("\n\n")

	for i, item := range m.Items {
		sb.WriteString(m.renderItem(i, item))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(helpLine()))
	sb.WriteString("\n")

	return sb.String()
}

// helpLine builds the footer from the picker keybindings.
func helpLine() string {
	bindings := []key.Binding{keys.Local, keys.Server, keys.Skip, keys.Down, keys.Apply, keys.Abort}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, "  ")
}

// renderItem draws one conflict with its local and server records.
func (m Model) renderItem(i int, item Item) string {
	cursor := "  "
	if i == m.cursor {
		cursor = cursorStyle.Render("> ")
	}

	head := conflictStyle.Render(fmt.Sprintf("row %d", item.ID)) +
		subtleStyle.Render(fmt.Sprintf("  local v%d vs server v%d  ", item.LocalVersion, item.ServerVersion)) +
		formatChoice(item.Choice)

	local := fmt.Sprintf("    %s %s", localBadge.Render("local :"), m.record(item.Local))
	server := fmt.Sprintf("    %s %s", serverBadge.Render("server:"), m.record(item.Server))

	return cursor + head + "\n" + local + "\n" + server + "\n"
}

// record renders a CSV record on one line, truncated to the window.
func (m Model) record(fields []string) string {
	s := strings.Join(fields, " | ")
	max := m.Width - 14
	if max <= 0 {
		max = 66
	}
	runes := []rune(s)
	if len(runes) > max && max > 1 {
		s = string(runes[:max-1]) + "…"
	}
	return s
}

func plural(n int) string {
	if n == 1 {
		return "row"
	}
	return "rows"
}
