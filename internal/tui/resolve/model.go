// Package resolve implements the interactive conflict picker behind
// "stb resolve". Each conflicted row is shown with its local and
// server records; the user decides per row to keep the local version,
// take the server's, or leave the conflict open.
package resolve

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// keyMap defines the picker keybindings.
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Local  key.Binding
	Server key.Binding
	Skip   key.Binding
	Apply  key.Binding
	Abort  key.Binding
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("j/k", "move")),
	Down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/k", "move")),
	Local:  key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "keep local")),
	Server: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "take server")),
	Skip:   key.NewBinding(key.WithKeys("x", " "), key.WithHelp("x", "skip")),
	Apply:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
	Abort:  key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "abort")),
}

// Choice is the user's decision for one conflicted row.
type Choice int

const (
	ChoiceSkip Choice = iota
	ChoiceLocal
	ChoiceServer
)

// Item is one conflict presented for resolution.
type Item struct {
	ID            int64
	Index         int // position in the table snapshot
	LocalVersion  int64
	ServerVersion int64
	Local         []string
	Server        []string
	Choice        Choice
}

// Model is the Bubble Tea model for the conflict picker.
type Model struct {
	Items []Item

	Width  int
	Height int

	cursor   int
	accepted bool
	aborted  bool
}

// NewModel creates a picker over the given conflicts.
func NewModel(items []Item) Model {
	return Model{Items: items}
}

// Accepted reports whether the user confirmed their choices.
func (m Model) Accepted() bool { return m.accepted }

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil
	}

	return m, nil
}

// handleKey processes key input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Abort):
		m.aborted = true
		return m, tea.Quit

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.Items)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, keys.Local):
		m.Items[m.cursor].Choice = ChoiceLocal
		return m.advance(), nil

	case key.Matches(msg, keys.Server):
		m.Items[m.cursor].Choice = ChoiceServer
		return m.advance(), nil

	case key.Matches(msg, keys.Skip):
		m.Items[m.cursor].Choice = ChoiceSkip
		return m.advance(), nil

	case key.Matches(msg, keys.Apply):
		m.accepted = true
		return m, tea.Quit
	}

	return m, nil
}

// advance moves the cursor to the next conflict after a choice.
func (m Model) advance() Model {
	if m.cursor < len(m.Items)-1 {
		m.cursor++
	}
	return m
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}
