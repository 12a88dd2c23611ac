package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// checklistState tracks whether the user is still choosing.
type checklistState int

const (
	choosing checklistState = iota
	confirmed
	cancelled
)

// Checklist is a multi-select prompt: space toggles, a selects all (or none), enter confirms and
// esc/q cancels.
type Checklist struct {
	title  string
	items  []checkItem
	cursor int
	offset int
	height int
	state  checklistState
	keys   keyMap
	help   help.Model
}

var _ tea.Model = (*Checklist)(nil)

// NewChecklist creates a checklist with every row unchecked.
func NewChecklist(title string, labels []string) *Checklist {
	items := make([]checkItem, len(labels))
	for i, l := range labels {
		items[i] = checkItem{label: l}
	}
	return &Checklist{title: title, items: items, keys: newKeyMap(), help: help.New()}
}

func (m *Checklist) Init() tea.Cmd { return nil }

func (m *Checklist) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.help.Width = msg.Width
		m.scroll()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.cancel):
			m.state = cancelled
			return m, tea.Quit
		case key.Matches(msg, m.keys.confirm):
			m.state = confirmed
			return m, tea.Quit
		case key.Matches(msg, m.keys.up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.down):
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.toggle):
			if len(m.items) > 0 {
				m.items[m.cursor].checked = !m.items[m.cursor].checked
			}
		case key.Matches(msg, m.keys.all):
			m.setAll(!m.allChecked())
		}
		m.scroll()
	}
	return m, nil
}

func (m *Checklist) View() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(m.title))
	b.WriteString("\n")

	if len(m.items) == 0 {
		b.WriteString(styles.warn.Render("Nothing to choose from."))
		b.WriteString("\n")
	}

	end := min(m.offset+m.visibleRows(), len(m.items))
	for i := m.offset; i < end; i++ {
		item := m.items[i]
		box := "[ ]"
		if item.checked {
			box = styles.ok.Render("[x]")
		}

		cursor := "  "
		label := item.label
		if i == m.cursor {
			cursor = styles.cursor.Render("> ")
			label = styles.cursor.Render(label)
		}
		fmt.Fprintf(&b, "%s%s %s\n", cursor, box, label)
	}

	if n := m.count(); n > 0 {
		fmt.Fprintf(&b, "\n%s\n", styles.help.Render(fmt.Sprintf("%d of %d selected", n, len(m.items))))
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

// Selected returns the indices of checked rows, or nil when the prompt was cancelled or is
// still open.
func (m *Checklist) Selected() []int {
	if m.state != confirmed {
		return nil
	}

	var out []int
	for i, item := range m.items {
		if item.checked {
			out = append(out, i)
		}
	}
	return out
}

// Cancelled reports whether the user left with esc or q.
func (m *Checklist) Cancelled() bool { return m.state == cancelled }

func (m *Checklist) allChecked() bool {
	return len(m.items) > 0 && m.count() == len(m.items)
}

func (m *Checklist) count() int {
	n := 0
	for _, item := range m.items {
		if item.checked {
			n++
		}
	}
	return n
}

func (m *Checklist) setAll(checked bool) {
	for i := range m.items {
		m.items[i].checked = checked
	}
}

// visibleRows leaves room for the title, the counter and the help line.
func (m *Checklist) visibleRows() int {
	if m.height <= 0 {
		return len(m.items)
	}
	return max(m.height-7, 3)
}

func (m *Checklist) scroll() {
	rows := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}
