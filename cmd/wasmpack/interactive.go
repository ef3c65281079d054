package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasmpack/bundler"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	moduleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	asyncStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB86C"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

type viewState int

const (
	stateBrowse viewState = iota
	stateFilter
	stateCode
)

type graphModel struct {
	res        *bundler.Result
	importedBy map[string][]string
	filter     textinput.Model
	code       viewport.Model
	visible    []*bundler.Module
	selected   int
	width      int
	height     int
	state      viewState
}

func newGraphModel(res *bundler.Result) *graphModel {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter modules"
	ti.Width = 40
	m := &graphModel{
		res:        res,
		importedBy: res.Graph.Importers(),
		filter:     ti,
		code:       viewport.New(80, 20),
		width:      100,
		height:     30,
	}
	m.applyFilter()
	return m
}

func (m *graphModel) Init() tea.Cmd {
	return nil
}

func (m *graphModel) applyFilter() {
	q := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for _, mod := range m.res.Modules {
		if q == "" || strings.Contains(strings.ToLower(displayName(m.res.Root, mod.ID)), q) {
			m.visible = append(m.visible, mod)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *graphModel) current() *bundler.Module {
	if m.selected < len(m.visible) {
		return m.visible[m.selected]
	}
	return nil
}

func (m *graphModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.code.Width = msg.Width - 4
		m.code.Height = msg.Height - 6
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateFilter:
			switch msg.String() {
			case "enter", "esc":
				m.filter.Blur()
				m.state = stateBrowse
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd

		case stateCode:
			switch msg.String() {
			case "esc", "enter", "q":
				m.state = stateBrowse
				return m, nil
			}
			var cmd tea.Cmd
			m.code, cmd = m.code.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.visible)-1 {
				m.selected++
			}
		case "/":
			m.state = stateFilter
			return m, m.filter.Focus()
		case "enter":
			if mod := m.current(); mod != nil {
				m.code.SetContent(mod.Code)
				m.code.GotoTop()
				m.state = stateCode
			}
		}
	}
	return m, nil
}

func (m *graphModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("wasmpack graph"))
	fmt.Fprintf(&b, " %d modules, %d async\n\n", len(m.res.Modules), m.res.Suspension.Len())

	if m.state == stateCode {
		if mod := m.current(); mod != nil {
			b.WriteString(moduleStyle.Render(displayName(m.res.Root, mod.ID)))
			b.WriteString("\n")
		}
		b.WriteString(paneStyle.Render(m.code.View()))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • esc back"))
		return b.String()
	}

	if m.state == stateFilter || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
	}

	listWidth := m.width/2 - 2
	var list strings.Builder
	for i, mod := range m.visible {
		line := displayName(m.res.Root, mod.ID)
		if mod.Async {
			line += " " + asyncStyle.Render("async")
		}
		if i == m.selected {
			list.WriteString(selectedStyle.Render("> " + line))
		} else {
			list.WriteString("  " + line)
		}
		list.WriteString("\n")
	}
	if len(m.visible) == 0 {
		list.WriteString(helpStyle.Render("no matching modules"))
	}

	left := paneStyle.Width(listWidth).Render(list.String())
	right := paneStyle.Width(m.width - listWidth - 6).Render(m.details())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ select • / filter • enter code • q quit"))
	return b.String()
}

// details renders the selected module's kind, suspension path and edges.
func (m *graphModel) details() string {
	mod := m.current()
	if mod == nil {
		return ""
	}
	n := mod.Node
	var b strings.Builder
	b.WriteString(moduleStyle.Render(displayName(m.res.Root, n.ID)))
	b.WriteString("\n")
	b.WriteString(kindStyle.Render(n.Kind.String()))
	b.WriteString("\n\n")

	if mod.Async {
		b.WriteString(asyncStyle.Render(string(m.res.Suspension.Reason(n.ID))))
		b.WriteString("\n")
		for i, id := range m.res.Suspension.Explain(n.ID) {
			fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", i), displayName(m.res.Root, id))
		}
	} else {
		b.WriteString("sync\n")
	}

	b.WriteString("\nimports:\n")
	for _, e := range n.Imports {
		target := "external"
		if !e.External {
			target = displayName(m.res.Root, e.To)
		}
		fmt.Fprintf(&b, "  %q %s\n", e.Specifier, kindStyle.Render(e.Kind.String()))
		fmt.Fprintf(&b, "    -> %s\n", target)
	}

	b.WriteString("\nimported by:\n")
	for _, id := range m.importedBy[n.ID] {
		fmt.Fprintf(&b, "  %s\n", displayName(m.res.Root, id))
	}
	return b.String()
}

func runInteractive(res *bundler.Result) error {
	p := tea.NewProgram(newGraphModel(res), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
