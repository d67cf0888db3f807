package stf

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	createdStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	renamedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	healedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	deletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

type progressMsg struct {
	current, total int
}

type doneMsg struct {
	summary Summary
	err     error
}

type tickMsg time.Time

type progressModel struct {
	frame      int
	cur, total int
	done       bool
	result     doneMsg
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m progressModel) Init() tea.Cmd { return tick() }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, tick()
	case progressMsg:
		m.cur, m.total = msg.current, msg.total
		return m, nil
	case doneMsg:
		m.done = true
		m.result = msg
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.result = doneMsg{err: fmt.Errorf("interrupted")}
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}
	if m.total == 0 {
		return fmt.Sprintf("%s Processing...", spinnerStyle.Render(spinnerFrames[m.frame]))
	}
	return fmt.Sprintf("%s Processing... %d/%d", spinnerStyle.Render(spinnerFrames[m.frame]), m.cur, m.total)
}

type TUI struct {
	app         *App
	noAnimation bool
}

func NewTUI(app *App, noAnimation bool) *TUI {
	return &TUI{app: app, noAnimation: noAnimation}
}

func (t *TUI) Run() error {
	if t.noAnimation {
		summary, err := t.app.Execute()
		if err == nil {
			fmt.Print(FormatSummary(summary))
		}
		return err
	}

	p := tea.NewProgram(progressModel{}, tea.WithoutSignalHandler())

	t.app.SetProgressCallback(func(c, tot int) {
		p.Send(progressMsg{current: c, total: tot})
	})

	go func() {
		summary, err := t.app.Execute()
		p.Send(doneMsg{summary: summary, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}

	result := final.(progressModel).result
	if result.err == nil {
		fmt.Print(FormatSummary(result.summary))
	}
	return result.err
}

func FormatSummary(s Summary) string {
	var b strings.Builder
	if s.Message != "" {
		b.WriteString(headerStyle.Render(s.Message) + "\n\n")
	}

	renderList := func(title string, style lipgloss.Style, list []string) {
		if len(list) == 0 {
			return
		}
		b.WriteString(style.Render(title) + "\n")
		for _, f := range list {
			b.WriteString(fmt.Sprintf("  %s\n", f))
		}
	}

	renderList("Created:", createdStyle, s.Created)
	renderList("Modified:", successStyle, s.Modified)
	renderList("Renamed:", renamedStyle, s.Renamed)
	renderList("Deleted:", deletedStyle, s.Deleted)
	renderList("Partial:", healedStyle, s.Partial)
	renderList("Repaired:", healedStyle, s.Repaired)
	renderList("Failed:", errorStyle, s.Failed)

	return b.String()
}
