package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harborworks/lighter/journal"
)

// maxRecentRows caps the recent-deploy list in the history view.
const maxRecentRows = 15

// keyMap defines the key bindings for the history view.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

// HistoryModel is a Bubble Tea model for the deploy history view.
type HistoryModel struct {
	records  []journal.Record
	width    int
	height   int
	quitting bool
}

// NewHistoryModel creates a history model over journal records,
// newest first.
func NewHistoryModel(records []journal.Record) HistoryModel {
	return HistoryModel{records: records}
}

// Init implements tea.Model.
func (m HistoryModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m HistoryModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Deploy History"))
	b.WriteString("\n\n")

	var succeeded, failed int
	var uploaded, reused int
	for _, rec := range m.records {
		switch rec.Status {
		case "success":
			succeeded++
		case "failure":
			failed++
		}
		uploaded += rec.UploadedKeys
		reused += rec.ReusedKeys
	}

	boxes := []string{
		m.renderStatBox("Deploys", len(m.records), highlightColor),
		m.renderStatBox("Succeeded", succeeded, successColor),
		m.renderStatBox("Failed", failed, errorColor),
		m.renderStatBox("Uploaded", uploaded, warningColor),
		m.renderStatBox("Reused", reused, successColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	b.WriteString(m.renderRecent())

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return b.String() + "\n" + help
}

func (m HistoryModel) renderRecent() string {
	if len(m.records) == 0 {
		return MutedStyle.Render("(no deployments recorded)")
	}

	var b strings.Builder
	b.WriteString(MutedStyle.Render("Recent deployments"))
	b.WriteString("\n")

	rows := m.records
	if len(rows) > maxRecentRows {
		rows = rows[:maxRecentRows]
	}

	for _, rec := range rows {
		status := StatusStyle(rec.Status).Render(fmt.Sprintf("%-9s", rec.Status))
		when := MutedStyle.Render(rec.StartedAt.Local().Format("2006-01-02 15:04"))
		line := fmt.Sprintf("%s  %s  %-20s %4d files  %3d up  %3d reused",
			when, status, rec.Project, rec.FilesTotal, rec.UploadedKeys, rec.ReusedKeys)
		if rec.URL != "" {
			line += "  " + MutedStyle.Render(rec.URL)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}

func (m HistoryModel) renderStatBox(label string, value int, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// Run starts the TUI for the given view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	records, ok := data.([]journal.Record)
	if !ok {
		return fmt.Errorf("invalid data type for %s view", viewType)
	}

	model := NewHistoryModel(records)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only the history command supports TUI.
func IsTUISupported(viewType string) bool {
	return viewType == "history"
}

// RenderHistoryStatic renders the history view without the interactive
// program, for non-TTY fallback.
func RenderHistoryStatic(records []journal.Record) string {
	model := NewHistoryModel(records)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}

// FormatAge renders a started-at timestamp as a short relative age.
func FormatAge(startedAt time.Time) string {
	age := time.Since(startedAt)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}
