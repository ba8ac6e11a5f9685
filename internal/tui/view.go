package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lumberhq/lumberview/internal/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

	levelStyles = map[string]lipgloss.Style{
		"Emergency": lipgloss.NewStyle().Foreground(lipgloss.Color("201")),
		"Alert":     lipgloss.NewStyle().Foreground(lipgloss.Color("201")),
		"Critical":  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		"Error":     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		"Warning":   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"Notice":    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		"Info":      lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		"Debug":     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
)

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n")

	if m.modal != nil {
		b.WriteString(m.modalView())
	} else {
		b.WriteString(m.tableView())
	}

	b.WriteString("\n")
	b.WriteString(m.footerView())
	return b.String()
}

func (m *Model) headerView() string {
	dataset, file := m.sess.Dataset()
	page := m.sess.Page()
	pages := int64(0)
	if page.Size > 0 {
		pages = (m.total + int64(page.Size) - 1) / int64(page.Size)
	}

	title := headerStyle.Render(fmt.Sprintf("lumberview  %s/%s", dataset, file))
	status := dimStyle.Render(fmt.Sprintf("%d records  page %d/%d", m.total, page.Num+1, max64(pages, 1)))
	if m.size != "" {
		status += dimStyle.Render("  " + m.size)
	}
	if m.searchTerm != "" {
		status += dimStyle.Render(fmt.Sprintf("  search:%q", m.searchTerm))
	}
	if m.loading {
		status += dimStyle.Render("  loading…")
	}
	return title + "  " + status
}

func (m *Model) tableView() string {
	if len(m.records) == 0 {
		return dimStyle.Render("  no records match the current filters")
	}

	msgWidth := m.width - 52
	if msgWidth < 20 {
		msgWidth = 20
	}

	var rows []string
	for _, rec := range m.records {
		rows = append(rows, renderRow(rec, msgWidth))
	}
	return strings.Join(rows, "\n")
}

func renderRow(rec model.LogRecord, msgWidth int) string {
	style, ok := levelStyles[rec.Level]
	if !ok {
		style = dimStyle
	}

	msg := strings.ReplaceAll(rec.Message, "\n", " ")
	if len(msg) > msgWidth {
		msg = msg[:msgWidth-1] + "…"
	}

	line := fmt.Sprintf("%-24s %s %-12s %s",
		rec.Timestamp,
		style.Render(fmt.Sprintf("%-9s", rec.Level)),
		rec.Category,
		msg,
	)
	if len(rec.Custom) > 0 {
		line += dimStyle.Render(fmt.Sprintf("  +%d", len(rec.Custom)))
	}
	return line
}

func (m *Model) modalView() string {
	f := m.modal
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("filter: %s", f.column)))
	b.WriteString("\n")

	for i, v := range f.values {
		check := "[ ]"
		if v.Show {
			check = "[x]"
		}
		line := fmt.Sprintf("  %s %s", check, v.Name)
		if i == f.cursor {
			line = cursorStyle.Render("> " + strings.TrimPrefix(line, "  "))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("  space toggle · enter apply · esc close"))
	return b.String()
}

func (m *Model) footerView() string {
	if m.searchActive {
		return "/ " + m.searchInput.View()
	}
	help := dimStyle.Render("n/p page · / search · l/c/e filters · r refresh · q quit")
	if m.err != nil {
		return errStyle.Render("error: "+m.err.Error()) + "  " + help
	}
	return help
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
