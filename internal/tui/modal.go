package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lumberhq/lumberview/internal/model"
)

// facetModal is the toggle list for one facet column.
type facetModal struct {
	column string
	values model.Facet
	cursor int
}

func newFacetModal(column string, values model.Facet) *facetModal {
	return &facetModal{column: column, values: values}
}

func (f *facetModal) handleKey(m *Model, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if f.cursor > 0 {
			f.cursor--
		}
		return nil
	case "down", "j":
		if f.cursor < len(f.values)-1 {
			f.cursor++
		}
		return nil
	case " ", "enter":
		if f.cursor >= len(f.values) {
			return nil
		}
		name := f.values[f.cursor].Name
		if err := m.sess.Toggle(f.column, name); err != nil {
			m.err = err
			return nil
		}
		f.values[f.cursor].Show = !f.values[f.cursor].Show
		if msg.String() == " " {
			return nil
		}
		fallthrough
	case "esc", "escape":
		m.modal = nil
		m.loading = true
		return refreshCmd(m.sess)
	}
	return nil
}
