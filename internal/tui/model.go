package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lumberhq/lumberview/internal/model"
	"github.com/lumberhq/lumberview/internal/session"
)

const requestTimeout = 30 * time.Second

// recordsMsg carries one refreshed page of records.
type recordsMsg struct {
	records []model.LogRecord
	total   int64
}

// sizeMsg carries the server-reported dataset size string.
type sizeMsg struct{ size string }

// errMsg surfaces an operation failure in the status line.
type errMsg struct{ err error }

// Model is the Bubble Tea model for the log browser. It is presentation
// only: every data access goes through the session.
type Model struct {
	sess *session.Session

	records []model.LogRecord
	total   int64
	size    string
	err     error

	searchInput  textinput.Model
	searchActive bool
	searchTerm   string

	modal *facetModal

	width   int
	height  int
	loading bool
}

// New creates the browser model over an activated session.
func New(sess *session.Session) *Model {
	input := textinput.New()
	input.Placeholder = "search"
	input.CharLimit = 256
	return &Model{
		sess:        sess,
		searchInput: input,
		loading:     true,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(refreshCmd(m.sess), sizeCmd(m.sess))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case recordsMsg:
		m.records = msg.records
		m.total = msg.total
		m.loading = false
		m.err = nil
		return m, nil

	case sizeMsg:
		m.size = msg.size
		return m, nil

	case errMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.modal != nil {
		return m, m.modal.handleKey(m, msg)
	}
	if m.searchActive {
		return m, m.handleSearchKey(msg)
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "n", "right":
		m.sess.SetPage(m.sess.Page().Num + 1)
		m.loading = true
		return m, refreshCmd(m.sess)
	case "p", "left":
		m.sess.SetPage(m.sess.Page().Num - 1)
		m.loading = true
		return m, refreshCmd(m.sess)
	case "/":
		m.searchActive = true
		m.searchInput.SetValue(m.searchTerm)
		return m, m.searchInput.Focus()
	case "esc", "escape":
		if m.searchTerm != "" {
			m.searchTerm = ""
			m.loading = true
			return m, searchCmd(m.sess, "")
		}
		return m, nil
	case "l":
		m.modal = newFacetModal("level", m.sess.Facets().Level)
		return m, nil
	case "c":
		m.modal = newFacetModal("category", m.sess.Facets().Category)
		return m, nil
	case "e":
		m.modal = newFacetModal("env", m.sess.Facets().Env)
		return m, nil
	case "r":
		m.loading = true
		return m, tea.Batch(refreshFacetsCmd(m.sess), sizeCmd(m.sess))
	}
	return m, nil
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "escape":
		m.searchActive = false
		m.searchInput.Blur()
		return nil
	case "enter":
		m.searchActive = false
		m.searchInput.Blur()
		m.searchTerm = m.searchInput.Value()
		m.loading = true
		return searchCmd(m.sess, m.searchTerm)
	default:
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return cmd
	}
}

// refreshCmd loads the current page and total count.
func refreshCmd(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		records, total, err := sess.Records(ctx)
		if err != nil {
			return errMsg{err}
		}
		return recordsMsg{records: records, total: total}
	}
}

// refreshFacetsCmd recomputes the facets, then reloads the page.
func refreshFacetsCmd(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := sess.RefreshFacets(ctx); err != nil {
			return errMsg{err}
		}
		records, total, err := sess.Records(ctx)
		if err != nil {
			return errMsg{err}
		}
		return recordsMsg{records: records, total: total}
	}
}

// searchCmd issues (or clears) a search, then reloads the page. Stale
// completions are dropped inside the session, so whatever page comes back
// reflects the newest issued search.
func searchCmd(sess *session.Session, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := sess.SetSearch(ctx, text); err != nil {
			return errMsg{err}
		}
		records, total, err := sess.Records(ctx)
		if err != nil {
			return errMsg{err}
		}
		return recordsMsg{records: records, total: total}
	}
}

func sizeCmd(sess *session.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		size, err := sess.Size(ctx)
		if err != nil {
			// Size is pure display; a missing size endpoint is not an error
			// worth the status line.
			return sizeMsg{size: ""}
		}
		return sizeMsg{size: size}
	}
}
