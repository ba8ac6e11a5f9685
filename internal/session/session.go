package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lumberhq/lumberview/internal/broker"
	"github.com/lumberhq/lumberview/internal/model"
	"github.com/lumberhq/lumberview/internal/prefs"
	"github.com/lumberhq/lumberview/internal/query"
	"github.com/lumberhq/lumberview/internal/search"
)

// DefaultPageSize is the page window used when the caller sets none.
const DefaultPageSize = 50

// Session is one user's live view over an ingested dataset: three facet
// filters, the tri-state search, and a page window. All store access goes
// through the broker; facet toggles are synchronous read-modify-writes on
// local state, serialized by the session mutex.
type Session struct {
	broker *broker.Broker
	client *search.Client // nil when no search server is configured
	prefs  *prefs.Store   // nil disables preference persistence
	guard  search.Guard

	mu      sync.Mutex
	dataset string
	file    string
	facets  query.Facets
	search  model.SearchState
	page    query.Page
}

// New creates a session reading through b. client and prefStore may be nil.
func New(b *broker.Broker, client *search.Client, prefStore *prefs.Store, pageSize int) *Session {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Session{
		broker: b,
		client: client,
		prefs:  prefStore,
		page:   query.Page{Size: pageSize},
	}
}

// ActivateDataset selects the dataset/file the session browses. It clears
// search and paging, loads any cached facet preferences, and recomputes the
// facets from storage.
func (s *Session) ActivateDataset(ctx context.Context, dataset, file string) error {
	s.mu.Lock()
	s.dataset = dataset
	s.file = file
	s.search = model.NoSearch()
	s.page.Num = 0
	s.facets = query.Facets{}

	if s.prefs != nil {
		for _, column := range query.FacetColumns {
			cached, err := s.prefs.LoadFacet(prefs.Key(dataset, file, column))
			if err != nil {
				s.mu.Unlock()
				return err
			}
			s.setFacetLocked(column, cached)
		}
	}
	s.mu.Unlock()

	return s.RefreshFacets(ctx)
}

// RefreshFacets recomputes each facet from the distinct values in storage,
// merging into the cached sequence so user toggles survive new values, and
// persists the result.
func (s *Session) RefreshFacets(ctx context.Context) error {
	for _, column := range query.FacetColumns {
		sqlText, err := query.DistinctSQL(column)
		if err != nil {
			return err
		}
		rows, err := s.broker.Query(ctx, sqlText)
		if err != nil {
			return fmt.Errorf("session: refresh %s facet: %w", column, err)
		}

		distinct := make([]string, 0, len(rows))
		for _, row := range rows {
			if name := broker.AsString(row["name"]); name != "" {
				distinct = append(distinct, name)
			}
		}

		s.mu.Lock()
		merged := query.MergeFacet(s.facetLocked(column), distinct)
		s.setFacetLocked(column, merged)
		key := prefs.Key(s.dataset, s.file, column)
		s.mu.Unlock()

		if s.prefs != nil {
			if err := s.prefs.SaveFacet(key, merged); err != nil {
				return err
			}
		}
	}
	return nil
}

// Facets returns a copy of the current facet state.
func (s *Session) Facets() query.Facets {
	s.mu.Lock()
	defer s.mu.Unlock()
	return query.Facets{
		Level:    s.facets.Level.Clone(),
		Category: s.facets.Category.Clone(),
		Env:      s.facets.Env.Clone(),
	}
}

// Toggle flips the visibility of one value of the named facet column and
// persists the updated sequence.
func (s *Session) Toggle(column, name string) error {
	s.mu.Lock()
	facet := s.facetLocked(column)
	if facet == nil && !validColumn(column) {
		s.mu.Unlock()
		return fmt.Errorf("session: unknown facet %q", column)
	}
	if !facet.Toggle(name) {
		s.mu.Unlock()
		return fmt.Errorf("session: facet %s has no value %q", column, name)
	}
	persisted := facet.Clone()
	key := prefs.Key(s.dataset, s.file, column)
	s.mu.Unlock()

	if s.prefs != nil {
		return s.prefs.SaveFacet(key, persisted)
	}
	return nil
}

// SetSearch issues a search for the given query text, or clears the search
// when the text is blank. Responses arriving after a newer search (or a
// clear) has been issued are discarded without touching visible state.
func (s *Session) SetSearch(ctx context.Context, text string) error {
	seq := s.guard.Next()

	if strings.TrimSpace(text) == "" {
		s.mu.Lock()
		if s.guard.Latest(seq) {
			s.search = model.NoSearch()
			s.page.Num = 0
		}
		s.mu.Unlock()
		return nil
	}

	if s.client == nil {
		return errors.New("session: no search server configured")
	}

	s.mu.Lock()
	dataset, file := s.dataset, s.file
	s.mu.Unlock()

	uids, err := s.client.Search(ctx, dataset, file, text)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.guard.Latest(seq) {
		return nil
	}
	s.search = model.Matches(uids)
	s.page.Num = 0
	return nil
}

// SearchState returns the current tri-state search value.
func (s *Session) SearchState() model.SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.search
}

// SetPage moves the page window. Negative pages clamp to zero.
func (s *Session) SetPage(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	s.page.Num = n
}

// SetPageSize changes the window size and resets to the first page.
func (s *Session) SetPageSize(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if size > 0 {
		s.page = query.Page{Num: 0, Size: size}
	}
}

// Page returns the current window.
func (s *Session) Page() query.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Records returns the current page of records, newest first, together with
// the total count matching the same filters without the window.
func (s *Session) Records(ctx context.Context) ([]model.LogRecord, int64, error) {
	s.mu.Lock()
	facets := s.facets
	searchState := s.search
	page := s.page
	s.mu.Unlock()

	rowsQ, countQ := query.Compose(facets, searchState, page)

	// Issue both before awaiting either; the broker correlates them.
	rowsF := s.broker.Submit(broker.ModeGrouped, rowsQ.SQL, rowsQ.Params)
	countF := s.broker.Submit(broker.ModeFlat, countQ.SQL, countQ.Params)

	records, err := rowsF.Logs(ctx)
	if err != nil {
		return nil, 0, err
	}
	countRows, err := countF.Rows(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if len(countRows) > 0 {
		total = broker.AsInt64(countRows[0]["total"])
	}
	return records, total, nil
}

// Size returns the server-reported size string for the active dataset file.
func (s *Session) Size(ctx context.Context) (string, error) {
	if s.client == nil {
		return "", errors.New("session: no search server configured")
	}
	s.mu.Lock()
	dataset, file := s.dataset, s.file
	s.mu.Unlock()
	return s.client.Size(ctx, dataset, file)
}

// Dataset returns the active dataset and file identifiers.
func (s *Session) Dataset() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataset, s.file
}

func (s *Session) facetLocked(column string) model.Facet {
	switch column {
	case "level":
		return s.facets.Level
	case "category":
		return s.facets.Category
	case "env":
		return s.facets.Env
	default:
		return nil
	}
}

func (s *Session) setFacetLocked(column string, facet model.Facet) {
	switch column {
	case "level":
		s.facets.Level = facet
	case "category":
		s.facets.Category = facet
	case "env":
		s.facets.Env = facet
	}
}

func validColumn(column string) bool {
	switch column {
	case "level", "category", "env":
		return true
	}
	return false
}
