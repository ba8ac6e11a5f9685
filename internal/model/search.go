package model

// searchKind discriminates the three meanings a search result can carry.
type searchKind int

const (
	searchNone searchKind = iota // no search active, facets alone gate results
	searchEmpty                  // search active, zero matches
	searchMatches                // search active, restrict to the uid set
)

// SearchState is the tri-state outcome of the search endpoint. The zero
// value is "no search active". A nullable slice would collapse the
// empty-vs-absent distinction, so the state is an explicit tagged value.
type SearchState struct {
	kind searchKind
	uids []string
}

// NoSearch returns the inactive search state.
func NoSearch() SearchState { return SearchState{} }

// NoMatches returns the active-but-empty search state. Queries composed
// against it must match zero rows regardless of facet settings.
func NoMatches() SearchState { return SearchState{kind: searchEmpty} }

// Matches returns a search state restricted to the given uid set.
// An empty set normalizes to NoMatches.
func Matches(uids []string) SearchState {
	if len(uids) == 0 {
		return NoMatches()
	}
	out := make([]string, len(uids))
	copy(out, uids)
	return SearchState{kind: searchMatches, uids: out}
}

// Active reports whether a search is in effect.
func (s SearchState) Active() bool { return s.kind != searchNone }

// Empty reports whether an active search matched nothing.
func (s SearchState) Empty() bool { return s.kind == searchEmpty }

// UIDs returns the matched uid set. It is nil unless the state carries
// matches.
func (s SearchState) UIDs() []string { return s.uids }
