package query

import (
	"strings"

	"github.com/lumberhq/lumberview/internal/model"
)

// Page is a pagination window. Num is zero-based.
type Page struct {
	Num  int
	Size int
}

// Offset returns the row offset of the window.
func (p Page) Offset() int { return p.Num * p.Size }

// Facets bundles the three independent filter dimensions.
type Facets struct {
	Level    model.Facet
	Category model.Facet
	Env      model.Facet
}

// Query is one composed SQL statement with its bound parameters. Every
// value, including IN-list members, travels as a parameter and is never
// interpolated into the text.
type Query struct {
	SQL    string
	Params []any
}

// matchNone is a predicate that matches zero rows. It stands in for an
// empty IN list, which is not valid SQL.
const matchNone = "1 = 0"

// Compose builds the page query and its parallel count query for one
// consistent view of the store: the three facets AND the search state gate
// the rows, then the window applies last over a global
// timestamp-descending order.
//
// The page query joins the paginated log rows against the custom relation,
// so the broker's grouped mode can fold the one-to-many shape back into
// nested records.
func Compose(f Facets, search model.SearchState, page Page) (rows Query, count Query) {
	where, params := predicate(f, search)

	count = Query{
		SQL:    "SELECT COUNT(*) AS total FROM logs WHERE " + where,
		Params: params,
	}

	var sb strings.Builder
	sb.WriteString("SELECT l.uid, l.branch, l.category, l.env, l.file, l.function, ")
	sb.WriteString("l.level, l.line, l.message, l.timestamp, c.key, c.value ")
	sb.WriteString("FROM (SELECT * FROM logs WHERE ")
	sb.WriteString(where)
	// uid breaks timestamp ties so page concatenation is deterministic.
	sb.WriteString(" ORDER BY timestamp DESC, uid DESC LIMIT ? OFFSET ?) AS l ")
	sb.WriteString("LEFT JOIN custom AS c ON c.uid = l.uid ")
	sb.WriteString("ORDER BY l.timestamp DESC, l.uid DESC")

	rowParams := make([]any, 0, len(params)+2)
	rowParams = append(rowParams, params...)
	rowParams = append(rowParams, page.Size, page.Offset())

	rows = Query{SQL: sb.String(), Params: rowParams}
	return rows, count
}

// predicate combines the facet and search restrictions into one WHERE body.
func predicate(f Facets, search model.SearchState) (string, []any) {
	if search.Active() && search.Empty() {
		// Explicit empty-result contract: an active search with zero
		// matches yields no rows no matter what the facets say.
		return matchNone, nil
	}

	var clauses []string
	var params []any

	for _, facet := range []struct {
		column string
		values model.Facet
	}{
		{"level", f.Level},
		{"category", f.Category},
		{"env", f.Env},
	} {
		if len(facet.values) == 0 {
			// Nothing observed for this dimension yet; no restriction.
			continue
		}
		shown := facet.values.Shown()
		if len(shown) == 0 {
			return matchNone, nil
		}
		clause, vals := inClause(facet.column, shown)
		clauses = append(clauses, clause)
		params = append(params, vals...)
	}

	if search.Active() {
		clause, vals := inClause("uid", search.UIDs())
		clauses = append(clauses, clause)
		params = append(params, vals...)
	}

	if len(clauses) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(clauses, " AND "), params
}

func inClause(column string, values []string) (string, []any) {
	placeholders := make([]string, len(values))
	params := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		params[i] = v
	}
	return column + " IN (" + strings.Join(placeholders, ", ") + ")", params
}
