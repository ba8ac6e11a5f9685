package query

import (
	"fmt"

	"github.com/lumberhq/lumberview/internal/model"
)

// FacetColumns are the filterable log columns, in presentation order.
var FacetColumns = []string{"level", "category", "env"}

var facetColumnSet = map[string]bool{
	"level":    true,
	"category": true,
	"env":      true,
}

// DistinctSQL returns the query that lists the stored values of one facet
// column. The column name comes from the fixed facet set, never from input.
func DistinctSQL(column string) (string, error) {
	if !facetColumnSet[column] {
		return "", fmt.Errorf("query: %q is not a facet column", column)
	}
	return "SELECT " + column + " AS name FROM logs WHERE " + column +
		" IS NOT NULL GROUP BY " + column + " ORDER BY MIN(rowid)", nil
}

// MergeFacet folds freshly observed distinct values into a previously
// cached facet. Cached entries keep their order and their user-toggled
// visibility; values seen for the first time append in observation order,
// shown by default. Values that vanished from storage stay cached, so a
// toggle survives re-ingestion. Every stored value appears exactly once.
func MergeFacet(cached model.Facet, distinct []string) model.Facet {
	merged := cached.Clone()
	known := make(map[string]bool, len(merged))
	for _, v := range merged {
		known[v.Name] = true
	}
	for _, name := range distinct {
		if known[name] {
			continue
		}
		known[name] = true
		merged = append(merged, model.FacetValue{Name: name, Show: true})
	}
	return merged
}
