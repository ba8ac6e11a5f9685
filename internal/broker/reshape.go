package broker

import (
	"fmt"
	"strconv"

	"github.com/lumberhq/lumberview/internal/model"
	"github.com/lumberhq/lumberview/internal/sqlworker"
)

// flattenRows maps each row of the first result set to one record keyed by
// the returned columns, verbatim. An empty or absent payload normalizes to
// an empty slice so downstream code never branches on missing data.
func flattenRows(results []sqlworker.ResultSet) []map[string]any {
	if len(results) == 0 {
		return []map[string]any{}
	}

	rs := results[0]
	rows := make([]map[string]any, 0, len(rs.Values))
	for _, values := range rs.Values {
		row := make(map[string]any, len(rs.Columns))
		for i, col := range rs.Columns {
			if i < len(values) {
				row[col] = values[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// groupLogs reconstructs nested LogRecords from the flattened one-to-many
// log/custom join. Rows group by uid in first-occurrence order; the join's
// (key, value) column pair folds into Custom. A uid whose only pair is NULL
// (outer join, no custom attributes) yields an empty Custom map.
func groupLogs(results []sqlworker.ResultSet) []model.LogRecord {
	if len(results) == 0 {
		return []model.LogRecord{}
	}

	rs := results[0]
	col := make(map[string]int, len(rs.Columns))
	for i, name := range rs.Columns {
		col[name] = i
	}
	uidIdx, ok := col["uid"]
	if !ok {
		return []model.LogRecord{}
	}

	var order []string
	index := make(map[string]*model.LogRecord)

	for _, values := range rs.Values {
		uid := asString(values[uidIdx])
		if uid == "" {
			continue
		}

		rec, seen := index[uid]
		if !seen {
			rec = &model.LogRecord{UID: uid, Custom: map[string]string{}}
			fillLogColumns(rec, col, values)
			index[uid] = rec
			order = append(order, uid)
		}

		ki, hasKey := col["key"]
		vi, hasValue := col["value"]
		if hasKey && hasValue && values[ki] != nil {
			rec.Custom[asString(values[ki])] = asString(values[vi])
		}
	}

	out := make([]model.LogRecord, 0, len(order))
	for _, uid := range order {
		out = append(out, *index[uid])
	}
	return out
}

func fillLogColumns(rec *model.LogRecord, col map[string]int, values []any) {
	get := func(name string) (any, bool) {
		i, ok := col[name]
		if !ok || i >= len(values) {
			return nil, false
		}
		return values[i], true
	}

	if v, ok := get("branch"); ok {
		rec.Branch = asString(v)
	}
	if v, ok := get("category"); ok {
		rec.Category = asString(v)
	}
	if v, ok := get("env"); ok {
		rec.Env = asString(v)
	}
	if v, ok := get("file"); ok {
		rec.File = asString(v)
	}
	if v, ok := get("function"); ok {
		rec.Function = asString(v)
	}
	if v, ok := get("level"); ok {
		rec.Level = asString(v)
	}
	if v, ok := get("line"); ok {
		rec.Line = asInt(v)
	}
	if v, ok := get("message"); ok {
		rec.Message = asString(v)
	}
	if v, ok := get("timestamp"); ok {
		rec.Timestamp = asString(v)
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case nil:
		return 0
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case uint32:
		return int(t)
	case uint64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}

// AsInt64 converts a scanned store value to int64. Count queries go through
// the flat reshaper, which preserves driver types.
func AsInt64(v any) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}

// AsString converts a scanned store value to its string form.
func AsString(v any) string { return asString(v) }
