package broker

import (
	"reflect"
	"testing"

	"github.com/lumberhq/lumberview/internal/sqlworker"
)

var joinColumns = []string{"uid", "branch", "category", "env", "file", "function", "level", "line", "message", "timestamp", "key", "value"}

func joinRow(uid string, key, value any) []any {
	return []any{uid, "main", "api", "prod", "a.go", "handler", "Error", int32(12), "boom", "2024-01-01T00:00:00Z", key, value}
}

func TestGroupLogsJoinReconstruction(t *testing.T) {
	// Three join rows: uid A carries two attribute pairs, uid B carries a
	// NULL pair from the outer join. Expect two records, A before B.
	results := []sqlworker.ResultSet{{
		Columns: joinColumns,
		Values: [][]any{
			joinRow("A", "x", "1"),
			joinRow("A", "y", "2"),
			joinRow("B", nil, nil),
		},
	}}

	got := groupLogs(results)
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}

	a := got[0]
	if a.UID != "A" {
		t.Errorf("first record uid = %q, want A", a.UID)
	}
	if !reflect.DeepEqual(a.Custom, map[string]string{"x": "1", "y": "2"}) {
		t.Errorf("A.Custom = %v, want {x:1 y:2}", a.Custom)
	}
	if a.Level != "Error" || a.Line != 12 || a.Message != "boom" {
		t.Errorf("A columns not filled: %+v", a)
	}

	b := got[1]
	if b.UID != "B" {
		t.Errorf("second record uid = %q, want B", b.UID)
	}
	if b.Custom == nil || len(b.Custom) != 0 {
		t.Errorf("B.Custom = %v, want empty non-nil map", b.Custom)
	}
}

func TestGroupLogsFirstOccurrenceOrder(t *testing.T) {
	results := []sqlworker.ResultSet{{
		Columns: joinColumns,
		Values: [][]any{
			joinRow("C", nil, nil),
			joinRow("A", "x", "1"),
			joinRow("B", nil, nil),
			joinRow("A", "y", "2"),
		},
	}}

	got := groupLogs(results)
	var uids []string
	for _, rec := range got {
		uids = append(uids, rec.UID)
	}
	if !reflect.DeepEqual(uids, []string{"C", "A", "B"}) {
		t.Errorf("uid order = %v, want [C A B]", uids)
	}
}

func TestGroupLogsEmptyPayload(t *testing.T) {
	for name, results := range map[string][]sqlworker.ResultSet{
		"no result set": nil,
		"zero rows":     {{Columns: joinColumns}},
	} {
		got := groupLogs(results)
		if got == nil || len(got) != 0 {
			t.Errorf("%s: got %v, want empty non-nil slice", name, got)
		}
	}
}

func TestFlattenRows(t *testing.T) {
	results := []sqlworker.ResultSet{{
		Columns: []string{"name", "total"},
		Values: [][]any{
			{"Error", int64(3)},
			{"Info", int64(7)},
		},
	}}

	got := flattenRows(results)
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0]["name"] != "Error" || AsInt64(got[0]["total"]) != 3 {
		t.Errorf("row 0 = %v", got[0])
	}
	if got[1]["name"] != "Info" || AsInt64(got[1]["total"]) != 7 {
		t.Errorf("row 1 = %v", got[1])
	}
}

func TestFlattenRowsEmptyPayload(t *testing.T) {
	got := flattenRows(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

func TestGroupLogsTypeCoercion(t *testing.T) {
	// Drivers disagree on scalar types; grouped reshaping normalizes them.
	results := []sqlworker.ResultSet{{
		Columns: joinColumns,
		Values: [][]any{
			{[]byte("A"), "main", "api", "prod", "a.go", "handler", "Warning", int64(99), "msg", "2024-01-01T00:00:00Z", nil, nil},
		},
	}}

	got := groupLogs(results)
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if got[0].UID != "A" || got[0].Line != 99 {
		t.Errorf("record = %+v, want uid A line 99", got[0])
	}
}
