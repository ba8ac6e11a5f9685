package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/lumberhq/lumberview/internal/broker"
	"github.com/lumberhq/lumberview/internal/model"
	"github.com/lumberhq/lumberview/internal/prefs"
	"github.com/lumberhq/lumberview/internal/search"
	"github.com/lumberhq/lumberview/internal/sqlworker"
)

const insertLog = `INSERT INTO logs (uid, branch, category, env, file, function, level, line, message, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestBroker(t *testing.T) *broker.Broker {
	t.Helper()
	w := sqlworker.New("")
	t.Cleanup(w.Stop)
	b := broker.New(w.Requests(), w.Responses())
	if err := b.Open(testCtx(t)); err != nil {
		t.Fatalf("open store: %v", err)
	}
	return b
}

// seedLogs inserts n records u1..un with ascending timestamps, cycling
// through levels Error/Info and categories api/db.
func seedLogs(t *testing.T, b *broker.Broker, n int) {
	t.Helper()
	levels := []string{"Error", "Info"}
	categories := []string{"api", "db"}
	for i := 1; i <= n; i++ {
		ts := fmt.Sprintf("2024-01-01T00:00:%02dZ", i)
		err := b.Exec(testCtx(t), insertLog,
			fmt.Sprintf("u%d", i), "main", categories[i%2], "prod", "a.go", "h",
			levels[i%2], i, fmt.Sprintf("msg %d", i), ts)
		if err != nil {
			t.Fatalf("seed u%d: %v", i, err)
		}
	}
}

func uids(records []model.LogRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.UID)
	}
	return out
}

func TestRecordsPaginationNewestFirst(t *testing.T) {
	b := newTestBroker(t)
	seedLogs(t, b, 3) // u1 oldest, u3 newest
	s := New(b, nil, nil, 2)
	if err := s.ActivateDataset(testCtx(t), "app", "f.log"); err != nil {
		t.Fatalf("ActivateDataset: %v", err)
	}

	records, total, err := s.Records(testCtx(t))
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if got := uids(records); !reflect.DeepEqual(got, []string{"u3", "u2"}) {
		t.Errorf("page 0 = %v, want [u3 u2]", got)
	}

	s.SetPage(1)
	records, total, err = s.Records(testCtx(t))
	if err != nil {
		t.Fatalf("Records page 1: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3 (count ignores the window)", total)
	}
	if got := uids(records); !reflect.DeepEqual(got, []string{"u1"}) {
		t.Errorf("page 1 = %v, want [u1]", got)
	}
}

func TestPaginationDeterministicAcrossPages(t *testing.T) {
	b := newTestBroker(t)
	// Same timestamp for every record: ordering falls back to uid.
	for _, uid := range []string{"a", "b", "c", "d"} {
		if err := b.Exec(testCtx(t), insertLog, uid, "main", "api", "prod", "a.go", "h", "Info", 1, "m", "2024-01-01T00:00:00Z"); err != nil {
			t.Fatalf("seed %s: %v", uid, err)
		}
	}
	s := New(b, nil, nil, 2)
	if err := s.ActivateDataset(testCtx(t), "app", "f.log"); err != nil {
		t.Fatalf("ActivateDataset: %v", err)
	}

	var all []string
	for page := 0; page < 2; page++ {
		s.SetPage(page)
		records, _, err := s.Records(testCtx(t))
		if err != nil {
			t.Fatalf("Records page %d: %v", page, err)
		}
		all = append(all, uids(records)...)
	}
	if !reflect.DeepEqual(all, []string{"d", "c", "b", "a"}) {
		t.Errorf("concatenated pages = %v, want [d c b a] with no repeats or gaps", all)
	}
}

func TestFacetToggleRestrictsRecords(t *testing.T) {
	b := newTestBroker(t)
	seedLogs(t, b, 4) // u1,u3 Info; u2,u4 Error
	s := New(b, nil, nil, 10)
	if err := s.ActivateDataset(testCtx(t), "app", "f.log"); err != nil {
		t.Fatalf("ActivateDataset: %v", err)
	}

	if err := s.Toggle("level", "Info"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	records, total, err := s.Records(testCtx(t))
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	for _, rec := range records {
		if rec.Level != "Error" {
			t.Errorf("record %s level = %q after hiding Info", rec.UID, rec.Level)
		}
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestAllFacetValuesHiddenMatchesNothing(t *testing.T) {
	b := newTestBroker(t)
	seedLogs(t, b, 2)
	s := New(b, nil, nil, 10)
	if err := s.ActivateDataset(testCtx(t), "app", "f.log"); err != nil {
		t.Fatalf("ActivateDataset: %v", err)
	}

	for _, v := range s.Facets().Level {
		if err := s.Toggle("level", v.Name); err != nil {
			t.Fatalf("Toggle %s: %v", v.Name, err)
		}
	}

	records, total, err := s.Records(testCtx(t))
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 0 || total != 0 {
		t.Errorf("records=%d total=%d, want 0/0 with every level hidden", len(records), total)
	}
}

func TestSearchIntersectsFacets(t *testing.T) {
	b := newTestBroker(t)
	seedLogs(t, b, 4)

	// Server matches u1 (Info) and u2 (Error); hiding Info must leave u2.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["u1","u2"]`))
	}))
	defer srv.Close()

	s := New(b, search.NewClient(srv.URL, "", srv.Client()), nil, 10)
	if err := s.ActivateDataset(testCtx(t), "app", "f.log"); err != nil {
		t.Fatalf("ActivateDataset: %v", err)
	}
	if err := s.Toggle("level", "Info"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if err := s.SetSearch(testCtx(t), "some query"); err != nil {
		t.Fatalf("SetSearch: %v", err)
	}

	records, total, err := s.Records(testCtx(t))
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if got := uids(records); !reflect.DeepEqual(got, []string{"u2"}) {
		t.Errorf("records = %v, want [u2]", got)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
}

func TestSearchNoMatchesYieldsNoRows(t *testing.T) {
	b := newTestBroker(t)
	seedLogs(t, b, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	s := New(b, search.NewClient(srv.URL, "", srv.Client()), nil, 10)
	if err := s.ActivateDataset(testCtx(t), "app", "f.log"); err != nil {
		t.Fatalf("ActivateDataset: %v", err)
	}
	if err := s.SetSearch(testCtx(t), "nothing matches this"); err != nil {
		t.Fatalf("SetSearch: %v", err)
	}

	state := s.SearchState()
	if !state.Active() || !state.Empty() {
		t.Errorf("state Active=%v Empty=%v, want active empty", state.Active(), state.Empty())
	}

	records, total, err := s.Records(testCtx(t))
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 0 || total != 0 {
		t.Errorf("records=%d total=%d, want 0/0", len(records), total)
	}
}

func TestBlankSearchClears(t *testing.T) {
	b := newTestBroker(t)
	seedLogs(t, b, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["u1"]`))
	}))
	defer srv.Close()

	s := New(b, search.NewClient(srv.URL, "", srv.Client()), nil, 10)
	if err := s.ActivateDataset(testCtx(t), "app", "f.log"); err != nil {
		t.Fatalf("ActivateDataset: %v", err)
	}
	if err := s.SetSearch(testCtx(t), "q"); err != nil {
		t.Fatalf("SetSearch: %v", err)
	}
	s.SetPage(5)
	if err := s.SetSearch(testCtx(t), "   "); err != nil {
		t.Fatalf("clear search: %v", err)
	}

	if s.SearchState().Active() {
		t.Error("search still active after blank text")
	}
	if s.Page().Num != 0 {
		t.Errorf("page = %d after clear, want 0", s.Page().Num)
	}
	if _, total, _ := s.Records(testCtx(t)); total != 2 {
		t.Errorf("total = %d after clear, want 2", total)
	}
}

func TestStaleSearchResponseDiscarded(t *testing.T) {
	b := newTestBroker(t)
	seedLogs(t, b, 2)

	release := make(chan struct{})
	slowFirst := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slowFirst {
			slowFirst = false
			<-release
			_, _ = w.Write([]byte(`["u1"]`))
			return
		}
		_, _ = w.Write([]byte(`["u2"]`))
	}))
	defer srv.Close()

	s := New(b, search.NewClient(srv.URL, "", srv.Client()), nil, 10)
	if err := s.ActivateDataset(testCtx(t), "app", "f.log"); err != nil {
		t.Fatalf("ActivateDataset: %v", err)
	}

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.SetSearch(testCtx(t), "first") }()
	time.Sleep(50 * time.Millisecond) // let the first request reach the server

	if err := s.SetSearch(testCtx(t), "second"); err != nil {
		t.Fatalf("second SetSearch: %v", err)
	}
	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first SetSearch: %v", err)
	}

	// The late first response must not overwrite the newer result.
	if got := s.SearchState().UIDs(); !reflect.DeepEqual(got, []string{"u2"}) {
		t.Errorf("uids = %v, want [u2] from the newest search", got)
	}
}

func TestTogglePersistsAcrossActivation(t *testing.T) {
	b := newTestBroker(t)
	seedLogs(t, b, 2)
	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.json"))
	if err != nil {
		t.Fatalf("prefs.Open: %v", err)
	}

	s := New(b, nil, store, 10)
	if err := s.ActivateDataset(testCtx(t), "app", "f.log"); err != nil {
		t.Fatalf("ActivateDataset: %v", err)
	}
	if err := s.Toggle("level", "Info"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	// A fresh session over the same preference store sees the toggle.
	s2 := New(b, nil, store, 10)
	if err := s2.ActivateDataset(testCtx(t), "app", "f.log"); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	for _, v := range s2.Facets().Level {
		if v.Name == "Info" && v.Show {
			t.Error("Info still shown after persisted toggle")
		}
	}
}

func TestToggleUnknownValue(t *testing.T) {
	b := newTestBroker(t)
	seedLogs(t, b, 1)
	s := New(b, nil, nil, 10)
	if err := s.ActivateDataset(testCtx(t), "app", "f.log"); err != nil {
		t.Fatalf("ActivateDataset: %v", err)
	}

	if err := s.Toggle("level", "Nonsense"); err == nil {
		t.Error("Toggle of unknown value succeeded")
	}
	if err := s.Toggle("uid", "u1"); err == nil {
		t.Error("Toggle of non-facet column succeeded")
	}
}

func TestSetPageClampsNegative(t *testing.T) {
	s := New(newTestBroker(t), nil, nil, 10)
	s.SetPage(-3)
	if s.Page().Num != 0 {
		t.Errorf("page = %d, want 0", s.Page().Num)
	}
}

func TestSetPageSizeResetsPage(t *testing.T) {
	s := New(newTestBroker(t), nil, nil, 10)
	s.SetPage(4)
	s.SetPageSize(25)
	if p := s.Page(); p.Num != 0 || p.Size != 25 {
		t.Errorf("page = %+v, want {0 25}", p)
	}
}
