package migrate

import (
	"database/sql"
	"strings"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunCreatesSchema(t *testing.T) {
	db := newTestDB(t)
	if err := NewRunner(db).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, table := range []string{"logs", "custom", "schema_migrations"} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Errorf("table %s missing after Run: %v", table, err)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	r := NewRunner(db)
	if err := r.Run(); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	var applied int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count applied: %v", err)
	}
	if applied != 1 {
		t.Errorf("applied migrations = %d, want 1", applied)
	}
}

func TestBootstrapStatements(t *testing.T) {
	stmts, err := BootstrapStatements()
	if err != nil {
		t.Fatalf("BootstrapStatements: %v", err)
	}
	if len(stmts) == 0 {
		t.Fatal("no bootstrap statements")
	}

	// Every statement must execute cleanly against a fresh database.
	db := newTestDB(t)
	var sawLogs, sawCustom bool
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("executing %q: %v", stmt, err)
		}
		if strings.Contains(stmt, "logs") {
			sawLogs = true
		}
		if strings.Contains(stmt, "custom") {
			sawCustom = true
		}
	}
	if !sawLogs || !sawCustom {
		t.Errorf("bootstrap statements cover logs=%v custom=%v, want both", sawLogs, sawCustom)
	}
}
