package migrate

import (
	"database/sql"
	"strings"
	"testing"
	"testing/fstest"

	_ "github.com/duckdb/duckdb-go/v2"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	// One connection keeps the in-memory database shared across queries.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func sqlFile(body string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(body)}
}

func TestRun_EmbeddedSchemaCreatesPollCycles(t *testing.T) {
	db := openDB(t)
	r := NewRunner(db)

	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM poll_cycles`).Scan(&n); err != nil {
		t.Fatalf("poll_cycles not queryable: %v", err)
	}

	steps, err := r.Steps()
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	v, err := r.Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if want := steps[len(steps)-1].Version; v != want {
		t.Fatalf("version = %d, want %d", v, want)
	}
	pending, err := r.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after Run = %d, want 0", len(pending))
	}
}

func TestRun_SecondRunIsNoop(t *testing.T) {
	db := openDB(t)
	for i := 0; i < 2; i++ {
		if err := NewRunner(db).Run(); err != nil {
			t.Fatalf("Run #%d: %v", i+1, err)
		}
	}

	steps, _ := NewRunner(db).Steps()
	var recorded int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_history`).Scan(&recorded); err != nil {
		t.Fatalf("count schema_history: %v", err)
	}
	if recorded != len(steps) {
		t.Fatalf("schema_history rows = %d, want %d", recorded, len(steps))
	}
}

func TestSteps_OrderedByVersion(t *testing.T) {
	files := fstest.MapFS{
		"010_late.sql":  sqlFile("SELECT 1"),
		"002_mid.sql":   sqlFile("SELECT 1"),
		"001_first.sql": sqlFile("SELECT 1"),
		"README.md":     sqlFile("not a step"),
	}
	steps, err := NewRunnerFS(nil, files).Steps()
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}

	var got []int
	for _, s := range steps {
		got = append(got, s.Version)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 10 {
		t.Fatalf("versions = %v, want [1 2 10]", got)
	}
}

func TestSteps_RejectsBadNames(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"no prefix":     {"create.sql": sqlFile("SELECT 1")},
		"zero version":  {"000_init.sql": sqlFile("SELECT 1")},
		"shared number": {"001_a.sql": sqlFile("SELECT 1"), "1_b.sql": sqlFile("SELECT 1")},
	}
	for name, files := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewRunnerFS(nil, files).Steps(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestRun_AppliesOnlyNewSteps(t *testing.T) {
	db := openDB(t)
	files := fstest.MapFS{
		"001_items.sql": sqlFile(`CREATE TABLE items (id INTEGER)`),
	}
	if err := NewRunnerFS(db, files).Run(); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	files["002_items_name.sql"] = sqlFile(`ALTER TABLE items ADD COLUMN name VARCHAR`)
	r := NewRunnerFS(db, files)
	pending, err := r.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Fatalf("pending = %+v, want only version 2", pending)
	}
	if err := r.Run(); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO items (id, name) VALUES (1, 'a')`); err != nil {
		t.Fatalf("new column missing: %v", err)
	}
	if v, _ := r.Version(); v != 2 {
		t.Fatalf("version = %d, want 2", v)
	}
}

func TestRun_FailingStepIsNotRecorded(t *testing.T) {
	db := openDB(t)
	files := fstest.MapFS{
		"001_ok.sql":     sqlFile(`CREATE TABLE ok (id INTEGER)`),
		"002_broken.sql": sqlFile(`CREATE TABLE broken (`),
	}
	r := NewRunnerFS(db, files)

	err := r.Run()
	if err == nil || !strings.Contains(err.Error(), "002_broken.sql") {
		t.Fatalf("Run error = %v, want failure naming 002_broken.sql", err)
	}
	if v, _ := r.Version(); v != 1 {
		t.Fatalf("version = %d, want 1", v)
	}
	pending, _ := r.Pending()
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want the broken step still pending", len(pending))
	}
}
