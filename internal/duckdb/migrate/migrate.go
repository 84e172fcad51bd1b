// Package migrate keeps the history schema current. Steps are SQL files
// named NNN_description.sql, embedded at build time.
package migrate

import (
	"cmp"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"slices"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Step is one schema change.
type Step struct {
	Version int
	Name    string
	SQL     string
}

// Runner applies the steps found in a directory of an fs.FS.
type Runner struct {
	db    *sql.DB
	files fs.FS
	dir   string
}

// NewRunner uses the embedded poll_cycles steps.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db, files: embedded, dir: "migrations"}
}

// NewRunnerFS reads steps from the root of files.
func NewRunnerFS(db *sql.DB, files fs.FS) *Runner {
	return &Runner{db: db, files: files, dir: "."}
}

const historyTable = `CREATE TABLE IF NOT EXISTS schema_history (
	version    INTEGER PRIMARY KEY,
	name       VARCHAR NOT NULL,
	applied_at TIMESTAMP DEFAULT current_timestamp
)`

// Steps lists the .sql files of the runner's directory by version. Every
// file must carry a positive, unique numeric prefix.
func (r *Runner) Steps() ([]Step, error) {
	entries, err := fs.ReadDir(r.files, r.dir)
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	var steps []Step
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		prefix, _, _ := strings.Cut(e.Name(), "_")
		ver, err := strconv.Atoi(prefix)
		if err != nil || ver <= 0 {
			return nil, fmt.Errorf("migration %s: want NNN_name.sql", e.Name())
		}
		body, err := fs.ReadFile(r.files, path.Join(r.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		steps = append(steps, Step{Version: ver, Name: e.Name(), SQL: string(body)})
	}

	slices.SortFunc(steps, func(a, b Step) int { return cmp.Compare(a.Version, b.Version) })
	for i := 1; i < len(steps); i++ {
		if steps[i].Version == steps[i-1].Version {
			return nil, fmt.Errorf("migrations %s and %s share version %d", steps[i-1].Name, steps[i].Name, steps[i].Version)
		}
	}
	return steps, nil
}

// applied returns the recorded versions.
func (r *Runner) applied() (map[int]bool, error) {
	if _, err := r.db.Exec(historyTable); err != nil {
		return nil, fmt.Errorf("creating schema_history: %w", err)
	}
	rows, err := r.db.Query(`SELECT version FROM schema_history`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

// Pending returns the steps not yet recorded, in order.
func (r *Runner) Pending() ([]Step, error) {
	steps, err := r.Steps()
	if err != nil {
		return nil, err
	}
	done, err := r.applied()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(steps, func(s Step) bool { return done[s.Version] }), nil
}

// Version returns the highest recorded version, 0 on a fresh database.
func (r *Runner) Version() (int, error) {
	done, err := r.applied()
	if err != nil {
		return 0, err
	}
	v := 0
	for ver := range done {
		v = max(v, ver)
	}
	return v, nil
}

// Run applies every pending step. A failing step is rolled back and stops
// the run; earlier steps stay applied.
func (r *Runner) Run() error {
	pending, err := r.Pending()
	if err != nil {
		return err
	}
	for _, s := range pending {
		if err := r.apply(s); err != nil {
			return err
		}
		log.Printf("duckdb: schema at version %d (%s)", s.Version, s.Name)
	}
	return nil
}

func (r *Runner) apply(s Step) (err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("migration %s: %w", s.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(s.SQL); err != nil {
		return fmt.Errorf("migration %s: %w", s.Name, err)
	}
	if _, err = tx.Exec(`INSERT INTO schema_history (version, name) VALUES (?, ?)`, s.Version, s.Name); err != nil {
		return fmt.Errorf("migration %s: recording: %w", s.Name, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("migration %s: commit: %w", s.Name, err)
	}
	return nil
}
