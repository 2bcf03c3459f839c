// Package store provides a SQLite-backed history of past runs. History is
// supplementary output: writes that fail are logged by the caller and never
// abort a run.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite" // register sqlite driver
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT
);

CREATE TABLE IF NOT EXISTS scenario_results (
	run_id      TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	scenario    TEXT NOT NULL,
	salary      TEXT NOT NULL,
	allowances  TEXT NOT NULL,
	relief      TEXT NOT NULL,
	net_income  TEXT NOT NULL,
	resolved    INTEGER NOT NULL,
	note        TEXT NOT NULL,
	report_path TEXT NOT NULL,
	recorded_at TEXT NOT NULL,
	PRIMARY KEY (run_id, scenario)
);
`

// ResultRecord is one scenario outcome within a run.
type ResultRecord struct {
	Scenario   string
	Salary     decimal.Decimal
	Allowances decimal.Decimal
	Relief     decimal.Decimal
	NetIncome  decimal.Decimal
	Resolved   bool
	Note       string
	ReportPath string
}

// History is the run-history database.
type History struct {
	db *sql.DB
}

// Open opens or creates the history database at the given path.
func Open(dbPath string) (*History, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &History{db: db}, nil
}

// Close closes the history database.
func (h *History) Close() error {
	return h.db.Close()
}

// BeginRun registers a new run and returns its identifier.
func (h *History) BeginRun() (string, error) {
	runID := uuid.NewString()
	_, err := h.db.Exec(`INSERT INTO runs (run_id, started_at) VALUES (?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", err
	}
	return runID, nil
}

// FinishRun stamps the run's completion time.
func (h *History) FinishRun(runID string) error {
	_, err := h.db.Exec(`UPDATE runs SET finished_at = ? WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339), runID)
	return err
}

// SaveResult stores one scenario outcome for a run.
func (h *History) SaveResult(runID string, r ResultRecord) error {
	resolved := 0
	if r.Resolved {
		resolved = 1
	}
	_, err := h.db.Exec(`INSERT OR REPLACE INTO scenario_results
		(run_id, scenario, salary, allowances, relief, net_income,
		 resolved, note, report_path, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Scenario,
		r.Salary.StringFixed(2), r.Allowances.StringFixed(2), r.Relief.StringFixed(2),
		r.NetIncome.StringFixed(2),
		resolved, r.Note, r.ReportPath,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ResultsForRun reads the stored outcomes of one run, ordered by scenario.
func (h *History) ResultsForRun(runID string) ([]ResultRecord, error) {
	rows, err := h.db.Query(`SELECT
		scenario, salary, allowances, relief, net_income, resolved, note, report_path
		FROM scenario_results WHERE run_id = ? ORDER BY scenario`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []ResultRecord
	for rows.Next() {
		var r ResultRecord
		var salary, allowances, relief, net string
		var resolved int
		if err := rows.Scan(&r.Scenario, &salary, &allowances, &relief, &net,
			&resolved, &r.Note, &r.ReportPath); err != nil {
			return nil, err
		}
		r.Resolved = resolved != 0
		if r.Salary, err = decimal.NewFromString(salary); err != nil {
			return nil, fmt.Errorf("bad salary for %s: %w", r.Scenario, err)
		}
		if r.Allowances, err = decimal.NewFromString(allowances); err != nil {
			return nil, fmt.Errorf("bad allowances for %s: %w", r.Scenario, err)
		}
		if r.Relief, err = decimal.NewFromString(relief); err != nil {
			return nil, fmt.Errorf("bad relief for %s: %w", r.Scenario, err)
		}
		if r.NetIncome, err = decimal.NewFromString(net); err != nil {
			return nil, fmt.Errorf("bad net income for %s: %w", r.Scenario, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// RunCount returns the number of recorded runs.
func (h *History) RunCount() (int, error) {
	var count int
	err := h.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count)
	return count, err
}
