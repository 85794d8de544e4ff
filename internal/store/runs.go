package store

import (
	"fmt"
	"time"
)

// Run records one completed history rewrite.
type Run struct {
	ID          int
	RepoPath    string
	RangeSpec   string
	WindowSpec  string
	Policy      string
	CommitCount int
	CreatedAt   time.Time
}

// RunRewrite records one commit's date change within a run.
type RunRewrite struct {
	ID      int
	RunID   int
	SHA     string
	Subject string
	OldDate time.Time
	NewDate time.Time
}

// InsertRun journals a run and its per-commit rewrites in one transaction.
func (db *DB) InsertRun(run *Run, rewrites []RunRewrite) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO runs (repo_path, range_spec, window_spec, policy, commit_count)
		 VALUES (?, ?, ?, ?, ?)`,
		run.RepoPath, run.RangeSpec, run.WindowSpec, run.Policy, run.CommitCount,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	for _, rw := range rewrites {
		_, err := tx.Exec(
			`INSERT INTO rewrites (run_id, sha, subject, old_date, new_date)
			 VALUES (?, ?, ?, ?, ?)`,
			runID, rw.SHA, rw.Subject,
			rw.OldDate.UTC().Format(time.RFC3339),
			rw.NewDate.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting rewrite %s: %w", rw.SHA, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	rows, err := db.Query(
		`SELECT id, repo_path, range_spec, window_spec, policy, commit_count, created_at
		 FROM runs
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var createdStr string
		if err := rows.Scan(&r.ID, &r.RepoPath, &r.RangeSpec, &r.WindowSpec, &r.Policy, &r.CommitCount, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if t, err := time.Parse("2006-01-02 15:04:05", createdStr); err == nil {
			r.CreatedAt = t
		} else if t, err := time.Parse(time.RFC3339, createdStr); err == nil {
			r.CreatedAt = t
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// Rewrites returns a run's per-commit rewrites, oldest commit first.
func (db *DB) Rewrites(runID int) ([]RunRewrite, error) {
	rows, err := db.Query(
		`SELECT id, run_id, sha, subject, old_date, new_date
		 FROM rewrites
		 WHERE run_id = ?
		 ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying rewrites: %w", err)
	}
	defer rows.Close()

	var rewrites []RunRewrite
	for rows.Next() {
		var rw RunRewrite
		var oldStr, newStr string
		if err := rows.Scan(&rw.ID, &rw.RunID, &rw.SHA, &rw.Subject, &oldStr, &newStr); err != nil {
			return nil, fmt.Errorf("scanning rewrite: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, oldStr); err == nil {
			rw.OldDate = t
		}
		if t, err := time.Parse(time.RFC3339, newStr); err == nil {
			rw.NewDate = t
		}
		rewrites = append(rewrites, rw)
	}

	return rewrites, rows.Err()
}
