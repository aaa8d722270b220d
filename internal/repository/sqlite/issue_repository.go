package sqlite

import (
	"fmt"

	"curator/internal/model"
	"curator/internal/report"
)

const (
	severityIssue   = "issue"
	severityWarning = "warning"
)

// IssueRepository implements repository.IssueRepository for SQLite.
type IssueRepository struct {
	db *DB
}

// NewIssueRepository creates a new SQLite issue repository.
func NewIssueRepository(db *DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// InsertBatch stores the issues and warnings of a run in a single transaction.
func (r *IssueRepository) InsertBatch(runID string, issues []report.Issue, warnings []model.Warning) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO issues (run_id, severity, stage, kind, split, category, filename, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, issue := range issues {
		if _, err := stmt.Exec(runID, severityIssue, issue.Stage, issue.Kind, "", "", issue.Filename, issue.Reason); err != nil {
			return fmt.Errorf("failed to insert issue: %w", err)
		}
	}
	for _, w := range warnings {
		if _, err := stmt.Exec(runID, severityWarning, "", w.Kind, w.Split, w.Category, w.Filename, w.Message); err != nil {
			return fmt.Errorf("failed to insert warning: %w", err)
		}
	}

	return tx.Commit()
}

// GetByRun retrieves the per-image issues of a run.
func (r *IssueRepository) GetByRun(runID string) ([]report.Issue, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT stage, kind, filename, reason
		FROM issues WHERE run_id = ? AND severity = ?
		ORDER BY id
	`, runID, severityIssue)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	var issues []report.Issue
	for rows.Next() {
		var issue report.Issue
		if err := rows.Scan(&issue.Stage, &issue.Kind, &issue.Filename, &issue.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// CountByKind counts issues and warnings of a run by kind.
func (r *IssueRepository) CountByKind(runID string) (map[model.Kind]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT kind, COUNT(*) FROM issues WHERE run_id = ? GROUP BY kind
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count issues: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Kind]int)
	for rows.Next() {
		var kind model.Kind
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan issue count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}
