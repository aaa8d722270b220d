package repository

import (
	"curator/internal/model"
	"curator/internal/report"
)

// RunRepository defines the interface for pipeline run operations.
type RunRepository interface {
	// Create operations
	Insert(run *model.Run) error

	// Update operations
	Finish(run *model.Run) error

	// Read operations
	GetByID(id string) (*model.Run, error)
	GetRecent(limit int) ([]model.Run, error)
}

// RecordRepository defines the interface for joined record and split
// assignment operations.
type RecordRepository interface {
	// Create operations
	InsertBatch(runID string, rows []model.MetadataRow) error
	InsertAssignments(runID string, assignments []model.Assignment) error

	// Read operations
	GetAssignments(runID, stage string) ([]model.Assignment, error)
	CountBySlot(runID string) ([]model.SlotCount, error)
	GetTotalCount(runID string) (int, error)
}

// IssueRepository defines the interface for run report operations.
type IssueRepository interface {
	// Create operations
	InsertBatch(runID string, issues []report.Issue, warnings []model.Warning) error

	// Read operations
	GetByRun(runID string) ([]report.Issue, error)
	CountByKind(runID string) (map[model.Kind]int, error)
}
