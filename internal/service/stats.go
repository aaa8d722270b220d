package service

import (
	"errors"
	"fmt"

	"curator/internal/model"
)

// ErrNoDatabase is returned by queries that need persistence when it is disabled.
var ErrNoDatabase = errors.New("persistence is disabled")

// RunStats summarizes one persisted run.
type RunStats struct {
	Run     model.Run
	Records int
	Slots   []model.SlotCount
	Issues  map[model.Kind]int
}

// Stats returns the most recent runs with their record, slot and issue counts.
func (m *Manager) Stats(limit int) ([]RunStats, error) {
	if m.repos == nil {
		return nil, ErrNoDatabase
	}

	runs, err := m.repos.Runs.GetRecent(limit)
	if err != nil {
		return nil, err
	}

	stats := make([]RunStats, 0, len(runs))
	for _, run := range runs {
		records, err := m.repos.Records.GetTotalCount(run.ID)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		slots, err := m.repos.Records.CountBySlot(run.ID)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		issues, err := m.repos.Issues.CountByKind(run.ID)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		stats = append(stats, RunStats{Run: run, Records: records, Slots: slots, Issues: issues})
	}
	return stats, nil
}
