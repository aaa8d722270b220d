package service

import (
	"context"
	"fmt"

	"curator/internal/model"
	"curator/internal/report"
	"curator/internal/service/partition"
)

// Import registers a joined table written by an earlier run, possibly on
// another machine, as a new run in the database. When the table's filenames
// carry split/category prefixes its partition assignments are stored too.
func (m *Manager) Import(ctx context.Context, tablePath string) (*report.Report, error) {
	if m.repos == nil {
		return nil, ErrNoDatabase
	}

	return m.execute("import", func(run *model.Run, rep *report.Report) error {
		rows, err := m.readJoinedTable(tablePath)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := m.repos.Records.InsertBatch(run.ID, rows); err != nil {
			return err
		}
		rep.Processed(report.StageIngest, len(rows))

		part, err := partition.Restore(rows)
		if err != nil {
			m.logger.Warning("Imported %d records from %s without partition assignments: %v", len(rows), tablePath, err)
			rep.Warn(model.Warning{
				Kind:    model.KindNotPartitioned,
				Message: fmt.Sprintf("%s has no split/category layout: %v", tablePath, err),
			})
			return nil
		}
		if err := m.repos.Records.InsertAssignments(run.ID, partitionAssignments(part)); err != nil {
			return err
		}
		rep.Processed(report.StagePartition, part.Total())
		m.logger.Info("Imported %d records from %s with partition assignments", len(rows), tablePath)
		return nil
	})
}
