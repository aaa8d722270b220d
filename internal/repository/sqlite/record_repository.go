package sqlite

import (
	"database/sql"
	"fmt"

	"curator/internal/model"
)

// RecordRepository implements repository.RecordRepository for SQLite.
type RecordRepository struct {
	db *DB
}

// NewRecordRepository creates a new SQLite record repository.
func NewRecordRepository(db *DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// InsertBatch stores joined rows of a run in a single transaction.
func (r *RecordRepository) InsertBatch(runID string, rows []model.MetadataRow) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO records (run_id, image_number, source_filename, image_filename, category,
			corrected_category, fetal_health, has_annotation,
			ellipse_center_x, ellipse_center_y, ellipse_axis_x, ellipse_axis_y, ellipse_angle)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		var health sql.NullFloat64
		if row.Clinical != nil {
			health = sql.NullFloat64{Float64: row.FetalHealth, Valid: true}
		}
		var cx, cy, ax, ay, angle sql.NullFloat64
		if g := row.Geometry; g != nil {
			cx = sql.NullFloat64{Float64: g.CenterX, Valid: true}
			cy = sql.NullFloat64{Float64: g.CenterY, Valid: true}
			ax = sql.NullFloat64{Float64: g.AxisX, Valid: true}
			ay = sql.NullFloat64{Float64: g.AxisY, Valid: true}
			angle = sql.NullFloat64{Float64: g.Angle, Valid: true}
		}

		if _, err := stmt.Exec(runID, row.ImageNumber, row.Filename, row.ImageFilename, row.Category,
			row.CorrectedCategory, health, row.HasAnnotation, cx, cy, ax, ay, angle); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", row.ImageNumber, err)
		}
	}

	return tx.Commit()
}

// InsertAssignments stores split assignments of a run in a single transaction.
func (r *RecordRepository) InsertAssignments(runID string, assignments []model.Assignment) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO assignments (run_id, image_number, filename, stage, split, category,
			score_total, score_resolution, score_sharpness, score_contrast, score_noise)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, a := range assignments {
		var total, resolution, sharpness, contrast, noise sql.NullFloat64
		if s := a.Score; s != nil {
			total = sql.NullFloat64{Float64: s.Total, Valid: true}
			resolution = sql.NullFloat64{Float64: s.Resolution, Valid: true}
			sharpness = sql.NullFloat64{Float64: s.Sharpness, Valid: true}
			contrast = sql.NullFloat64{Float64: s.Contrast, Valid: true}
			noise = sql.NullFloat64{Float64: s.Noise, Valid: true}
		}
		if _, err := stmt.Exec(runID, a.ImageNumber, a.Filename, a.Stage, a.Split, a.Category,
			total, resolution, sharpness, contrast, noise); err != nil {
			return fmt.Errorf("failed to insert assignment: %w", err)
		}
	}

	return tx.Commit()
}

// GetAssignments retrieves every assignment of a run for one stage.
func (r *RecordRepository) GetAssignments(runID, stage string) ([]model.Assignment, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT image_number, filename, stage, split, category,
			score_total, score_resolution, score_sharpness, score_contrast, score_noise
		FROM assignments WHERE run_id = ? AND stage = ?
		ORDER BY split, category, image_number
	`, runID, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		var a model.Assignment
		var total, resolution, sharpness, contrast, noise sql.NullFloat64
		if err := rows.Scan(&a.ImageNumber, &a.Filename, &a.Stage, &a.Split, &a.Category,
			&total, &resolution, &sharpness, &contrast, &noise); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		if total.Valid {
			a.Score = &model.QualityScore{
				Total:      total.Float64,
				Resolution: resolution.Float64,
				Sharpness:  sharpness.Float64,
				Contrast:   contrast.Float64,
				Noise:      noise.Float64,
			}
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// CountBySlot returns the record count of every stage/split/category slot.
func (r *RecordRepository) CountBySlot(runID string) ([]model.SlotCount, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT stage, split, category, COUNT(*)
		FROM assignments WHERE run_id = ?
		GROUP BY stage, split, category
		ORDER BY stage DESC, split, category
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}
	defer rows.Close()

	var counts []model.SlotCount
	for rows.Next() {
		var c model.SlotCount
		if err := rows.Scan(&c.Stage, &c.Split, &c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan slot count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// GetTotalCount returns the number of joined records of a run.
func (r *RecordRepository) GetTotalCount(runID string) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM records WHERE run_id = ?`, runID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}
