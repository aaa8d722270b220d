package metadata

import (
	"fmt"

	"curator/internal/logger"
	"curator/internal/model"
	"curator/internal/storage"
)

// ClinicalRow is one clinical table row with the columns outside the known
// feature set kept verbatim.
type ClinicalRow struct {
	Features model.ClinicalFeatures
	Extra    map[string]string
}

// ClinicalTable maps a source image filename to its clinical row.
type ClinicalTable map[string]ClinicalRow

// ExtractedRecord is an ingested image with the optional outputs of the
// annotation and overlay stages.
type ExtractedRecord struct {
	Record          model.ImageRecord
	Geometry        *model.EllipseGeometry
	OverlayFilename string
}

// JoinStats counts how many records found a clinical row.
type JoinStats struct {
	Matched    int
	Unmatched  int
	Mismatched int
}

// Joiner merges clinical metadata, geometry and the corrected label.
type Joiner struct {
	logger *logger.Logger
}

// NewJoiner creates a Joiner.
func NewJoiner(logger *logger.Logger) *Joiner {
	return &Joiner{logger: logger}
}

// ParseKeyedTable builds a ClinicalTable from rows carrying an image_filename column.
func ParseKeyedTable(t storage.Table) (ClinicalTable, error) {
	table := make(ClinicalTable, len(t.Rows))
	for i, raw := range t.Rows {
		filename := raw[ColumnImageFilename]
		if filename == "" {
			return nil, fmt.Errorf("clinical table line %d: missing %s", i+2, ColumnImageFilename)
		}
		row, err := parseClinicalRow(raw)
		if err != nil {
			return nil, fmt.Errorf("clinical table line %d: %w", i+2, err)
		}
		table[filename] = row
	}
	return table, nil
}

// ParsePositionalTable builds a ClinicalTable from the raw clinical export,
// where row index + 1 is the image number. Rows without an ingested image are
// ignored.
func ParsePositionalTable(t storage.Table, records []model.ImageRecord) (ClinicalTable, error) {
	byNumber := make(map[int]string, len(records))
	for _, r := range records {
		byNumber[r.ImageNumber] = r.Filename
	}

	table := make(ClinicalTable, len(records))
	for i, raw := range t.Rows {
		filename, ok := byNumber[i+1]
		if !ok {
			continue
		}
		row, err := parseClinicalRow(raw)
		if err != nil {
			return nil, fmt.Errorf("clinical table line %d: %w", i+2, err)
		}
		table[filename] = row
	}
	return table, nil
}

func parseClinicalRow(raw map[string]string) (ClinicalRow, error) {
	features, err := model.ParseClinicalFeatures(raw)
	if err != nil {
		return ClinicalRow{}, err
	}

	row := ClinicalRow{Features: features}
	for k, v := range raw {
		name := model.NormalizeColumn(k)
		if model.IsClinicalColumn(name) || isComputedColumn(name) {
			continue
		}
		if row.Extra == nil {
			row.Extra = make(map[string]string)
		}
		row.Extra[k] = v
	}
	return row, nil
}

// Join produces one MetadataRow per record, ordered by image number. A record
// without a clinical row is kept with geometry and directory category only.
// When the clinical label disagrees with the directory the clinical label
// wins and a CategoryMismatch warning is returned.
func (j *Joiner) Join(records []ExtractedRecord, table ClinicalTable) ([]model.MetadataRow, []model.Warning, JoinStats) {
	rows := make([]model.MetadataRow, 0, len(records))
	var warnings []model.Warning
	var stats JoinStats

	for _, rec := range records {
		row := model.MetadataRow{
			ImageRecord:   rec.Record,
			ImageFilename: rec.Record.Filename,
		}
		if rec.OverlayFilename != "" {
			row.ImageFilename = rec.OverlayFilename
		}
		if rec.Geometry != nil {
			g := *rec.Geometry
			row.Geometry = &g
		}

		clinical, ok := table[rec.Record.Filename]
		if !ok {
			stats.Unmatched++
			rows = append(rows, row)
			continue
		}
		stats.Matched++

		features := clinical.Features
		row.Clinical = &features
		row.FetalHealth = features.FetalHealth
		if len(clinical.Extra) > 0 {
			row.Extra = make(map[string]string, len(clinical.Extra))
			for k, v := range clinical.Extra {
				row.Extra[k] = v
			}
		}

		corrected, known := model.CategoryFromHealth(features.FetalHealth)
		if !known {
			j.logger.Warning("Image %d has unknown fetal_health code %v", rec.Record.ImageNumber, features.FetalHealth)
			warnings = append(warnings, model.Warning{
				Kind:     model.KindUnknownHealthCode,
				Category: rec.Record.Category,
				Filename: rec.Record.Filename,
				Message:  fmt.Sprintf("image %d has unknown fetal_health code %v", rec.Record.ImageNumber, features.FetalHealth),
			})
			rows = append(rows, row)
			continue
		}
		row.CorrectedCategory = corrected

		if corrected != rec.Record.Category {
			stats.Mismatched++
			msg := fmt.Sprintf("image %d is in %s directory but has fetal_health class %v (should be in %s)",
				rec.Record.ImageNumber, rec.Record.Category, features.FetalHealth, corrected)
			j.logger.Warning("%s", msg)
			warnings = append(warnings, model.Warning{
				Kind:     model.KindCategoryMismatch,
				Category: corrected,
				Filename: rec.Record.Filename,
				Message:  msg,
			})
		}
		rows = append(rows, row)
	}

	model.SortByImageNumber(rows)
	j.logger.Info("Joined %d records: %d with clinical data, %d without, %d category mismatches",
		len(rows), stats.Matched, stats.Unmatched, stats.Mismatched)
	return rows, warnings, stats
}

// Rename returns copies of rows whose ImageFilename is replaced through
// mapping (old name to new name). Rows not in mapping are copied unchanged.
func Rename(rows []model.MetadataRow, mapping map[string]string) []model.MetadataRow {
	out := make([]model.MetadataRow, len(rows))
	for i, r := range rows {
		if renamed, ok := mapping[r.ImageFilename]; ok {
			r.ImageFilename = renamed
		}
		out[i] = r
	}
	return out
}
