package metadata

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"curator/internal/model"
	"curator/internal/storage"
)

// Joined table columns computed by the pipeline. They take precedence over
// same-named clinical columns.
const (
	ColumnImageNumber       = "image_number"
	ColumnImageFilename     = "image_filename"
	ColumnCategory          = "category"
	ColumnCorrectedCategory = "corrected_category"
	ColumnFetalHealth       = model.HealthColumn
	ColumnCenterX           = "ellipse_center_x"
	ColumnCenterY           = "ellipse_center_y"
	ColumnAxisX             = "ellipse_axis_x"
	ColumnAxisY             = "ellipse_axis_y"
	ColumnAngle             = "ellipse_angle"
	ColumnHasAnnotation     = "has_annotation"
)

// ComputedColumns lists the computed columns in output order.
var ComputedColumns = []string{
	ColumnImageNumber,
	ColumnImageFilename,
	ColumnCategory,
	ColumnCorrectedCategory,
	ColumnFetalHealth,
	ColumnCenterX,
	ColumnCenterY,
	ColumnAxisX,
	ColumnAxisY,
	ColumnAngle,
	ColumnHasAnnotation,
}

// original_category is what earlier runs called the directory label.
var shadowedColumns = map[string]bool{"original_category": true}

func isComputedColumn(name string) bool {
	if shadowedColumns[name] {
		return true
	}
	for _, c := range ComputedColumns {
		if c == name {
			return true
		}
	}
	return false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ToTable renders joined rows with computed columns first, then clinical
// features, then any extra clinical columns in lexical order.
func ToTable(rows []model.MetadataRow) storage.Table {
	extraSet := make(map[string]bool)
	for _, r := range rows {
		for k := range r.Extra {
			extraSet[k] = true
		}
	}
	extras := make([]string, 0, len(extraSet))
	for k := range extraSet {
		extras = append(extras, k)
	}
	sort.Strings(extras)

	columns := append(append(append([]string{}, ComputedColumns...), model.FeatureColumns...), extras...)
	table := storage.Table{Columns: columns, Rows: make([]map[string]string, 0, len(rows))}

	for _, r := range rows {
		out := make(map[string]string, len(columns))
		out[ColumnImageNumber] = strconv.Itoa(r.ImageNumber)
		out[ColumnImageFilename] = r.ImageFilename
		out[ColumnCategory] = string(r.Category)
		out[ColumnCorrectedCategory] = string(r.CorrectedCategory)
		out[ColumnHasAnnotation] = strconv.FormatBool(r.HasAnnotation)

		if r.Clinical != nil {
			out[ColumnFetalHealth] = formatFloat(r.FetalHealth)
			for i, v := range r.Clinical.Values() {
				out[model.FeatureColumns[i]] = formatFloat(v)
			}
		}
		if g := r.Geometry; g != nil {
			out[ColumnCenterX] = formatFloat(g.CenterX)
			out[ColumnCenterY] = formatFloat(g.CenterY)
			out[ColumnAxisX] = formatFloat(g.AxisX)
			out[ColumnAxisY] = formatFloat(g.AxisY)
			out[ColumnAngle] = formatFloat(g.Angle)
		}
		for k, v := range r.Extra {
			out[k] = v
		}
		table.Rows = append(table.Rows, out)
	}
	return table
}

// FromTable parses a joined table written by ToTable.
func FromTable(t storage.Table) ([]model.MetadataRow, error) {
	rows := make([]model.MetadataRow, 0, len(t.Rows))
	for i, raw := range t.Rows {
		row, err := parseJoinedRow(raw)
		if err != nil {
			return nil, fmt.Errorf("joined table line %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseJoinedRow(raw map[string]string) (model.MetadataRow, error) {
	number, err := strconv.Atoi(raw[ColumnImageNumber])
	if err != nil || number <= 0 {
		return model.MetadataRow{}, fmt.Errorf("invalid image_number %q", raw[ColumnImageNumber])
	}
	category, err := model.ParseCategory(raw[ColumnCategory])
	if err != nil {
		return model.MetadataRow{}, err
	}
	hasAnnotation := false
	if v := strings.TrimSpace(raw[ColumnHasAnnotation]); v != "" {
		if hasAnnotation, err = strconv.ParseBool(v); err != nil {
			return model.MetadataRow{}, fmt.Errorf("invalid %s %q", ColumnHasAnnotation, raw[ColumnHasAnnotation])
		}
	}

	filename := raw[ColumnImageFilename]
	row := model.MetadataRow{
		ImageRecord: model.ImageRecord{
			ImageNumber:   number,
			Filename:      filepath.Base(filename),
			Category:      category,
			HasAnnotation: hasAnnotation,
		},
		ImageFilename: filename,
	}

	if c := raw[ColumnCorrectedCategory]; c != "" {
		if row.CorrectedCategory, err = model.ParseCategory(c); err != nil {
			return model.MetadataRow{}, err
		}
	}

	if raw[ColumnFetalHealth] != "" {
		features, err := model.ParseClinicalFeatures(raw)
		if err != nil {
			return model.MetadataRow{}, err
		}
		row.Clinical = &features
		row.FetalHealth = features.FetalHealth
	}

	if raw[ColumnCenterX] != "" {
		g, err := parseGeometry(raw)
		if err != nil {
			return model.MetadataRow{}, err
		}
		row.Geometry = &g
	}

	for k, v := range raw {
		if isComputedColumn(k) || model.IsClinicalColumn(model.NormalizeColumn(k)) {
			continue
		}
		if row.Extra == nil {
			row.Extra = make(map[string]string)
		}
		row.Extra[k] = v
	}
	return row, nil
}

func parseGeometry(raw map[string]string) (model.EllipseGeometry, error) {
	var g model.EllipseGeometry
	fields := []struct {
		column string
		dst    *float64
	}{
		{ColumnCenterX, &g.CenterX},
		{ColumnCenterY, &g.CenterY},
		{ColumnAxisX, &g.AxisX},
		{ColumnAxisY, &g.AxisY},
		{ColumnAngle, &g.Angle},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw[f.column]), 64)
		if err != nil {
			return model.EllipseGeometry{}, fmt.Errorf("invalid %s %q", f.column, raw[f.column])
		}
		*f.dst = v
	}
	return g, nil
}
