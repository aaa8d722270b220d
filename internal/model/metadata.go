package model

import "sort"

// MetadataRow is the unified record produced by the join stage.
type MetadataRow struct {
	ImageRecord

	// ImageFilename is the current join key: the source filename, then the
	// overlay filename once one exists, then split/category/file after
	// partitioning.
	ImageFilename     string
	Clinical          *ClinicalFeatures
	FetalHealth       float64
	CorrectedCategory Category
	Geometry          *EllipseGeometry

	// Extra holds clinical columns outside the known feature set.
	Extra map[string]string
}

// EffectiveCategory is the label the record is curated under.
func (r MetadataRow) EffectiveCategory() Category {
	if r.CorrectedCategory != "" {
		return r.CorrectedCategory
	}
	return r.Category
}

// GroupByCategory buckets rows by effective category, preserving order.
func GroupByCategory(rows []MetadataRow) map[Category][]MetadataRow {
	groups := make(map[Category][]MetadataRow, len(Categories))
	for _, c := range Categories {
		groups[c] = nil
	}
	for _, r := range rows {
		c := r.EffectiveCategory()
		groups[c] = append(groups[c], r)
	}
	return groups
}

// SortByImageNumber orders rows by image number, then filename.
func SortByImageNumber(rows []MetadataRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ImageNumber != rows[j].ImageNumber {
			return rows[i].ImageNumber < rows[j].ImageNumber
		}
		return rows[i].ImageFilename < rows[j].ImageFilename
	})
}

// DatasetSplit holds the records of one split, per category.
type DatasetSplit struct {
	Name    SplitName
	Records map[Category][]MetadataRow
}

// NewDatasetSplit returns a split with an empty slot for every category.
func NewDatasetSplit(name SplitName) DatasetSplit {
	records := make(map[Category][]MetadataRow, len(Categories))
	for _, c := range Categories {
		records[c] = []MetadataRow{}
	}
	return DatasetSplit{Name: name, Records: records}
}

// Count returns the number of records in a category slot.
func (s DatasetSplit) Count(c Category) int {
	return len(s.Records[c])
}

// Total returns the number of records across all categories.
func (s DatasetSplit) Total() int {
	total := 0
	for _, rows := range s.Records {
		total += len(rows)
	}
	return total
}

// QualityScore is a relative ranking signal in [0, 1].
type QualityScore struct {
	Total      float64 `json:"total"`
	Resolution float64 `json:"resolution"`
	Sharpness  float64 `json:"sharpness"`
	Contrast   float64 `json:"contrast"`
	Noise      float64 `json:"noise"`
}

// ScoredRecord attaches a quality score to a record within a split.
type ScoredRecord struct {
	Row   MetadataRow
	Score QualityScore
}
