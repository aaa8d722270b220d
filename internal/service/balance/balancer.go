package balance

import (
	"fmt"
	"sort"

	"curator/internal/logger"
	"curator/internal/model"
)

// BalancedSplit is one split reduced to the malignant count.
type BalancedSplit struct {
	Name    model.SplitName
	Target  int
	Records map[model.Category][]model.MetadataRow
	// Scores of the selected normal and benign records, by ImageFilename.
	Scores map[string]model.QualityScore
	// Available is the pool size of each category before selection.
	Available map[model.Category]int
}

// SummaryRow is one line of the balance summary table.
type SummaryRow struct {
	Split     model.SplitName
	Category  model.Category
	Available int
	Selected  int
}

// Balancer keeps every malignant record and the best-scored normal and
// benign records of each split.
type Balancer struct {
	logger *logger.Logger
}

// NewBalancer creates a Balancer.
func NewBalancer(logger *logger.Logger) *Balancer {
	return &Balancer{logger: logger}
}

// Rank orders records by score descending, then filename ascending.
func Rank(records []model.ScoredRecord) []model.ScoredRecord {
	ranked := make([]model.ScoredRecord, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score.Total != ranked[j].Score.Total {
			return ranked[i].Score.Total > ranked[j].Score.Total
		}
		return ranked[i].Row.ImageFilename < ranked[j].Row.ImageFilename
	})
	return ranked
}

// Balance selects the top N normal and benign records of a split, where N is
// the number of malignant records in it.
func (b *Balancer) Balance(split model.SplitName, scored map[model.Category][]model.ScoredRecord, malignant []model.MetadataRow) (BalancedSplit, []model.Warning) {
	target := len(malignant)
	result := BalancedSplit{
		Name:      split,
		Target:    target,
		Records:   make(map[model.Category][]model.MetadataRow, len(model.Categories)),
		Scores:    make(map[string]model.QualityScore),
		Available: make(map[model.Category]int, len(model.Categories)),
	}
	result.Records[model.CategoryMalignant] = append([]model.MetadataRow{}, malignant...)
	result.Available[model.CategoryMalignant] = target

	var warnings []model.Warning
	if target == 0 {
		b.logger.Warning("Split %s has no malignant records; normal and benign are reduced to zero", split)
		warnings = append(warnings, model.Warning{
			Kind:     model.KindEmptyCategory,
			Split:    split,
			Category: model.CategoryMalignant,
			Message:  fmt.Sprintf("split %s has no malignant records, balance target is 0", split),
		})
	}

	for _, c := range []model.Category{model.CategoryNormal, model.CategoryBenign} {
		pool := scored[c]
		result.Available[c] = len(pool)

		n := target
		if len(pool) < target {
			n = len(pool)
			b.logger.Warning("Split %s has %d %s records, fewer than the target %d", split, len(pool), c, target)
			warnings = append(warnings, model.Warning{
				Kind:     model.KindShortCategory,
				Split:    split,
				Category: c,
				Message:  fmt.Sprintf("split %s has %d %s records, fewer than the target %d; keeping all", split, len(pool), c, target),
			})
		}

		selected := make([]model.MetadataRow, 0, n)
		for _, r := range Rank(pool)[:n] {
			selected = append(selected, r.Row)
			result.Scores[r.Row.ImageFilename] = r.Score
		}
		result.Records[c] = selected
		b.logger.Info("Split %s: selected %d of %d %s records", split, n, len(pool), c)
	}

	return result, warnings
}

// Summary returns available and selected counts per category.
func (s BalancedSplit) Summary() []SummaryRow {
	rows := make([]SummaryRow, 0, len(model.Categories))
	for _, c := range model.Categories {
		rows = append(rows, SummaryRow{
			Split:     s.Name,
			Category:  c,
			Available: s.Available[c],
			Selected:  len(s.Records[c]),
		})
	}
	return rows
}
