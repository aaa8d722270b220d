package partition

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"path"
	"strings"
	"sync"

	"curator/internal/config"
	"curator/internal/logger"
	"curator/internal/model"
)

// Partition holds every split produced from one set of records.
type Partition struct {
	Splits map[model.SplitName]model.DatasetSplit
}

// SummaryRow is one line of the partition summary table.
type SummaryRow struct {
	Split    model.SplitName
	Category model.Category
	Count    int
}

// Sizes is the number of records a category contributes to each split.
type Sizes struct {
	Train int
	Val   int
	Test  int
}

// Partitioner performs the stratified split.
type Partitioner struct {
	logger *logger.Logger
}

// NewPartitioner creates a Partitioner.
func NewPartitioner(logger *logger.Logger) *Partitioner {
	return &Partitioner{logger: logger}
}

// SplitSizes computes per-split counts for n records. Train and val are
// floored and clamped to what is left; test takes the remainder.
func SplitSizes(n int, cfg config.PartitionConfig) Sizes {
	train := clamp(int(math.Floor(float64(n)*cfg.TrainRatio)), 0, n)
	val := clamp(int(math.Floor(float64(n)*cfg.ValRatio)), 0, n-train)
	return Sizes{Train: train, Val: val, Test: n - train - val}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CategorySeed derives the shuffle seed of one category from the run seed.
func CategorySeed(seed int64, c model.Category) int64 {
	h := fnv.New64a()
	h.Write([]byte(c))
	return seed ^ int64(h.Sum64())
}

// Partition splits each category independently and concurrently. The same
// input and seed always yield the same assignment.
func (p *Partitioner) Partition(groups map[model.Category][]model.MetadataRow, cfg config.PartitionConfig) (Partition, []model.Warning, error) {
	if err := cfg.Validate(); err != nil {
		return Partition{}, nil, err
	}

	result := Partition{Splits: make(map[model.SplitName]model.DatasetSplit, len(model.Splits))}
	for _, s := range model.Splits {
		result.Splits[s] = model.NewDatasetSplit(s)
	}

	type categorySplit struct {
		category model.Category
		train    []model.MetadataRow
		val      []model.MetadataRow
		test     []model.MetadataRow
	}

	var warnings []model.Warning
	results := make(chan categorySplit, len(model.Categories))
	var wg sync.WaitGroup

	for _, c := range model.Categories {
		rows := groups[c]
		if len(rows) == 0 {
			p.logger.Warning("Category %s has no records to partition", c)
			warnings = append(warnings, model.Warning{
				Kind:     model.KindEmptyCategory,
				Category: c,
				Message:  fmt.Sprintf("category %s has no records to partition", c),
			})
			continue
		}

		wg.Add(1)
		go func(c model.Category, rows []model.MetadataRow) {
			defer wg.Done()

			shuffled := make([]model.MetadataRow, len(rows))
			copy(shuffled, rows)
			rng := rand.New(rand.NewSource(CategorySeed(cfg.Seed, c)))
			rng.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			sizes := SplitSizes(len(shuffled), cfg)
			results <- categorySplit{
				category: c,
				train:    shuffled[:sizes.Train],
				val:      shuffled[sizes.Train : sizes.Train+sizes.Val],
				test:     shuffled[sizes.Train+sizes.Val:],
			}
		}(c, rows)
	}

	wg.Wait()
	close(results)

	for r := range results {
		result.Splits[model.SplitTrain].Records[r.category] = r.train
		result.Splits[model.SplitVal].Records[r.category] = r.val
		result.Splits[model.SplitTest].Records[r.category] = r.test
		p.logger.Info("Partitioned %s: train=%d val=%d test=%d", r.category, len(r.train), len(r.val), len(r.test))
	}

	// Slots left empty by the sizing of a non-empty category.
	for _, s := range model.Splits {
		for _, c := range model.Categories {
			if len(groups[c]) == 0 || result.Splits[s].Count(c) > 0 {
				continue
			}
			p.logger.Warning("Split %s has no %s records", s, c)
			warnings = append(warnings, model.Warning{
				Kind:     model.KindEmptyCategory,
				Split:    s,
				Category: c,
				Message:  fmt.Sprintf("split %s has no %s records out of %d", s, c, len(groups[c])),
			})
		}
	}

	return result, warnings, nil
}

// Summary returns split, category and count for every slot in output order.
func (p Partition) Summary() []SummaryRow {
	rows := make([]SummaryRow, 0, len(model.Splits)*len(model.Categories))
	for _, s := range model.Splits {
		for _, c := range model.Categories {
			rows = append(rows, SummaryRow{Split: s, Category: c, Count: p.Splits[s].Count(c)})
		}
	}
	return rows
}

// Locate maps each record's current filename to split/category/filename.
func (p Partition) Locate() map[string]string {
	locations := make(map[string]string)
	for _, s := range model.Splits {
		for c, rows := range p.Splits[s].Records {
			for _, r := range rows {
				locations[r.ImageFilename] = path.Join(string(s), string(c), path.Base(r.ImageFilename))
			}
		}
	}
	return locations
}

// Total returns the number of records across every split.
func (p Partition) Total() int {
	total := 0
	for _, s := range p.Splits {
		total += s.Total()
	}
	return total
}

// Restore rebuilds a Partition from rows whose ImageFilename is a
// split/category/filename path, as written to the partitioned joined table.
func Restore(rows []model.MetadataRow) (Partition, error) {
	result := Partition{Splits: make(map[model.SplitName]model.DatasetSplit, len(model.Splits))}
	for _, s := range model.Splits {
		result.Splits[s] = model.NewDatasetSplit(s)
	}

	for _, r := range rows {
		parts := strings.Split(path.Clean(r.ImageFilename), "/")
		if len(parts) != 3 {
			return Partition{}, fmt.Errorf("image %d: %q is not a split/category/filename path", r.ImageNumber, r.ImageFilename)
		}
		split, ok := result.Splits[model.SplitName(parts[0])]
		if !ok {
			return Partition{}, fmt.Errorf("image %d: unknown split %q", r.ImageNumber, parts[0])
		}
		category, err := model.ParseCategory(parts[1])
		if err != nil {
			return Partition{}, fmt.Errorf("image %d: %w", r.ImageNumber, err)
		}
		split.Records[category] = append(split.Records[category], r)
	}
	return result, nil
}
