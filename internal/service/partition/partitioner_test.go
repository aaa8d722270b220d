package partition

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"curator/internal/config"
	"curator/internal/logger"
	"curator/internal/model"
)

func rows(category model.Category, start, n int) []model.MetadataRow {
	out := make([]model.MetadataRow, n)
	for i := range out {
		number := start + i
		name := fmt.Sprintf("overlay_%d_HC.png", number)
		out[i] = model.MetadataRow{
			ImageRecord:   model.ImageRecord{ImageNumber: number, Filename: name, Category: category},
			ImageFilename: name,
		}
	}
	return out
}

func fixture() map[model.Category][]model.MetadataRow {
	return map[model.Category][]model.MetadataRow{
		model.CategoryNormal:    rows(model.CategoryNormal, 1, 37),
		model.CategoryBenign:    rows(model.CategoryBenign, 100, 21),
		model.CategoryMalignant: rows(model.CategoryMalignant, 200, 9),
	}
}

func TestSplitSizes(t *testing.T) {
	tests := []struct {
		name string
		n    int
		cfg  config.PartitionConfig
		want Sizes
	}{
		{"default", 100, config.DefaultPartition(), Sizes{Train: 70, Val: 15, Test: 15}},
		{"floors", 10, config.PartitionConfig{TrainRatio: 0.7, ValRatio: 0.15}, Sizes{Train: 7, Val: 1, Test: 2}},
		{"single", 1, config.DefaultPartition(), Sizes{Train: 0, Val: 0, Test: 1}},
		{"empty", 0, config.DefaultPartition(), Sizes{}},
		{"all train", 12, config.PartitionConfig{TrainRatio: 1}, Sizes{Train: 12}},
		{"overflow clamps val", 10, config.PartitionConfig{TrainRatio: 0.8, ValRatio: 0.5}, Sizes{Train: 8, Val: 2}},
		{"train above one", 10, config.PartitionConfig{TrainRatio: 1.5, ValRatio: 0.2}, Sizes{Train: 10}},
		{"sum below one", 10, config.PartitionConfig{TrainRatio: 0.5, ValRatio: 0.1}, Sizes{Train: 5, Val: 1, Test: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSizes(tt.n, tt.cfg)
			if got != tt.want {
				t.Errorf("SplitSizes(%d) = %+v, want %+v", tt.n, got, tt.want)
			}
			if got.Train+got.Val+got.Test != tt.n {
				t.Errorf("Sizes %+v do not sum to %d", got, tt.n)
			}
		})
	}
}

func TestPartition_ConservesRecords(t *testing.T) {
	groups := fixture()
	result, warnings, err := NewPartitioner(logger.Discard()).Partition(groups, config.DefaultPartition())
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", warnings)
	}

	for _, c := range model.Categories {
		seen := make(map[int]model.SplitName)
		for _, s := range model.Splits {
			for _, r := range result.Splits[s].Records[c] {
				if prev, dup := seen[r.ImageNumber]; dup {
					t.Errorf("Image %d assigned to both %s and %s", r.ImageNumber, prev, s)
				}
				seen[r.ImageNumber] = s
				if r.EffectiveCategory() != c {
					t.Errorf("Image %d of %s landed in %s", r.ImageNumber, r.EffectiveCategory(), c)
				}
			}
		}
		if len(seen) != len(groups[c]) {
			t.Errorf("Category %s: expected %d records across splits, got %d", c, len(groups[c]), len(seen))
		}

		want := SplitSizes(len(groups[c]), config.DefaultPartition())
		if got := result.Splits[model.SplitTrain].Count(c); got != want.Train {
			t.Errorf("Category %s: expected %d train, got %d", c, want.Train, got)
		}
		if got := result.Splits[model.SplitVal].Count(c); got != want.Val {
			t.Errorf("Category %s: expected %d val, got %d", c, want.Val, got)
		}
	}

	if result.Total() != 67 {
		t.Errorf("Expected 67 records in total, got %d", result.Total())
	}
}

func TestPartition_Deterministic(t *testing.T) {
	p := NewPartitioner(logger.Discard())
	cfg := config.DefaultPartition()

	first, _, err := p.Partition(fixture(), cfg)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _, err := p.Partition(fixture(), cfg)
		if err != nil {
			t.Fatalf("Partition failed: %v", err)
		}
		for _, s := range model.Splits {
			for _, c := range model.Categories {
				a, b := first.Splits[s].Records[c], again.Splits[s].Records[c]
				if len(a) != len(b) {
					t.Fatalf("%s/%s: length differs between runs", s, c)
				}
				for k := range a {
					if a[k].ImageNumber != b[k].ImageNumber {
						t.Fatalf("%s/%s: order differs between runs at %d", s, c, k)
					}
				}
			}
		}
	}

	cfg.Seed = 7
	other, _, _ := p.Partition(fixture(), cfg)
	same := true
	for k, r := range other.Splits[model.SplitTrain].Records[model.CategoryNormal] {
		if first.Splits[model.SplitTrain].Records[model.CategoryNormal][k].ImageNumber != r.ImageNumber {
			same = false
			break
		}
	}
	if same {
		t.Error("Expected a different seed to produce a different order")
	}
}

func TestPartition_DoesNotMutateInput(t *testing.T) {
	groups := fixture()
	if _, _, err := NewPartitioner(logger.Discard()).Partition(groups, config.DefaultPartition()); err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	for i, r := range groups[model.CategoryNormal] {
		if r.ImageNumber != i+1 {
			t.Fatalf("Input order changed at index %d", i)
		}
	}
}

func TestPartition_EmptyCategory(t *testing.T) {
	groups := fixture()
	delete(groups, model.CategoryMalignant)

	result, warnings, err := NewPartitioner(logger.Discard()).Partition(groups, config.DefaultPartition())
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if len(warnings) != 1 || warnings[0].Kind != model.KindEmptyCategory || warnings[0].Category != model.CategoryMalignant {
		t.Fatalf("Expected EmptyCategory warning for malignant, got %v", warnings)
	}
	for _, s := range model.Splits {
		if result.Splits[s].Records[model.CategoryMalignant] == nil {
			t.Errorf("Expected an empty malignant slot in %s", s)
		}
	}
}

func TestPartition_EmptySlotAfterSizing(t *testing.T) {
	groups := fixture()
	groups[model.CategoryMalignant] = rows(model.CategoryMalignant, 200, 3)

	result, warnings, err := NewPartitioner(logger.Discard()).Partition(groups, config.DefaultPartition())
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if got := result.Splits[model.SplitVal].Count(model.CategoryMalignant); got != 0 {
		t.Fatalf("Expected no malignant records in val, got %d", got)
	}

	if len(warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %v", warnings)
	}
	w := warnings[0]
	if w.Kind != model.KindEmptyCategory || w.Split != model.SplitVal || w.Category != model.CategoryMalignant {
		t.Errorf("Expected EmptyCategory for val/malignant, got %+v", w)
	}
}

func TestPartition_InvalidConfig(t *testing.T) {
	p := NewPartitioner(logger.Discard())
	for _, cfg := range []config.PartitionConfig{
		{TrainRatio: -0.1, ValRatio: 0.5},
		{TrainRatio: math.NaN()},
	} {
		if _, _, err := p.Partition(fixture(), cfg); !errors.Is(err, model.ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig for %+v, got %v", cfg, err)
		}
	}
}

func TestSummaryAndLocate(t *testing.T) {
	result, _, err := NewPartitioner(logger.Discard()).Partition(fixture(), config.DefaultPartition())
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}

	summary := result.Summary()
	if len(summary) != 9 {
		t.Fatalf("Expected 9 summary rows, got %d", len(summary))
	}
	if summary[0].Split != model.SplitTrain || summary[0].Category != model.CategoryNormal {
		t.Errorf("Unexpected first summary row %+v", summary[0])
	}
	total := 0
	for _, r := range summary {
		total += r.Count
	}
	if total != 67 {
		t.Errorf("Expected summary to total 67, got %d", total)
	}

	locations := result.Locate()
	if len(locations) != 67 {
		t.Fatalf("Expected 67 locations, got %d", len(locations))
	}
	for _, r := range result.Splits[model.SplitVal].Records[model.CategoryBenign] {
		want := "val/benign/" + r.ImageFilename
		if locations[r.ImageFilename] != want {
			t.Errorf("Expected %s, got %s", want, locations[r.ImageFilename])
		}
	}
}

func TestRestore(t *testing.T) {
	result, _, err := NewPartitioner(logger.Discard()).Partition(fixture(), config.DefaultPartition())
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}

	locations := result.Locate()
	var located []model.MetadataRow
	for _, s := range model.Splits {
		for _, c := range model.Categories {
			for _, r := range result.Splits[s].Records[c] {
				r.ImageFilename = locations[r.ImageFilename]
				located = append(located, r)
			}
		}
	}

	restored, err := Restore(located)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	for _, s := range model.Splits {
		for _, c := range model.Categories {
			if restored.Splits[s].Count(c) != result.Splits[s].Count(c) {
				t.Errorf("%s/%s: expected %d, got %d", s, c, result.Splits[s].Count(c), restored.Splits[s].Count(c))
			}
		}
	}

	bad := []model.MetadataRow{{ImageRecord: model.ImageRecord{ImageNumber: 1}, ImageFilename: "overlay_1_HC.png"}}
	if _, err := Restore(bad); err == nil {
		t.Error("Expected error for a filename without split and category")
	}
	bad[0].ImageFilename = "holdout/normal/overlay_1_HC.png"
	if _, err := Restore(bad); err == nil {
		t.Error("Expected error for an unknown split")
	}
}
