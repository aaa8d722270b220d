package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"curator/internal/logger"
	"curator/internal/model"
)

// ImageExtension is the only file type ingested.
const ImageExtension = ".png"

// Result is the outcome of scanning a dataset tree.
type Result struct {
	Records  []model.ImageRecord
	Failures []model.Failure
	Warnings []model.Warning
}

// Ingestor enumerates <root>/<category>/*.png and pairs each source image
// with its <stem>_Annotation.png mask.
type Ingestor struct {
	logger *logger.Logger
}

// NewIngestor creates an Ingestor.
func NewIngestor(logger *logger.Logger) *Ingestor {
	return &Ingestor{logger: logger}
}

// Scan reads every category directory under root. Records are ordered by
// image number. A missing root is an error; a missing category directory is
// a warning.
func (i *Ingestor) Scan(root string) (Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read dataset directory: %w", err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("dataset path %s is not a directory", root)
	}

	var result Result
	seen := make(map[int]string)

	for _, category := range model.Categories {
		dir := filepath.Join(root, string(category))
		files, err := os.ReadDir(dir)
		if err != nil {
			i.logger.Warning("Category directory not found: %s", dir)
			result.Warnings = append(result.Warnings, model.Warning{
				Kind:     model.KindEmptyCategory,
				Category: category,
				Message:  fmt.Sprintf("category directory %s not readable: %v", dir, err),
			})
			continue
		}

		sources := make(map[string]bool)
		masks := make(map[string]bool)
		for _, file := range files {
			if file.IsDir() || !strings.EqualFold(filepath.Ext(file.Name()), ImageExtension) {
				continue
			}
			if model.IsAnnotationFile(file.Name()) {
				masks[file.Name()] = true
			} else {
				sources[file.Name()] = true
			}
		}

		for mask := range masks {
			if !sources[model.SourceFilename(mask)] {
				result.Failures = append(result.Failures, model.Failure{
					Filename: mask,
					Err:      fmt.Errorf("%w: mask %s has no source image in %s", model.ErrMissingCounterpart, mask, category),
				})
			}
		}

		count := 0
		for _, name := range sortedKeys(sources) {
			maskPath := ""
			if mask := model.AnnotationFilename(name); masks[mask] {
				maskPath = filepath.Join(dir, mask)
			}

			record, err := model.NewImageRecord(filepath.Join(dir, name), category, maskPath)
			if err != nil {
				result.Failures = append(result.Failures, model.Failure{Filename: name, Err: err})
				continue
			}

			if prev, dup := seen[record.ImageNumber]; dup {
				result.Failures = append(result.Failures, model.Failure{
					Filename: name,
					Err:      fmt.Errorf("%w: %d already used by %s", model.ErrDuplicateImage, record.ImageNumber, prev),
				})
				continue
			}
			seen[record.ImageNumber] = filepath.Join(string(category), name)

			result.Records = append(result.Records, record)
			count++
		}

		i.logger.Info("Found %d images in %s", count, category)
		if count == 0 {
			result.Warnings = append(result.Warnings, model.Warning{
				Kind:     model.KindEmptyCategory,
				Category: category,
				Message:  fmt.Sprintf("no images found in %s", dir),
			})
		}
	}

	sort.SliceStable(result.Records, func(a, b int) bool {
		return result.Records[a].ImageNumber < result.Records[b].ImageNumber
	})
	sort.SliceStable(result.Failures, func(a, b int) bool {
		return result.Failures[a].Filename < result.Failures[b].Filename
	})
	return result, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
