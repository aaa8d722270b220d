package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"curator/internal/logger"
	"curator/internal/model"
)

func touch(t *testing.T, root string, parts ...string) {
	t.Helper()
	path := filepath.Join(append([]string{root}, parts...)...)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte("png"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
}

func TestScan_PairsMasksAndSources(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "normal", "2_HC.png")
	touch(t, root, "normal", "2_HC_Annotation.png")
	touch(t, root, "normal", "10_HC.png")
	touch(t, root, "benign", "1_HC.png")
	touch(t, root, "malignant", "5_HC.png")
	touch(t, root, "malignant", "5_HC_Annotation.png")
	touch(t, root, "malignant", "notes.txt")

	result, err := NewIngestor(logger.Discard()).Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(result.Records) != 4 {
		t.Fatalf("Expected 4 records, got %d", len(result.Records))
	}

	wantOrder := []int{1, 2, 5, 10}
	for i, n := range wantOrder {
		if result.Records[i].ImageNumber != n {
			t.Errorf("Record %d: expected image number %d, got %d", i, n, result.Records[i].ImageNumber)
		}
	}

	byNumber := make(map[int]model.ImageRecord)
	for _, r := range result.Records {
		byNumber[r.ImageNumber] = r
	}
	if !byNumber[2].HasAnnotation || !byNumber[5].HasAnnotation {
		t.Error("Expected images 2 and 5 to have annotations")
	}
	if byNumber[10].HasAnnotation || byNumber[1].HasAnnotation {
		t.Error("Expected images 1 and 10 to have no annotation")
	}
	if byNumber[1].Category != model.CategoryBenign {
		t.Errorf("Expected image 1 in benign, got %s", byNumber[1].Category)
	}
	if len(result.Failures) != 0 {
		t.Errorf("Expected no failures, got %v", result.Failures)
	}
}

func TestScan_ReportsFailures(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "normal", "1_HC.png")
	touch(t, root, "normal", "7_HC_Annotation.png")
	touch(t, root, "benign", "scan.png")
	touch(t, root, "malignant", "1_HC.png")

	result, err := NewIngestor(logger.Discard()).Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	kinds := make(map[model.Kind]int)
	for _, f := range result.Failures {
		kinds[model.IssueKind(f.Err)]++
	}
	if kinds[model.KindMissingCounterpart] != 1 {
		t.Errorf("Expected 1 MissingCounterpart, got %d", kinds[model.KindMissingCounterpart])
	}
	if kinds[model.KindMalformedFilename] != 1 {
		t.Errorf("Expected 1 MalformedFilename, got %d", kinds[model.KindMalformedFilename])
	}
	if kinds[model.KindDuplicateImage] != 1 {
		t.Errorf("Expected 1 DuplicateImage, got %d", kinds[model.KindDuplicateImage])
	}
	if len(result.Records) != 1 {
		t.Errorf("Expected 1 record, got %d", len(result.Records))
	}
}

func TestScan_MissingCategoryIsWarning(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "normal", "1_HC.png")

	result, err := NewIngestor(logger.Discard()).Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	empty := 0
	for _, w := range result.Warnings {
		if w.Kind == model.KindEmptyCategory {
			empty++
		}
	}
	if empty != 2 {
		t.Errorf("Expected 2 EmptyCategory warnings, got %d", empty)
	}
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := NewIngestor(logger.Discard()).Scan(filepath.Join(t.TempDir(), "absent"))
	if err == nil {
		t.Error("Expected an error for a missing dataset directory")
	}
}

func TestParseImageNumber(t *testing.T) {
	tests := []struct {
		filename string
		want     int
		wantErr  bool
	}{
		{"12_HC.png", 12, false},
		{"001_2HC.png", 1, false},
		{"HC_12.png", 0, true},
		{"0_HC.png", 0, true},
		{"12.png", 0, true},
	}

	for _, tt := range tests {
		got, err := model.ParseImageNumber(tt.filename)
		if tt.wantErr {
			if !errors.Is(err, model.ErrMalformedFilename) {
				t.Errorf("ParseImageNumber(%q): expected ErrMalformedFilename, got %v", tt.filename, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseImageNumber(%q) = %d, %v; expected %d", tt.filename, got, err, tt.want)
		}
	}
}
