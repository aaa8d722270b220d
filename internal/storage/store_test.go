package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gocv.io/x/gocv"

	"curator/internal/model"
)

func TestParseTable(t *testing.T) {
	data := "image_filename,baseline value,fetal_health\n1_HC.png,120,1.0\n2_HC.png,132,3.0\n"
	table, err := ParseTable(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ParseTable failed: %v", err)
	}
	if len(table.Columns) != 3 || table.Columns[1] != "baseline value" {
		t.Errorf("Unexpected columns %v", table.Columns)
	}
	if len(table.Rows) != 2 || table.Rows[1]["fetal_health"] != "3.0" {
		t.Errorf("Unexpected rows %v", table.Rows)
	}
}

func TestParseTable_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"ragged", "a,b\n1,2,3\n"},
		{"bad quoting", "a,b\n\"1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTable(strings.NewReader(tt.data)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestFormatTable(t *testing.T) {
	table := Table{
		Columns: []string{"split", "category", "count"},
		Rows: []map[string]string{
			{"split": "train", "category": "normal", "count": "70"},
			{"split": "val", "category": "benign"},
		},
	}

	var buf bytes.Buffer
	if err := FormatTable(&buf, table); err != nil {
		t.Fatalf("FormatTable failed: %v", err)
	}
	want := "split,category,count\ntrain,normal,70\nval,benign,\n"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}

	parsed, err := ParseTable(&buf)
	if err != nil {
		t.Fatalf("ParseTable failed: %v", err)
	}
	if parsed.Rows[0]["count"] != "70" {
		t.Errorf("Unexpected parsed rows %v", parsed.Rows)
	}
}

func TestFileStore_Images(t *testing.T) {
	store := NewFileStore()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "1_HC.png")

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 40, 60, gocv.MatTypeCV8UC3)
	defer img.Close()
	if err := store.WriteImage(path, img); err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}

	color, err := store.ReadImage(path)
	if err != nil {
		t.Fatalf("ReadImage failed: %v", err)
	}
	defer color.Close()
	if color.Rows() != 40 || color.Cols() != 60 || color.Channels() != 3 {
		t.Errorf("Unexpected image %dx%d with %d channels", color.Rows(), color.Cols(), color.Channels())
	}

	mask, err := store.ReadMask(path)
	if err != nil {
		t.Fatalf("ReadMask failed: %v", err)
	}
	defer mask.Close()
	if mask.Channels() != 1 {
		t.Errorf("Expected single channel mask, got %d", mask.Channels())
	}
}

func TestFileStore_UnreadableImage(t *testing.T) {
	store := NewFileStore()
	dir := t.TempDir()

	if _, err := store.ReadImage(filepath.Join(dir, "missing.png")); !errors.Is(err, model.ErrUnreadableImage) {
		t.Errorf("Expected ErrUnreadableImage for missing file, got %v", err)
	}

	corrupt := filepath.Join(dir, "corrupt.png")
	if err := os.WriteFile(corrupt, []byte("not a png"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := store.ReadMask(corrupt); !errors.Is(err, model.ErrUnreadableImage) {
		t.Errorf("Expected ErrUnreadableImage for corrupt file, got %v", err)
	}
}

func TestFileStore_Files(t *testing.T) {
	store := NewFileStore()
	dir := t.TempDir()

	src := filepath.Join(dir, "src.bin")
	if err := store.WriteFile(src, []byte("payload")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	dst := filepath.Join(dir, "out", "train", "normal", "dst.bin")
	if err := store.CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Errorf("Expected copied payload, got %q (%v)", data, err)
	}
	if !store.Exists(dst) || store.Exists(filepath.Join(dir, "out")) {
		t.Error("Exists should be true for files and false for directories")
	}

	if err := store.RemoveAll(filepath.Join(dir, "out")); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if store.Exists(dst) {
		t.Error("Expected copied file to be removed")
	}
	if err := store.RemoveAll(filepath.Join(dir, "never")); err != nil {
		t.Errorf("Expected RemoveAll of a missing dir to succeed, got %v", err)
	}

	if err := store.CopyFile(filepath.Join(dir, "missing"), dst); err == nil {
		t.Error("Expected error copying a missing file")
	}
}

func TestFileStore_Tables(t *testing.T) {
	store := NewFileStore()
	path := filepath.Join(t.TempDir(), "tables", "summary.csv")
	table := Table{Columns: []string{"a", "b"}, Rows: []map[string]string{{"a": "1", "b": "x,y"}}}

	if err := store.WriteTable(path, table); err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}
	got, err := store.ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if got.Rows[0]["b"] != "x,y" {
		t.Errorf("Expected quoted cell preserved, got %q", got.Rows[0]["b"])
	}

	if _, err := store.ReadTable(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("Expected error reading a missing table")
	}
}
