package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"curator/internal/model"
)

// Table is a header plus rows keyed by column name.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Store is the filesystem collaborator used by every stage. Stages only read
// and write pixels and tables; they never touch paths directly.
type Store interface {
	ReadImage(path string) (gocv.Mat, error)
	ReadMask(path string) (gocv.Mat, error)
	WriteImage(path string, img gocv.Mat) error
	ReadTable(path string) (Table, error)
	WriteTable(path string, t Table) error
	CopyFile(src, dst string) error
	WriteFile(path string, data []byte) error
	RemoveAll(dir string) error
	Exists(path string) bool
}

// FileStore implements Store on the local filesystem.
type FileStore struct{}

// NewFileStore creates a FileStore.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// ReadImage loads a 3-channel color image. The caller closes the Mat.
func (s *FileStore) ReadImage(path string) (gocv.Mat, error) {
	return s.read(path, gocv.IMReadColor)
}

// ReadMask loads a single-channel image. The caller closes the Mat.
func (s *FileStore) ReadMask(path string) (gocv.Mat, error) {
	return s.read(path, gocv.IMReadGrayScale)
}

func (s *FileStore) read(path string, flags gocv.IMReadFlag) (gocv.Mat, error) {
	if !s.Exists(path) {
		return gocv.NewMat(), fmt.Errorf("%w: %s does not exist", model.ErrUnreadableImage, path)
	}
	img := gocv.IMRead(path, flags)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("%w: failed to decode %s", model.ErrUnreadableImage, path)
	}
	return img, nil
}

// WriteImage encodes img by the path's extension, creating parent directories.
func (s *FileStore) WriteImage(path string, img gocv.Mat) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if !gocv.IMWrite(path, img) {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}

// ReadTable reads a CSV file whose first line is the header.
func (s *FileStore) ReadTable(path string) (Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to open table %s: %w", path, err)
	}
	defer file.Close()

	return ParseTable(file)
}

// ParseTable reads CSV data whose first line is the header.
func ParseTable(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("failed to read CSV data: %w", err)
	}
	if len(records) == 0 {
		return Table{}, fmt.Errorf("table has no header")
	}

	table := Table{Columns: records[0]}
	for i, record := range records[1:] {
		if len(record) != len(table.Columns) {
			return Table{}, fmt.Errorf("invalid record at line %d: expected %d columns, got %d", i+2, len(table.Columns), len(record))
		}
		row := make(map[string]string, len(record))
		for j, value := range record {
			row[table.Columns[j]] = value
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// WriteTable writes t as CSV, creating parent directories.
func (s *FileStore) WriteTable(path string, t Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", path, err)
	}
	defer file.Close()

	if err := FormatTable(file, t); err != nil {
		return fmt.Errorf("failed to write table %s: %w", path, err)
	}
	return file.Close()
}

// FormatTable writes t as CSV to w. Missing cells are written empty.
func FormatTable(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return err
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, column := range t.Columns {
			record[i] = row[column]
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// CopyFile copies src to dst, creating parent directories.
func (s *FileStore) CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}

// WriteFile writes data to path, creating parent directories.
func (s *FileStore) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// RemoveAll deletes dir and everything below it. A missing dir is not an error.
func (s *FileStore) RemoveAll(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	return nil
}

// Exists reports whether path names an existing regular file.
func (s *FileStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
