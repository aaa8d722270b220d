package model

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// AnnotationSuffix marks a mask file next to its source image.
const AnnotationSuffix = "_Annotation"

var imageNumberPattern = regexp.MustCompile(`^(\d+)_`)

// ImageRecord is a source image found during ingestion.
type ImageRecord struct {
	ImageNumber   int      `json:"image_number"`
	Filename      string   `json:"source_filename"`
	Category      Category `json:"category"`
	HasAnnotation bool     `json:"has_annotation"`
	SourcePath    string   `json:"-"`
	MaskPath      string   `json:"-"`
}

// NewImageRecord builds a record from a source file path, deriving the image
// number from the filename prefix.
func NewImageRecord(sourcePath string, category Category, maskPath string) (ImageRecord, error) {
	if _, err := ParseCategory(string(category)); err != nil {
		return ImageRecord{}, err
	}

	filename := filepath.Base(sourcePath)
	number, err := ParseImageNumber(filename)
	if err != nil {
		return ImageRecord{}, err
	}

	return ImageRecord{
		ImageNumber:   number,
		Filename:      filename,
		Category:      category,
		HasAnnotation: maskPath != "",
		SourcePath:    sourcePath,
		MaskPath:      maskPath,
	}, nil
}

// ParseImageNumber extracts the leading numeric identity from a filename.
// Format: <number>_<anything>.png
func ParseImageNumber(filename string) (int, error) {
	match := imageNumberPattern.FindStringSubmatch(filename)
	if match == nil {
		return 0, fmt.Errorf("%w: %s has no numeric prefix", ErrMalformedFilename, filename)
	}

	number, err := strconv.Atoi(match[1])
	if err != nil || number <= 0 {
		return 0, fmt.Errorf("%w: %s has invalid image number %q", ErrMalformedFilename, filename, match[1])
	}
	return number, nil
}

// IsAnnotationFile reports whether filename is a mask.
func IsAnnotationFile(filename string) bool {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	return strings.HasSuffix(stem, AnnotationSuffix)
}

// AnnotationFilename returns the mask filename for a source filename.
func AnnotationFilename(source string) string {
	ext := filepath.Ext(source)
	return strings.TrimSuffix(source, ext) + AnnotationSuffix + ext
}

// SourceFilename returns the source filename for a mask filename.
func SourceFilename(mask string) string {
	ext := filepath.Ext(mask)
	return strings.TrimSuffix(strings.TrimSuffix(mask, ext), AnnotationSuffix) + ext
}
