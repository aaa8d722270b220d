package model

import (
	"errors"
	"fmt"
)

// Per-image failures. These are recorded in the run report and never abort a batch.
var (
	ErrUnreadableImage           = errors.New("unreadable image")
	ErrNoContourFound            = errors.New("no contour found")
	ErrInsufficientContourPoints = errors.New("insufficient contour points")
	ErrMissingCounterpart        = errors.New("missing counterpart")
	ErrMalformedFilename         = errors.New("malformed filename")
	ErrDuplicateImage            = errors.New("duplicate image number")
)

// ErrInvalidConfig is returned for configuration that no stage can run with.
var ErrInvalidConfig = errors.New("invalid config")

// Kind labels an issue or warning in the run report.
type Kind string

const (
	KindUnreadableImage           Kind = "UnreadableImage"
	KindNoContourFound            Kind = "NoContourFound"
	KindInsufficientContourPoints Kind = "InsufficientContourPoints"
	KindMissingCounterpart        Kind = "MissingCounterpart"
	KindMalformedFilename         Kind = "MalformedFilename"
	KindDuplicateImage            Kind = "DuplicateImage"
	KindCategoryMismatch          Kind = "CategoryMismatch"
	KindEmptyCategory             Kind = "EmptyCategory"
	KindUnknownHealthCode         Kind = "UnknownHealthCode"
	KindShortCategory             Kind = "ShortCategory"
	KindNotPartitioned            Kind = "NotPartitioned"
	KindInternal                  Kind = "Internal"
)

// IssueKind maps a per-image error to its report kind.
func IssueKind(err error) Kind {
	switch {
	case errors.Is(err, ErrUnreadableImage):
		return KindUnreadableImage
	case errors.Is(err, ErrNoContourFound):
		return KindNoContourFound
	case errors.Is(err, ErrInsufficientContourPoints):
		return KindInsufficientContourPoints
	case errors.Is(err, ErrMissingCounterpart):
		return KindMissingCounterpart
	case errors.Is(err, ErrMalformedFilename):
		return KindMalformedFilename
	case errors.Is(err, ErrDuplicateImage):
		return KindDuplicateImage
	}
	return KindInternal
}

// Failure is a per-image error returned by a stage for the run report.
type Failure struct {
	Filename string
	Err      error
}

// Warning is a non-fatal condition surfaced to the caller.
type Warning struct {
	Kind     Kind      `json:"kind"`
	Split    SplitName `json:"split,omitempty"`
	Category Category  `json:"category,omitempty"`
	Filename string    `json:"filename,omitempty"`
	Message  string    `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}
