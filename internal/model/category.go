package model

import "fmt"

// Category is a diagnostic class of an ultrasound image.
type Category string

const (
	CategoryNormal    Category = "normal"
	CategoryBenign    Category = "benign"
	CategoryMalignant Category = "malignant"
)

// Categories lists every category in pipeline order.
var Categories = []Category{CategoryNormal, CategoryBenign, CategoryMalignant}

// ParseCategory validates a directory or table value.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryNormal, CategoryBenign, CategoryMalignant:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// CategoryFromHealth maps a fetal_health code to its category.
// 1.0 = normal, 2.0 = suspect (benign), 3.0 = pathological (malignant).
func CategoryFromHealth(code float64) (Category, bool) {
	switch code {
	case 1.0:
		return CategoryNormal, true
	case 2.0:
		return CategoryBenign, true
	case 3.0:
		return CategoryMalignant, true
	}
	return "", false
}

// HealthCode is the inverse of CategoryFromHealth.
func (c Category) HealthCode() float64 {
	switch c {
	case CategoryNormal:
		return 1.0
	case CategoryBenign:
		return 2.0
	case CategoryMalignant:
		return 3.0
	}
	return 0
}

// SplitName names a dataset partition.
type SplitName string

const (
	SplitTrain SplitName = "train"
	SplitVal   SplitName = "val"
	SplitTest  SplitName = "test"
)

// Splits lists every split in output order.
var Splits = []SplitName{SplitTrain, SplitVal, SplitTest}
