package model

import (
	"fmt"
	"strconv"
	"strings"
)

// FeatureColumns are the clinical CTG columns in table order.
var FeatureColumns = []string{
	"baseline_value",
	"accelerations",
	"fetal_movement",
	"uterine_contractions",
	"light_decelerations",
	"severe_decelerations",
	"prolongued_decelerations",
	"abnormal_short_term_variability",
	"mean_value_of_short_term_variability",
	"percentage_of_time_with_abnormal_long_term_variability",
	"mean_value_of_long_term_variability",
	"histogram_width",
	"histogram_min",
	"histogram_max",
	"histogram_number_of_peaks",
	"histogram_number_of_zeroes",
	"histogram_mode",
	"histogram_mean",
	"histogram_median",
	"histogram_variance",
	"histogram_tendency",
}

// HealthColumn holds the fetal_health class code.
const HealthColumn = "fetal_health"

// ClinicalFeatures is one row of the clinical metadata table.
type ClinicalFeatures struct {
	BaselineValue                float64
	Accelerations                float64
	FetalMovement                float64
	UterineContractions          float64
	LightDecelerations           float64
	SevereDecelerations          float64
	ProlonguedDecelerations      float64
	AbnormalShortTermVariability float64
	MeanShortTermVariability     float64
	PercentAbnormalLongTermVar   float64
	MeanLongTermVariability      float64
	HistogramWidth               float64
	HistogramMin                 float64
	HistogramMax                 float64
	HistogramNumberOfPeaks       float64
	HistogramNumberOfZeroes      float64
	HistogramMode                float64
	HistogramMean                float64
	HistogramMedian              float64
	HistogramVariance            float64
	HistogramTendency            float64
	FetalHealth                  float64
}

func (c *ClinicalFeatures) fields() []*float64 {
	return []*float64{
		&c.BaselineValue,
		&c.Accelerations,
		&c.FetalMovement,
		&c.UterineContractions,
		&c.LightDecelerations,
		&c.SevereDecelerations,
		&c.ProlonguedDecelerations,
		&c.AbnormalShortTermVariability,
		&c.MeanShortTermVariability,
		&c.PercentAbnormalLongTermVar,
		&c.MeanLongTermVariability,
		&c.HistogramWidth,
		&c.HistogramMin,
		&c.HistogramMax,
		&c.HistogramNumberOfPeaks,
		&c.HistogramNumberOfZeroes,
		&c.HistogramMode,
		&c.HistogramMean,
		&c.HistogramMedian,
		&c.HistogramVariance,
		&c.HistogramTendency,
	}
}

// Values returns the feature values in FeatureColumns order.
func (c ClinicalFeatures) Values() []float64 {
	ptrs := c.fields()
	values := make([]float64, len(ptrs))
	for i, p := range ptrs {
		values[i] = *p
	}
	return values
}

// ParseClinicalFeatures builds features from a table row. Column names are
// normalized so the raw "baseline value" header is accepted.
// Every feature column and fetal_health must be present and numeric.
func ParseClinicalFeatures(row map[string]string) (ClinicalFeatures, error) {
	normalized := make(map[string]string, len(row))
	for k, v := range row {
		normalized[NormalizeColumn(k)] = v
	}

	var c ClinicalFeatures
	ptrs := c.fields()
	for i, column := range FeatureColumns {
		v, err := parseFloatColumn(normalized, column)
		if err != nil {
			return ClinicalFeatures{}, err
		}
		*ptrs[i] = v
	}

	health, err := parseFloatColumn(normalized, HealthColumn)
	if err != nil {
		return ClinicalFeatures{}, err
	}
	c.FetalHealth = health
	return c, nil
}

// NormalizeColumn lowercases a header and replaces spaces with underscores.
func NormalizeColumn(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// IsClinicalColumn reports whether a normalized column is a known clinical field.
func IsClinicalColumn(name string) bool {
	if name == HealthColumn {
		return true
	}
	for _, c := range FeatureColumns {
		if c == name {
			return true
		}
	}
	return false
}

func parseFloatColumn(row map[string]string, column string) (float64, error) {
	raw, ok := row[column]
	if !ok {
		return 0, fmt.Errorf("missing clinical column %s", column)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("clinical column %s: %w", column, err)
	}
	return v, nil
}
