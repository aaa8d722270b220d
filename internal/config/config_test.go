package config

import (
	"errors"
	"math"
	"testing"

	"curator/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"DATASET_DIR", "CLINICAL_TABLE", "CLINICAL_TABLE_MODE", "OUTPUT_DIR", "DB_PATH", "LOG_DIR",
		"WORKERS", "REQUIRE_OVERLAY", "TRAIN_RATIO", "VAL_RATIO", "TEST_RATIO", "SEED",
		"WEIGHT_RESOLUTION", "WEIGHT_SHARPNESS", "WEIGHT_CONTRAST", "WEIGHT_NOISE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if *cfg != *Default() {
		t.Errorf("Expected Load to match Default with an empty environment, got %+v", cfg)
	}
	if cfg.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Workers)
	}
	if cfg.Partition != DefaultPartition() {
		t.Errorf("Expected default partition, got %+v", cfg.Partition)
	}
	if cfg.Weights != DefaultWeights() {
		t.Errorf("Expected default weights, got %+v", cfg.Weights)
	}
	if cfg.ClinicalTableMode != TableModePositional {
		t.Errorf("Expected positional table mode, got %q", cfg.ClinicalTableMode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DATASET_DIR", "/srv/Datasets")
	t.Setenv("WORKERS", "8")
	t.Setenv("TRAIN_RATIO", "0.8")
	t.Setenv("VAL_RATIO", "0.1")
	t.Setenv("SEED", "1234")
	t.Setenv("WEIGHT_NOISE", "0.5")
	t.Setenv("REQUIRE_OVERLAY", "true")
	t.Setenv("CLINICAL_TABLE_MODE", TableModeKeyed)

	cfg := Load()
	if cfg.DatasetDirectory != "/srv/Datasets" || cfg.Workers != 8 {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.Partition.TrainRatio != 0.8 || cfg.Partition.ValRatio != 0.1 || cfg.Partition.Seed != 1234 {
		t.Errorf("Unexpected partition %+v", cfg.Partition)
	}
	if cfg.Weights.Noise != 0.5 || !cfg.RequireOverlay || cfg.ClinicalTableMode != TableModeKeyed {
		t.Errorf("Unexpected config %+v", cfg)
	}
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("WORKERS", "many")
	t.Setenv("TRAIN_RATIO", "most")
	t.Setenv("REQUIRE_OVERLAY", "perhaps")

	cfg := Load()
	if cfg.Workers != 4 || cfg.Partition.TrainRatio != 0.70 || cfg.RequireOverlay {
		t.Errorf("Expected defaults for malformed values, got %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ClinicalTableMode: TableModeKeyed,
			Workers:           2,
			Partition:         DefaultPartition(),
			Weights:           DefaultWeights(),
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"unknown table mode", func(c *Config) { c.ClinicalTableMode = "columnar" }},
		{"negative ratio", func(c *Config) { c.Partition.ValRatio = -0.1 }},
		{"NaN ratio", func(c *Config) { c.Partition.TrainRatio = math.NaN() }},
		{"infinite ratio", func(c *Config) { c.Partition.TestRatio = math.Inf(1) }},
		{"negative weight", func(c *Config) { c.Weights.Contrast = -1 }},
		{"zero weights", func(c *Config) { c.Weights = QualityWeights{} }},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, model.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestPartitionConfig_RatiosNeedNotSumToOne(t *testing.T) {
	p := PartitionConfig{TrainRatio: 0.9, ValRatio: 0.9, TestRatio: 0}
	if err := p.Validate(); err != nil {
		t.Errorf("Expected overflowing ratios to be accepted, got %v", err)
	}
}
