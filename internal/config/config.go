package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"curator/internal/model"
)

// Clinical table layouts accepted by ClinicalTableMode.
const (
	TableModeKeyed      = "keyed"      // rows carry an image_filename column
	TableModePositional = "positional" // row index + 1 is the image number
)

// PartitionConfig controls the train/val/test split.
type PartitionConfig struct {
	TrainRatio float64
	ValRatio   float64
	TestRatio  float64 // informational; test always absorbs the remainder
	Seed       int64
}

// QualityWeights weights each quality metric in the final score.
type QualityWeights struct {
	Resolution float64
	Sharpness  float64
	Contrast   float64
	Noise      float64
}

// Config is passed explicitly to every stage; nothing reads it globally.
type Config struct {
	DatasetDirectory  string
	ClinicalTable     string
	ClinicalTableMode string
	OutputDirectory   string
	DatabasePath      string // empty disables persistence
	LogDirectory      string
	Workers           int  // worker goroutines for per-image stages
	RequireOverlay    bool // drop records without an overlay before partitioning
	Partition         PartitionConfig
	Weights           QualityWeights
}

// DefaultPartition returns the 70/15/15 split seeded with 42.
func DefaultPartition() PartitionConfig {
	return PartitionConfig{TrainRatio: 0.70, ValRatio: 0.15, TestRatio: 0.15, Seed: 42}
}

// DefaultWeights returns resolution 0.3, sharpness 0.3, contrast 0.2, noise 0.2.
func DefaultWeights() QualityWeights {
	return QualityWeights{Resolution: 0.3, Sharpness: 0.3, Contrast: 0.2, Noise: 0.2}
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		DatasetDirectory:  filepath.Join(".", "data", "Datasets"),
		ClinicalTable:     filepath.Join(".", "data", "FetusDataset.csv"),
		ClinicalTableMode: TableModePositional,
		OutputDirectory:   filepath.Join(".", "curated"),
		DatabasePath:      filepath.Join(".", "data", "curator.db"),
		LogDirectory:      filepath.Join(".", "logs"),
		Workers:           4,
		Partition:         DefaultPartition(),
		Weights:           DefaultWeights(),
	}
}

// Load reads .env (when present) and the environment over Default.
func Load() *Config {
	// A missing .env is normal; real environment variables still apply.
	_ = godotenv.Load()

	d := Default()
	return &Config{
		DatasetDirectory:  getEnv("DATASET_DIR", d.DatasetDirectory),
		ClinicalTable:     getEnv("CLINICAL_TABLE", d.ClinicalTable),
		ClinicalTableMode: getEnv("CLINICAL_TABLE_MODE", d.ClinicalTableMode),
		OutputDirectory:   getEnv("OUTPUT_DIR", d.OutputDirectory),
		DatabasePath:      getEnv("DB_PATH", d.DatabasePath),
		LogDirectory:      getEnv("LOG_DIR", d.LogDirectory),
		Workers:           getEnvAsInt("WORKERS", d.Workers),
		RequireOverlay:    getEnvAsBool("REQUIRE_OVERLAY", d.RequireOverlay),
		Partition: PartitionConfig{
			TrainRatio: getEnvAsFloat("TRAIN_RATIO", d.Partition.TrainRatio),
			ValRatio:   getEnvAsFloat("VAL_RATIO", d.Partition.ValRatio),
			TestRatio:  getEnvAsFloat("TEST_RATIO", d.Partition.TestRatio),
			Seed:       getEnvAsInt64("SEED", d.Partition.Seed),
		},
		Weights: QualityWeights{
			Resolution: getEnvAsFloat("WEIGHT_RESOLUTION", d.Weights.Resolution),
			Sharpness:  getEnvAsFloat("WEIGHT_SHARPNESS", d.Weights.Sharpness),
			Contrast:   getEnvAsFloat("WEIGHT_CONTRAST", d.Weights.Contrast),
			Noise:      getEnvAsFloat("WEIGHT_NOISE", d.Weights.Noise),
		},
	}
}

// Validate rejects values no stage can run with.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", model.ErrInvalidConfig, c.Workers)
	}
	if c.ClinicalTableMode != TableModeKeyed && c.ClinicalTableMode != TableModePositional {
		return fmt.Errorf("%w: clinical table mode must be %q or %q, got %q",
			model.ErrInvalidConfig, TableModeKeyed, TableModePositional, c.ClinicalTableMode)
	}
	if err := c.Partition.Validate(); err != nil {
		return err
	}
	return c.Weights.Validate()
}

// Validate checks that ratios are finite and non-negative. They are not
// required to sum to 1.
func (p PartitionConfig) Validate() error {
	for name, v := range map[string]float64{"train": p.TrainRatio, "val": p.ValRatio, "test": p.TestRatio} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s ratio must be a non-negative number, got %v", model.ErrInvalidConfig, name, v)
		}
	}
	return nil
}

// Validate checks that weights are finite, non-negative and not all zero.
func (w QualityWeights) Validate() error {
	sum := 0.0
	for _, v := range []float64{w.Resolution, w.Sharpness, w.Contrast, w.Noise} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: quality weights must be non-negative numbers", model.ErrInvalidConfig)
		}
		sum += v
	}
	if sum == 0 {
		return fmt.Errorf("%w: quality weights are all zero", model.ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
