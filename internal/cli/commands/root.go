package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"curator/internal/app"
	"curator/internal/config"
)

const version = "0.1.0"

// cfg holds the defaults until loadConfig layers the environment and
// explicit flags over it.
var cfg = config.Default()

// rootCmd is the root command
var rootCmd = &cobra.Command{
	Use:               "curator",
	Short:             "Ultrasound dataset curation pipeline",
	Version:           version,
	PersistentPreRunE: loadConfig,
	Long: `Curates a normal/benign/malignant ultrasound image dataset for model training.

Fits an ellipse to each annotation mask and draws it onto the source image,
joins clinical CTG metadata and corrects mislabeled categories, splits the
records into seeded train/val/test partitions, and keeps the best-scored
normal and benign images to match the malignant count of each split.`,
	Example: `  # Run the whole pipeline with settings from .env
  $ curator run

  # Run with explicit paths
  $ curator run --dataset data/Datasets --clinical data/FetusDataset.csv --out curated

  # Re-partition an existing overlays tree with another seed
  $ curator partition --seed 7

  # Show the last runs
  $ curator stats`,
}

// Execute executes the root command
func Execute(ctx context.Context) error {
	rootCmd.SetVersionTemplate(fmt.Sprintf("curator version %s\n", version))
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.DatasetDirectory, "dataset", cfg.DatasetDirectory, "Dataset root holding normal/, benign/ and malignant/")
	flags.StringVar(&cfg.ClinicalTable, "clinical", cfg.ClinicalTable, "Clinical metadata CSV")
	flags.StringVar(&cfg.ClinicalTableMode, "clinical-mode", cfg.ClinicalTableMode, "Clinical table layout: keyed or positional")
	flags.StringVarP(&cfg.OutputDirectory, "out", "o", cfg.OutputDirectory, "Output directory")
	flags.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database path, empty to disable")
	flags.StringVar(&cfg.LogDirectory, "log-dir", cfg.LogDirectory, "Log directory")
	flags.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Worker goroutines for per-image stages")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(overlaysCmd)
	rootCmd.AddCommand(partitionCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(importCmd)
}

func addPartitionFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&cfg.Partition.TrainRatio, "train", cfg.Partition.TrainRatio, "Train ratio")
	cmd.Flags().Float64Var(&cfg.Partition.ValRatio, "val", cfg.Partition.ValRatio, "Validation ratio")
	cmd.Flags().Float64Var(&cfg.Partition.TestRatio, "test", cfg.Partition.TestRatio, "Test ratio (test takes the remainder)")
	cmd.Flags().Int64Var(&cfg.Partition.Seed, "seed", cfg.Partition.Seed, "Shuffle seed")
	cmd.Flags().BoolVar(&cfg.RequireOverlay, "require-overlay", cfg.RequireOverlay, "Drop records without an overlay before partitioning")
}

func addWeightFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&cfg.Weights.Resolution, "weight-resolution", cfg.Weights.Resolution, "Resolution weight")
	cmd.Flags().Float64Var(&cfg.Weights.Sharpness, "weight-sharpness", cfg.Weights.Sharpness, "Sharpness weight")
	cmd.Flags().Float64Var(&cfg.Weights.Contrast, "weight-contrast", cfg.Weights.Contrast, "Contrast weight")
	cmd.Flags().Float64Var(&cfg.Weights.Noise, "weight-noise", cfg.Weights.Noise, "Noise weight")
}

// loadConfig reads .env and the environment, then re-applies the flags set
// on the command line so they take precedence.
func loadConfig(cmd *cobra.Command, args []string) error {
	changed := make(map[*pflag.Flag]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f] = f.Value.String()
	})

	*cfg = *config.Load()
	for f, value := range changed {
		if err := f.Value.Set(value); err != nil {
			return fmt.Errorf("invalid value for --%s: %w", f.Name, err)
		}
	}
	return nil
}

// withApp builds the App for one command and closes it afterwards.
func withApp(fn func(*app.App) error) error {
	a, err := app.NewApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
