package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"curator/internal/app"
	"curator/internal/report"
	"curator/internal/service"
)

var (
	partitionTable  string
	partitionImages string
	balanceSource   string
)

// runCmd is the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run every stage from dataset to balanced splits",
	Long: `Run the whole pipeline and write the output tree:

  <out>/overlays/<category>/       overlays and unannotated sources, matched_data.csv
  <out>/partitioned/<split>/<cat>/ partition_summary.csv, matched_data.csv
  <out>/balanced/<split>/<cat>/    balance_summary.csv, matched_data.csv
  <out>/report.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			rep, err := a.Manager().Run(cmd.Context())
			printReport(cmd.OutOrStdout(), rep)
			return err
		})
	},
}

// overlaysCmd is the overlays command
var overlaysCmd = &cobra.Command{
	Use:   "overlays",
	Short: "extract annotations, draw overlays and join clinical metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			rep, err := a.Manager().Overlays(cmd.Context())
			printReport(cmd.OutOrStdout(), rep)
			return err
		})
	},
}

// partitionCmd is the partition command
var partitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "split a joined table into train/val/test",
	Example: `  # Partition the overlays tree written by 'curator overlays'
  $ curator partition

  # Partition another joined table
  $ curator partition --table prepared/matched_data.csv --images prepared`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			images := partitionImages
			if images == "" {
				images = filepath.Join(cfg.OutputDirectory, service.OverlayDirectory)
			}
			table := partitionTable
			if table == "" {
				table = filepath.Join(images, service.JoinedTableFile)
			}
			rep, err := a.Manager().Partition(cmd.Context(), table, images)
			printReport(cmd.OutOrStdout(), rep)
			return err
		})
	},
}

// balanceCmd is the balance command
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "select the best-scored images of each split",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			source := balanceSource
			if source == "" {
				source = filepath.Join(cfg.OutputDirectory, service.PartitionDirectory)
			}
			rep, err := a.Manager().Balance(cmd.Context(), source)
			printReport(cmd.OutOrStdout(), rep)
			return err
		})
	},
}

func init() {
	addPartitionFlags(runCmd)
	addWeightFlags(runCmd)

	addPartitionFlags(partitionCmd)
	partitionCmd.Flags().StringVar(&partitionTable, "table", "", "Joined table (default <images>/matched_data.csv)")
	partitionCmd.Flags().StringVar(&partitionImages, "images", "", "Image tree laid out as <category>/<file> (default <out>/overlays)")

	addWeightFlags(balanceCmd)
	balanceCmd.Flags().StringVar(&balanceSource, "from", "", "Partitioned tree (default <out>/partitioned)")

	for _, cmd := range []*cobra.Command{runCmd, overlaysCmd, partitionCmd, balanceCmd} {
		cmd.SilenceUsage = true
	}
}

func printReport(w io.Writer, rep *report.Report) {
	if rep == nil {
		return
	}

	fmt.Fprintf(w, "Run %s\n", rep.RunID)
	for _, stage := range []string{
		report.StageIngest, report.StageExtract, report.StageOverlay, report.StageJoin,
		report.StagePartition, report.StageScore, report.StageBalance,
	} {
		counts := rep.Counts(stage)
		if counts.Processed == 0 && counts.Skipped == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-10s processed %5d  skipped %5d\n", stage, counts.Processed, counts.Skipped)
	}

	issues, warnings := rep.Snapshot()
	if len(issues) > 0 || len(warnings) > 0 {
		byKind := make(map[string]int)
		for _, issue := range issues {
			byKind[string(issue.Kind)]++
		}
		for _, warning := range warnings {
			byKind[string(warning.Kind)]++
		}
		kinds := make([]string, 0, len(byKind))
		for k := range byKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "  %-26s %d\n", k, byKind[k])
		}
	}
}
