package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"curator/internal/app"
	"curator/internal/service"
)

var importTable string

// importCmd is the import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "register an existing joined table in the database",
	Example: `  # Register the partitioned tree of an earlier run
  $ curator import

  # Register a table copied from another machine
  $ curator import --table backup/partitioned/matched_data.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			table := importTable
			if table == "" {
				table = filepath.Join(cfg.OutputDirectory, service.PartitionDirectory, service.JoinedTableFile)
			}
			rep, err := a.Manager().Import(cmd.Context(), table)
			printReport(cmd.OutOrStdout(), rep)
			return err
		})
	},
}

func init() {
	importCmd.Flags().StringVar(&importTable, "table", "", "Joined table (default <out>/partitioned/matched_data.csv)")
	importCmd.SilenceUsage = true
}
