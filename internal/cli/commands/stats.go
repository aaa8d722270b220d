package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"curator/internal/app"
	"curator/internal/model"
)

var statsLimit int

// statsCmd is the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "show recent runs and their split counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 5, "Number of runs to show")
	statsCmd.SilenceUsage = true
}

func runStats(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app.App) error {
		stats, err := a.Manager().Stats(statsLimit)
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\trecords=%d\n",
				s.Run.ID, s.Run.Command, s.Run.Status, s.Run.StartedAt.Format("2006-01-02 15:04:05"), s.Records)
			for _, slot := range s.Slots {
				fmt.Fprintf(w, "\t%s\t%s\t%s\t%d\n", slot.Stage, slot.Split, slot.Category, slot.Count)
			}
			kinds := make([]string, 0, len(s.Issues))
			for kind := range s.Issues {
				kinds = append(kinds, string(kind))
			}
			sort.Strings(kinds)
			for _, kind := range kinds {
				fmt.Fprintf(w, "\t%s\t\t\t%d\n", kind, s.Issues[model.Kind(kind)])
			}
		}
		return w.Flush()
	})
}
