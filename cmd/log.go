package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the history of applies and destroys",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("n")
		showChanges, _ := cmd.Flags().GetBool("changes")

		mgr := openState()
		history := mgr.Transactions()
		if len(history) == 0 {
			fmt.Println("No runs recorded yet.")
			return
		}
		if limit > 0 && len(history) > limit {
			history = history[len(history)-limit:]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "WHEN\tOPERATION\tSTATUS\tCHANGES\tID")
		for i := len(history) - 1; i >= 0; i-- {
			tx := history[i]
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				tx.Timestamp.Format(time.RFC3339),
				tx.Operation,
				tx.Status,
				len(tx.Changes),
				tx.ID,
			)
		}
		w.Flush()

		if showChanges {
			for i := len(history) - 1; i >= 0; i-- {
				tx := history[i]
				fmt.Printf("\n%s (%s):\n", tx.ID, tx.Operation)
				for _, c := range tx.Changes {
					fmt.Printf("  %s %s", c.Action, c.Address)
					if c.Diff != "" {
						fmt.Printf("  (%s)", c.Diff)
					}
					fmt.Println()
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().Int("n", 10, "show the last n runs")
	logCmd.Flags().Bool("changes", false, "also list the changes of each run")
}
