package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strata-iac/strata/internal/configs"
	"github.com/strata-iac/strata/internal/plan"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the dependency graph in DOT format",
	Long:  `Writes the resource dependency graph to stdout in Graphviz DOT format. Pipe it through dot: strata graph | dot -Tsvg > graph.svg`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configs.LoadDir(workDir())
		if err != nil {
			fail(err)
		}
		g, err := plan.BuildGraph(cfg)
		if err != nil {
			fail(err)
		}
		fmt.Print(g.Dot())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
