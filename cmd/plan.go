package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/strata-iac/strata/internal/plan"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what apply would change",
	Long:  `Refreshes the recorded state against reality, compares it with the configuration, and prints the resulting changes. With -out the plan is saved for a later apply.`,
	Run: func(cmd *cobra.Command, args []string) {
		flagVars, _ := cmd.Flags().GetStringArray("var")
		outFile, _ := cmd.Flags().GetString("out")
		destroy, _ := cmd.Flags().GetBool("destroy")
		refreshOnly, _ := cmd.Flags().GetBool("refresh-only")
		refresh, _ := cmd.Flags().GetBool("refresh")
		concurrency, _ := cmd.Flags().GetInt("parallelism")

		s, err := newSession(context.Background(), flagVars, true)
		if err != nil {
			fail(err)
		}
		defer s.Close()

		if refresh || refreshOnly {
			drifts, err := plan.Refresh(s.run, s.reg, s.mgr, concurrency)
			if err != nil {
				fail(err)
			}
			reportDrift(drifts)

			if refreshOnly {
				if len(drifts) > 0 {
					if err := s.mgr.Save(); err != nil {
						fail(err)
					}
					pterm.Success.Println("State updated to match reality.")
				} else {
					pterm.Success.Println("State already matches reality.")
				}
				return
			}
		}

		p, err := s.builder().Build(s.run, destroy)
		if err != nil {
			fail(err)
		}

		plan.Render(p, os.Stdout)

		if outFile != "" {
			if err := p.Save(outFile); err != nil {
				fail(err)
			}
			pterm.Info.Println(fmt.Sprintf("Plan saved to %s. Apply it with: strata apply %s", outFile, outFile))
		}
	},
}

func reportDrift(drifts []plan.Drift) {
	for _, d := range drifts {
		if d.Gone {
			pterm.Warning.Println(fmt.Sprintf("%s has vanished outside of strata", d.Address))
			continue
		}
		pterm.Warning.Println(fmt.Sprintf("%s drifted: %s", d.Address, strings.Join(d.Changed, ", ")))
	}
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringArray("var", nil, "set a variable: -var key=value (repeatable)")
	planCmd.Flags().String("out", "", "save the plan to this file")
	planCmd.Flags().Bool("destroy", false, "plan the destruction of everything recorded")
	planCmd.Flags().Bool("refresh-only", false, "only reconcile state with reality, plan nothing")
	planCmd.Flags().Bool("refresh", true, "refresh state from reality before diffing")
	planCmd.Flags().Int("parallelism", 4, "maximum concurrent provider reads")
}
