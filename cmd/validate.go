package cmd

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/strata-iac/strata/internal/plan"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration without touching anything",
	Long:  `Parses the configuration, checks references and the dependency graph for cycles, and validates every resource against its provider schema.`,
	Run: func(cmd *cobra.Command, args []string) {
		flagVars, _ := cmd.Flags().GetStringArray("var")

		s, err := newSession(context.Background(), flagVars, true)
		if err != nil {
			fail(err)
		}
		defer s.Close()

		graph, err := plan.BuildGraph(s.cfg)
		if err != nil {
			fail(err)
		}
		if _, err := graph.Layers(); err != nil {
			fail(err)
		}

		var problems int
		for _, r := range s.cfg.Resources {
			provider, err := s.reg.ForType(r.Addr.Type)
			if err != nil {
				pterm.Error.Println(fmt.Sprintf("%s: %v", r.Addr, err))
				problems++
				continue
			}
			attrs, err := s.eval.Attrs(r, s.run)
			if err != nil {
				pterm.Error.Println(err.Error())
				problems++
				continue
			}
			if err := provider.Validate(r.Addr.Type, attrs); err != nil {
				pterm.Error.Println(fmt.Sprintf("%s: %v", r.Addr, err))
				problems++
			}
		}

		if problems > 0 {
			fail(fmt.Errorf("validation failed with %d problem(s)", problems))
		}
		pterm.Success.Println(fmt.Sprintf("Configuration is valid: %d resource(s), %d variable(s).",
			len(s.cfg.Resources), len(s.cfg.Variables)))
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringArray("var", nil, "set a variable: -var key=value (repeatable)")
}
