package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/strata-iac/strata/internal/engine"
	"github.com/strata-iac/strata/internal/plan"
)

var applyCmd = &cobra.Command{
	Use:   "apply [plan-file]",
	Short: "Apply the planned changes",
	Long:  `Computes a plan (or loads a saved one) and carries it out. Asks for confirmation unless -auto-approve is set. A saved plan is rejected when the state has changed since it was created.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runApply(cmd, args); err != nil {
			exitOnError(err)
		}
	},
}

// runApply returns instead of exiting so the deferred state unlock and
// session close run on every path, failures and interrupts included.
func runApply(cmd *cobra.Command, args []string) error {
	flagVars, _ := cmd.Flags().GetStringArray("var")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	refresh, _ := cmd.Flags().GetBool("refresh")
	concurrency, _ := cmd.Flags().GetInt("parallelism")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	s, err := newSession(ctx, flagVars, dryRun)
	if err != nil {
		return err
	}
	defer s.Close()

	if !dryRun {
		unlock, err := s.lockState("apply")
		if err != nil {
			return err
		}
		defer unlock()
	}

	var p *plan.Plan
	if len(args) == 1 {
		p, err = plan.Load(args[0])
		if err != nil {
			return err
		}
		if err := p.CheckState(s.mgr); err != nil {
			return err
		}
		// The executor re-evaluates attributes, so recorded values
		// must be visible to expressions, same as during planning.
		for _, r := range s.cfg.Resources {
			if rec, ok := s.mgr.Record(r.Addr.String()); ok {
				s.eval.SetResource(r.Addr.Type, r.Addr.Name, rec.Attrs)
			}
		}
	} else {
		if refresh && !dryRun {
			drifts, err := plan.Refresh(s.run, s.reg, s.mgr, concurrency)
			if err != nil {
				return err
			}
			reportDrift(drifts)
		}
		p, err = s.builder().Build(s.run, false)
		if err != nil {
			return err
		}
		plan.Render(p, os.Stderr)
	}

	if !p.HasChanges() {
		return nil
	}

	if !autoApprove && !dryRun {
		ok, _ := pterm.DefaultInteractiveConfirm.Show("Apply these changes?")
		if !ok {
			pterm.Info.Println("Apply canceled.")
			return nil
		}
	}

	ex := &engine.Executor{
		Config:   s.cfg,
		Eval:     s.eval,
		Registry: s.reg,
		State:    s.mgr,
		Plan:     p,
	}
	if err := ex.Apply(s.run); err != nil {
		if errors.Is(err, context.Canceled) {
			pterm.Warning.Println("Apply interrupted; completed changes were rolled back.")
			return errInterrupted
		}
		return err
	}

	if dryRun {
		pterm.Info.Println("Dry run complete, nothing was changed.")
		return nil
	}
	pterm.Success.Println(fmt.Sprintf("Apply complete: %s.", p.Summary()))
	return nil
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringArray("var", nil, "set a variable: -var key=value (repeatable)")
	applyCmd.Flags().Bool("auto-approve", false, "skip the interactive confirmation")
	applyCmd.Flags().Bool("dry-run", false, "narrate the plan without changing anything")
	applyCmd.Flags().Bool("refresh", true, "refresh state from reality before planning")
	applyCmd.Flags().Int("parallelism", 4, "maximum concurrent provider reads during refresh")
}
