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

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Destroy everything recorded in state",
	Long:  `Deletes every managed resource, dependents before their dependencies, and empties the state.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDestroy(cmd); err != nil {
			exitOnError(err)
		}
	},
}

// runDestroy returns instead of exiting so the deferred state unlock
// and session close run on every path.
func runDestroy(cmd *cobra.Command) error {
	flagVars, _ := cmd.Flags().GetStringArray("var")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	s, err := newSession(ctx, flagVars, dryRun)
	if err != nil {
		return err
	}
	defer s.Close()

	if !dryRun {
		unlock, err := s.lockState("destroy")
		if err != nil {
			return err
		}
		defer unlock()
	}

	p, err := s.builder().Build(s.run, true)
	if err != nil {
		return err
	}
	plan.Render(p, os.Stderr)

	if !p.HasChanges() {
		return nil
	}

	if !autoApprove && !dryRun {
		pterm.Warning.Println("This deletes every resource listed above. There is no undo.")
		ok, _ := pterm.DefaultInteractiveConfirm.Show("Destroy all managed resources?")
		if !ok {
			pterm.Info.Println("Destroy canceled.")
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
			pterm.Warning.Println("Destroy interrupted.")
			return errInterrupted
		}
		return err
	}

	if dryRun {
		pterm.Info.Println("Dry run complete, nothing was destroyed.")
		return nil
	}
	pterm.Success.Println(fmt.Sprintf("Destroy complete: %s.", p.Summary()))
	return nil
}

func init() {
	rootCmd.AddCommand(destroyCmd)
	destroyCmd.Flags().StringArray("var", nil, "set a variable: -var key=value (repeatable)")
	destroyCmd.Flags().Bool("auto-approve", false, "skip the interactive confirmation")
	destroyCmd.Flags().Bool("dry-run", false, "narrate the destruction without doing it")
}
