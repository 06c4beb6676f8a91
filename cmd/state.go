package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/strata-iac/strata/internal/consts"
	"github.com/strata-iac/strata/internal/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and modify the recorded state",
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all recorded resource addresses",
	Run: func(cmd *cobra.Command, args []string) {
		mgr := openState()
		for _, address := range mgr.Addresses() {
			fmt.Println(address)
		}
	},
}

var stateShowCmd = &cobra.Command{
	Use:   "show <address>",
	Short: "Show the recorded attributes of one resource",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr := openState()
		rec, ok := mgr.Record(args[0])
		if !ok {
			fail(fmt.Errorf("no resource %q in state", args[0]))
		}

		w := tabwriter.NewWriter(os.Stderr, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Address:\t%s\n", rec.Address)
		fmt.Fprintf(w, "Provider:\t%s\n", rec.Provider)
		fmt.Fprintf(w, "ID:\t%s\n", rec.ID)
		fmt.Fprintf(w, "Status:\t%s\n", rec.Status)
		fmt.Fprintf(w, "Last applied:\t%s\n", rec.LastApplied.Format(time.RFC3339))
		w.Flush()

		attrs, err := json.MarshalIndent(rec.Attrs, "", "  ")
		if err != nil {
			fail(err)
		}
		fmt.Println(string(attrs))
	},
}

var stateRmCmd = &cobra.Command{
	Use:   "rm <address>",
	Short: "Forget a resource without destroying it",
	Long:  `Removes a resource from state. The real object stays; strata just stops managing it. If it is still declared, the next plan will recreate it.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStateRm(args[0]); err != nil {
			fail(err)
		}
	},
}

// runStateRm returns instead of exiting so the deferred unlock runs
// on failure too.
func runStateRm(address string) error {
	unlock, err := state.Lock(consts.LockFilePath(workDir()), "state rm")
	if err != nil {
		return err
	}
	defer unlock()

	mgr, err := state.NewManager(consts.StateFilePath(workDir()))
	if err != nil {
		return err
	}
	if _, ok := mgr.Record(address); !ok {
		return fmt.Errorf("no resource %q in state", address)
	}
	mgr.RemoveRecord(address)
	if err := mgr.Save(); err != nil {
		return err
	}
	pterm.Success.Println(fmt.Sprintf("Removed %s from state.", address))
	return nil
}

var stateUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Force-remove a stale state lock",
	Run: func(cmd *cobra.Command, args []string) {
		if err := state.ForceUnlock(consts.LockFilePath(workDir())); err != nil {
			fail(err)
		}
		pterm.Success.Println("Lock released.")
	},
}

func openState() *state.Manager {
	mgr, err := state.NewManager(consts.StateFilePath(workDir()))
	if err != nil {
		fail(err)
	}
	return mgr
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateListCmd, stateShowCmd, stateRmCmd, stateUnlockCmd)
}
