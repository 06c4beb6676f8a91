package plan

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/strata-iac/strata/internal/core"
)

// Render writes the human-readable plan listing.
func Render(p *Plan, w io.Writer) {
	if !p.HasChanges() {
		pterm.Success.WithWriter(w).Println("No changes. Your infrastructure matches the configuration.")
		return
	}

	for _, change := range p.Changes {
		if change.Action == NoOp {
			continue
		}
		renderChange(change, w)
	}

	if len(p.Skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped (condition not met): %s\n", strings.Join(p.Skipped, ", "))
	}

	fmt.Fprintf(w, "\nPlan: %s.\n", p.Summary())
}

func renderChange(change Change, w io.Writer) {
	header := fmt.Sprintf("%s %s", change.Action.Symbol(), change.Address)
	if change.Reason != "" {
		header += fmt.Sprintf(" (%s)", change.Reason)
	}
	fmt.Fprintln(w, actionColor(change.Action).Sprint(header))

	for _, name := range sortedAttrNames(change.Diffs) {
		diff := change.Diffs[name]
		switch {
		case isMultiline(diff.Old) || isMultiline(diff.New):
			fmt.Fprintf(w, "    %s:\n", name)
			for _, line := range strings.Split(strings.TrimRight(core.TextDiff(diff.Old, diff.New), "\n"), "\n") {
				fmt.Fprintf(w, "      %s\n", line)
			}
		case change.Action == Create:
			fmt.Fprintf(w, "    %s: %s\n", name, renderNew(diff))
		case change.Action == Delete:
			fmt.Fprintf(w, "    %s: %q\n", name, diff.Old)
		default:
			marker := ""
			if diff.ForceNew {
				marker = " # forces replacement"
			}
			fmt.Fprintf(w, "    %s: %q -> %s%s\n", name, diff.Old, renderNew(diff), marker)
		}
	}
}

func renderNew(diff AttrDiff) string {
	if diff.New == UnknownValue {
		return UnknownValue
	}
	return fmt.Sprintf("%q", diff.New)
}

func isMultiline(s string) bool {
	return strings.Count(s, "\n") > 0 && s != UnknownValue
}

func actionColor(a Action) pterm.Color {
	switch a {
	case Create:
		return pterm.FgGreen
	case Update:
		return pterm.FgYellow
	case Replace:
		return pterm.FgMagenta
	case Delete:
		return pterm.FgRed
	default:
		return pterm.FgDefault
	}
}
