package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt",
	Short: "Rewrite configuration files to the canonical format",
	Long:  `Formats every .hcl file in the working directory in place. With -check nothing is written; files that would change are listed and the exit code is non-zero.`,
	Run: func(cmd *cobra.Command, args []string) {
		check, _ := cmd.Flags().GetBool("check")

		paths, err := doublestar.Glob(filepath.Join(workDir(), "*.hcl"))
		if err != nil {
			fail(err)
		}
		sort.Strings(paths)

		var changed []string
		for _, path := range paths {
			src, err := os.ReadFile(path)
			if err != nil {
				fail(err)
			}
			formatted := hclwrite.Format(src)
			if bytes.Equal(src, formatted) {
				continue
			}
			changed = append(changed, path)
			if check {
				continue
			}
			if err := os.WriteFile(path, formatted, 0644); err != nil {
				fail(err)
			}
			fmt.Println(path)
		}

		if check && len(changed) > 0 {
			for _, path := range changed {
				fmt.Println(path)
			}
			fail(fmt.Errorf("%d file(s) are not formatted", len(changed)))
		}
		if len(changed) == 0 {
			pterm.Info.Println("All files already formatted.")
		}
	},
}

func init() {
	rootCmd.AddCommand(fmtCmd)
	fmtCmd.Flags().Bool("check", false, "only check formatting, do not rewrite files")
}
