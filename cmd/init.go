package cmd

import (
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/strata-iac/strata/internal/configs"
	"github.com/strata-iac/strata/internal/consts"
	"github.com/strata-iac/strata/internal/state"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Prepare the working directory",
	Long:  `Creates the .strata workspace directory and an empty state file, and checks that the configuration parses. Safe to run repeatedly.`,
	Run: func(cmd *cobra.Command, args []string) {
		dir := workDir()

		if empty, err := noConfigFiles(dir); err == nil && empty {
			example := filepath.Join(dir, "main.hcl")
			if err := os.WriteFile(example, []byte(exampleConfig), 0644); err != nil {
				fail(err)
			}
			pterm.Info.Println("No configuration found, wrote an example to main.hcl.")
		}

		if _, err := configs.LoadDir(dir); err != nil {
			fail(err)
		}

		workspace := filepath.Join(dir, consts.DefaultDirName)
		if err := os.MkdirAll(workspace, 0755); err != nil {
			fail(err)
		}

		statePath := consts.StateFilePath(dir)
		fresh := false
		if _, err := os.Stat(statePath); os.IsNotExist(err) {
			mgr, err := state.NewManager(statePath)
			if err != nil {
				fail(err)
			}
			if err := mgr.Save(); err != nil {
				fail(err)
			}
			fresh = true
		}

		// Keep state and backups out of version control.
		gitignore := filepath.Join(workspace, ".gitignore")
		if _, err := os.Stat(gitignore); os.IsNotExist(err) {
			_ = os.WriteFile(gitignore, []byte("*\n"), 0644)
		}

		if fresh {
			pterm.Success.Println("Workspace initialized, new state created.")
		} else {
			pterm.Success.Println("Workspace already initialized, state kept.")
		}
	},
}

func noConfigFiles(dir string) (bool, error) {
	for _, pattern := range []string{"*.hcl", "*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return false, err
		}
		if len(matches) > 0 {
			return false, nil
		}
	}
	return true, nil
}

const exampleConfig = `variable "greeting" {
  default = "hello from strata"
}

resource "local_dir" "workspace" {
  path = "/tmp/strata-example"
}

resource "local_file" "motd" {
  path    = "${res.local_dir.workspace.path}/motd"
  content = "${var.greeting}\n"
}
`

func init() {
	rootCmd.AddCommand(initCmd)
}
