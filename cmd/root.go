package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/strata-iac/strata/internal/configs"
	"github.com/strata-iac/strata/internal/consts"
	"github.com/strata-iac/strata/internal/core"
	"github.com/strata-iac/strata/internal/plan"
	"github.com/strata-iac/strata/internal/providers"
	"github.com/strata-iac/strata/internal/providers/exec"
	"github.com/strata-iac/strata/internal/providers/http"
	"github.com/strata-iac/strata/internal/providers/local"
	"github.com/strata-iac/strata/internal/providers/remote"
	"github.com/strata-iac/strata/internal/state"
	"github.com/strata-iac/strata/internal/transport"
)

var rootCmd = &cobra.Command{
	Use:     "strata",
	Short:   "Declarative resource management with plan and apply",
	Long:    `Strata reads a declarative configuration, compares it with the recorded state, and applies only the difference.`,
	Version: consts.Version,
}

var (
	verboseCount int
	chdir        string
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))

	// Human output goes to stderr so stdout stays clean for piping
	// (plan files, DOT graphs, state listings).
	pterm.SetDefaultOutput(os.Stderr)
	pterm.Success.Writer = os.Stderr
	pterm.Info.Writer = os.Stderr
	pterm.Error.Writer = os.Stderr
	pterm.Warning.Writer = os.Stderr
	pterm.DefaultHeader.Writer = os.Stderr

	rootCmd.PersistentFlags().StringVar(&chdir, "chdir", "", "run as if started in this directory")
	rootCmd.PersistentFlags().CountVarP(&verboseCount, "verbose", "v", "increase verbosity (-v, -vv)")
}

func fail(err error) {
	pterm.Error.Println(err.Error())
	os.Exit(1)
}

// errInterrupted marks a run stopped by Ctrl+C. The run function
// returns it instead of exiting so its deferred cleanup (state unlock,
// connection close) still happens; the command wrapper maps it to the
// conventional exit code.
var errInterrupted = errors.New("interrupted")

func exitOnError(err error) {
	if errors.Is(err, errInterrupted) {
		os.Exit(130)
	}
	fail(err)
}

func workDir() string {
	if chdir != "" {
		return chdir
	}
	return "."
}

func logLevel() core.LogLevel {
	switch {
	case verboseCount >= 2:
		return core.LevelTrace
	case verboseCount == 1:
		return core.LevelDebug
	default:
		return core.LevelInfo
	}
}

// session bundles everything a command needs for one run.
type session struct {
	cfg    *configs.Config
	reg    *providers.Registry
	mgr    *state.Manager
	eval   *configs.Evaluator
	run    *core.RunContext
	remote *remote.Provider
}

func newSession(ctx context.Context, flagVars []string, dryRun bool) (*session, error) {
	dir := workDir()

	cfg, err := configs.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	vars, err := configs.ResolveVariables(cfg, dir, flagVars)
	if err != nil {
		return nil, err
	}

	run := core.NewRunContext(ctx, dir, dryRun)
	run.Vars = vars
	run.Logger.SetLevel(logLevel())

	reg := providers.NewRegistry()
	remoteProvider := remote.New(cfg.Settings.Hosts, transport.DialSSH)
	for _, p := range []providers.Provider{local.New(), exec.New(), http.New(), remoteProvider} {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}

	mgr, err := state.NewManager(consts.StateFilePath(dir))
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:    cfg,
		reg:    reg,
		mgr:    mgr,
		eval:   configs.NewEvaluator(cfg, vars),
		run:    run,
		remote: remoteProvider,
	}, nil
}

func (s *session) Close() {
	if s.remote != nil {
		if err := s.remote.Close(); err != nil {
			s.run.Logger.Debug("closing remote connections", "error", err)
		}
	}
}

func (s *session) builder() *plan.Builder {
	return &plan.Builder{
		Config:   s.cfg,
		Eval:     s.eval,
		Registry: s.reg,
		State:    s.mgr,
	}
}

// lockState takes the state lock for mutating operations.
func (s *session) lockState(operation string) (func() error, error) {
	unlock, err := state.Lock(consts.LockFilePath(s.run.WorkDir), operation)
	if err != nil {
		return nil, fmt.Errorf("could not lock state: %w", err)
	}
	return unlock, nil
}
