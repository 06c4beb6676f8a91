package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strata-iac/strata/internal/configs"
	"github.com/strata-iac/strata/internal/core"
	"github.com/strata-iac/strata/internal/plan"
	"github.com/strata-iac/strata/internal/providers"
	"github.com/strata-iac/strata/internal/state"
)

// Executor carries out a computed plan: deletions first (dependents
// before dependencies), then the create/update/replace waves, each
// wave in parallel. On failure everything applied in this run is
// rolled back in reverse order.
type Executor struct {
	Config   *configs.Config
	Eval     *configs.Evaluator
	Registry *providers.Registry
	State    *state.Manager
	Plan     *plan.Plan
}

// appliedChange is the undo bookkeeping for one completed action.
type appliedChange struct {
	address  string
	action   plan.Action
	hadPrior bool
	prior    state.Record
	current  state.Record
}

// Apply executes the plan. The returned error is the first failure;
// the transaction history records what happened either way.
func (e *Executor) Apply(ctx *core.RunContext) error {
	if ctx.DryRun {
		return e.dryRun(ctx)
	}

	if ctx.TxID == "" {
		ctx.TxID = uuid.New().String()
	}
	operation := state.OpApply
	if e.Plan.Destroy {
		operation = state.OpDestroy
	}
	tx := state.Transaction{
		ID:        ctx.TxID,
		Operation: operation,
		Timestamp: time.Now(),
		Status:    state.TxSuccess,
	}

	// Deletions go first so replaced paths and freed names are
	// available to the waves that follow.
	for _, address := range e.Plan.DeleteOrder {
		if err := ctx.Err(); err != nil {
			return e.finish(ctx, tx, state.TxFailed, err)
		}
		if err := e.deleteOne(ctx, address); err != nil {
			return e.finish(ctx, tx, state.TxFailed, err)
		}
		tx.Changes = append(tx.Changes, state.TransactionChange{
			Address: address,
			Action:  string(plan.Delete),
		})
	}
	if len(e.Plan.DeleteOrder) > 0 {
		if err := e.State.Save(); err != nil {
			return e.finish(ctx, tx, state.TxFailed, err)
		}
	}

	var applied []appliedChange
	for _, wave := range e.Plan.Layers {
		if err := ctx.Err(); err != nil {
			tx.Status = state.TxFailed
			return e.failAndRollback(ctx, tx, applied, err)
		}

		done, errs := e.runWave(ctx, wave)
		applied = append(applied, done...)
		for _, a := range done {
			tx.Changes = append(tx.Changes, state.TransactionChange{
				Address: a.address,
				Action:  string(a.action),
				Diff:    changedAttrs(e.Plan, a.address),
			})
		}

		if err := e.State.Save(); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			return e.failAndRollback(ctx, tx, applied, errors.Join(errs...))
		}
	}

	return e.finish(ctx, tx, state.TxSuccess, nil)
}

// runWave applies the members of one wave in parallel.
func (e *Executor) runWave(ctx *core.RunContext, wave []string) ([]appliedChange, []error) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied []appliedChange
		errs    []error
	)

	for _, address := range wave {
		wg.Add(1)
		go func(address string) {
			defer wg.Done()

			change, err := e.applyOne(ctx, address)
			mu.Lock()
			defer mu.Unlock()
			// A hook can fail after the provider call succeeded; the
			// change still happened and must be part of the rollback.
			if change.address != "" {
				applied = append(applied, change)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", address, err))
			}
		}(address)
	}
	wg.Wait()

	sort.Slice(applied, func(i, j int) bool { return applied[i].address < applied[j].address })
	return applied, errs
}

// applyOne performs the planned action for one resource. Attributes are
// re-evaluated here so references into resources applied in earlier
// waves resolve to their real values.
func (e *Executor) applyOne(ctx *core.RunContext, address string) (appliedChange, error) {
	r, ok := e.Config.Resource(address)
	if !ok {
		return appliedChange{}, fmt.Errorf("not declared in configuration")
	}
	change, ok := e.Plan.Change(address)
	if !ok {
		return appliedChange{}, fmt.Errorf("not in plan")
	}
	provider, err := e.Registry.ForType(r.Addr.Type)
	if err != nil {
		return appliedChange{}, err
	}

	desired, err := e.Eval.Attrs(r, ctx)
	if err != nil {
		return appliedChange{}, err
	}
	for name, v := range desired {
		if configs.IsUnknown(v) {
			return appliedChange{}, fmt.Errorf("attribute %q is still unknown; its dependency did not apply", name)
		}
	}

	prior, hadPrior := e.State.Record(address)
	inst := &providers.Instance{
		Addr:  r.Addr,
		ID:    prior.ID,
		Attrs: desired,
		Prior: prior.Attrs,
	}

	var result map[string]any
	switch change.Action {
	case plan.Create:
		ctx.Logger.Info("creating " + address)
		result, err = provider.Create(ctx, inst)
	case plan.Update:
		ctx.Logger.Info("updating " + address)
		result, err = provider.Update(ctx, inst)
	case plan.Replace:
		ctx.Logger.Info("replacing " + address)
		if hadPrior {
			if err := provider.Delete(ctx, inst); err != nil {
				return appliedChange{}, fmt.Errorf("delete for replacement failed: %w", err)
			}
			e.State.RemoveRecord(address)
		}
		fresh := &providers.Instance{Addr: r.Addr, Attrs: desired}
		result, err = provider.Create(ctx, fresh)
	default:
		return appliedChange{}, fmt.Errorf("unexpected action %q", change.Action)
	}
	if err != nil {
		if change.Action == plan.Replace && hadPrior {
			// The old object is already gone; taint what is left so the
			// next plan recreates it.
			prior.Status = state.StatusTainted
			e.State.SetRecord(prior)
		}
		return appliedChange{}, err
	}

	rec := state.Record{
		Address:  address,
		Type:     r.Addr.Type,
		Name:     r.Addr.Name,
		Provider: r.Addr.Provider(),
		ID:       recordID(result),
		Attrs:    result,
		Status:   state.StatusSuccess,
	}
	e.State.SetRecord(rec)
	e.Eval.SetResource(r.Addr.Type, r.Addr.Name, result)

	if err := e.runHook(ctx, r, change.Action); err != nil {
		return appliedChange{address: address, action: change.Action, hadPrior: hadPrior, prior: prior, current: rec}, err
	}

	return appliedChange{
		address:  address,
		action:   change.Action,
		hadPrior: hadPrior,
		prior:    prior,
		current:  rec,
	}, nil
}

// deleteOne removes one resource, running its on_destroy hook first
// when the resource is still declared.
func (e *Executor) deleteOne(ctx *core.RunContext, address string) error {
	rec, ok := e.State.Record(address)
	if !ok {
		return nil
	}
	provider, err := e.Registry.ForType(rec.Type)
	if err != nil {
		return fmt.Errorf("%s: %w", address, err)
	}

	if r, declared := e.Config.Resource(address); declared && r.Hooks.OnDestroy != "" {
		if err := e.shellHook(ctx, r.Hooks.OnDestroy); err != nil {
			return fmt.Errorf("%s: on_destroy hook failed: %w", address, err)
		}
	}

	ctx.Logger.Info("destroying " + address)
	inst := &providers.Instance{
		Addr:  addrsFromRecord(rec),
		ID:    rec.ID,
		Prior: rec.Attrs,
	}
	if err := provider.Delete(ctx, inst); err != nil {
		return fmt.Errorf("%s: %w", address, err)
	}
	e.State.RemoveRecord(address)
	return nil
}

// dryRun only narrates what would happen.
func (e *Executor) dryRun(ctx *core.RunContext) error {
	for _, address := range e.Plan.DeleteOrder {
		ctx.Logger.Info("dry-run: would destroy " + address)
	}
	for _, wave := range e.Plan.Layers {
		for _, address := range wave {
			change, _ := e.Plan.Change(address)
			ctx.Logger.Info(fmt.Sprintf("dry-run: would %s %s", change.Action, address))
		}
	}
	return nil
}

func (e *Executor) runHook(ctx *core.RunContext, r *configs.Resource, action plan.Action) error {
	var hook string
	switch action {
	case plan.Create, plan.Replace:
		hook = r.Hooks.OnCreate
	case plan.Update:
		hook = r.Hooks.OnChange
	}
	if hook == "" {
		return nil
	}
	if err := e.shellHook(ctx, hook); err != nil {
		return fmt.Errorf("hook failed: %w", err)
	}
	return nil
}

func (e *Executor) shellHook(ctx *core.RunContext, command string) error {
	rendered, err := core.RenderTemplate(command, core.TemplateDataFrom(ctx))
	if err != nil {
		return err
	}
	out, err := core.RunShell(ctx, ctx.WorkDir, rendered)
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(out))
	}
	return nil
}

// finish records the transaction and returns the run error.
func (e *Executor) finish(ctx *core.RunContext, tx state.Transaction, status string, runErr error) error {
	tx.Status = status
	if err := e.State.AddTransaction(tx); err != nil {
		ctx.Logger.Error("could not record transaction", "error", err)
	}
	return runErr
}

// failAndRollback undoes the applied changes and records the outcome.
func (e *Executor) failAndRollback(ctx *core.RunContext, tx state.Transaction, applied []appliedChange, runErr error) error {
	ctx.Logger.Error("apply failed, rolling back", "error", runErr)

	// The run may have failed because its context was canceled
	// (Ctrl+C). The rollback still has provider calls to make, so it
	// runs detached from that cancellation.
	rctx := *ctx
	rctx.Context = context.WithoutCancel(ctx)

	status := state.TxReverted
	if err := e.rollback(&rctx, applied); err != nil {
		status = state.TxFailed
		runErr = errors.Join(runErr, fmt.Errorf("rollback incomplete: %w", err))
	}
	return e.finish(ctx, tx, status, runErr)
}

func recordID(attrs map[string]any) string {
	if id := providers.StringAttr(attrs, "id"); id != "" {
		return id
	}
	return providers.StringAttr(attrs, "path")
}

func changedAttrs(p *plan.Plan, address string) string {
	change, ok := p.Change(address)
	if !ok {
		return ""
	}
	names := make([]string, 0, len(change.Diffs))
	for name := range change.Diffs {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
