package engine

import (
	"errors"
	"fmt"

	"github.com/strata-iac/strata/internal/addrs"
	"github.com/strata-iac/strata/internal/core"
	"github.com/strata-iac/strata/internal/plan"
	"github.com/strata-iac/strata/internal/providers"
	"github.com/strata-iac/strata/internal/state"
)

// rollback undoes applied changes newest-first. Creates are deleted,
// updates get their prior attributes re-applied, replacements are
// rebuilt from the prior record. A step that cannot be undone leaves
// its record tainted and the error is reported.
func (e *Executor) rollback(ctx *core.RunContext, applied []appliedChange) error {
	var errs []error

	for i := len(applied) - 1; i >= 0; i-- {
		a := applied[i]
		if err := e.rollbackOne(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.address, err))

			rec := a.current
			rec.Status = state.StatusTainted
			e.State.SetRecord(rec)
		}
	}

	if err := e.State.Save(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Executor) rollbackOne(ctx *core.RunContext, a appliedChange) error {
	provider, err := e.Registry.ForType(a.current.Type)
	if err != nil {
		return err
	}

	switch a.action {
	case plan.Create:
		ctx.Logger.Warn("rolling back create of " + a.address)
		inst := &providers.Instance{
			Addr:  addrsFromRecord(a.current),
			ID:    a.current.ID,
			Prior: a.current.Attrs,
		}
		if err := provider.Delete(ctx, inst); err != nil {
			return err
		}
		e.State.RemoveRecord(a.address)
		return nil

	case plan.Update:
		ctx.Logger.Warn("rolling back update of " + a.address)
		inst := &providers.Instance{
			Addr:  addrsFromRecord(a.current),
			ID:    a.current.ID,
			Attrs: a.prior.Attrs,
			Prior: a.current.Attrs,
		}
		result, err := provider.Update(ctx, inst)
		if err != nil {
			return err
		}
		rec := a.prior
		rec.Attrs = result
		rec.Status = state.StatusSuccess
		e.State.SetRecord(rec)
		return nil

	case plan.Replace:
		ctx.Logger.Warn("rolling back replacement of " + a.address)
		inst := &providers.Instance{
			Addr:  addrsFromRecord(a.current),
			ID:    a.current.ID,
			Prior: a.current.Attrs,
		}
		if err := provider.Delete(ctx, inst); err != nil {
			return err
		}
		if !a.hadPrior {
			e.State.RemoveRecord(a.address)
			return nil
		}
		rebuilt := &providers.Instance{Addr: addrsFromRecord(a.prior), Attrs: a.prior.Attrs}
		result, err := provider.Create(ctx, rebuilt)
		if err != nil {
			e.State.RemoveRecord(a.address)
			return fmt.Errorf("could not rebuild the previous object: %w", err)
		}
		rec := a.prior
		rec.Attrs = result
		rec.ID = recordID(result)
		rec.Status = state.StatusSuccess
		e.State.SetRecord(rec)
		return nil

	default:
		return fmt.Errorf("cannot roll back action %q", a.action)
	}
}

func addrsFromRecord(rec state.Record) addrs.Resource {
	return addrs.Resource{Type: rec.Type, Name: rec.Name}
}
