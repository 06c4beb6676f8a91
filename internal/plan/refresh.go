package plan

import (
	"fmt"
	"sort"
	"sync"

	"github.com/strata-iac/strata/internal/addrs"
	"github.com/strata-iac/strata/internal/core"
	"github.com/strata-iac/strata/internal/providers"
	"github.com/strata-iac/strata/internal/state"
)

// Drift describes one resource whose real object no longer matches the
// recorded state.
type Drift struct {
	Address string
	Gone    bool     // the object disappeared entirely
	Changed []string // attribute names that differ
}

// Refresh re-reads every recorded resource from its provider and folds
// the observed attributes back into state. Reads run in parallel,
// bounded by concurrency. The state is updated in memory only; the
// caller decides when to save.
func Refresh(ctx *core.RunContext, reg *providers.Registry, mgr *state.Manager, concurrency int) ([]Drift, error) {
	if concurrency < 1 {
		concurrency = 4
	}

	addresses := mgr.Addresses()
	sem := make(chan struct{}, concurrency)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		drifts []Drift
		errs   []error
	)

	for _, address := range addresses {
		rec, ok := mgr.Record(address)
		if !ok {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(address string, rec state.Record) {
			defer wg.Done()
			defer func() { <-sem }()

			drift, err := refreshOne(ctx, reg, mgr, address, rec)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if drift != nil {
				drifts = append(drifts, *drift)
			}
		}(address, rec)
	}
	wg.Wait()

	if len(errs) > 0 {
		return drifts, fmt.Errorf("refresh failed for %d resource(s): %w", len(errs), errs[0])
	}

	sort.Slice(drifts, func(i, j int) bool { return drifts[i].Address < drifts[j].Address })
	return drifts, nil
}

func refreshOne(ctx *core.RunContext, reg *providers.Registry, mgr *state.Manager, address string, rec state.Record) (*Drift, error) {
	provider, err := reg.ForType(rec.Type)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", address, err)
	}

	inst := &providers.Instance{
		Addr:  addrs.Resource{Type: rec.Type, Name: rec.Name},
		ID:    rec.ID,
		Prior: rec.Attrs,
	}
	observed, err := provider.Read(ctx, inst)
	if err != nil {
		return nil, fmt.Errorf("%s: read failed: %w", address, err)
	}

	if observed == nil {
		// Object is gone; drop the record so the next plan recreates it.
		mgr.RemoveRecord(address)
		ctx.Logger.Warn("resource vanished outside of strata", "address", address)
		return &Drift{Address: address, Gone: true}, nil
	}

	var changed []string
	for name, v := range observed {
		if !attrEqual(rec.Attrs[name], v) {
			changed = append(changed, name)
		}
	}
	if len(changed) == 0 {
		return nil, nil
	}
	sort.Strings(changed)

	rec.Attrs = observed
	mgr.SetRecord(rec)
	ctx.Logger.Warn("resource drifted outside of strata", "address", address, "attrs", changed)
	return &Drift{Address: address, Changed: changed}, nil
}
