package plan

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-iac/strata/internal/core"
	"github.com/strata-iac/strata/internal/providers"
	"github.com/strata-iac/strata/internal/state"
)

func refreshSetup(t *testing.T, readFn func(inst *providers.Instance) (map[string]any, error), records ...state.Record) (*providers.Registry, *state.Manager, *core.RunContext) {
	t.Helper()

	mgr, err := state.NewManager(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	for _, rec := range records {
		mgr.SetRecord(rec)
	}

	reg := providers.NewRegistry()
	require.NoError(t, reg.Register(&memProvider{readFn: readFn}))

	return reg, mgr, core.NewRunContext(context.Background(), t.TempDir(), false)
}

func TestRefresh_NoDrift(t *testing.T) {
	reg, mgr, ctx := refreshSetup(t, nil, record("mem_object.a", "/a", "hello"))

	drifts, err := Refresh(ctx, reg, mgr, 2)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestRefresh_AttributeDrift(t *testing.T) {
	readFn := func(inst *providers.Instance) (map[string]any, error) {
		out := map[string]any{}
		for k, v := range inst.Prior {
			out[k] = v
		}
		out["content"] = "edited by hand"
		return out, nil
	}
	reg, mgr, ctx := refreshSetup(t, readFn, record("mem_object.a", "/a", "hello"))

	drifts, err := Refresh(ctx, reg, mgr, 2)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "mem_object.a", drifts[0].Address)
	assert.Equal(t, []string{"content"}, drifts[0].Changed)

	rec, ok := mgr.Record("mem_object.a")
	require.True(t, ok)
	assert.Equal(t, "edited by hand", rec.Attrs["content"], "state folds in the observed value")
}

func TestRefresh_GoneObject(t *testing.T) {
	readFn := func(inst *providers.Instance) (map[string]any, error) {
		return nil, nil
	}
	reg, mgr, ctx := refreshSetup(t, readFn,
		record("mem_object.a", "/a", "x"),
		record("mem_object.b", "/b", "y"),
	)

	drifts, err := Refresh(ctx, reg, mgr, 2)
	require.NoError(t, err)
	require.Len(t, drifts, 2)
	assert.True(t, drifts[0].Gone)

	_, ok := mgr.Record("mem_object.a")
	assert.False(t, ok, "vanished records are dropped from state")
}
