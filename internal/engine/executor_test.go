package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-iac/strata/internal/configs"
	"github.com/strata-iac/strata/internal/core"
	"github.com/strata-iac/strata/internal/plan"
	"github.com/strata-iac/strata/internal/providers"
	"github.com/strata-iac/strata/internal/state"
)

// fakeProvider tracks calls and keeps objects in memory so tests can
// assert on ordering, rollback and final state.
type fakeProvider struct {
	mu       sync.Mutex
	calls    []string
	objects  map[string]map[string]any // address -> attrs
	fail     map[string]bool           // "<op> <address>" -> forced failure
	ctxAware bool                      // refuse calls once the context is canceled
	onCall   func(key string)
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		objects: make(map[string]map[string]any),
		fail:    make(map[string]bool),
	}
}

func (p *fakeProvider) Name() string            { return "fake" }
func (p *fakeProvider) ResourceTypes() []string { return []string{"fake_thing"} }

func (p *fakeProvider) Schema(resType string) (*providers.Schema, error) {
	return &providers.Schema{Attributes: map[string]providers.Attr{
		"path":     {Required: true, ForceNew: true},
		"content":  {},
		"checksum": {Computed: true},
	}}, nil
}

func (p *fakeProvider) Validate(resType string, attrs map[string]any) error {
	schema, _ := p.Schema(resType)
	return providers.ValidateWithSchema(schema, attrs)
}

func (p *fakeProvider) record(ctx context.Context, op string, inst *providers.Instance) error {
	p.mu.Lock()
	key := op + " " + inst.Addr.String()
	p.calls = append(p.calls, key)
	failed := p.fail[key]
	hook := p.onCall
	p.mu.Unlock()

	if hook != nil {
		hook(key)
	}
	if p.ctxAware && ctx.Err() != nil {
		return ctx.Err()
	}
	if failed {
		return fmt.Errorf("forced failure for %s", key)
	}
	return nil
}

func (p *fakeProvider) Create(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	if err := p.record(ctx, "create", inst); err != nil {
		return nil, err
	}
	attrs := withChecksum(inst.Attrs)
	p.mu.Lock()
	p.objects[inst.Addr.String()] = attrs
	p.mu.Unlock()
	return attrs, nil
}

func (p *fakeProvider) Read(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	obj, ok := p.objects[inst.Addr.String()]
	if !ok {
		return nil, nil
	}
	return obj, nil
}

func (p *fakeProvider) Update(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	if err := p.record(ctx, "update", inst); err != nil {
		return nil, err
	}
	attrs := withChecksum(inst.Attrs)
	p.mu.Lock()
	p.objects[inst.Addr.String()] = attrs
	p.mu.Unlock()
	return attrs, nil
}

func (p *fakeProvider) Delete(ctx context.Context, inst *providers.Instance) error {
	if err := p.record(ctx, "delete", inst); err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.objects, inst.Addr.String())
	p.mu.Unlock()
	return nil
}

func withChecksum(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	out["checksum"] = fmt.Sprintf("sum(%v)", out["content"])
	return out
}

func (p *fakeProvider) callList() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

// mockRunner intercepts hook shell commands.
type mockRunner struct {
	mu       sync.Mutex
	commands []string
	err      error
}

func (m *mockRunner) remember(cmd *exec.Cmd) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd.Args[len(cmd.Args)-1])
	return m.err
}

func (m *mockRunner) Run(cmd *exec.Cmd) error { return m.remember(cmd) }
func (m *mockRunner) CombinedOutput(cmd *exec.Cmd) ([]byte, error) {
	return nil, m.remember(cmd)
}
func (m *mockRunner) Output(cmd *exec.Cmd) ([]byte, error) {
	return nil, m.remember(cmd)
}

type fixture struct {
	provider *fakeProvider
	builder  *plan.Builder
	mgr      *state.Manager
	ctx      *core.RunContext
}

func newFixture(t *testing.T, hcl string, records ...state.Record) *fixture {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(hcl), 0644))
	cfg, err := configs.LoadDir(dir)
	require.NoError(t, err)

	mgr, err := state.NewManager(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	for _, rec := range records {
		mgr.SetRecord(rec)
	}

	provider := newFakeProvider()
	reg := providers.NewRegistry()
	require.NoError(t, reg.Register(provider))

	return &fixture{
		provider: provider,
		builder: &plan.Builder{
			Config:   cfg,
			Eval:     configs.NewEvaluator(cfg, nil),
			Registry: reg,
			State:    mgr,
		},
		mgr: mgr,
		ctx: core.NewRunContext(context.Background(), dir, false),
	}
}

func (f *fixture) apply(t *testing.T, destroy bool) error {
	t.Helper()
	p, err := f.builder.Build(f.ctx, destroy)
	require.NoError(t, err)

	ex := &Executor{
		Config:   f.builder.Config,
		Eval:     f.builder.Eval,
		Registry: f.builder.Registry,
		State:    f.mgr,
		Plan:     p,
	}
	return ex.Apply(f.ctx)
}

func existingRecord(addr, path, content string) state.Record {
	return state.Record{
		Address:  addr,
		Type:     "fake_thing",
		Name:     addr[len("fake_thing."):],
		Provider: "fake",
		ID:       path,
		Attrs:    map[string]any{"path": path, "content": content, "checksum": "sum(" + content + ")"},
		Status:   state.StatusSuccess,
	}
}

func TestApply_CreatesInDependencyOrder(t *testing.T) {
	f := newFixture(t, `
resource "fake_thing" "base" {
  path    = "/base"
  content = "b"
}
resource "fake_thing" "child" {
  path    = "/child"
  content = res.fake_thing.base.checksum
}
`)
	require.NoError(t, f.apply(t, false))

	calls := f.provider.callList()
	require.Equal(t, []string{"create fake_thing.base", "create fake_thing.child"}, calls)

	child, ok := f.mgr.Record("fake_thing.child")
	require.True(t, ok)
	assert.Equal(t, "sum(b)", child.Attrs["content"], "reference resolved after base applied")

	tx, ok := f.mgr.LastTransaction()
	require.True(t, ok)
	assert.Equal(t, state.OpApply, tx.Operation)
	assert.Equal(t, state.TxSuccess, tx.Status)
	assert.Len(t, tx.Changes, 2)
}

func TestApply_Update(t *testing.T) {
	f := newFixture(t, `
resource "fake_thing" "a" {
  path    = "/a"
  content = "new"
}
`, existingRecord("fake_thing.a", "/a", "old"))

	require.NoError(t, f.apply(t, false))

	assert.Equal(t, []string{"update fake_thing.a"}, f.provider.callList())
	rec, _ := f.mgr.Record("fake_thing.a")
	assert.Equal(t, "new", rec.Attrs["content"])
}

func TestApply_ReplaceDeletesThenCreates(t *testing.T) {
	f := newFixture(t, `
resource "fake_thing" "a" {
  path    = "/moved"
  content = "x"
}
`, existingRecord("fake_thing.a", "/a", "x"))

	require.NoError(t, f.apply(t, false))
	assert.Equal(t, []string{"delete fake_thing.a", "create fake_thing.a"}, f.provider.callList())

	rec, _ := f.mgr.Record("fake_thing.a")
	assert.Equal(t, "/moved", rec.Attrs["path"])
}

func TestApply_FailureRollsBackEarlierWaves(t *testing.T) {
	f := newFixture(t, `
resource "fake_thing" "base" {
  path    = "/base"
  content = "b"
}
resource "fake_thing" "child" {
  path       = "/child"
  content    = "c"
  depends_on = ["fake_thing.base"]
}
`)
	f.provider.fail["create fake_thing.child"] = true

	err := f.apply(t, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fake_thing.child")

	// base was created, then rolled back.
	assert.Contains(t, f.provider.callList(), "delete fake_thing.base")
	_, ok := f.mgr.Record("fake_thing.base")
	assert.False(t, ok)

	tx, ok := f.mgr.LastTransaction()
	require.True(t, ok)
	assert.Equal(t, state.TxReverted, tx.Status)
}

func TestApply_Destroy(t *testing.T) {
	f := newFixture(t, `
resource "fake_thing" "base" {
  path    = "/base"
  content = "b"
}
resource "fake_thing" "child" {
  path       = "/child"
  content    = "c"
  depends_on = ["fake_thing.base"]
}
`,
		existingRecord("fake_thing.base", "/base", "b"),
		existingRecord("fake_thing.child", "/child", "c"),
	)

	require.NoError(t, f.apply(t, true))
	assert.Equal(t, []string{"delete fake_thing.child", "delete fake_thing.base"}, f.provider.callList())
	assert.Empty(t, f.mgr.Addresses())

	tx, _ := f.mgr.LastTransaction()
	assert.Equal(t, state.OpDestroy, tx.Operation)
}

func TestApply_OrphanDeletedBeforeCreates(t *testing.T) {
	f := newFixture(t, `
resource "fake_thing" "a" {
  path    = "/a"
  content = "x"
}
`, existingRecord("fake_thing.gone", "/gone", "y"))

	require.NoError(t, f.apply(t, false))
	assert.Equal(t, []string{"delete fake_thing.gone", "create fake_thing.a"}, f.provider.callList())
}

func TestApply_DryRunTouchesNothing(t *testing.T) {
	f := newFixture(t, `
resource "fake_thing" "a" {
  path    = "/a"
  content = "x"
}
`)
	f.ctx.DryRun = true

	require.NoError(t, f.apply(t, false))
	assert.Empty(t, f.provider.callList())
	assert.Empty(t, f.mgr.Addresses())
}

func TestApply_Hooks(t *testing.T) {
	runner := &mockRunner{}
	orig := core.CommandRunner
	core.CommandRunner = runner
	t.Cleanup(func() { core.CommandRunner = orig })

	f := newFixture(t, `
resource "fake_thing" "a" {
  path    = "/a"
  content = "x"

  hooks {
    on_create = "echo created"
  }
}
`)
	require.NoError(t, f.apply(t, false))
	assert.Equal(t, []string{"echo created"}, runner.commands)
}

func TestApply_FailedHookRollsBack(t *testing.T) {
	runner := &mockRunner{err: fmt.Errorf("hook exploded")}
	orig := core.CommandRunner
	core.CommandRunner = runner
	t.Cleanup(func() { core.CommandRunner = orig })

	f := newFixture(t, `
resource "fake_thing" "a" {
  path    = "/a"
  content = "x"

  hooks {
    on_create = "false"
  }
}
`)
	err := f.apply(t, false)
	require.Error(t, err)

	_, ok := f.mgr.Record("fake_thing.a")
	assert.False(t, ok, "create rolled back after hook failure")
}

// A wave of independent resources shares one evaluator; every member
// evaluates its attributes while siblings publish theirs. Run with
// -race this covers the evaluator's locking.
func TestApply_ParallelWaveSharesEvaluator(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 16; i++ {
		fmt.Fprintf(&sb, `
resource "fake_thing" "r%d" {
  path    = "/r%d"
  content = "c%d"
}
`, i, i, i)
	}
	f := newFixture(t, sb.String())

	require.NoError(t, f.apply(t, false))
	assert.Len(t, f.mgr.Addresses(), 16)
	assert.Len(t, f.provider.callList(), 16)
}

func TestApply_InterruptedRunRollsBack(t *testing.T) {
	f := newFixture(t, `
resource "fake_thing" "base" {
  path    = "/base"
  content = "b"
}
resource "fake_thing" "child" {
  path       = "/child"
  content    = "c"
  depends_on = ["fake_thing.base"]
}
`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.ctx.Context = ctx

	f.provider.ctxAware = true
	f.provider.onCall = func(key string) {
		if key == "create fake_thing.child" {
			cancel()
		}
	}

	err := f.apply(t, false)
	require.Error(t, err)

	// The rollback must still reach the provider after the context is
	// canceled, undoing the create from the first wave.
	assert.Contains(t, f.provider.callList(), "delete fake_thing.base")
	_, ok := f.mgr.Record("fake_thing.base")
	assert.False(t, ok)

	tx, ok := f.mgr.LastTransaction()
	require.True(t, ok)
	assert.Equal(t, state.TxReverted, tx.Status)
}
