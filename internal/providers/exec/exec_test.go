package exec

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-iac/strata/internal/addrs"
	"github.com/strata-iac/strata/internal/core"
	"github.com/strata-iac/strata/internal/providers"
)

// mockRunner records command lines and serves canned results.
type mockRunner struct {
	calls  []string
	failOn string
}

func (m *mockRunner) Run(cmd *exec.Cmd) error {
	_, err := m.CombinedOutput(cmd)
	return err
}

func (m *mockRunner) Output(cmd *exec.Cmd) ([]byte, error) {
	return m.CombinedOutput(cmd)
}

func (m *mockRunner) CombinedOutput(cmd *exec.Cmd) ([]byte, error) {
	line := strings.Join(cmd.Args, " ")
	m.calls = append(m.calls, line)
	if m.failOn != "" && strings.Contains(line, m.failOn) {
		return []byte("boom"), fmt.Errorf("exit status 1")
	}
	return []byte("ok\n"), nil
}

func withMockRunner(t *testing.T, failOn string) *mockRunner {
	t.Helper()
	m := &mockRunner{failOn: failOn}
	prev := core.CommandRunner
	core.CommandRunner = m
	t.Cleanup(func() { core.CommandRunner = prev })
	return m
}

func instance(attrs map[string]any) *providers.Instance {
	return &providers.Instance{
		Addr:  addrs.Resource{Type: "exec_command", Name: "t"},
		Attrs: attrs,
	}
}

func TestCreate(t *testing.T) {
	m := withMockRunner(t, "")
	p := New()

	attrs, err := p.Create(context.Background(), instance(map[string]any{"create": "touch /tmp/x"}))
	require.NoError(t, err)
	assert.Equal(t, "ok\n", attrs["output"])
	require.Len(t, m.calls, 1)
	assert.Contains(t, m.calls[0], "touch /tmp/x")
}

func TestCreate_Failure(t *testing.T) {
	withMockRunner(t, "touch")
	p := New()

	_, err := p.Create(context.Background(), instance(map[string]any{"create": "touch /tmp/x"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRead_ProbeDecidesExistence(t *testing.T) {
	m := withMockRunner(t, "test -f")
	p := New()

	inst := instance(nil)
	inst.Prior = map[string]any{"create": "touch /tmp/x", "probe": "test -f /tmp/x"}

	got, err := p.Read(context.Background(), inst)
	require.NoError(t, err)
	assert.Nil(t, got, "failing probe means the resource vanished")
	require.Len(t, m.calls, 1)

	// Without a probe the prior state is trusted.
	inst.Prior = map[string]any{"create": "touch /tmp/x"}
	got, err = p.Read(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, inst.Prior, got)
}

func TestDelete(t *testing.T) {
	m := withMockRunner(t, "")
	p := New()

	inst := instance(nil)
	inst.Prior = map[string]any{"destroy": "rm -f /tmp/x"}
	require.NoError(t, p.Delete(context.Background(), inst))
	require.Len(t, m.calls, 1)
	assert.Contains(t, m.calls[0], "rm -f /tmp/x")

	// No destroy command: nothing runs, no error.
	inst.Prior = map[string]any{}
	require.NoError(t, p.Delete(context.Background(), inst))
	assert.Len(t, m.calls, 1)
}

func TestUpdate_NotSupported(t *testing.T) {
	p := New()
	_, err := p.Update(context.Background(), instance(nil))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	p := New()
	assert.NoError(t, p.Validate("exec_command", map[string]any{"create": "true"}))
	assert.Error(t, p.Validate("exec_command", map[string]any{}))
	assert.Error(t, p.Validate("exec_command", map[string]any{"create": "true", "when": "x"}))
}
