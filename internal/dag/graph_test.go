package dag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, deps map[string][]string) *Graph {
	t.Helper()
	g := New()
	for node := range deps {
		require.NoError(t, g.Add(node))
	}
	for node, nodeDeps := range deps {
		for _, dep := range nodeDeps {
			require.NoError(t, g.Depend(node, dep))
		}
	}
	return g
}

func TestAdd_Duplicate(t *testing.T) {
	g := New()
	require.NoError(t, g.Add("local_file.a"))
	assert.Error(t, g.Add("local_file.a"))
}

func TestDepend_Unknown(t *testing.T) {
	g := New()
	require.NoError(t, g.Add("local_file.a"))
	assert.Error(t, g.Depend("local_file.a", "local_dir.missing"))
	assert.Error(t, g.Depend("local_dir.missing", "local_file.a"))
}

func TestDepend_Self(t *testing.T) {
	g := New()
	require.NoError(t, g.Add("local_file.a"))
	assert.Error(t, g.Depend("local_file.a", "local_file.a"))
}

func TestLayers_SimpleChain(t *testing.T) {
	// a <- b <- c
	g := build(t, map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"b"},
	})

	layers, err := g.Layers()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, layers)
}

func TestLayers_Diamond(t *testing.T) {
	// b and c both depend on a; d depends on b and c.
	g := build(t, map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
	})

	layers, err := g.Layers()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, layers)
}

func TestLayers_Cycle(t *testing.T) {
	g := build(t, map[string][]string{
		"a": {"c"},
		"b": {"a"},
		"c": {"b"},
		"d": nil,
	})

	_, err := g.Layers()
	require.Error(t, err)
	// The error should name the cycle members, not the innocent node.
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
	assert.Contains(t, err.Error(), "c")
	assert.NotContains(t, err.Error(), "d")
}

func TestReverseOrder(t *testing.T) {
	g := build(t, map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"b"},
	})

	order, err := g.ReverseOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestDot(t *testing.T) {
	g := build(t, map[string][]string{
		"local_dir.etc":  nil,
		"local_file.cfg": {"local_dir.etc"},
	})

	out := g.Dot()
	assert.True(t, strings.HasPrefix(out, "digraph {"))
	assert.Contains(t, out, `"local_file.cfg" -> "local_dir.etc"`)
}
