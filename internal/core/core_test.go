package core

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCtx(t *testing.T) *RunContext {
	t.Helper()
	ctx := NewRunContext(context.Background(), t.TempDir(), false)
	ctx.Vars["region"] = "eu-central-1"
	return ctx
}

func TestEvaluateCondition(t *testing.T) {
	ctx := testCtx(t)

	ok, err := EvaluateCondition(`os != ""`, ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluateCondition(`vars.region == "eu-central-1"`, ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluateCondition(`dry_run`, ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateCondition_NotBool(t *testing.T) {
	ctx := testCtx(t)
	_, err := EvaluateCondition(`os`, ctx)
	assert.Error(t, err)
}

func TestEvaluateCondition_BadSyntax(t *testing.T) {
	ctx := testCtx(t)
	_, err := EvaluateCondition(`os ==`, ctx)
	assert.Error(t, err)
}

func TestRenderTemplate(t *testing.T) {
	ctx := testCtx(t)

	out, err := RenderTemplate(`region={{ .Vars.region }} os={{ .OS }}`, TemplateDataFrom(ctx))
	require.NoError(t, err)
	assert.Contains(t, out, "region=eu-central-1")
	assert.Contains(t, out, "os="+ctx.OS)
}

func TestRenderTemplate_SprigFuncs(t *testing.T) {
	ctx := testCtx(t)

	out, err := RenderTemplate(`{{ .Vars.missing | default "fallback" }}`, TemplateDataFrom(ctx))
	require.NoError(t, err)
	assert.Equal(t, "fallback", out)
}

func TestTextDiff(t *testing.T) {
	out := TextDiff("a\nb\nc\n", "a\nB\nc\n")
	assert.Contains(t, out, "- b")
	assert.Contains(t, out, "+ B")

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 4) // a, -b, +B, c
}
