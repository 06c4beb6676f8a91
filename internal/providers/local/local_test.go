package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-iac/strata/internal/addrs"
	"github.com/strata-iac/strata/internal/providers"
)

func fileInstance(path, content string) *providers.Instance {
	return &providers.Instance{
		Addr:  addrs.Resource{Type: "local_file", Name: "t"},
		Attrs: map[string]any{"path": path, "content": content},
	}
}

func TestFile_CreateReadUpdateDelete(t *testing.T) {
	p := New()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "motd")

	inst := fileInstance(path, "hello\n")
	attrs, err := p.Create(ctx, inst)
	require.NoError(t, err)
	assert.NotEmpty(t, attrs["checksum"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	inst.Prior = attrs
	read, err := p.Read(ctx, inst)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", read["content"])

	inst.Attrs["content"] = "bye\n"
	updated, err := p.Update(ctx, inst)
	require.NoError(t, err)
	assert.NotEqual(t, attrs["checksum"], updated["checksum"])

	require.NoError(t, p.Delete(ctx, inst))
	gone, err := p.Read(ctx, inst)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestFile_Mode(t *testing.T) {
	p := New()
	path := filepath.Join(t.TempDir(), "script.sh")

	inst := fileInstance(path, "#!/bin/sh\n")
	inst.Attrs["mode"] = "0755"
	_, err := p.Create(context.Background(), inst)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestFile_Source(t *testing.T) {
	p := New()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("from source"), 0644))

	inst := &providers.Instance{
		Addr:  addrs.Resource{Type: "local_file", Name: "t"},
		Attrs: map[string]any{"path": filepath.Join(dir, "dst.txt"), "source": src},
	}
	attrs, err := p.Create(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, "from source", attrs["content"])
}

func TestDir_Lifecycle(t *testing.T) {
	p := New()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "managed")

	inst := &providers.Instance{
		Addr:  addrs.Resource{Type: "local_dir", Name: "d"},
		Attrs: map[string]any{"path": path},
	}
	_, err := p.Create(ctx, inst)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	inst.Prior = map[string]any{"path": path}
	require.NoError(t, p.Delete(ctx, inst))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSymlink_Lifecycle(t *testing.T) {
	p := New()
	ctx := context.Background()
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0644))
	link := filepath.Join(dir, "link")

	inst := &providers.Instance{
		Addr:  addrs.Resource{Type: "local_symlink", Name: "l"},
		Attrs: map[string]any{"path": link, "target": target},
	}
	_, err := p.Create(ctx, inst)
	require.NoError(t, err)

	got, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, target, got)

	// Re-point the link.
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(other, []byte("y"), 0644))
	inst.Attrs["target"] = other
	inst.Prior = map[string]any{"path": link, "target": target}
	_, err = p.Update(ctx, inst)
	require.NoError(t, err)

	got, err = os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, other, got)
}

func TestValidate(t *testing.T) {
	p := New()

	assert.NoError(t, p.Validate("local_file", map[string]any{"path": "/tmp/x"}))
	assert.Error(t, p.Validate("local_file", map[string]any{}), "path is required")
	assert.Error(t, p.Validate("local_file", map[string]any{"path": "/tmp/x", "content": "a", "source": "b"}))
	assert.Error(t, p.Validate("local_file", map[string]any{"path": "/tmp/x", "mode": "rwx"}))
	assert.Error(t, p.Validate("local_disk", map[string]any{}))
}
