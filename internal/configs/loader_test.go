package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	return dir
}

func TestLoadDir_HCL(t *testing.T) {
	dir := writeConfig(t, "main.hcl", `
strata {
  required_version = ">= 0.1.0"

  host "web1" {
    address = "10.0.0.1"
    user    = "deploy"
    port    = 2222
  }
}

variable "region" {
  default     = "eu-central-1"
  description = "deployment region"
}

resource "local_dir" "etc" {
  path = "/tmp/etc"
}

resource "local_file" "cfg" {
  path    = "${res.local_dir.etc.path}/app.conf"
  content = "region = ${var.region}\n"
}
`)

	cfg, err := LoadDir(dir)
	require.NoError(t, err)

	assert.Equal(t, ">= 0.1.0", cfg.Settings.RequiredVersion)
	require.Len(t, cfg.Settings.Hosts, 1)
	assert.Equal(t, "web1", cfg.Settings.Hosts[0].Name)
	assert.Equal(t, 2222, cfg.Settings.Hosts[0].Port)

	require.Contains(t, cfg.Variables, "region")
	assert.Equal(t, "eu-central-1", cfg.Variables["region"].Default)

	require.Len(t, cfg.Resources, 2)
	file, ok := cfg.Resource("local_file.cfg")
	require.True(t, ok)
	// The res.* reference becomes an implicit dependency.
	assert.Equal(t, []string{"local_dir.etc"}, file.DependsOn)
}

func TestLoadDir_YAML(t *testing.T) {
	dir := writeConfig(t, "site.yaml", `
vars:
  greeting: hello
resources:
  - type: local_dir
    name: workdir
    params:
      path: /tmp/work
  - type: local_file
    name: motd
    params:
      path: /tmp/work/motd
      content: "{{ .Vars.greeting }} world"
    depends_on: ["local_dir.workdir"]
    when: 'os != "windows"'
    hooks:
      on_change: "echo changed"
`)

	cfg, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, cfg.Resources, 2)

	motd, ok := cfg.Resource("local_file.motd")
	require.True(t, ok)
	assert.Equal(t, []string{"local_dir.workdir"}, motd.DependsOn)
	assert.Equal(t, `os != "windows"`, motd.When)
	assert.Equal(t, "echo changed", motd.Hooks.OnChange)
	assert.Equal(t, "hello", cfg.Variables["greeting"].Default)
}

func TestLoadDir_Empty(t *testing.T) {
	cfg, err := LoadDir(t.TempDir())
	require.NoError(t, err, "an empty directory is an empty configuration")
	assert.Empty(t, cfg.Resources)
}

func TestLoadDir_DuplicateAddress(t *testing.T) {
	dir := writeConfig(t, "main.hcl", `
resource "local_file" "a" { path = "/tmp/a" }
resource "local_file" "a" { path = "/tmp/b" }
`)
	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local_file.a")
}

func TestLoadDir_UndeclaredDependency(t *testing.T) {
	dir := writeConfig(t, "main.hcl", `
resource "local_file" "a" {
  path       = "/tmp/a"
  depends_on = ["local_dir.missing"]
}
`)
	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local_dir.missing")
}

func TestLoadDir_UndeclaredVariable(t *testing.T) {
	dir := writeConfig(t, "main.hcl", `
resource "local_file" "a" {
  path    = "/tmp/a"
  content = var.missing
}
`)
	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestLoadDir_SelfReference(t *testing.T) {
	dir := writeConfig(t, "main.hcl", `
resource "local_file" "a" {
  path    = "/tmp/a"
  content = res.local_file.a.checksum
}
`)
	_, err := LoadDir(dir)
	assert.Error(t, err)
}

func TestLoadDir_UnknownRootSymbol(t *testing.T) {
	dir := writeConfig(t, "main.hcl", `
resource "local_file" "a" {
  path    = "/tmp/a"
  content = data.thing.x
}
`)
	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"data"`)
}

func TestRequiredVersion_Unsatisfied(t *testing.T) {
	dir := writeConfig(t, "main.hcl", `
strata { required_version = ">= 99.0.0" }
resource "local_file" "a" { path = "/tmp/a" }
`)
	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required_version")
}

func TestResolveVariables(t *testing.T) {
	dir := writeConfig(t, "main.hcl", `
variable "region" { default = "eu-central-1" }
variable "flavor" { default = "small" }
resource "local_file" "a" { path = "/tmp/a" }
`)
	cfg, err := LoadDir(dir)
	require.NoError(t, err)

	t.Setenv("STRATA_VAR_REGION", "us-east-1")

	vars, err := ResolveVariables(cfg, dir, []string{"flavor=large"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", vars["region"], "environment beats default")
	assert.Equal(t, "large", vars["flavor"], "-var beats default")
}

func TestResolveVariables_MissingValue(t *testing.T) {
	dir := writeConfig(t, "main.hcl", `
variable "token" {}
resource "local_file" "a" { path = "/tmp/a" }
`)
	cfg, err := LoadDir(dir)
	require.NoError(t, err)

	_, err = ResolveVariables(cfg, dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"token"`)
}

func TestResolveVariables_UndeclaredFlag(t *testing.T) {
	dir := writeConfig(t, "main.hcl", `
resource "local_file" "a" { path = "/tmp/a" }
`)
	cfg, err := LoadDir(dir)
	require.NoError(t, err)

	_, err = ResolveVariables(cfg, dir, []string{"nope=1"})
	assert.Error(t, err)
}
