// Package exec adapts arbitrary shell commands into the resource
// lifecycle: a create command, an optional probe that decides whether
// the managed thing still exists, and an optional destroy command.
// Commands run through core.CommandRunner so tests can intercept them.
package exec

import (
	"context"
	"fmt"

	"github.com/strata-iac/strata/internal/core"
	"github.com/strata-iac/strata/internal/providers"
)

type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Name() string { return "exec" }

func (p *Provider) ResourceTypes() []string {
	return []string{"exec_command"}
}

func (p *Provider) Schema(resType string) (*providers.Schema, error) {
	if resType != "exec_command" {
		return nil, fmt.Errorf("exec provider does not serve %q", resType)
	}
	return &providers.Schema{Attributes: map[string]providers.Attr{
		"create":  {Required: true, ForceNew: true},
		"destroy": {ForceNew: true},
		"probe":   {ForceNew: true},
		"dir":     {ForceNew: true},
		"output":  {Computed: true},
	}}, nil
}

func (p *Provider) Validate(resType string, attrs map[string]any) error {
	schema, err := p.Schema(resType)
	if err != nil {
		return err
	}
	return providers.ValidateWithSchema(schema, attrs)
}

func (p *Provider) Create(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	command := providers.StringAttr(inst.Attrs, "create")
	dir := providers.StringAttr(inst.Attrs, "dir")

	out, err := core.RunShell(ctx, dir, command)
	if err != nil {
		return nil, fmt.Errorf("create command failed: %w, output: %s", err, out)
	}

	attrs := make(map[string]any, len(inst.Attrs)+1)
	for k, v := range inst.Attrs {
		attrs[k] = v
	}
	attrs["output"] = out
	return attrs, nil
}

// Read runs the probe command. Probe failure means the managed thing is
// gone and a re-create gets planned. Without a probe the recorded state
// is taken at face value.
func (p *Provider) Read(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	probe := providers.StringAttr(inst.Prior, "probe")
	if probe == "" {
		return inst.Prior, nil
	}
	dir := providers.StringAttr(inst.Prior, "dir")
	if _, err := core.RunShell(ctx, dir, probe); err != nil {
		return nil, nil
	}
	return inst.Prior, nil
}

// Update is never reached: every configurable attribute is force-new,
// so the diff engine plans a replace instead.
func (p *Provider) Update(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	return nil, fmt.Errorf("exec_command does not support in-place updates")
}

func (p *Provider) Delete(ctx context.Context, inst *providers.Instance) error {
	destroy := providers.StringAttr(inst.Prior, "destroy")
	if destroy == "" {
		destroy = providers.StringAttr(inst.Attrs, "destroy")
	}
	if destroy == "" {
		return nil // nothing to run; the record is simply dropped
	}

	dir := providers.StringAttr(inst.Prior, "dir")
	if out, err := core.RunShell(ctx, dir, destroy); err != nil {
		return fmt.Errorf("destroy command failed: %w, output: %s", err, out)
	}
	return nil
}
