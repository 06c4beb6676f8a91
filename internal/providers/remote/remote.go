// Package remote manages files on hosts reachable over SSH. Hosts come
// from the settings block; connections are opened lazily per host and
// reused for the rest of the run.
package remote

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/strata-iac/strata/internal/providers"
	"github.com/strata-iac/strata/internal/transport"
)

type Provider struct {
	hosts map[string]transport.Host
	dial  transport.Dialer

	mu    sync.Mutex
	conns map[string]transport.Transport
}

func New(hosts []transport.Host, dial transport.Dialer) *Provider {
	if dial == nil {
		dial = transport.DialSSH
	}
	byName := make(map[string]transport.Host, len(hosts))
	for _, h := range hosts {
		byName[h.Name] = h
	}
	return &Provider{
		hosts: byName,
		dial:  dial,
		conns: make(map[string]transport.Transport),
	}
}

func (p *Provider) Name() string { return "remote" }

func (p *Provider) ResourceTypes() []string {
	return []string{"remote_file"}
}

func (p *Provider) Schema(resType string) (*providers.Schema, error) {
	if resType != "remote_file" {
		return nil, fmt.Errorf("remote provider does not serve %q", resType)
	}
	return &providers.Schema{Attributes: map[string]providers.Attr{
		"host":    {Required: true, ForceNew: true},
		"path":    {Required: true, ForceNew: true},
		"content": {Required: true},
		"mode":    {},
	}}, nil
}

func (p *Provider) Validate(resType string, attrs map[string]any) error {
	schema, err := p.Schema(resType)
	if err != nil {
		return err
	}
	if err := providers.ValidateWithSchema(schema, attrs); err != nil {
		return err
	}

	host := providers.StringAttr(attrs, "host")
	if _, ok := p.hosts[host]; !ok {
		return fmt.Errorf("host %q is not declared in the settings block", host)
	}
	if mode := providers.StringAttr(attrs, "mode"); mode != "" {
		if _, err := strconv.ParseUint(mode, 8, 32); err != nil {
			return fmt.Errorf("invalid mode %q: expected octal like \"0644\"", mode)
		}
	}
	return nil
}

func (p *Provider) Create(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	return p.write(inst.Attrs)
}

func (p *Provider) Read(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	conn, err := p.connFor(inst.Prior)
	if err != nil {
		return nil, err
	}

	path := providers.StringAttr(inst.Prior, "path")
	data, err := conn.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read remote file %s: %w", path, err)
	}

	attrs := copyAttrs(inst.Prior)
	attrs["content"] = string(data)
	return attrs, nil
}

func (p *Provider) Update(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	return p.write(inst.Attrs)
}

func (p *Provider) Delete(ctx context.Context, inst *providers.Instance) error {
	conn, err := p.connFor(inst.Prior)
	if err != nil {
		return err
	}

	path := providers.StringAttr(inst.Prior, "path")
	if err := conn.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete remote file %s: %w", path, err)
	}
	return nil
}

// Close tears down every open connection. The engine calls it at the
// end of a run.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for name, conn := range p.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, name)
	}
	return firstErr
}

func (p *Provider) write(attrs map[string]any) (map[string]any, error) {
	conn, err := p.connFor(attrs)
	if err != nil {
		return nil, err
	}

	path := providers.StringAttr(attrs, "path")
	content := providers.StringAttr(attrs, "content")

	mode := os.FileMode(0644)
	if s := providers.StringAttr(attrs, "mode"); s != "" {
		n, err := strconv.ParseUint(s, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid mode %q: %w", s, err)
		}
		mode = os.FileMode(n)
	}

	if err := conn.WriteFile(path, []byte(content), mode); err != nil {
		return nil, fmt.Errorf("could not write remote file %s: %w", path, err)
	}
	return copyAttrs(attrs), nil
}

func (p *Provider) connFor(attrs map[string]any) (transport.Transport, error) {
	name := providers.StringAttr(attrs, "host")
	host, ok := p.hosts[name]
	if !ok {
		return nil, fmt.Errorf("host %q is not declared in the settings block", name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[name]; ok {
		return conn, nil
	}
	conn, err := p.dial(host)
	if err != nil {
		return nil, fmt.Errorf("could not connect to host %q: %w", name, err)
	}
	p.conns[name] = conn
	return conn, nil
}

func copyAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
