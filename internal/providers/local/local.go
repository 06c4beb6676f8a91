// Package local manages files, directories and symlinks on the machine
// strata runs on. It is the reference provider: every engine feature is
// exercised against it in tests.
package local

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/strata-iac/strata/internal/providers"
)

type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Name() string { return "local" }

func (p *Provider) ResourceTypes() []string {
	return []string{"local_file", "local_dir", "local_symlink"}
}

func (p *Provider) Schema(resType string) (*providers.Schema, error) {
	switch resType {
	case "local_file":
		return &providers.Schema{Attributes: map[string]providers.Attr{
			"path":     {Required: true, ForceNew: true},
			"content":  {},
			"source":   {},
			"mode":     {},
			"checksum": {Computed: true},
		}}, nil
	case "local_dir":
		return &providers.Schema{Attributes: map[string]providers.Attr{
			"path": {Required: true, ForceNew: true},
			"mode": {},
		}}, nil
	case "local_symlink":
		return &providers.Schema{Attributes: map[string]providers.Attr{
			"path":   {Required: true, ForceNew: true},
			"target": {Required: true},
		}}, nil
	}
	return nil, fmt.Errorf("local provider does not serve %q", resType)
}

func (p *Provider) Validate(resType string, attrs map[string]any) error {
	schema, err := p.Schema(resType)
	if err != nil {
		return err
	}
	if err := providers.ValidateWithSchema(schema, attrs); err != nil {
		return err
	}

	if resType == "local_file" {
		content := providers.StringAttr(attrs, "content")
		source := providers.StringAttr(attrs, "source")
		if content != "" && source != "" {
			return fmt.Errorf("attributes \"content\" and \"source\" are mutually exclusive")
		}
	}
	if mode := providers.StringAttr(attrs, "mode"); mode != "" {
		if _, err := parseMode(mode); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) Create(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	switch inst.Addr.Type {
	case "local_file":
		return p.writeFile(inst.Attrs)
	case "local_dir":
		path := providers.StringAttr(inst.Attrs, "path")
		mode, err := modeOrDefault(inst.Attrs, 0755)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(path, mode); err != nil {
			return nil, fmt.Errorf("could not create directory %s: %w", path, err)
		}
		// MkdirAll does not chmod pre-existing dirs.
		if err := os.Chmod(path, mode); err != nil {
			return nil, err
		}
		return copyAttrs(inst.Attrs), nil
	case "local_symlink":
		path := providers.StringAttr(inst.Attrs, "path")
		target := providers.StringAttr(inst.Attrs, "target")
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		if err := os.Symlink(target, path); err != nil {
			return nil, fmt.Errorf("could not create symlink %s -> %s: %w", path, target, err)
		}
		return copyAttrs(inst.Attrs), nil
	}
	return nil, fmt.Errorf("local provider does not serve %q", inst.Addr.Type)
}

// Read inspects the real object. A nil map with nil error means the
// object is gone; the diff engine will plan a re-create.
func (p *Provider) Read(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	path := providers.StringAttr(inst.Prior, "path")
	if path == "" {
		path = providers.StringAttr(inst.Attrs, "path")
	}

	switch inst.Addr.Type {
	case "local_file":
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		attrs := copyAttrs(inst.Prior)
		attrs["path"] = path
		attrs["content"] = string(data)
		attrs["checksum"] = checksum(data)
		return attrs, nil
	case "local_dir":
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s exists but is not a directory", path)
		}
		return copyAttrs(inst.Prior), nil
	case "local_symlink":
		target, err := os.Readlink(path)
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		attrs := copyAttrs(inst.Prior)
		attrs["path"] = path
		attrs["target"] = target
		return attrs, nil
	}
	return nil, fmt.Errorf("local provider does not serve %q", inst.Addr.Type)
}

func (p *Provider) Update(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	switch inst.Addr.Type {
	case "local_file":
		return p.writeFile(inst.Attrs)
	case "local_dir":
		path := providers.StringAttr(inst.Attrs, "path")
		mode, err := modeOrDefault(inst.Attrs, 0755)
		if err != nil {
			return nil, err
		}
		if err := os.Chmod(path, mode); err != nil {
			return nil, err
		}
		return copyAttrs(inst.Attrs), nil
	case "local_symlink":
		// Symlink targets cannot be rewritten in place; re-link.
		path := providers.StringAttr(inst.Attrs, "path")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		return p.Create(ctx, inst)
	}
	return nil, fmt.Errorf("local provider does not serve %q", inst.Addr.Type)
}

func (p *Provider) Delete(ctx context.Context, inst *providers.Instance) error {
	path := providers.StringAttr(inst.Prior, "path")
	if path == "" {
		path = providers.StringAttr(inst.Attrs, "path")
	}
	if path == "" {
		return nil
	}

	var err error
	if inst.Addr.Type == "local_dir" {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete %s: %w", path, err)
	}
	return nil
}

func (p *Provider) writeFile(attrs map[string]any) (map[string]any, error) {
	path := providers.StringAttr(attrs, "path")
	mode, err := modeOrDefault(attrs, 0644)
	if err != nil {
		return nil, err
	}

	content := providers.StringAttr(attrs, "content")
	if source := providers.StringAttr(attrs, "source"); source != "" {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("could not read source %s: %w", source, err)
		}
		content = string(data)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return nil, fmt.Errorf("could not write %s: %w", path, err)
	}
	// WriteFile does not chmod pre-existing files.
	if err := os.Chmod(path, mode); err != nil {
		return nil, err
	}

	out := copyAttrs(attrs)
	out["content"] = content
	out["checksum"] = checksum([]byte(content))
	return out, nil
}

func checksum(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

func copyAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func parseMode(s string) (os.FileMode, error) {
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: expected octal like \"0644\"", s)
	}
	return os.FileMode(n), nil
}

func modeOrDefault(attrs map[string]any, def os.FileMode) (os.FileMode, error) {
	if s := providers.StringAttr(attrs, "mode"); s != "" {
		return parseMode(s)
	}
	return def, nil
}
