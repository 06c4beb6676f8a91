// Package http manages resources behind a REST-style JSON endpoint:
// POST to create, GET to read, PUT to update, DELETE to remove. The
// endpoint must return an "id" field on create. Requests retry on
// transient failures.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/strata-iac/strata/internal/providers"
)

type Provider struct {
	client *retryablehttp.Client
}

func New() *Provider {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.RetryMax = 3
	client.Logger = nil // request logging is the engine's job
	return &Provider{client: client}
}

func (p *Provider) Name() string { return "http" }

func (p *Provider) ResourceTypes() []string {
	return []string{"http_resource"}
}

func (p *Provider) Schema(resType string) (*providers.Schema, error) {
	if resType != "http_resource" {
		return nil, fmt.Errorf("http provider does not serve %q", resType)
	}
	return &providers.Schema{Attributes: map[string]providers.Attr{
		"url":     {Required: true, ForceNew: true},
		"body":    {},
		"headers": {},
		"id":      {Computed: true},
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

	url := providers.StringAttr(attrs, "url")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("attribute \"url\" must be an http(s) URL, got %q", url)
	}
	if body := providers.StringAttr(attrs, "body"); body != "" {
		if !json.Valid([]byte(body)) {
			return fmt.Errorf("attribute \"body\" must be valid JSON")
		}
	}
	return nil
}

func (p *Provider) Create(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	url := providers.StringAttr(inst.Attrs, "url")
	body := providers.StringAttr(inst.Attrs, "body")

	respBody, status, err := p.do(ctx, nethttp.MethodPost, url, body, inst.Attrs)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("create returned HTTP %d: %s", status, respBody)
	}

	var payload struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal([]byte(respBody), &payload); err != nil || payload.ID == nil {
		return nil, fmt.Errorf("endpoint did not return an \"id\" field: %s", respBody)
	}

	attrs := copyAttrs(inst.Attrs)
	attrs["id"] = fmt.Sprintf("%v", payload.ID)
	return attrs, nil
}

func (p *Provider) Read(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	url, err := objectURL(inst)
	if err != nil {
		return nil, err
	}

	respBody, status, err := p.do(ctx, nethttp.MethodGet, url, "", inst.Prior)
	if err != nil {
		return nil, err
	}
	if status == nethttp.StatusNotFound || status == nethttp.StatusGone {
		return nil, nil
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("read returned HTTP %d", status)
	}

	attrs := copyAttrs(inst.Prior)
	attrs["body"] = respBody
	return attrs, nil
}

func (p *Provider) Update(ctx context.Context, inst *providers.Instance) (map[string]any, error) {
	url, err := objectURL(inst)
	if err != nil {
		return nil, err
	}
	body := providers.StringAttr(inst.Attrs, "body")

	respBody, status, err := p.do(ctx, nethttp.MethodPut, url, body, inst.Attrs)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("update returned HTTP %d: %s", status, respBody)
	}

	attrs := copyAttrs(inst.Attrs)
	attrs["id"] = idOf(inst)
	return attrs, nil
}

func (p *Provider) Delete(ctx context.Context, inst *providers.Instance) error {
	url, err := objectURL(inst)
	if err != nil {
		return err
	}

	_, status, err := p.do(ctx, nethttp.MethodDelete, url, "", inst.Prior)
	if err != nil {
		return err
	}
	if status == nethttp.StatusNotFound {
		return nil // already gone
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("delete returned HTTP %d", status)
	}
	return nil
}

func (p *Provider) do(ctx context.Context, method, url, body string, attrs map[string]any) (string, int, error) {
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if headers, ok := attrs["headers"].(map[string]any); ok {
		for k, v := range headers {
			req.Header.Set(k, fmt.Sprintf("%v", v))
		}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%s %s failed: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}
	return string(data), resp.StatusCode, nil
}

func objectURL(inst *providers.Instance) (string, error) {
	base := providers.StringAttr(inst.Prior, "url")
	if base == "" {
		base = providers.StringAttr(inst.Attrs, "url")
	}
	id := idOf(inst)
	if id == "" {
		return "", fmt.Errorf("resource %s has no recorded id", inst.Addr)
	}
	return strings.TrimRight(base, "/") + "/" + id, nil
}

func idOf(inst *providers.Instance) string {
	if inst.ID != "" {
		return inst.ID
	}
	return providers.StringAttr(inst.Prior, "id")
}

func copyAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
