package core

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateData is what attribute templates are rendered against.
type TemplateData struct {
	Vars     map[string]any
	OS       string
	Hostname string
	WorkDir  string
}

// RenderTemplate renders content as a Go template with the Sprig
// function set. missingkey=zero keeps optional variables usable
// together with Sprig's 'default'; use 'required' for mandatory ones.
func RenderTemplate(content string, data TemplateData) (string, error) {
	tmpl, err := template.New("strata").Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// TemplateDataFrom builds template data from a run context.
func TemplateDataFrom(ctx *RunContext) TemplateData {
	return TemplateData{
		Vars:     ctx.Vars,
		OS:       ctx.OS,
		Hostname: ctx.Hostname,
		WorkDir:  ctx.WorkDir,
	}
}
