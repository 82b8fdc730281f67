// Package template renders generated files from the embedded templates.
package template

import (
	"bytes"
	"embed"
	"fmt"
	"go/format"
	"text/template"
)

//go:embed *.tpl
var templates embed.FS

// FileTemplate is the name of the template rendering a whole file.
const FileTemplate = "file"

// Renderer is the interface for rendering templates.
type Renderer interface {
	Render(templateName string, data any) ([]byte, error)
}

// Manager is a template manager that holds and renders templates.
type Manager struct {
	tmpl *template.Template
}

var _ Renderer = (*Manager)(nil)

// NewManager creates a new template manager and parses the embedded templates.
func NewManager() *Manager {
	tmpl := template.Must(template.ParseFS(templates, "*.tpl"))
	return &Manager{tmpl: tmpl}
}

// Render executes the named template with the given data.
func (m *Manager) Render(templateName string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := m.tmpl.ExecuteTemplate(&buf, templateName, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderFile renders a file and formats it as Go source.
func (m *Manager) RenderFile(data *Data) ([]byte, error) {
	src, err := m.Render(FileTemplate, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", data.PackagePath, err)
	}
	formatted, err := format.Source(src)
	if err != nil {
		return nil, fmt.Errorf("failed to format code for %s: %w\n%s", data.PackagePath, err, src)
	}
	return formatted, nil
}

// Data is the top-level struct passed to the template.
type Data struct {
	BuildTag    string
	PackagePath string
	PackageName string
	// Imports are rendered import specs, e.g. `api "example.com/api"`.
	Imports []string
	Funcs   []*Function
}

// Function represents a single mapping function to be generated.
type Function struct {
	Name       string
	SourceFull string
	TargetFull string
	// Param and Result are the qualified parameter and result types.
	Param       string
	Result      string
	Construct   string
	NilCheck    bool
	Assignments []Assignment
}

// Assignment is one key of the returned composite literal.
type Assignment struct {
	Member string
	Value  string
}
