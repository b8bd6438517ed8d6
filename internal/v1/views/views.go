// Package views renders the HTML fragments the server pushes to
// Datastar clients. The rest of the system only depends on the Renderer
// interface; models are plain structs owned by the callers and resolved
// by field name.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer turns a named view and a model into an HTML string.
type Renderer interface {
	Render(view string, model any) (string, error)
}

// TemplateRenderer is the html/template-backed Renderer used in
// production. It parses every embedded template once at startup.
type TemplateRenderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*TemplateRenderer, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse view templates: %w", err)
	}
	return &TemplateRenderer{templates: t}, nil
}

// Render executes the view template against model.
func (r *TemplateRenderer) Render(view string, model any) (string, error) {
	var b strings.Builder
	if err := r.templates.ExecuteTemplate(&b, view+".html", model); err != nil {
		return "", fmt.Errorf("failed to render view %q: %w", view, err)
	}
	return b.String(), nil
}
