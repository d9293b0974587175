package dashboard

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
)

const templatePath = "assets/index.html"

// Template is the parsed dashboard page.
type Template struct {
	tmpl *template.Template
}

// Load parses the dashboard template from assets. A nil assets uses [Assets].
func Load(assets fs.FS) (*Template, error) {
	if assets == nil {
		assets = Assets
	}
	content, err := fs.ReadFile(assets, templatePath)
	if err != nil {
		return nil, fmt.Errorf("read dashboard template: %w", err)
	}

	tmpl, err := template.New("index").Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}
	return &Template{tmpl: tmpl}, nil
}

// Render writes the page for v to w.
func (t *Template) Render(w io.Writer, v View) error {
	if err := t.tmpl.Execute(w, v); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}
