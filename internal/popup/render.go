package popup

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

//go:embed templates/popup.html.tmpl
var templatesFS embed.FS

// Renderer turns a popup view into the HTML fragment the map client mounts.
type Renderer struct {
	tmpl *template.Template
	min  *minify.M
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/popup.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse popup template: %w", err)
	}
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	return &Renderer{tmpl: tmpl, min: m}, nil
}

func (r *Renderer) Render(w io.Writer, v View) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "popup.html.tmpl", v); err != nil {
		return fmt.Errorf("render popup %s: %w", v.ID, err)
	}
	if err := r.min.Minify("text/html", w, &buf); err != nil {
		return fmt.Errorf("minify popup %s: %w", v.ID, err)
	}
	return nil
}
