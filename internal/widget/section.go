package widget

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Section is the data for a full comment section page
type Section struct {
	ContentKey string
	List       ListState
	Author     string
	Body       string
	Flash      *Ack
	Giscus     template.HTML
	StreamURL  string
	SubmitURL  string
	// Deferred renders a "Load Comments" control; the list, the composer and
	// the discussion widget appear and the live stream opens only once it is
	// clicked.
	Deferred bool
}

// Renderer executes the embedded widget templates
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("widget").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse widget templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Template returns the parsed template set
func (r *Renderer) Template() *template.Template {
	return r.tmpl
}

// List renders the comment list fragment
func (r *Renderer) List(state ListState) (string, error) {
	return r.execute("comment_list", state)
}

// Page renders a full comment section
func (r *Renderer) Page(s Section) (string, error) {
	return r.execute("section", s)
}

// Giscus renders the discussion widget container
func (r *Renderer) Giscus(script template.HTML) (string, error) {
	return r.execute("giscus", script)
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}
