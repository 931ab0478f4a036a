package widget

import (
	"errors"
	"html"
	"html/template"
	"strings"
	"sync"

	"github.com/blog-comment-widget/internal/config"
	"github.com/rs/zerolog"
)

const (
	// GiscusScriptURL is the discussion widget client script
	GiscusScriptURL = "https://giscus.app/client.js"
	// GiscusMapping is the only discussion mapping mode used
	GiscusMapping = "pathname"
)

// ErrGiscusNotConfigured is returned by Mount when repository settings are missing
var ErrGiscusNotConfigured = errors.New("giscus repository is not configured")

// Attr is one HTML attribute
type Attr struct {
	Name  string
	Value string
}

// ScriptElement is an injected <script> tag
type ScriptElement struct {
	Src         string
	Async       bool
	CrossOrigin string
	Attrs       []Attr
}

// Attr returns the value of the named attribute
func (s ScriptElement) Attr(name string) (string, bool) {
	for _, a := range s.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// HTML renders the element with every attribute value escaped
func (s ScriptElement) HTML() template.HTML {
	var b strings.Builder
	b.WriteString(`<script src="`)
	b.WriteString(html.EscapeString(s.Src))
	b.WriteString(`"`)
	for _, a := range s.Attrs {
		b.WriteString(" ")
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Value))
		b.WriteString(`"`)
	}
	if s.CrossOrigin != "" {
		b.WriteString(` crossorigin="`)
		b.WriteString(html.EscapeString(s.CrossOrigin))
		b.WriteString(`"`)
	}
	if s.Async {
		b.WriteString(" async")
	}
	b.WriteString("></script>")
	return template.HTML(b.String())
}

// Container is the element the loader injects into
type Container interface {
	AppendChild(el ScriptElement)
	Clear()
}

// Fragment is an in-memory container rendered into page HTML
type Fragment struct {
	mu       sync.Mutex
	children []ScriptElement
}

var _ Container = (*Fragment)(nil)

func (f *Fragment) AppendChild(el ScriptElement) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.children = append(f.children, el)
}

func (f *Fragment) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.children = nil
}

// Children returns the injected elements
func (f *Fragment) Children() []ScriptElement {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ScriptElement, len(f.children))
	copy(out, f.children)
	return out
}

// HTML renders the container contents
func (f *Fragment) HTML() template.HTML {
	var b strings.Builder
	for _, el := range f.Children() {
		b.WriteString(string(el.HTML()))
	}
	return template.HTML(b.String())
}

// Loader injects the giscus discussion script into a container
type Loader struct {
	cfg config.GiscusConfig
	log zerolog.Logger

	mu        sync.Mutex
	container Container
}

// NewLoader creates a loader for the given configuration
func NewLoader(cfg config.GiscusConfig, log zerolog.Logger) *Loader {
	return &Loader{
		cfg: cfg,
		log: log.With().Str("component", "giscus_loader").Logger(),
	}
}

// Element builds the configured script element
func (l *Loader) Element() ScriptElement {
	return ScriptElement{
		Src:         GiscusScriptURL,
		Async:       true,
		CrossOrigin: "anonymous",
		Attrs: []Attr{
			{"data-repo", l.cfg.Repo},
			{"data-repo-id", l.cfg.RepoID},
			{"data-category", l.cfg.Category},
			{"data-category-id", l.cfg.CategoryID},
			{"data-mapping", GiscusMapping},
			{"data-reactions-enabled", flag(l.cfg.ReactionsEnabled)},
			{"data-emit-metadata", flag(l.cfg.EmitMetadata)},
			{"data-input-position", l.cfg.InputPosition},
			{"data-theme", l.cfg.Theme},
			{"data-lang", l.cfg.Lang},
			{"data-loading", l.cfg.Loading},
		},
	}
}

// Mount injects the script into c. Mounting twice is a no-op.
func (l *Loader) Mount(c Container) error {
	if !l.cfg.Enabled() {
		return ErrGiscusNotConfigured
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.container != nil {
		return nil
	}
	c.AppendChild(l.Element())
	l.container = c
	l.log.Debug().Str("repo", l.cfg.Repo).Msg("Discussion widget mounted")
	return nil
}

// Unmount clears the container so no injected script remains
func (l *Loader) Unmount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.container == nil {
		return
	}
	l.container.Clear()
	l.container = nil
}

// Render mounts a fresh fragment and returns its HTML. It returns an empty
// string when the widget is not configured.
func (l *Loader) Render() template.HTML {
	frag := &Fragment{}
	loader := NewLoader(l.cfg, l.log)
	if err := loader.Mount(frag); err != nil {
		return ""
	}
	return frag.HTML()
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
