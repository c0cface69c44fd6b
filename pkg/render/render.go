package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"fitverse/pkg/workoutapi"
)

//go:embed templates/layout/*.tmpl templates/pages/*.tmpl
var templatesFS embed.FS

// Flash is a one-shot notice shown at the top of a page.
type Flash struct {
	Level   string
	Message string
}

// Page is the data every page template receives.
type Page struct {
	Title         string
	Flash         *Flash
	CSRF          template.HTML
	Authenticated bool
	UserID        string
	Data          any
}

// Engine renders pages embedded in the package. Each page is parsed on top of the shared layout.
type Engine struct {
	pages map[string]*template.Template
}

// New initialises an Engine by parsing all embedded templates.
func New() (*Engine, error) {
	base, err := template.New("render").Funcs(Funcs()).ParseFS(templatesFS, "templates/layout/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse layout templates: %w", err)
	}

	files, err := fs.Glob(templatesFS, "templates/pages/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("list page templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", file, err)
		}
		if _, err := t.ParseFS(templatesFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".tmpl")] = t
	}
	return &Engine{pages: pages}, nil
}

// Has reports whether a page called name exists.
func (e *Engine) Has(name string) bool {
	if e == nil {
		return false
	}
	_, ok := e.pages[name]
	return ok
}

// Render executes the named page with the provided data and returns the rendered string.
func (e *Engine) Render(name string, data any) (string, error) {
	buf, err := e.execute(name, data)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Execute renders the named page into w. Nothing is written when rendering fails.
func (e *Engine) Execute(w io.Writer, name string, data any) error {
	buf, err := e.execute(name, data)
	if err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

func (e *Engine) execute(name string, data any) (*bytes.Buffer, error) {
	if e == nil || e.pages == nil {
		return nil, fmt.Errorf("nil engine")
	}
	t, ok := e.pages[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", name)
	}

	buf := bytes.NewBuffer(nil)
	if err := t.ExecuteTemplate(buf, "layout", data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf, nil
}

// Funcs are the helpers available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"statusLabel": func(s workoutapi.Status) string { return s.Label() },
		"isCompleted": func(s workoutapi.Status) bool { return s.Normalize() == workoutapi.StatusCompleted },
		"minutes":     workoutapi.DisplayMinutes,
		"date":        formatDate,
	}
}

func formatDate(ts workoutapi.Timestamp) string {
	if ts.IsZero() {
		return workoutapi.NotAvailable
	}
	return ts.In(time.UTC).Format("Jan 2, 2006")
}
