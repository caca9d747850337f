package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

const (
	contentTypeHTML = "text/html; charset=utf-8"
	layoutTemplate  = "layout.html"
)

func TemplateFilesFS() fs.FS {
	// Create the sub filesystem once
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

var templateFuncs = template.FuncMap{
	"orNA": func(v string) string {
		if v == "" {
			return notAvailable
		}
		return v
	},
}

// parsePages parses every page against the shared layout. Each page defines
// "title" and "content"; the layout executes them.
func parsePages() (map[string]*template.Template, error) {
	fsys := TemplateFilesFS()
	layout, err := template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(fsys, layoutTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", layoutTemplate, err)
	}

	names, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		if name == layoutTemplate {
			continue
		}
		page, err := template.Must(layout.Clone()).ParseFS(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = page
	}
	return pages, nil
}

// renderPage executes a page into a buffer first so a template error never
// produces a half-written response.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Error().Str("template", name).Msg("Unknown page template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		log.Err(err).Str("template", name).Str("path", r.URL.Path).Msg("Failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
