package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/lodge/internal/web/domain"
	"github.com/aussiebroadwan/lodge/internal/web/service"
	"github.com/aussiebroadwan/lodge/pkg/httpx"
	"github.com/aussiebroadwan/lodge/pkg/slogx"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageIndex    = "index.html"
	pagePage     = "page.html"
	pageLogin    = "login.html"
	pageNotFound = "notfound.html"
	pageError    = "error.html"
)

// viewData is handed to every template. User is nil for anonymous visitors.
type viewData struct {
	Title string
	User  *domain.Profile
	Form  *service.FormState
}

// Pages holds one parsed template set per page, each sharing the layout.
type Pages struct {
	templates map[string]*template.Template
}

func ParsePages() (*Pages, error) {
	p := &Pages{templates: make(map[string]*template.Template)}
	for _, name := range []string{pageIndex, pagePage, pageLogin, pageNotFound, pageError} {
		t, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		p.templates[name] = t
	}
	return p, nil
}

// render executes the page into a buffer first so a template failure can
// still become a clean 500.
func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, name string, data viewData) {
	var buf bytes.Buffer
	if err := p.templates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		slogx.FromContext(r.Context()).Error("failed to render page",
			slog.String("page", name),
			slog.Any("error", err),
		)
		http.Error(w, "There was an error", http.StatusInternalServerError)
		return
	}

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (p *Pages) renderError(w http.ResponseWriter, r *http.Request, err error) {
	slogx.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
	p.render(w, r, http.StatusInternalServerError, pageError, viewData{Title: "Error"})
}
