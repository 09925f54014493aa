package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/lodge/internal/web/metrics"
	"github.com/aussiebroadwan/lodge/internal/web/service"
	"github.com/aussiebroadwan/lodge/internal/web/store"
	"github.com/aussiebroadwan/lodge/pkg/httpx"
	"github.com/aussiebroadwan/lodge/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	flow         *service.Flow
	store        store.Store
	metrics      *metrics.Metrics
	pages        *Pages
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
}

func NewRouter(
	flow *service.Flow,
	st store.Store,
	m *metrics.Metrics,
	pages *Pages,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slogx.Discard()
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		flow:         flow,
		store:        st,
		metrics:      m,
		pages:        pages,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		r.metrics.Middleware,
		SessionMiddleware(r.flow),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerPages()
	r.registerAuth()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers h and labels its metrics with the pattern.
func (r *Router) handle(pattern string, h http.Handler) {
	r.Mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		metrics.SetRoute(req.Context(), pattern)
		h.ServeHTTP(w, req)
	}))
}

func (r *Router) registerPages() {
	h := &PageHandler{Flow: r.flow, Pages: r.pages}

	r.handle("GET /{$}", http.HandlerFunc(h.HandleIndex))
	r.handle("GET /page", http.HandlerFunc(h.HandlePage))

	// Anything unmatched gets the not found page.
	r.handle("/", http.HandlerFunc(h.HandleNotFound))
}

func (r *Router) registerAuth() {
	h := &LoginHandler{Flow: r.flow, Pages: r.pages}

	r.handle("GET /login", http.HandlerFunc(h.HandleGet))
	r.handle("POST /login", http.HandlerFunc(h.HandlePost))
	r.handle("POST /logout", http.HandlerFunc(h.HandleLogout))
	r.handle("GET /logout", http.RedirectHandler("/", http.StatusFound))
}

func (r *Router) registerSystem() {
	r.handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
	r.handle("GET /metrics", r.metrics.Handler())
}
