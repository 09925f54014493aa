package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/lodge/internal/web/domain"
	"github.com/aussiebroadwan/lodge/internal/web/service"
	"github.com/aussiebroadwan/lodge/pkg/httpx"
)

type PageHandler struct {
	Flow  *service.Flow
	Pages *Pages
}

// HandleIndex greets the logged-in user, or Anon.
func (h *PageHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		h.Pages.renderError(w, r, err)
		return
	}
	h.Pages.render(w, r, http.StatusOK, pageIndex, viewData{Title: "Home", User: user})
}

// HandlePage is only available to logged-in users; everyone else is sent to
// the login page and brought back afterwards.
func (h *PageHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	userID, err := h.Flow.RequireAuthenticated(r, "")
	var authErr *service.AuthRequiredError
	if errors.As(err, &authErr) {
		http.Redirect(w, r, authErr.Location(), http.StatusSeeOther)
		return
	}

	user, err := h.Flow.Auth.CurrentUser(r.Context(), userID)
	if err != nil {
		h.Pages.renderError(w, r, err)
		return
	}
	if user == nil {
		// The session outlived its user.
		http.Redirect(w, r, (&service.AuthRequiredError{RedirectTo: r.URL.Path}).Location(), http.StatusSeeOther)
		return
	}

	h.Pages.render(w, r, http.StatusOK, pagePage, viewData{Title: "Page", User: user})
}

func (h *PageHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		h.Pages.renderError(w, r, err)
		return
	}
	h.Pages.render(w, r, http.StatusNotFound, pageNotFound, viewData{Title: "Not Found", User: user})
}

func (h *PageHandler) currentUser(r *http.Request) (*domain.Profile, error) {
	return h.Flow.Auth.CurrentUser(r.Context(), httpx.UserIDFromContext(r.Context()))
}
