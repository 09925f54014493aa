package http

import (
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/lodge/internal/web/service"
	"github.com/aussiebroadwan/lodge/pkg/httpx"
	"github.com/aussiebroadwan/lodge/pkg/slogx"
)

// maxFormBytes caps the login form body.
const maxFormBytes = 16 << 10

type LoginHandler struct {
	Flow  *service.Flow
	Pages *Pages
}

// HandleGet shows the login/register form. redirectTo is carried through a
// hidden field and checked when the form is submitted.
func (h *LoginHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.Flow.Auth.CurrentUser(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		h.Pages.renderError(w, r, err)
		return
	}

	h.Pages.render(w, r, http.StatusOK, pageLogin, viewData{
		Title: "Login",
		User:  user,
		Form: &service.FormState{
			LoginType:  service.LoginTypeLogin,
			RedirectTo: r.URL.Query().Get("redirectTo"),
		},
	})
}

// HandlePost runs the form action. Rejected submissions re-render the form
// with 400; success sets the session cookie and redirects.
func (h *LoginHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	var form service.LoginForm
	if err := r.ParseForm(); err != nil {
		form = service.LoginForm{Malformed: true}
	} else {
		form = service.ParseLoginForm(r.PostForm)
	}

	outcome, err := h.Flow.Submit(r.Context(), form)
	if err != nil {
		h.Pages.renderError(w, r, err)
		return
	}

	if !outcome.IsRedirect() {
		slogx.FromContext(r.Context()).Info("login form rejected",
			slog.String("login_type", string(form.LoginType)),
			slog.String("remote_ip", httpx.GetRemoteIP(r)),
			slog.String("reason", outcome.Form.FormError),
		)
		user, err := h.Flow.Auth.CurrentUser(r.Context(), httpx.UserIDFromContext(r.Context()))
		if err != nil {
			h.Pages.renderError(w, r, err)
			return
		}
		h.Pages.render(w, r, http.StatusBadRequest, pageLogin, viewData{
			Title: "Login",
			User:  user,
			Form:  outcome.Form,
		})
		return
	}

	h.redirect(w, r, outcome)
}

// HandleLogout clears the session and returns home. It is safe to call
// without a session.
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, h.Flow.Logout())
}

func (h *LoginHandler) redirect(w http.ResponseWriter, r *http.Request, outcome service.Outcome) {
	if outcome.Cookie != nil {
		http.SetCookie(w, outcome.Cookie)
	}
	httpx.NoCache(w)
	http.Redirect(w, r, outcome.Location, http.StatusSeeOther)
}
