package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/lodge/internal/web/session"
	"github.com/aussiebroadwan/lodge/pkg/slogx"
)

// SessionState is either anonymous (empty UserID) or authenticated.
type SessionState struct {
	UserID string
}

var Anonymous = SessionState{}

func Authenticated(userID string) SessionState { return SessionState{UserID: userID} }

func (s SessionState) IsAuthenticated() bool { return s.UserID != "" }

// FormState is what the login page needs to re-render a rejected submission.
// The password is never echoed back.
type FormState struct {
	FormError   string
	FieldErrors map[string]string
	LoginType   LoginType
	Username    string
	RedirectTo  string
}

// Outcome is the result of a form action: either a redirect, optionally
// setting a cookie, or a form to show again.
type Outcome struct {
	Location string
	Cookie   *http.Cookie
	Form     *FormState
}

func (o Outcome) IsRedirect() bool { return o.Form == nil }

// Recorder receives counters for auth activity. Results are short
// snake_case labels.
type Recorder interface {
	AuthAttempt(action, result string)
	SessionResolved(result string)
}

type nopRecorder struct{}

func (nopRecorder) AuthAttempt(string, string) {}
func (nopRecorder) SessionResolved(string)     {}

// Flow turns requests and form submissions into session decisions.
type Flow struct {
	Auth     *AuthService
	Sessions *session.Codec
	Metrics  Recorder
}

func (f *Flow) recorder() Recorder {
	if f.Metrics == nil {
		return nopRecorder{}
	}
	return f.Metrics
}

type sessionKey struct{}

// Attach resolves the session once and stores the result on the returned
// request, so later ResolveSession calls for it do not decode again.
func (f *Flow) Attach(r *http.Request) (*http.Request, SessionState) {
	state := f.ResolveSession(r)
	return r.WithContext(context.WithValue(r.Context(), sessionKey{}, state)), state
}

// ResolveSession reads the session cookie. Anything other than a valid
// session is treated as anonymous; the user id is not checked against the
// store.
func (f *Flow) ResolveSession(r *http.Request) SessionState {
	if state, ok := r.Context().Value(sessionKey{}).(SessionState); ok {
		return state
	}

	userID, res := f.Sessions.Resolve(r)
	f.recorder().SessionResolved(res.String())

	if res != session.ResolutionValid {
		if res != session.ResolutionAbsent {
			slogx.FromContext(r.Context()).Debug("ignoring session cookie",
				slog.String("cookie", f.Sessions.Name()),
				slog.String("resolution", res.String()),
			)
		}
		return Anonymous
	}
	return Authenticated(userID)
}

// RequireAuthenticated returns the session's user id, or an
// *AuthRequiredError pointing back at redirectTo (the request path when
// empty).
func (f *Flow) RequireAuthenticated(r *http.Request, redirectTo string) (string, error) {
	state := f.ResolveSession(r)
	if state.IsAuthenticated() {
		return state.UserID, nil
	}
	if redirectTo == "" {
		redirectTo = r.URL.Path
	}
	return "", &AuthRequiredError{RedirectTo: SafeRedirect(redirectTo)}
}

// Submit handles the login form. Recoverable problems come back as a form
// outcome; only unexpected failures are returned as errors.
func (f *Flow) Submit(ctx context.Context, form LoginForm) (Outcome, error) {
	action := string(form.LoginType)
	if form.LoginType != LoginTypeLogin && form.LoginType != LoginTypeRegister {
		action = "unknown"
	}

	if err := form.Validate(); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return Outcome{}, err
		}
		f.recorder().AuthAttempt(action, "invalid_form")
		if form.Malformed {
			return Outcome{Form: &FormState{FormError: verr.Form}}, nil
		}
		return rejected(form, verr.Form, verr.Fields), nil
	}

	creds := Credentials{Username: form.Username, Password: form.Password}

	switch form.LoginType {
	case LoginTypeLogin:
		user, err := f.Auth.Login(ctx, creds)
		if errors.Is(err, ErrInvalidCredentials) {
			f.recorder().AuthAttempt(action, "invalid_credentials")
			return rejected(form, MsgInvalidCredentials, nil), nil
		}
		if err != nil {
			f.recorder().AuthAttempt(action, "error")
			return Outcome{}, err
		}
		return f.signIn(ctx, action, user.ID, form.RedirectTo)

	case LoginTypeRegister:
		user, err := f.Auth.Register(ctx, creds)
		if errors.Is(err, ErrUsernameTaken) {
			f.recorder().AuthAttempt(action, "username_taken")
			return rejected(form, msgUsernameTaken(form.Username), nil), nil
		}
		if err != nil {
			f.recorder().AuthAttempt(action, "error")
			return rejected(form, MsgRegisterFailed, nil), nil
		}
		return f.signIn(ctx, action, user.ID, form.RedirectTo)

	default:
		f.recorder().AuthAttempt(action, "invalid_form")
		return rejected(form, MsgLoginTypeInvalid, nil), nil
	}
}

// Logout always redirects home with a cookie that clears the session.
func (f *Flow) Logout() Outcome {
	return Outcome{Location: "/", Cookie: f.Sessions.Clear()}
}

func (f *Flow) signIn(ctx context.Context, action, userID, redirectTo string) (Outcome, error) {
	cookie, err := f.Sessions.Issue(userID)
	if err != nil {
		f.recorder().AuthAttempt(action, "error")
		return Outcome{}, err
	}
	f.recorder().AuthAttempt(action, "success")
	slogx.FromContext(ctx).Info("session issued",
		slog.String("user_id", userID),
		slog.String("action", action),
	)
	return Outcome{Location: SafeRedirect(redirectTo), Cookie: cookie}, nil
}

func rejected(form LoginForm, formError string, fields map[string]string) Outcome {
	return Outcome{Form: &FormState{
		FormError:   formError,
		FieldErrors: fields,
		LoginType:   form.LoginType,
		Username:    form.Username,
		RedirectTo:  form.RedirectTo,
	}}
}
