package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/lodge/pkg/slogx"
)

func TestFlow_RegisterScenario(t *testing.T) {
	ctx := context.Background()
	flow, rec := newTestFlow(t, newTestStore(t))

	out, err := flow.Submit(ctx, LoginForm{
		LoginType:  LoginTypeRegister,
		Username:   "alice",
		Password:   "secret1",
		RedirectTo: "/",
	})
	require.NoError(t, err)
	require.True(t, out.IsRedirect())
	require.Equal(t, "/", out.Location)
	require.NotNil(t, out.Cookie)
	require.Equal(t, "user_session", out.Cookie.Name)
	require.Equal(t, 1, rec.attempts["register/success"])

	state := flow.ResolveSession(requestWithCookie("/", out.Cookie))
	require.True(t, state.IsAuthenticated())

	profile, err := flow.Auth.CurrentUser(ctx, state.UserID)
	require.NoError(t, err)
	require.Equal(t, "alice", profile.Username)

	again, err := flow.Submit(ctx, LoginForm{
		LoginType:  LoginTypeLogin,
		Username:   "alice",
		Password:   "secret1",
		RedirectTo: "/page",
	})
	require.NoError(t, err)
	require.Equal(t, "/page", again.Location)
	require.Equal(t, state, flow.ResolveSession(requestWithCookie("/", again.Cookie)))
}

func TestFlow_ShortUsernameScenario(t *testing.T) {
	flow, rec := newTestFlow(t, newTestStore(t))

	out, err := flow.Submit(context.Background(), LoginForm{
		LoginType:  LoginTypeLogin,
		Username:   "al",
		Password:   "secret1",
		RedirectTo: "/",
	})
	require.NoError(t, err)
	require.False(t, out.IsRedirect())
	require.Nil(t, out.Cookie)
	require.Equal(t, MsgUsernameTooShort, out.Form.FieldErrors["username"])
	require.Empty(t, out.Form.FieldErrors["password"])
	require.Equal(t, "al", out.Form.Username)
	require.Equal(t, LoginTypeLogin, out.Form.LoginType)
	require.Equal(t, 1, rec.attempts["login/invalid_form"])
}

func TestFlow_FormRejections(t *testing.T) {
	ctx := context.Background()
	flow, _ := newTestFlow(t, newTestStore(t))

	_, err := flow.Submit(ctx, LoginForm{LoginType: LoginTypeRegister, Username: "alice", Password: "secret1", RedirectTo: "/"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		form      LoginForm
		formError string
	}{
		{
			name:      "wrong password",
			form:      LoginForm{LoginType: LoginTypeLogin, Username: "alice", Password: "wrong-password"},
			formError: MsgInvalidCredentials,
		},
		{
			name:      "unknown user",
			form:      LoginForm{LoginType: LoginTypeLogin, Username: "nobody", Password: "secret1"},
			formError: MsgInvalidCredentials,
		},
		{
			name:      "duplicate registration",
			form:      LoginForm{LoginType: LoginTypeRegister, Username: "alice", Password: "another1"},
			formError: "User with username alice already exists",
		},
		{
			name:      "unknown login type",
			form:      LoginForm{LoginType: "sudo", Username: "alice", Password: "secret1"},
			formError: MsgLoginTypeInvalid,
		},
		{
			name:      "malformed submission",
			form:      LoginForm{Malformed: true},
			formError: MsgFormMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := flow.Submit(ctx, tt.form)
			require.NoError(t, err)
			require.False(t, out.IsRedirect())
			require.Nil(t, out.Cookie)
			require.Equal(t, tt.formError, out.Form.FormError)
		})
	}
}

func TestFlow_RedirectIsSanitised(t *testing.T) {
	flow, _ := newTestFlow(t, newTestStore(t))

	out, err := flow.Submit(context.Background(), LoginForm{
		LoginType:  LoginTypeRegister,
		Username:   "alice",
		Password:   "secret1",
		RedirectTo: "https://evil.example",
	})
	require.NoError(t, err)
	require.Equal(t, "/", out.Location)
}

func TestFlow_StoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("login surfaces the error", func(t *testing.T) {
		flow, rec := newTestFlow(t, &failingStore{users: failingUsers{getErr: errDatabaseDown}})
		_, err := flow.Submit(ctx, LoginForm{LoginType: LoginTypeLogin, Username: "alice", Password: "secret1"})
		require.ErrorIs(t, err, errDatabaseDown)
		require.Equal(t, 1, rec.attempts["login/error"])
	})

	t.Run("register re-renders with a generic message", func(t *testing.T) {
		flow, _ := newTestFlow(t, &failingStore{users: failingUsers{getErr: errDatabaseDown}})
		out, err := flow.Submit(ctx, LoginForm{LoginType: LoginTypeRegister, Username: "alice", Password: "secret1"})
		require.NoError(t, err)
		require.Equal(t, MsgRegisterFailed, out.Form.FormError)
		require.Nil(t, out.Cookie)
	})
}

func TestFlow_ResolveSession(t *testing.T) {
	ctx := context.Background()
	flow, rec := newTestFlow(t, newTestStore(t))

	out, err := flow.Submit(ctx, LoginForm{LoginType: LoginTypeRegister, Username: "alice", Password: "secret1", RedirectTo: "/"})
	require.NoError(t, err)

	t.Run("no cookie is anonymous", func(t *testing.T) {
		require.Equal(t, Anonymous, flow.ResolveSession(requestWithCookie("/", nil)))
	})

	t.Run("tampered cookie is anonymous", func(t *testing.T) {
		tampered := *out.Cookie
		tampered.Value = "x" + tampered.Value[1:]
		require.Equal(t, Anonymous, flow.ResolveSession(requestWithCookie("/", &tampered)))
	})

	t.Run("logout cookie is anonymous", func(t *testing.T) {
		logout := flow.Logout()
		require.Equal(t, "/", logout.Location)

		w := httptest.NewRecorder()
		http.SetCookie(w, logout.Cookie)
		cleared := w.Result().Cookies()[0]
		require.Equal(t, Anonymous, flow.ResolveSession(requestWithCookie("/", cleared)))
	})

	require.Positive(t, rec.sessions["absent"])
	require.Positive(t, rec.sessions["malformed"])
}

func TestFlow_RejectedCookieIsLogged(t *testing.T) {
	flow, _ := newTestFlow(t, newTestStore(t))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := requestWithCookie("/", &http.Cookie{Name: "user_session", Value: "garbage"})
	r = r.WithContext(slogx.WithContext(r.Context(), logger))

	require.Equal(t, Anonymous, flow.ResolveSession(r))
	require.Contains(t, buf.String(), "cookie=user_session")
	require.Contains(t, buf.String(), "resolution=malformed")
}

func TestFlow_RequireAuthenticated(t *testing.T) {
	ctx := context.Background()
	flow, _ := newTestFlow(t, newTestStore(t))

	t.Run("anonymous is redirected to login", func(t *testing.T) {
		_, err := flow.RequireAuthenticated(requestWithCookie("/page", nil), "")

		var authErr *AuthRequiredError
		require.True(t, errors.As(err, &authErr))
		require.Equal(t, "/page", authErr.RedirectTo)
		require.Equal(t, "/login?redirectTo=%2Fpage", authErr.Location())
	})

	t.Run("explicit redirect target", func(t *testing.T) {
		_, err := flow.RequireAuthenticated(requestWithCookie("/page", nil), "/elsewhere")

		var authErr *AuthRequiredError
		require.ErrorAs(t, err, &authErr)
		require.Equal(t, "/elsewhere", authErr.RedirectTo)
	})

	t.Run("authenticated proceeds", func(t *testing.T) {
		out, err := flow.Submit(ctx, LoginForm{LoginType: LoginTypeRegister, Username: "alice", Password: "secret1", RedirectTo: "/"})
		require.NoError(t, err)

		id, err := flow.RequireAuthenticated(requestWithCookie("/page", out.Cookie), "")
		require.NoError(t, err)
		require.NotEmpty(t, id)
	})
}

func TestFlow_LogoutIsIdempotent(t *testing.T) {
	flow, _ := newTestFlow(t, newTestStore(t))
	first := flow.Logout()
	second := flow.Logout()
	require.Equal(t, first.Location, second.Location)
	require.Equal(t, first.Cookie.String(), second.Cookie.String())
}

func TestFlow_AttachResolvesOnce(t *testing.T) {
	flow, rec := newTestFlow(t, newTestStore(t))

	r, state := flow.Attach(requestWithCookie("/", nil))
	require.Equal(t, Anonymous, state)

	for range 3 {
		require.Equal(t, Anonymous, flow.ResolveSession(r))
	}
	require.Equal(t, 1, rec.sessions["absent"])
}
