package service

import (
	"errors"
	"net/url"
	"sort"
	"strings"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
)

// User-facing form messages.
const (
	MsgFormMalformed      = "Form not submitted correctly."
	MsgUsernameTooShort   = "Usernames must be at least 3 characters long"
	MsgPasswordTooShort   = "Passwords must be at least 6 characters long"
	MsgInvalidCredentials = "Username/Password combination is incorrect"
	MsgRegisterFailed     = "Something went wrong trying to create a new user."
	MsgLoginTypeInvalid   = "Login type invalid"
)

func msgUsernameTaken(username string) string {
	return "User with username " + username + " already exists"
}

// ValidationError carries per-field messages and an optional form-level
// message for a rejected LoginForm.
type ValidationError struct {
	Form   string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed: " + e.Form
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AuthRequiredError is returned when a page needs a logged-in user and the
// request has none. Handlers turn it into a redirect to Location.
type AuthRequiredError struct {
	RedirectTo string
}

func (e *AuthRequiredError) Error() string {
	return "authentication required for " + e.RedirectTo
}

// Location is the login page URL that returns the user to RedirectTo.
func (e *AuthRequiredError) Location() string {
	return "/login?" + url.Values{"redirectTo": {e.RedirectTo}}.Encode()
}
