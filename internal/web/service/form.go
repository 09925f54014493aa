package service

import (
	"errors"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type LoginType string

const (
	LoginTypeLogin    LoginType = "login"
	LoginTypeRegister LoginType = "register"
)

// LoginForm is the combined login/registration form.
type LoginForm struct {
	LoginType  LoginType `form:"loginType"`
	Username   string    `form:"username" validate:"min=3"`
	Password   string    `form:"password" validate:"min=6"`
	RedirectTo string    `form:"redirectTo"`

	// Malformed is set when a required field was not submitted at all.
	Malformed bool `form:"-"`
}

var fieldMessages = map[string]string{
	"username": MsgUsernameTooShort,
	"password": MsgPasswordTooShort,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseLoginForm reads a LoginForm from submitted form values. loginType,
// username and password must be present; redirectTo defaults to "/".
func ParseLoginForm(values url.Values) LoginForm {
	var f LoginForm
	for _, key := range []string{"loginType", "username", "password"} {
		if _, ok := values[key]; !ok {
			f.Malformed = true
		}
	}

	f.LoginType = LoginType(values.Get("loginType"))
	f.Username = values.Get("username")
	f.Password = values.Get("password")
	f.RedirectTo = values.Get("redirectTo")
	if f.RedirectTo == "" {
		f.RedirectTo = "/"
	}
	return f
}

// Validate checks field constraints. It does not look at LoginType; an
// unknown type is reported after field validation passes.
func (f LoginForm) Validate() error {
	if f.Malformed {
		return &ValidationError{Form: MsgFormMalformed}
	}

	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()]
		if !ok {
			msg = fe.Error()
		}
		fields[fe.Field()] = msg
	}
	return &ValidationError{Fields: fields}
}

// SafeRedirect returns target when it is a path on this site, otherwise "/".
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") {
		return "/"
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return target
}
