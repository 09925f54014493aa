// Package session seals the logged-in user's id into a browser cookie and
// reads it back.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/aussiebroadwan/lodge/pkg/cryptox"
	"github.com/aussiebroadwan/lodge/pkg/idx"
)

const (
	DefaultName   = "user_session"
	DefaultMaxAge = 30 * 24 * time.Hour
	DefaultPath   = "/"
)

// HKDF purposes for the per-secret keys.
const (
	hashKeyPurpose  = "lodge session hmac-sha256"
	blockKeyPurpose = "lodge session aes-256"
)

var ErrMissingSecret = errors.New("session: at least one secret is required")

// Config describes the session cookie. The first secret seals new cookies;
// every secret is accepted when reading, which allows rotating secrets
// without logging everyone out.
type Config struct {
	Name     string
	Secrets  []string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
	Path     string
}

// DefaultConfig returns the production cookie settings for secrets.
func DefaultConfig(secrets ...string) Config {
	return Config{
		Name:     DefaultName,
		Secrets:  secrets,
		MaxAge:   DefaultMaxAge,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		Path:     DefaultPath,
	}
}

type payload struct {
	UserID    string `json:"uid"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Codec issues and resolves session cookies. It holds no per-request state
// and is safe for concurrent use.
type Codec struct {
	cfg    Config
	codecs []securecookie.Codec
	now    func() time.Time
}

type Option func(*Codec)

// WithClock overrides the clock used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	secrets := make([]string, 0, len(cfg.Secrets))
	for _, s := range cfg.Secrets {
		if s = strings.TrimSpace(s); s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) == 0 {
		return nil, ErrMissingSecret
	}
	cfg.Secrets = secrets

	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}

	c := &Codec{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	for _, secret := range secrets {
		hashKey, err := cryptox.DeriveKey([]byte(secret), hashKeyPurpose, 64)
		if err != nil {
			return nil, err
		}
		blockKey, err := cryptox.DeriveKey([]byte(secret), blockKeyPurpose, 32)
		if err != nil {
			return nil, err
		}

		sc := securecookie.New(hashKey, blockKey)
		sc.MaxAge(int(cfg.MaxAge / time.Second))
		sc.SetSerializer(securecookie.JSONEncoder{})
		c.codecs = append(c.codecs, sc)
	}

	return c, nil
}

// Name is the cookie name this codec reads and writes.
func (c *Codec) Name() string { return c.cfg.Name }

// Issue seals userID into a new session cookie.
func (c *Codec) Issue(userID string) (*http.Cookie, error) {
	if !idx.Valid(userID) {
		return nil, fmt.Errorf("session: invalid user id %q", userID)
	}

	now := c.now()
	expires := now.Add(c.cfg.MaxAge)

	value, err := securecookie.EncodeMulti(c.cfg.Name, payload{
		UserID:    userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: expires.Unix(),
	}, c.codecs...)
	if err != nil {
		return nil, fmt.Errorf("session: encode cookie: %w", err)
	}

	cookie := c.cookie(value)
	cookie.MaxAge = int(c.cfg.MaxAge / time.Second)
	cookie.Expires = expires.UTC()
	return cookie, nil
}

// Resolve reads the session cookie from r. The user id is only returned when
// the resolution is ResolutionValid.
func (c *Codec) Resolve(r *http.Request) (string, Resolution) {
	cookie, err := r.Cookie(c.cfg.Name)
	if err != nil || cookie.Value == "" {
		return "", ResolutionAbsent
	}

	var p payload
	if err := securecookie.DecodeMulti(c.cfg.Name, cookie.Value, &p, c.codecs...); err != nil {
		return "", ResolutionMalformed
	}

	if !idx.Valid(p.UserID) || p.ExpiresAt <= p.IssuedAt {
		return "", ResolutionInvalidClaim
	}
	if c.now().Unix() >= p.ExpiresAt {
		return "", ResolutionExpired
	}

	return p.UserID, ResolutionValid
}

// Clear returns a cookie that makes the browser drop the session.
func (c *Codec) Clear() *http.Cookie {
	cookie := c.cookie("")
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0).UTC()
	return cookie
}

func (c *Codec) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     c.cfg.Name,
		Value:    value,
		Path:     c.cfg.Path,
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: c.cfg.SameSite,
	}
}
