package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/lodge/internal/web/domain"
	"github.com/aussiebroadwan/lodge/internal/web/session"
	"github.com/aussiebroadwan/lodge/internal/web/store"
	"github.com/aussiebroadwan/lodge/internal/web/store/drivers/sqlite"
	"github.com/aussiebroadwan/lodge/pkg/cryptox"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func newTestHasher() *cryptox.MultiHasher {
	return cryptox.NewMultiHasher(cryptox.NewArgon2idHasher(""), cryptox.NewBcryptHasher(4))
}

func newTestFlow(t *testing.T, st store.Store) (*Flow, *countingRecorder) {
	t.Helper()

	codec, err := session.NewCodec(session.DefaultConfig("test-secret"))
	require.NoError(t, err)

	rec := &countingRecorder{attempts: map[string]int{}, sessions: map[string]int{}}
	return &Flow{
		Auth:     &AuthService{Store: st, Hasher: newTestHasher()},
		Sessions: codec,
		Metrics:  rec,
	}, rec
}

func requestWithCookie(path string, cookie *http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		r.AddCookie(cookie)
	}
	return r
}

type countingRecorder struct {
	attempts map[string]int
	sessions map[string]int
}

func (c *countingRecorder) AuthAttempt(action, result string) { c.attempts[action+"/"+result]++ }
func (c *countingRecorder) SessionResolved(result string)     { c.sessions[result]++ }

var errDatabaseDown = errors.New("database is down")

// failingStore lets tests script the users repository.
type failingStore struct {
	users failingUsers
}

func (s *failingStore) Users() store.Users             { return &s.users }
func (s *failingStore) ApplyMigrations() error         { return nil }
func (s *failingStore) Close() error                   { return nil }
func (s *failingStore) Ping(ctx context.Context) error { return nil }
func (s *failingStore) Commit() error                  { return nil }
func (s *failingStore) Rollback() error                { return nil }

func (s *failingStore) Tx(ctx context.Context) (store.Tx, error) { return s, nil }

func (s *failingStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return fn(s)
}

type failingUsers struct {
	getErr    error
	createErr error
}

func (u *failingUsers) CreateUser(ctx context.Context, user domain.User) error {
	return u.createErr
}

func (u *failingUsers) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return domain.User{}, u.getErr
}

func (u *failingUsers) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return domain.User{}, u.getErr
}

func (u *failingUsers) IsEmpty(ctx context.Context) (bool, error) { return false, u.getErr }
