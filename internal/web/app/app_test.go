package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/lodge/internal/web/service"
	"github.com/aussiebroadwan/lodge/internal/web/store"
	"github.com/aussiebroadwan/lodge/pkg/cryptox"
	"github.com/aussiebroadwan/lodge/pkg/slogx"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		SessionSecrets:      []string{"app-test-secret"},
		SessionCookieSecure: true,
		DatabaseDriver:      DriverSQLite,
		DatabaseFile:        filepath.Join(dir, "lodge.db"),
		DatabaseRetries:     1,
		PasswordHasher:      HasherArgon2id,
		BcryptCost:          4,
		PepperFile:          filepath.Join(dir, "pepper"),
		Env:                 "test",
		LogLevel:            "error",
		LogFormat:           "text",
		Port:                0,
		ShutdownGracePeriod: time.Second,
	}
}

func TestNewHasher(t *testing.T) {
	cfg := testConfig(t)

	argonFirst, err := NewHasher(cfg)
	require.NoError(t, err)
	hash, err := argonFirst.Hash("secret1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$"))

	cfg.PasswordHasher = HasherBcrypt
	bcryptFirst, err := NewHasher(cfg)
	require.NoError(t, err)
	legacy, err := bcryptFirst.Hash("secret1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(legacy, "$2a$"))

	require.True(t, argonFirst.Verify("secret1", legacy), "other scheme still verifies")
	require.True(t, bcryptFirst.Verify("secret1", hash), "pepper file is shared")
}

func TestOpenStore_SQLite(t *testing.T) {
	cfg := testConfig(t)

	st, err := OpenStore(context.Background(), cfg, slogx.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	empty, err := st.Users().IsEmpty(context.Background())
	require.NoError(t, err)
	require.True(t, empty)
}

func TestOpenStore_LogsEmptyUserTable(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	st, err := OpenStore(ctx, cfg, logger)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "no users registered yet")

	hasher, err := NewHasher(cfg)
	require.NoError(t, err)
	auth := &service.AuthService{Store: st, Hasher: hasher}
	_, err = auth.Register(ctx, service.Credentials{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	buf.Reset()
	st, err = OpenStore(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.Contains(t, buf.String(), "database ready")
	require.NotContains(t, buf.String(), "no users registered yet")
}

func TestSQLiteDSNTakesWriteLockUpFront(t *testing.T) {
	require.Contains(t, sqliteDSN("lodge.db"), "_txlock=immediate")
}

func TestConcurrentRegistrations(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	st, err := OpenStore(ctx, cfg, slogx.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	hasher, err := NewHasher(cfg)
	require.NoError(t, err)
	auth := &service.AuthService{Store: st, Hasher: hasher}

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = auth.Register(ctx, service.Credentials{
				Username: fmt.Sprintf("user%02d", i),
				Password: "secret1",
			})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "registration %d", i)
	}

	for i := range n {
		_, err := auth.Login(ctx, service.Credentials{Username: fmt.Sprintf("user%02d", i), Password: "secret1"})
		require.NoError(t, err)
	}
}

type unreachableStore struct {
	store.Store
	pings int
}

func (s *unreachableStore) Ping(ctx context.Context) error {
	s.pings++
	return errors.New("connection refused")
}

func TestWaitForStore_GivesUp(t *testing.T) {
	st := &unreachableStore{}
	err := waitForStore(context.Background(), st, 2, slogx.Discard())
	require.Error(t, err)
	require.Equal(t, 3, st.pings)
}

func TestNew_ServesPages(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.db.Close() })

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Hello Anon")

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNew_RejectsMissingSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionSecrets = nil

	_, err := New(context.Background(), cfg)
	require.ErrorIs(t, err, ErrMissingSessionSecret)
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPepperIsCreated(t *testing.T) {
	cfg := testConfig(t)
	_, err := NewHasher(cfg)
	require.NoError(t, err)

	pepper, err := cryptox.LoadOrGeneratePepper(cfg.PepperFile)
	require.NoError(t, err)
	require.NotEmpty(t, pepper)
}
