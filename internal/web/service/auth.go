package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/lodge/internal/web/domain"
	"github.com/aussiebroadwan/lodge/internal/web/store"
	"github.com/aussiebroadwan/lodge/pkg/cryptox"
	"github.com/aussiebroadwan/lodge/pkg/idx"
	"github.com/aussiebroadwan/lodge/pkg/slogx"
)

// Credentials is a username/password pair that already passed form validation.
type Credentials struct {
	Username string
	Password string
}

// AuthService verifies and creates users. It never updates or deletes them.
type AuthService struct {
	Store  store.Store
	Hasher cryptox.PasswordHasher

	dummyMu   sync.Mutex
	dummyHash string
}

// rehasher is implemented by hashers that can tell when a stored digest was
// made by a scheme other than their primary one.
type rehasher interface {
	NeedsRehash(encodedHash string) bool
}

// Login returns the user matching creds. Unknown usernames and wrong
// passwords are both ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, creds Credentials) (domain.User, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByUsername(ctx, creds.Username)
	if errors.Is(err, store.ErrNotFound) {
		// Spend the same time as a real verification.
		s.Hasher.Verify(creds.Password, s.dummy(ctx))
		log.Debug("login for unknown username", slog.String("username", creds.Username))
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		log.Error("failed to look up user", slog.Any("error", err))
		return domain.User{}, err
	}

	if !s.Hasher.Verify(creds.Password, user.PasswordHash) {
		log.Debug("login with wrong password", slog.String("user_id", user.ID))
		return domain.User{}, ErrInvalidCredentials
	}

	// Users are never rewritten here, so legacy digests stay until the
	// user is migrated out of band.
	if rh, ok := s.Hasher.(rehasher); ok && rh.NeedsRehash(user.PasswordHash) {
		log.Debug("user has a legacy password hash", slog.String("user_id", user.ID))
	}

	return user, nil
}

// Register creates a user for creds. A taken username is ErrUsernameTaken,
// whether it was seen by the lookup or by the datastore's unique constraint.
func (s *AuthService) Register(ctx context.Context, creds Credentials) (domain.User, error) {
	log := slogx.FromContext(ctx)

	// Hash outside the transaction so the write lock is only held for the
	// lookup and insert.
	hash, err := s.Hasher.Hash(creds.Password)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return domain.User{}, err
	}

	var created domain.User
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.Users().GetUserByUsername(ctx, creds.Username)
		if err == nil {
			return ErrUsernameTaken
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		id := idx.New().String()
		if err := tx.Users().CreateUser(ctx, domain.User{
			ID:           id,
			Username:     creds.Username,
			PasswordHash: hash,
		}); err != nil {
			return err
		}

		created, err = tx.Users().GetUserByID(ctx, id)
		return err
	})

	switch {
	case err == nil:
		log.Info("user registered",
			slog.String("user_id", created.ID),
			slog.String("username", created.Username),
		)
		return created, nil
	case errors.Is(err, ErrUsernameTaken), errors.Is(err, store.ErrAlreadyExists):
		log.Debug("registration with taken username", slog.String("username", creds.Username))
		return domain.User{}, ErrUsernameTaken
	default:
		log.Error("failed to register user",
			slog.String("username", creds.Username),
			slog.Any("error", err),
		)
		return domain.User{}, err
	}
}

// CurrentUser fetches the profile for a session's user id. It returns nil
// without error when id is empty or no longer names a user.
func (s *AuthService) CurrentUser(ctx context.Context, id string) (*domain.Profile, error) {
	if id == "" {
		return nil, nil
	}

	user, err := s.Store.Users().GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	profile := user.Profile()
	return &profile, nil
}

// dummy returns a digest to verify against when the username is unknown. A
// failed hash is retried on the next call rather than cached.
func (s *AuthService) dummy(ctx context.Context) string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()

	if s.dummyHash == "" {
		hash, err := s.Hasher.Hash("lodge-timing-equaliser")
		if err != nil {
			slogx.FromContext(ctx).Warn("failed to compute dummy password hash", slog.Any("error", err))
			return ""
		}
		s.dummyHash = hash
	}
	return s.dummyHash
}
