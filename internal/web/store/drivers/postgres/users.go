package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/aussiebroadwan/lodge/internal/web/domain"
	"github.com/aussiebroadwan/lodge/internal/web/store"
)

const userColumns = `id, username, password_hash, created_at, updated_at`

type usersRepo struct {
	db DBTX
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, username, password_hash) VALUES ($1, $2, $3)`,
		u.ID, u.Username, u.PasswordHash,
	)
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return oops.Code("USER_ALREADY_EXISTS").With("username", u.Username).Wrap(store.ErrAlreadyExists)
	}
	return oops.Code("USER_CREATE_FAILED").With("operation", "create user").Wrap(err)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return domain.User{}, mapGetError(err, "get user by username")
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return domain.User{}, mapGetError(err, "get user by id")
	}
	return u, nil
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users)`).Scan(&exists); err != nil {
		return false, oops.Code("USER_COUNT_FAILED").With("operation", "check users empty").Wrap(err)
	}
	return !exists, nil
}

func mapGetError(err error, operation string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return oops.Code("USER_GET_FAILED").With("operation", operation).Wrap(err)
}
