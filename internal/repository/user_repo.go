package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediavault/internal/model"
)

const userColumns = `id, external_id, username, secret_hash, is_admin,
	failed_login_attempts, uploads, downloads, last_active_at, created_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u model.User, entry model.AuditEntry) (model.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.User{}, storeErr("begin create user", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO users (external_id, username, secret_hash, is_admin, last_active_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		u.ExternalID, u.Username, u.SecretHash, u.IsAdmin, u.LastActiveAt, u.CreatedAt).
		Scan(&u.ID)
	if isUniqueViolation(err) {
		// Two distinct unique guarantees live on this table: one external
		// identity per account, and one account per display username. The
		// caller regenerates the username on the latter.
		if violatesConstraint(err, "idx_users_username") {
			return model.User{}, fmt.Errorf("create user %q: %w", u.Username, model.ErrUsernameTaken)
		}
		return model.User{}, fmt.Errorf("create user %d: %w", u.ExternalID, model.ErrAlreadyRegistered)
	}
	if err != nil {
		return model.User{}, storeErr("create user", err)
	}

	entry.UserID = &u.ID
	if err := insertAudit(ctx, tx, entry); err != nil {
		return model.User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.User{}, storeErr("commit create user", err)
	}
	return u, nil
}

func (r *UserRepository) FindByExternalID(ctx context.Context, externalID int64) (model.User, error) {
	return r.findOne(ctx, `WHERE external_id = $1`, externalID)
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return r.findOne(ctx, `WHERE lower(username) = lower($1)`, strings.TrimSpace(username))
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg any) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users `+where, arg).
		Scan(&u.ID, &u.ExternalID, &u.Username, &u.SecretHash, &u.IsAdmin,
			&u.FailedLoginAttempts, &u.Uploads, &u.Downloads, &u.LastActiveAt, &u.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, storeErr("find user", err)
	}
	return u, nil
}

func (r *UserRepository) TouchActivity(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET last_active_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return storeErr("touch activity", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) IncrementFailedLogins(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET failed_login_attempts = failed_login_attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return storeErr("increment failed logins", err)
	}
	return nil
}

func (r *UserRepository) ResetFailedLogins(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET failed_login_attempts = 0 WHERE id = $1`, id)
	if err != nil {
		return storeErr("reset failed logins", err)
	}
	return nil
}

// Erase hard-deletes the user row. The foreign-key cascade removes every
// file record and audit entry, which is why no final audit entry is
// written: there is nowhere left for it to live.
func (r *UserRepository) Erase(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return storeErr("erase user", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}
