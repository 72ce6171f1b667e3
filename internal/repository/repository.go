// Package repository is the data-access layer over PostgreSQL. Every row
// mutation is committed in one transaction together with the audit entry
// describing it, so the ledger and the log can never diverge. A crash
// between the two leaves neither visible.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"mediavault/internal/model"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, letting queries run
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserStore owns user identity rows. Create writes the register audit entry
// in the same transaction and fails with ErrUsernameTaken when the display
// username collides with an existing account (case-insensitively, matching
// the login lookup); Erase deliberately writes none, since the cascade
// destroys the user's audit trail anyway.
type UserStore interface {
	Create(ctx context.Context, u model.User, entry model.AuditEntry) (model.User, error)
	FindByExternalID(ctx context.Context, externalID int64) (model.User, error)
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	TouchActivity(ctx context.Context, id int64, at time.Time) error
	IncrementFailedLogins(ctx context.Context, id int64) error
	ResetFailedLogins(ctx context.Context, id int64) error
	Erase(ctx context.Context, id int64) error
}

// FileStore owns file rows. Mutating methods take the audit entry to commit
// alongside the mutation. MarkDeleted reports false, with no audit written,
// when the row was already soft-deleted: two concurrent deletes both see a
// consistent state and the second is a no-op.
type FileStore interface {
	Insert(ctx context.Context, rec model.FileRecord, entry model.AuditEntry) (model.FileRecord, error)
	Latest(ctx context.Context, ref string) (model.FileRecord, error)
	Get(ctx context.Context, key model.FileKey) (model.FileRecord, error)
	ListActive(ctx context.Context, ownerID int64) ([]model.FileRecord, error)
	ListAllActive(ctx context.Context) ([]model.FileRecord, error)
	SearchActive(ctx context.Context, ownerID int64, query string) ([]model.FileRecord, error)
	RecentActive(ctx context.Context, ownerID int64, limit int) ([]model.FileRecord, error)
	MarkDeleted(ctx context.Context, key model.FileKey, entry model.AuditEntry) (bool, error)
	MarkAllDeleted(ctx context.Context, ownerID int64, makeEntry func(count int) model.AuditEntry) ([]model.FileKey, error)
	SetDeleteAfter(ctx context.Context, key model.FileKey, deleteAfter *time.Time, entry model.AuditEntry) error
	IncrementDownloads(ctx context.Context, key model.FileKey, entry model.AuditEntry) (model.FileRecord, error)
	ListPendingRetention(ctx context.Context) ([]model.FileRecord, error)
}

// AuditStore reads and appends the append-only log. Entries written through
// the coupled UserStore/FileStore mutations never pass through Append.
type AuditStore interface {
	Append(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, q model.AuditQuery) ([]model.AuditEntry, error)
}

// storeErr wraps infrastructure failures so callers can retry on
// model.ErrStoreUnavailable while keeping the underlying cause.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func violatesConstraint(err error, name string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.ConstraintName == name
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func insertAudit(ctx context.Context, db DBTX, entry model.AuditEntry) error {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	_, err := db.Exec(ctx,
		`INSERT INTO audit_entries (user_id, action, detail, occurred_at)
		 VALUES ($1, $2, $3, $4)`,
		entry.UserID, entry.Action, entry.Detail, entry.OccurredAt)
	if err != nil {
		return storeErr("insert audit entry", err)
	}
	return nil
}
