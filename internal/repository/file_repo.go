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

const fileColumns = `id, file_ref, version, owner_id, name, kind, category, tags,
	uploaded_at, delete_after, deleted, downloads`

type FileRepository struct {
	pool *pgxpool.Pool
}

func NewFileRepository(pool *pgxpool.Pool) *FileRepository {
	return &FileRepository{pool: pool}
}

func (r *FileRepository) Insert(ctx context.Context, rec model.FileRecord, entry model.AuditEntry) (model.FileRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.FileRecord{}, storeErr("begin insert file", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO files (file_ref, version, owner_id, name, kind, category, tags, uploaded_at, delete_after)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		rec.Ref, rec.Version, rec.OwnerID, rec.Name, rec.Kind, rec.Category,
		rec.Tags, rec.UploadedAt, rec.DeleteAfter).
		Scan(&rec.ID)
	if isUniqueViolation(err) {
		return model.FileRecord{}, fmt.Errorf("insert file %s: %w", rec.Key(), model.ErrFileExists)
	}
	if isForeignKeyViolation(err) {
		return model.FileRecord{}, fmt.Errorf("insert file %s: %w", rec.Key(), model.ErrUserNotFound)
	}
	if err != nil {
		return model.FileRecord{}, storeErr("insert file", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET uploads = uploads + 1 WHERE id = $1`, rec.OwnerID); err != nil {
		return model.FileRecord{}, storeErr("bump upload counter", err)
	}

	if err := insertAudit(ctx, tx, entry); err != nil {
		return model.FileRecord{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.FileRecord{}, storeErr("commit insert file", err)
	}
	return rec, nil
}

// Latest returns the highest version recorded for a reference, deleted or
// not. Version numbers only ever grow, so this is the re-versioning anchor.
func (r *FileRepository) Latest(ctx context.Context, ref string) (model.FileRecord, error) {
	return r.findOne(ctx,
		`WHERE file_ref = $1 ORDER BY version DESC LIMIT 1`, ref)
}

func (r *FileRepository) Get(ctx context.Context, key model.FileKey) (model.FileRecord, error) {
	return r.findOne(ctx,
		`WHERE file_ref = $1 AND version = $2`, key.Ref, key.Version)
}

func (r *FileRepository) findOne(ctx context.Context, clause string, args ...any) (model.FileRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files `+clause, args...)
	rec, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.FileRecord{}, model.ErrFileNotFound
	}
	if err != nil {
		return model.FileRecord{}, storeErr("find file", err)
	}
	return rec, nil
}

func (r *FileRepository) ListActive(ctx context.Context, ownerID int64) ([]model.FileRecord, error) {
	return r.list(ctx,
		`WHERE owner_id = $1 AND NOT deleted ORDER BY uploaded_at DESC, id DESC`, ownerID)
}

func (r *FileRepository) ListAllActive(ctx context.Context) ([]model.FileRecord, error) {
	return r.list(ctx,
		`WHERE NOT deleted ORDER BY uploaded_at DESC, id DESC`)
}

func (r *FileRepository) SearchActive(ctx context.Context, ownerID int64, query string) ([]model.FileRecord, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	return r.list(ctx,
		`WHERE owner_id = $1 AND NOT deleted AND name ILIKE $2
		 ORDER BY uploaded_at DESC, id DESC`, ownerID, pattern)
}

func (r *FileRepository) RecentActive(ctx context.Context, ownerID int64, limit int) ([]model.FileRecord, error) {
	return r.list(ctx,
		`WHERE owner_id = $1 AND NOT deleted
		 ORDER BY uploaded_at DESC, id DESC LIMIT $2`, ownerID, limit)
}

func (r *FileRepository) ListPendingRetention(ctx context.Context) ([]model.FileRecord, error) {
	return r.list(ctx,
		`WHERE delete_after IS NOT NULL AND NOT deleted ORDER BY delete_after`)
}

func (r *FileRepository) list(ctx context.Context, clause string, args ...any) ([]model.FileRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+fileColumns+` FROM files `+clause, args...)
	if err != nil {
		return nil, storeErr("list files", err)
	}
	defer rows.Close()

	records := make([]model.FileRecord, 0)
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, storeErr("scan file", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate files", err)
	}
	return records, nil
}

// MarkDeleted flips the soft-delete flag. The conditional update linearizes
// concurrent deletes on the same row: exactly one caller sees true and
// writes the audit entry, the rest see false and write nothing.
func (r *FileRepository) MarkDeleted(ctx context.Context, key model.FileKey, entry model.AuditEntry) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, storeErr("begin mark deleted", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE files SET deleted = TRUE
		 WHERE file_ref = $1 AND version = $2 AND NOT deleted`,
		key.Ref, key.Version)
	if err != nil {
		return false, storeErr("mark deleted", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM files WHERE file_ref = $1 AND version = $2)`,
			key.Ref, key.Version).Scan(&exists)
		if err != nil {
			return false, storeErr("check file exists", err)
		}
		if !exists {
			return false, model.ErrFileNotFound
		}
		// Already soft-deleted: idempotent no-op, no audit entry.
		return false, tx.Commit(ctx)
	}

	if err := insertAudit(ctx, tx, entry); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, storeErr("commit mark deleted", err)
	}
	return true, nil
}

// MarkAllDeleted soft-deletes every active file of the owner in one
// transaction and writes a single summary entry built from the count.
// Nothing active means nothing mutated, so no entry is written.
func (r *FileRepository) MarkAllDeleted(ctx context.Context, ownerID int64, makeEntry func(count int) model.AuditEntry) ([]model.FileKey, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin purge", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`UPDATE files SET deleted = TRUE
		 WHERE owner_id = $1 AND NOT deleted
		 RETURNING file_ref, version`, ownerID)
	if err != nil {
		return nil, storeErr("purge files", err)
	}

	keys := make([]model.FileKey, 0)
	for rows.Next() {
		var key model.FileKey
		if err := rows.Scan(&key.Ref, &key.Version); err != nil {
			rows.Close()
			return nil, storeErr("scan purged key", err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate purged keys", err)
	}

	if len(keys) > 0 {
		if err := insertAudit(ctx, tx, makeEntry(len(keys))); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("commit purge", err)
	}
	return keys, nil
}

func (r *FileRepository) SetDeleteAfter(ctx context.Context, key model.FileKey, deleteAfter *time.Time, entry model.AuditEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storeErr("begin set retention", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE files SET delete_after = $3
		 WHERE file_ref = $1 AND version = $2 AND NOT deleted`,
		key.Ref, key.Version, deleteAfter)
	if err != nil {
		return storeErr("set retention", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrFileNotFound
	}

	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit set retention", err)
	}
	return nil
}

// IncrementDownloads bumps the per-file and per-owner counters. A
// soft-deleted row is reported as not found, same as an absent one.
func (r *FileRepository) IncrementDownloads(ctx context.Context, key model.FileKey, entry model.AuditEntry) (model.FileRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.FileRecord{}, storeErr("begin record download", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`UPDATE files SET downloads = downloads + 1
		 WHERE file_ref = $1 AND version = $2 AND NOT deleted
		 RETURNING `+fileColumns,
		key.Ref, key.Version)
	rec, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.FileRecord{}, model.ErrFileNotFound
	}
	if err != nil {
		return model.FileRecord{}, storeErr("record download", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET downloads = downloads + 1 WHERE id = $1`, rec.OwnerID); err != nil {
		return model.FileRecord{}, storeErr("bump download counter", err)
	}

	if err := insertAudit(ctx, tx, entry); err != nil {
		return model.FileRecord{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.FileRecord{}, storeErr("commit record download", err)
	}
	return rec, nil
}

func scanFile(row pgx.Row) (model.FileRecord, error) {
	var rec model.FileRecord
	err := row.Scan(&rec.ID, &rec.Ref, &rec.Version, &rec.OwnerID, &rec.Name,
		&rec.Kind, &rec.Category, &rec.Tags, &rec.UploadedAt,
		&rec.DeleteAfter, &rec.Deleted, &rec.Downloads)
	return rec, err
}
