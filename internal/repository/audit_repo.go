package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"mediavault/internal/model"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Append is a plain insert for entries that do not ride a coupled
// mutation. It either succeeds or fails whole; the caller treats a failure
// as failing the enclosing operation.
func (r *AuditRepository) Append(ctx context.Context, entry model.AuditEntry) error {
	return insertAudit(ctx, r.pool, entry)
}

func (r *AuditRepository) Query(ctx context.Context, q model.AuditQuery) ([]model.AuditEntry, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	where := make([]string, 0, 2)
	args := make([]any, 0, 4)

	if q.UserID != nil {
		args = append(args, *q.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if q.Action != "" {
		args = append(args, string(q.Action))
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	args = append(args, q.Limit, q.Offset)
	query := fmt.Sprintf(
		`SELECT id, user_id, action, detail, occurred_at
		 FROM audit_entries %s
		 ORDER BY occurred_at ASC, id ASC
		 LIMIT $%d OFFSET $%d`, whereClause, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query audit entries", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Detail, &e.OccurredAt); err != nil {
			return nil, storeErr("scan audit entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate audit entries", err)
	}
	return entries, nil
}
