package service

import (
	"context"
	"fmt"

	"mediavault/internal/model"
	"mediavault/internal/repository"
)

// AuditService is the admin-facing read surface over the append-only log,
// plus an escape hatch for transport-level actions that have no coupled
// store mutation to piggyback on.
type AuditService struct {
	store repository.AuditStore
}

func NewAuditService(store repository.AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Append records a standalone audit entry. Engine mutations never call this;
// their entries are committed with the mutation itself.
func (s *AuditService) Append(ctx context.Context, entry model.AuditEntry) error {
	return withStoreRetry(ctx, func() error {
		return s.store.Append(ctx, entry)
	})
}

// Query filters the log for admin reporting. Refused attempts are not
// themselves recorded.
func (s *AuditService) Query(ctx context.Context, actor model.Actor, q model.AuditQuery) ([]model.AuditEntry, error) {
	if actor.Kind != model.ActorAdmin {
		return nil, fmt.Errorf("audit query: %w", model.ErrUnauthorized)
	}

	var entries []model.AuditEntry
	err := withStoreRetry(ctx, func() error {
		var qerr error
		entries, qerr = s.store.Query(ctx, q)
		return qerr
	})
	return entries, err
}
