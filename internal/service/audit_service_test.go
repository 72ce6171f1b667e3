package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavault/internal/model"
	"mediavault/internal/repository"
)

func TestAuditService_QueryAdminOnly(t *testing.T) {
	svc := NewAuditService(repository.NewMemoryStore())

	_, err := svc.Query(context.Background(), model.Actor{Kind: model.ActorOwner, UserID: 1}, model.AuditQuery{})
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestAuditService_AppendAndQuery(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewAuditService(store)
	ctx := context.Background()
	admin := model.Actor{Kind: model.ActorAdmin, UserID: 99}

	uid := int64(7)
	base := time.Now().UTC()
	for i, action := range []model.AuditAction{model.AuditUpload, model.AuditDownload, model.AuditUpload} {
		entry := model.AuditEntry{Action: action, Detail: "entry", OccurredAt: base.Add(time.Duration(i) * time.Second)}
		if action == model.AuditUpload {
			entry.UserID = &uid
		}
		require.NoError(t, svc.Append(ctx, entry))
	}

	all, err := svc.Query(ctx, admin, model.AuditQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// oldest first
	assert.True(t, all[0].OccurredAt.Before(all[2].OccurredAt))

	uploads, err := svc.Query(ctx, admin, model.AuditQuery{Action: model.AuditUpload})
	require.NoError(t, err)
	assert.Len(t, uploads, 2)

	byUser, err := svc.Query(ctx, admin, model.AuditQuery{UserID: &uid})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	paged, err := svc.Query(ctx, admin, model.AuditQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, model.AuditDownload, paged[0].Action)
}
