package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"mediavault/internal/event"
	"mediavault/internal/model"
	"mediavault/internal/repository"
)

func newAccountFixture(t *testing.T, admins ...int64) (*AccountService, *repository.MemoryStore, *stubRetention) {
	t.Helper()
	store := repository.NewMemoryStore()
	retention := &stubRetention{}
	isAdmin := func(externalID int64) bool {
		for _, id := range admins {
			if id == externalID {
				return true
			}
		}
		return false
	}
	svc := NewAccountService(store, store, retention, event.NewBus(), isAdmin, 30*time.Minute)
	return svc, store, retention
}

func TestAccountService_Register(t *testing.T) {
	svc, store, _ := newAccountFixture(t)
	ctx := context.Background()

	u, secret, err := svc.Register(ctx, 1001)
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Len(t, secret, 8)
	assert.Regexp(t, `^user\d{4}$`, u.Username)
	assert.False(t, u.IsAdmin)

	// only the hash is stored, and the plaintext verifies against it
	assert.NotEqual(t, secret, u.SecretHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.SecretHash), []byte(secret)))

	entries := auditEntries(t, store, model.AuditRegister)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].UserID)
	assert.Equal(t, u.ID, *entries[0].UserID)
}

func TestAccountService_RegisterTwice(t *testing.T) {
	svc, _, _ := newAccountFixture(t)
	ctx := context.Background()

	first, firstSecret, err := svc.Register(ctx, 1001)
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, 1001)
	assert.ErrorIs(t, err, model.ErrAlreadyRegistered)

	// the original credentials stay valid
	got, err := svc.Resolve(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.SecretHash), []byte(firstSecret)))
}

func TestAccountService_RegisterAdminPredicate(t *testing.T) {
	svc, _, _ := newAccountFixture(t, 7777)

	admin, _, err := svc.Register(context.Background(), 7777)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)

	regular, _, err := svc.Register(context.Background(), 1001)
	require.NoError(t, err)
	assert.False(t, regular.IsAdmin)
}

func TestAccountService_ResolveUnknown(t *testing.T) {
	svc, _, _ := newAccountFixture(t)

	_, err := svc.Resolve(context.Background(), 4242)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestAccountService_IsIdle(t *testing.T) {
	svc, _, _ := newAccountFixture(t)

	assert.False(t, svc.IsIdle(model.User{LastActiveAt: time.Now()}))
	assert.True(t, svc.IsIdle(model.User{LastActiveAt: time.Now().Add(-time.Hour)}))
}

func TestAccountService_Erase(t *testing.T) {
	svc, store, retention := newAccountFixture(t)
	ctx := context.Background()

	u, _, err := svc.Register(ctx, 1001)
	require.NoError(t, err)

	ledger := NewLedgerService(store, retention, event.NewBus())
	actor := model.ActorFor(u)
	kept, err := ledger.Upload(ctx, actor, model.UploadRequest{Ref: "ref-1", Name: "a.txt", RetentionMinutes: 10})
	require.NoError(t, err)
	_, err = ledger.Upload(ctx, actor, model.UploadRequest{Ref: "ref-2", Name: "b.txt"})
	require.NoError(t, err)

	require.NoError(t, svc.Erase(ctx, u.ID))

	// account, files and audit trail are all gone
	_, err = svc.Resolve(ctx, 1001)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
	_, err = store.Get(ctx, kept.Key())
	assert.ErrorIs(t, err, model.ErrFileNotFound)
	entries, err := store.Query(ctx, model.AuditQuery{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	// only the file with a pending schedule gets its task cancelled
	assert.Equal(t, []model.FileKey{kept.Key()}, retention.cancelledKeys())
}

func TestAccountService_EraseUnknown(t *testing.T) {
	svc, _, _ := newAccountFixture(t)

	err := svc.Erase(context.Background(), 404)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestAccountService_RegisterRedrawsTakenUsername(t *testing.T) {
	svc, store, _ := newAccountFixture(t)
	ctx := context.Background()

	_, err := store.Create(ctx, model.User{ExternalID: 1001, Username: "user1234"},
		model.AuditEntry{Action: model.AuditRegister})
	require.NoError(t, err)

	draws := []string{"user1234", "user5678"}
	svc.newUsername = func() string {
		name := draws[0]
		if len(draws) > 1 {
			draws = draws[1:]
		}
		return name
	}

	u, _, err := svc.Register(ctx, 2002)
	require.NoError(t, err)
	assert.Equal(t, "user5678", u.Username)

	// both accounts resolve to their own row through the login lookup
	first, err := store.FindByUsername(ctx, "user1234")
	require.NoError(t, err)
	second, err := store.FindByUsername(ctx, "user5678")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAccountService_RegisterFailsWhenUsernameSpaceContended(t *testing.T) {
	svc, store, _ := newAccountFixture(t)
	ctx := context.Background()

	_, err := store.Create(ctx, model.User{ExternalID: 1001, Username: "user1234"},
		model.AuditEntry{Action: model.AuditRegister})
	require.NoError(t, err)

	svc.newUsername = func() string { return "user1234" }

	_, _, err = svc.Register(ctx, 2002)
	assert.ErrorIs(t, err, model.ErrUsernameTaken)

	// the failed attempt leaves no account behind
	_, err = svc.Resolve(ctx, 2002)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestAccountService_RegisterRetriesTransientFailures(t *testing.T) {
	svc, store, _ := newAccountFixture(t)

	store.FailNext(2)
	_, _, err := svc.Register(context.Background(), 1001)
	require.NoError(t, err)
}
