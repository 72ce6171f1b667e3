package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediavault/internal/event"
	"mediavault/internal/model"
	"mediavault/internal/repository"
)

// stubRetention records scheduler calls without running timers.
type stubRetention struct {
	mu        sync.Mutex
	armed     []model.FileKey
	cancelled []model.FileKey
}

func (r *stubRetention) Arm(key model.FileKey, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = append(r.armed, key)
}

func (r *stubRetention) Cancel(key model.FileKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, key)
}

func (r *stubRetention) armedKeys() []model.FileKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.FileKey(nil), r.armed...)
}

func (r *stubRetention) cancelledKeys() []model.FileKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.FileKey(nil), r.cancelled...)
}

func newLedgerFixture(t *testing.T) (*LedgerService, *repository.MemoryStore, *stubRetention, model.Actor) {
	t.Helper()
	store := repository.NewMemoryStore()
	retention := &stubRetention{}
	svc := NewLedgerService(store, retention, event.NewBus())

	u, err := store.Create(context.Background(), model.User{ExternalID: 1001, Username: "user0001"},
		model.AuditEntry{Action: model.AuditRegister, Detail: "registered account user0001"})
	require.NoError(t, err)

	return svc, store, retention, model.ActorFor(u)
}

func auditEntries(t *testing.T, store *repository.MemoryStore, action model.AuditAction) []model.AuditEntry {
	t.Helper()
	entries, err := store.Query(context.Background(), model.AuditQuery{Action: action})
	require.NoError(t, err)
	return entries
}

func TestLedgerService_Upload(t *testing.T) {
	svc, store, retention, owner := newLedgerFixture(t)
	ctx := context.Background()

	rec, err := svc.Upload(ctx, owner, model.UploadRequest{
		Ref: "ref-1", Name: "report.pdf", Kind: model.FileKindDocument,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, owner.UserID, rec.OwnerID)
	assert.Equal(t, "PDFs", rec.Category)
	assert.Nil(t, rec.DeleteAfter)
	assert.Empty(t, retention.armedKeys())

	entries := auditEntries(t, store, model.AuditUpload)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].UserID)
	assert.Equal(t, owner.UserID, *entries[0].UserID)

	u, err := store.FindByID(ctx, owner.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Uploads)
}

func TestLedgerService_UploadValidation(t *testing.T) {
	svc, _, _, owner := newLedgerFixture(t)

	_, err := svc.Upload(context.Background(), owner, model.UploadRequest{Name: "a.txt"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = svc.Upload(context.Background(), owner, model.UploadRequest{Ref: "ref-x"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestLedgerService_UploadDuplicateRef(t *testing.T) {
	svc, _, _, owner := newLedgerFixture(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "a.txt"})
	require.NoError(t, err)

	_, err = svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "a.txt"})
	assert.ErrorIs(t, err, model.ErrFileExists)
}

func TestLedgerService_UploadReversion(t *testing.T) {
	svc, _, _, owner := newLedgerFixture(t)
	ctx := context.Background()

	first, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "a.txt"})
	require.NoError(t, err)

	second, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "a2.txt", Reversion: true})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	// both versions keep their own records
	files, err := svc.ListActive(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestLedgerService_UploadReversionVersionsStayMonotonic(t *testing.T) {
	svc, _, _, owner := newLedgerFixture(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "a.txt"})
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(ctx, owner, model.FileKey{Ref: "ref-1", Version: 1}))

	// the deleted version still counts toward numbering
	rec, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "a.txt", Reversion: true})
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
}

func TestLedgerService_UploadWithRetentionArms(t *testing.T) {
	svc, _, retention, owner := newLedgerFixture(t)

	rec, err := svc.Upload(context.Background(), owner, model.UploadRequest{
		Ref: "ref-1", Name: "tmp.bin", RetentionMinutes: 5,
	})
	require.NoError(t, err)
	require.NotNil(t, rec.DeleteAfter)
	assert.Equal(t, []model.FileKey{rec.Key()}, retention.armedKeys())
}

func TestLedgerService_SoftDelete(t *testing.T) {
	svc, store, retention, owner := newLedgerFixture(t)
	ctx := context.Background()

	rec, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "a.txt"})
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(ctx, owner, rec.Key()))
	assert.Equal(t, []model.FileKey{rec.Key()}, retention.cancelledKeys())

	files, err := svc.ListActive(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, files)

	// record survives as deleted, distinguishable from never-existed
	got, err := store.Get(ctx, rec.Key())
	require.NoError(t, err)
	assert.True(t, got.Deleted)

	require.Len(t, auditEntries(t, store, model.AuditDelete), 1)
}

func TestLedgerService_SoftDeleteIdempotent(t *testing.T) {
	svc, store, _, owner := newLedgerFixture(t)
	ctx := context.Background()

	rec, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "a.txt"})
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(ctx, owner, rec.Key()))
	require.NoError(t, svc.SoftDelete(ctx, owner, rec.Key()))

	// the second delete is a no-op and leaves no extra trail
	assert.Len(t, auditEntries(t, store, model.AuditDelete), 1)
}

func TestLedgerService_SoftDeleteAuthorization(t *testing.T) {
	svc, store, _, owner := newLedgerFixture(t)
	ctx := context.Background()

	rec, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "a.txt"})
	require.NoError(t, err)

	other, err := store.Create(ctx, model.User{ExternalID: 2002, Username: "user0002"},
		model.AuditEntry{Action: model.AuditRegister})
	require.NoError(t, err)

	err = svc.SoftDelete(ctx, model.ActorFor(other), rec.Key())
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	// admins and the system actor may delete anyone's files
	require.NoError(t, svc.SoftDelete(ctx, model.Actor{Kind: model.ActorAdmin, UserID: other.ID}, rec.Key()))
}

func TestLedgerService_SoftDeleteMissing(t *testing.T) {
	svc, _, _, owner := newLedgerFixture(t)

	err := svc.SoftDelete(context.Background(), owner, model.FileKey{Ref: "nope", Version: 1})
	assert.ErrorIs(t, err, model.ErrFileNotFound)
}

func TestLedgerService_PurgeAllForOwner(t *testing.T) {
	svc, store, retention, owner := newLedgerFixture(t)
	ctx := context.Background()

	for _, ref := range []string{"ref-1", "ref-2", "ref-3"} {
		_, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: ref, Name: ref + ".txt", RetentionMinutes: 10})
		require.NoError(t, err)
	}

	n, err := svc.PurgeAllForOwner(ctx, owner, owner.UserID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, retention.cancelledKeys(), 3)

	files, err := svc.ListActive(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, files)

	// one summary entry for the whole batch
	entries := auditEntries(t, store, model.AuditPurge)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Detail, "3 file(s)")
}

func TestLedgerService_PurgeNothingWritesNoAudit(t *testing.T) {
	svc, store, _, owner := newLedgerFixture(t)

	n, err := svc.PurgeAllForOwner(context.Background(), owner, owner.UserID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, auditEntries(t, store, model.AuditPurge))
}

func TestLedgerService_PurgeAuthorization(t *testing.T) {
	svc, _, _, owner := newLedgerFixture(t)

	_, err := svc.PurgeAllForOwner(context.Background(), owner, owner.UserID+1)
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = svc.PurgeAllForOwner(context.Background(),
		model.Actor{Kind: model.ActorAdmin, UserID: 99}, owner.UserID)
	assert.NoError(t, err)
}

func TestLedgerService_RecordDownload(t *testing.T) {
	svc, store, _, owner := newLedgerFixture(t)
	ctx := context.Background()

	rec, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "a.txt"})
	require.NoError(t, err)

	ref, err := svc.RecordDownload(ctx, owner, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, "ref-1", ref)

	got, err := store.Get(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Downloads)

	u, err := store.FindByID(ctx, owner.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Downloads)

	require.Len(t, auditEntries(t, store, model.AuditDownload), 1)
}

func TestLedgerService_RecordDownloadDeletedLooksAbsent(t *testing.T) {
	svc, _, _, owner := newLedgerFixture(t)
	ctx := context.Background()

	rec, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "a.txt"})
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(ctx, owner, rec.Key()))

	_, err = svc.RecordDownload(ctx, owner, rec.Key())
	assert.ErrorIs(t, err, model.ErrFileNotFound)

	_, err = svc.RecordDownload(ctx, owner, model.FileKey{Ref: "ghost", Version: 1})
	assert.ErrorIs(t, err, model.ErrFileNotFound)
}

func TestLedgerService_SearchAndRecent(t *testing.T) {
	svc, _, _, owner := newLedgerFixture(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "holiday.jpg", Kind: model.FileKindPhoto})
	require.NoError(t, err)
	_, err = svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-2", Name: "invoice.pdf", Kind: model.FileKindDocument})
	require.NoError(t, err)

	found, err := svc.Search(ctx, owner, "inv")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "invoice.pdf", found[0].Name)

	_, err = svc.Search(ctx, owner, "  ")
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	recent, err := svc.Recent(ctx, owner, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}

func TestLedgerService_ListAllActiveAdminOnly(t *testing.T) {
	svc, _, _, owner := newLedgerFixture(t)

	_, err := svc.ListAllActive(context.Background(), owner)
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = svc.ListAllActive(context.Background(), model.Actor{Kind: model.ActorAdmin, UserID: 99})
	assert.NoError(t, err)
}

func TestLedgerService_SetRetention(t *testing.T) {
	svc, store, retention, owner := newLedgerFixture(t)
	ctx := context.Background()
	admin := model.Actor{Kind: model.ActorAdmin, UserID: 99}

	rec, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "a.txt"})
	require.NoError(t, err)

	err = svc.SetRetention(ctx, owner, model.RetentionChange{File: rec.Key(), Minutes: 5})
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	require.NoError(t, svc.SetRetention(ctx, admin, model.RetentionChange{File: rec.Key(), Minutes: 5}))
	assert.Equal(t, []model.FileKey{rec.Key()}, retention.armedKeys())

	got, err := store.Get(ctx, rec.Key())
	require.NoError(t, err)
	require.NotNil(t, got.DeleteAfter)

	// minutes at or below zero clears the schedule
	require.NoError(t, svc.SetRetention(ctx, admin, model.RetentionChange{File: rec.Key()}))
	assert.Equal(t, []model.FileKey{rec.Key()}, retention.cancelledKeys())

	got, err = store.Get(ctx, rec.Key())
	require.NoError(t, err)
	assert.Nil(t, got.DeleteAfter)

	assert.Len(t, auditEntries(t, store, model.AuditRetention), 2)
}

func TestLedgerService_ExpireFile(t *testing.T) {
	svc, store, _, owner := newLedgerFixture(t)
	ctx := context.Background()

	rec, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "a.txt"})
	require.NoError(t, err)

	require.NoError(t, svc.ExpireFile(ctx, rec.Key()))

	got, err := store.Get(ctx, rec.Key())
	require.NoError(t, err)
	assert.True(t, got.Deleted)

	// the system actor leaves an unattributed trail entry
	entries := auditEntries(t, store, model.AuditDelete)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].UserID)
}

func TestLedgerService_ExpireFileTreatsGoneAsSuccess(t *testing.T) {
	svc, store, _, owner := newLedgerFixture(t)
	ctx := context.Background()

	assert.NoError(t, svc.ExpireFile(ctx, model.FileKey{Ref: "ghost", Version: 1}))

	rec, err := svc.Upload(ctx, owner, model.UploadRequest{Ref: "ref-1", Name: "a.txt"})
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(ctx, owner, rec.Key()))

	// a manual delete that won the race leaves nothing more to do
	assert.NoError(t, svc.ExpireFile(ctx, rec.Key()))
	assert.Len(t, auditEntries(t, store, model.AuditDelete), 1)
}

func TestLedgerService_ExpireFileSurfacesStoreFailure(t *testing.T) {
	svc, store, _, _ := newLedgerFixture(t)

	store.FailNext(1)
	err := svc.ExpireFile(context.Background(), model.FileKey{Ref: "ref-1", Version: 1})
	assert.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestLedgerService_UploadRetriesTransientFailures(t *testing.T) {
	svc, store, _, owner := newLedgerFixture(t)

	store.FailNext(2)
	rec, err := svc.Upload(context.Background(), owner, model.UploadRequest{Ref: "ref-1", Name: "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)
}
