package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mediavault/internal/model"
)

// MemoryStore is an in-process implementation of UserStore, FileStore and
// AuditStore with the same observable semantics as the PostgreSQL layer,
// used by package tests the way the original storage mock was. FailNext
// makes the next operations fail with ErrStoreUnavailable to exercise
// retry and drop paths.
type MemoryStore struct {
	mu          sync.Mutex
	nextUserID  int64
	nextFileID  int64
	nextAuditID int64
	users       map[int64]model.User
	byExternal  map[int64]int64
	files       map[model.FileKey]model.FileRecord
	audits      []model.AuditEntry
	failures    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      map[int64]model.User{},
		byExternal: map[int64]int64{},
		files:      map[model.FileKey]model.FileRecord{},
	}
}

// FailNext makes the next n store operations fail with ErrStoreUnavailable.
func (m *MemoryStore) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
}

func (m *MemoryStore) takeFailure() bool {
	if m.failures > 0 {
		m.failures--
		return true
	}
	return false
}

func (m *MemoryStore) appendAudit(entry model.AuditEntry) {
	m.nextAuditID++
	entry.ID = m.nextAuditID
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	m.audits = append(m.audits, entry)
}

// ── UserStore ────────────────────────────────────────────────

func (m *MemoryStore) Create(_ context.Context, u model.User, entry model.AuditEntry) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return model.User{}, storeFailure("create user")
	}

	if _, exists := m.byExternal[u.ExternalID]; exists {
		return model.User{}, model.ErrAlreadyRegistered
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return model.User{}, model.ErrUsernameTaken
		}
	}

	m.nextUserID++
	u.ID = m.nextUserID
	m.users[u.ID] = u
	m.byExternal[u.ExternalID] = u.ID

	entry.UserID = &u.ID
	m.appendAudit(entry)
	return u, nil
}

func (m *MemoryStore) FindByExternalID(_ context.Context, externalID int64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return model.User{}, storeFailure("find user")
	}

	id, exists := m.byExternal[externalID]
	if !exists {
		return model.User{}, model.ErrUserNotFound
	}
	return m.users[id], nil
}

func (m *MemoryStore) FindByID(_ context.Context, id int64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return model.User{}, storeFailure("find user")
	}

	u, exists := m.users[id]
	if !exists {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryStore) FindByUsername(_ context.Context, username string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return model.User{}, storeFailure("find user")
	}

	for _, u := range m.users {
		if strings.EqualFold(u.Username, strings.TrimSpace(username)) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (m *MemoryStore) TouchActivity(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return storeFailure("touch activity")
	}

	u, exists := m.users[id]
	if !exists {
		return model.ErrUserNotFound
	}
	u.LastActiveAt = at
	m.users[id] = u
	return nil
}

func (m *MemoryStore) IncrementFailedLogins(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return storeFailure("increment failed logins")
	}

	if u, exists := m.users[id]; exists {
		u.FailedLoginAttempts++
		m.users[id] = u
	}
	return nil
}

func (m *MemoryStore) ResetFailedLogins(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return storeFailure("reset failed logins")
	}

	if u, exists := m.users[id]; exists {
		u.FailedLoginAttempts = 0
		m.users[id] = u
	}
	return nil
}

func (m *MemoryStore) Erase(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return storeFailure("erase user")
	}

	u, exists := m.users[id]
	if !exists {
		return model.ErrUserNotFound
	}

	delete(m.users, id)
	delete(m.byExternal, u.ExternalID)
	for key, rec := range m.files {
		if rec.OwnerID == id {
			delete(m.files, key)
		}
	}
	kept := m.audits[:0]
	for _, e := range m.audits {
		if e.UserID != nil && *e.UserID == id {
			continue
		}
		kept = append(kept, e)
	}
	m.audits = kept
	return nil
}

// ── FileStore ────────────────────────────────────────────────

func (m *MemoryStore) Insert(_ context.Context, rec model.FileRecord, entry model.AuditEntry) (model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return model.FileRecord{}, storeFailure("insert file")
	}

	if _, exists := m.files[rec.Key()]; exists {
		return model.FileRecord{}, model.ErrFileExists
	}
	u, exists := m.users[rec.OwnerID]
	if !exists {
		return model.FileRecord{}, model.ErrUserNotFound
	}

	m.nextFileID++
	rec.ID = m.nextFileID
	m.files[rec.Key()] = rec

	u.Uploads++
	m.users[u.ID] = u

	m.appendAudit(entry)
	return rec, nil
}

func (m *MemoryStore) Latest(_ context.Context, ref string) (model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return model.FileRecord{}, storeFailure("find latest version")
	}

	var latest model.FileRecord
	found := false
	for _, rec := range m.files {
		if rec.Ref == ref && (!found || rec.Version > latest.Version) {
			latest = rec
			found = true
		}
	}
	if !found {
		return model.FileRecord{}, model.ErrFileNotFound
	}
	return latest, nil
}

func (m *MemoryStore) Get(_ context.Context, key model.FileKey) (model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return model.FileRecord{}, storeFailure("get file")
	}

	rec, exists := m.files[key]
	if !exists {
		return model.FileRecord{}, model.ErrFileNotFound
	}
	return rec, nil
}

func (m *MemoryStore) ListActive(_ context.Context, ownerID int64) ([]model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return nil, storeFailure("list files")
	}

	return m.selectActive(func(rec model.FileRecord) bool {
		return rec.OwnerID == ownerID
	}), nil
}

func (m *MemoryStore) ListAllActive(_ context.Context) ([]model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return nil, storeFailure("list files")
	}

	return m.selectActive(func(model.FileRecord) bool { return true }), nil
}

func (m *MemoryStore) SearchActive(_ context.Context, ownerID int64, query string) ([]model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return nil, storeFailure("search files")
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	return m.selectActive(func(rec model.FileRecord) bool {
		return rec.OwnerID == ownerID && strings.Contains(strings.ToLower(rec.Name), needle)
	}), nil
}

func (m *MemoryStore) RecentActive(ctx context.Context, ownerID int64, limit int) ([]model.FileRecord, error) {
	records, err := m.ListActive(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MemoryStore) ListPendingRetention(_ context.Context) ([]model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return nil, storeFailure("list pending retention")
	}

	records := make([]model.FileRecord, 0)
	for _, rec := range m.files {
		if !rec.Deleted && rec.DeleteAfter != nil {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DeleteAfter.Before(*records[j].DeleteAfter)
	})
	return records, nil
}

func (m *MemoryStore) selectActive(match func(model.FileRecord) bool) []model.FileRecord {
	records := make([]model.FileRecord, 0)
	for _, rec := range m.files {
		if !rec.Deleted && match(rec) {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].UploadedAt.Equal(records[j].UploadedAt) {
			return records[i].UploadedAt.After(records[j].UploadedAt)
		}
		return records[i].ID > records[j].ID
	})
	return records
}

func (m *MemoryStore) MarkDeleted(_ context.Context, key model.FileKey, entry model.AuditEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return false, storeFailure("mark deleted")
	}

	rec, exists := m.files[key]
	if !exists {
		return false, model.ErrFileNotFound
	}
	if rec.Deleted {
		return false, nil
	}

	rec.Deleted = true
	m.files[key] = rec
	m.appendAudit(entry)
	return true, nil
}

func (m *MemoryStore) MarkAllDeleted(_ context.Context, ownerID int64, makeEntry func(count int) model.AuditEntry) ([]model.FileKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return nil, storeFailure("purge files")
	}

	keys := make([]model.FileKey, 0)
	for key, rec := range m.files {
		if rec.OwnerID == ownerID && !rec.Deleted {
			rec.Deleted = true
			m.files[key] = rec
			keys = append(keys, key)
		}
	}
	if len(keys) > 0 {
		m.appendAudit(makeEntry(len(keys)))
	}
	return keys, nil
}

func (m *MemoryStore) SetDeleteAfter(_ context.Context, key model.FileKey, deleteAfter *time.Time, entry model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return storeFailure("set retention")
	}

	rec, exists := m.files[key]
	if !exists || rec.Deleted {
		return model.ErrFileNotFound
	}

	rec.DeleteAfter = deleteAfter
	m.files[key] = rec
	m.appendAudit(entry)
	return nil
}

func (m *MemoryStore) IncrementDownloads(_ context.Context, key model.FileKey, entry model.AuditEntry) (model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return model.FileRecord{}, storeFailure("record download")
	}

	rec, exists := m.files[key]
	if !exists || rec.Deleted {
		return model.FileRecord{}, model.ErrFileNotFound
	}

	rec.Downloads++
	m.files[key] = rec

	if u, ok := m.users[rec.OwnerID]; ok {
		u.Downloads++
		m.users[u.ID] = u
	}

	m.appendAudit(entry)
	return rec, nil
}

// ── AuditStore ───────────────────────────────────────────────

func (m *MemoryStore) Append(_ context.Context, entry model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return storeFailure("append audit entry")
	}

	m.appendAudit(entry)
	return nil
}

func (m *MemoryStore) Query(_ context.Context, q model.AuditQuery) ([]model.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takeFailure() {
		return nil, storeFailure("query audit entries")
	}

	entries := make([]model.AuditEntry, 0)
	for _, e := range m.audits {
		if q.UserID != nil && (e.UserID == nil || *e.UserID != *q.UserID) {
			continue
		}
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].OccurredAt.Equal(entries[j].OccurredAt) {
			return entries[i].OccurredAt.Before(entries[j].OccurredAt)
		}
		return entries[i].ID < entries[j].ID
	})

	if q.Offset > 0 {
		if q.Offset >= len(entries) {
			return []model.AuditEntry{}, nil
		}
		entries = entries[q.Offset:]
	}
	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}
	return entries, nil
}

func storeFailure(op string) error {
	return fmt.Errorf("%s: %w", op, model.ErrStoreUnavailable)
}
