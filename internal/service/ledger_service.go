package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediavault/internal/event"
	"mediavault/internal/model"
	"mediavault/internal/repository"
	"mediavault/internal/util"
)

// Retention is the slice of the scheduler the services need.
type Retention interface {
	Arm(key model.FileKey, fireAt time.Time)
	Cancel(key model.FileKey)
}

const defaultRecentLimit = 10

// LedgerService owns the file metadata lifecycle: versioned registration,
// soft deletion, download accounting and retention arming. It never sees
// file bytes, only the opaque references the transport hands it.
type LedgerService struct {
	files     repository.FileStore
	retention Retention
	bus       event.Bus
}

func NewLedgerService(files repository.FileStore, retention Retention, bus event.Bus) *LedgerService {
	return &LedgerService{files: files, retention: retention, bus: bus}
}

// Upload registers a new file version under the acting owner. A reference
// already in the ledger is rejected unless the request explicitly asks for a
// re-version, in which case the new record gets the next version number and
// prior versions stay untouched. A positive retention arms deferred expiry.
func (s *LedgerService) Upload(ctx context.Context, actor model.Actor, req model.UploadRequest) (model.FileRecord, error) {
	if strings.TrimSpace(req.Ref) == "" || strings.TrimSpace(req.Name) == "" {
		return model.FileRecord{}, fmt.Errorf("upload needs a reference and a name: %w", model.ErrInvalidInput)
	}
	kind := req.Kind
	if kind == "" {
		kind = model.FileKindOther
	}

	version := 1
	var latest model.FileRecord
	err := withStoreRetry(ctx, func() error {
		var lerr error
		latest, lerr = s.files.Latest(ctx, req.Ref)
		return lerr
	})
	switch {
	case err == nil:
		if !req.Reversion {
			return model.FileRecord{}, fmt.Errorf("reference %s: %w", req.Ref, model.ErrFileExists)
		}
		if latest.OwnerID != actor.UserID && actor.Kind != model.ActorAdmin {
			return model.FileRecord{}, fmt.Errorf("reference %s belongs to another owner: %w", req.Ref, model.ErrUnauthorized)
		}
		version = latest.Version + 1
	case errors.Is(err, model.ErrFileNotFound):
		// first version under this reference
	default:
		return model.FileRecord{}, err
	}

	now := time.Now().UTC()
	rec := model.FileRecord{
		Ref:        req.Ref,
		Version:    version,
		OwnerID:    actor.UserID,
		Name:       req.Name,
		Kind:       kind,
		Category:   util.Categorize(req.Name, kind),
		Tags:       req.Tags,
		UploadedAt: now,
	}
	if req.RetentionMinutes > 0 {
		t := now.Add(time.Duration(req.RetentionMinutes) * time.Minute)
		rec.DeleteAfter = &t
	}

	entry := model.AuditEntry{
		UserID:     actor.AuditUserID(),
		Action:     model.AuditUpload,
		Detail:     fmt.Sprintf("uploaded %q (%s) as %s", rec.Name, rec.Category, rec.Key()),
		OccurredAt: now,
	}

	var created model.FileRecord
	err = withStoreRetry(ctx, func() error {
		var ierr error
		created, ierr = s.files.Insert(ctx, rec, entry)
		return ierr
	})
	if err != nil {
		return model.FileRecord{}, err
	}

	if created.DeleteAfter != nil {
		s.retention.Arm(created.Key(), *created.DeleteAfter)
	}
	s.bus.Publish(event.Event{
		Type:    event.TypeFileUploaded,
		Actor:   string(actor.Kind),
		Payload: created,
	})
	return created, nil
}

// ListActive returns the acting owner's live file versions, newest first.
func (s *LedgerService) ListActive(ctx context.Context, actor model.Actor) ([]model.FileRecord, error) {
	var files []model.FileRecord
	err := withStoreRetry(ctx, func() error {
		var lerr error
		files, lerr = s.files.ListActive(ctx, actor.UserID)
		return lerr
	})
	return files, err
}

// Search returns the acting owner's live files whose name matches the query.
func (s *LedgerService) Search(ctx context.Context, actor model.Actor, query string) ([]model.FileRecord, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty search query: %w", model.ErrInvalidInput)
	}
	var files []model.FileRecord
	err := withStoreRetry(ctx, func() error {
		var serr error
		files, serr = s.files.SearchActive(ctx, actor.UserID, query)
		return serr
	})
	return files, err
}

// Recent returns the acting owner's most recent live uploads.
func (s *LedgerService) Recent(ctx context.Context, actor model.Actor, limit int) ([]model.FileRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	var files []model.FileRecord
	err := withStoreRetry(ctx, func() error {
		var rerr error
		files, rerr = s.files.RecentActive(ctx, actor.UserID, limit)
		return rerr
	})
	return files, err
}

// ListAllActive returns every live file version across owners. Admin only.
func (s *LedgerService) ListAllActive(ctx context.Context, actor model.Actor) ([]model.FileRecord, error) {
	if actor.Kind != model.ActorAdmin {
		return nil, fmt.Errorf("list all files: %w", model.ErrUnauthorized)
	}
	var files []model.FileRecord
	err := withStoreRetry(ctx, func() error {
		var lerr error
		files, lerr = s.files.ListAllActive(ctx)
		return lerr
	})
	return files, err
}

// SoftDelete marks one file version deleted. Owners may only delete their
// own files; admins and the system actor may delete any. Deleting an
// already-deleted version is a no-op and writes no audit entry.
func (s *LedgerService) SoftDelete(ctx context.Context, actor model.Actor, key model.FileKey) error {
	rec, err := s.get(ctx, key)
	if err != nil {
		return err
	}
	if err := authorizeFileAccess(actor, rec); err != nil {
		return err
	}
	if rec.Deleted {
		return nil
	}

	entry := model.AuditEntry{
		UserID:     actor.AuditUserID(),
		Action:     model.AuditDelete,
		Detail:     fmt.Sprintf("deleted %q (%s) by %s", rec.Name, key, actor.Kind),
		OccurredAt: time.Now().UTC(),
	}

	var changed bool
	err = withStoreRetry(ctx, func() error {
		var derr error
		changed, derr = s.files.MarkDeleted(ctx, key, entry)
		return derr
	})
	if err != nil {
		return err
	}

	s.retention.Cancel(key)
	if changed {
		s.bus.Publish(event.Event{
			Type:    event.TypeFileDeleted,
			Actor:   string(actor.Kind),
			Payload: key,
		})
	}
	return nil
}

// PurgeAllForOwner soft-deletes every live file of one owner in a single
// transaction. Owners may purge themselves; admins may purge anyone. One
// summary audit entry covers the whole batch, and none is written when
// nothing was live.
func (s *LedgerService) PurgeAllForOwner(ctx context.Context, actor model.Actor, ownerID int64) (int, error) {
	if actor.Kind != model.ActorAdmin && actor.UserID != ownerID {
		return 0, fmt.Errorf("purge owner %d: %w", ownerID, model.ErrUnauthorized)
	}

	makeEntry := func(count int) model.AuditEntry {
		return model.AuditEntry{
			UserID:     actor.AuditUserID(),
			Action:     model.AuditPurge,
			Detail:     fmt.Sprintf("purged %d file(s) of owner %d", count, ownerID),
			OccurredAt: time.Now().UTC(),
		}
	}

	var keys []model.FileKey
	err := withStoreRetry(ctx, func() error {
		var perr error
		keys, perr = s.files.MarkAllDeleted(ctx, ownerID, makeEntry)
		return perr
	})
	if err != nil {
		return 0, err
	}

	for _, key := range keys {
		s.retention.Cancel(key)
	}
	if len(keys) > 0 {
		s.bus.Publish(event.Event{
			Type:    event.TypeFilePurged,
			Actor:   string(actor.Kind),
			Payload: len(keys),
		})
	}
	return len(keys), nil
}

// RecordDownload bumps the download counters for one live file version and
// returns the reference the transport should serve. Deleted versions are
// indistinguishable from absent ones.
func (s *LedgerService) RecordDownload(ctx context.Context, actor model.Actor, key model.FileKey) (string, error) {
	rec, err := s.get(ctx, key)
	if err != nil {
		return "", err
	}
	if rec.Deleted {
		return "", fmt.Errorf("file %s: %w", key, model.ErrFileNotFound)
	}
	if err := authorizeFileAccess(actor, rec); err != nil {
		return "", err
	}

	entry := model.AuditEntry{
		UserID:     actor.AuditUserID(),
		Action:     model.AuditDownload,
		Detail:     fmt.Sprintf("downloaded %q (%s)", rec.Name, key),
		OccurredAt: time.Now().UTC(),
	}

	var updated model.FileRecord
	err = withStoreRetry(ctx, func() error {
		var derr error
		updated, derr = s.files.IncrementDownloads(ctx, key, entry)
		return derr
	})
	if err != nil {
		return "", err
	}

	s.bus.Publish(event.Event{
		Type:    event.TypeFileDownloaded,
		Actor:   string(actor.Kind),
		Payload: key,
	})
	return updated.Ref, nil
}

// SetRetention re-arms or cancels the deferred expiry of one live version.
// Minutes at or below zero clears the schedule. Admin only.
func (s *LedgerService) SetRetention(ctx context.Context, actor model.Actor, change model.RetentionChange) error {
	if actor.Kind != model.ActorAdmin {
		return fmt.Errorf("set retention: %w", model.ErrUnauthorized)
	}

	rec, err := s.get(ctx, change.File)
	if err != nil {
		return err
	}
	if rec.Deleted {
		return fmt.Errorf("file %s: %w", change.File, model.ErrFileNotFound)
	}

	now := time.Now().UTC()
	var deleteAfter *time.Time
	detail := fmt.Sprintf("cleared retention of %s", change.File)
	if change.Minutes > 0 {
		t := now.Add(time.Duration(change.Minutes) * time.Minute)
		deleteAfter = &t
		detail = fmt.Sprintf("set retention of %s to %d minute(s)", change.File, change.Minutes)
	}

	entry := model.AuditEntry{
		UserID:     actor.AuditUserID(),
		Action:     model.AuditRetention,
		Detail:     detail,
		OccurredAt: now,
	}
	err = withStoreRetry(ctx, func() error {
		return s.files.SetDeleteAfter(ctx, change.File, deleteAfter, entry)
	})
	if err != nil {
		return err
	}

	if deleteAfter != nil {
		s.retention.Arm(change.File, *deleteAfter)
	} else {
		s.retention.Cancel(change.File)
	}
	return nil
}

// ExpireFile is the scheduler's firing callback. It re-reads the record so a
// manual delete or account erasure that won the race turns the firing into a
// clean no-op. The scheduler owns retry on store unavailability, so failures
// are returned raw.
func (s *LedgerService) ExpireFile(ctx context.Context, key model.FileKey) error {
	rec, err := s.files.Get(ctx, key)
	if errors.Is(err, model.ErrFileNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.Deleted {
		return nil
	}

	entry := model.AuditEntry{
		Action:     model.AuditDelete,
		Detail:     fmt.Sprintf("expired %q (%s) by retention", rec.Name, key),
		OccurredAt: time.Now().UTC(),
	}
	changed, err := s.files.MarkDeleted(ctx, key, entry)
	if errors.Is(err, model.ErrFileNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if changed {
		s.bus.Publish(event.Event{
			Type:    event.TypeFileDeleted,
			Actor:   string(model.ActorSystem),
			Payload: key,
		})
	}
	return nil
}

func (s *LedgerService) get(ctx context.Context, key model.FileKey) (model.FileRecord, error) {
	var rec model.FileRecord
	err := withStoreRetry(ctx, func() error {
		var gerr error
		rec, gerr = s.files.Get(ctx, key)
		return gerr
	})
	return rec, err
}

// authorizeFileAccess lets owners at their own records and admins and the
// system actor at everything.
func authorizeFileAccess(actor model.Actor, rec model.FileRecord) error {
	switch actor.Kind {
	case model.ActorAdmin, model.ActorSystem:
		return nil
	default:
		if rec.OwnerID != actor.UserID {
			return fmt.Errorf("file %s: %w", rec.Key(), model.ErrUnauthorized)
		}
		return nil
	}
}
