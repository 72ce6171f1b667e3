package model

import (
	"fmt"
	"time"
)

type FileKind string

const (
	FileKindDocument FileKind = "document"
	FileKindPhoto    FileKind = "photo"
	FileKindVideo    FileKind = "video"
	FileKindOther    FileKind = "other"
)

// FileKey is the logical identity of one stored artifact version. The
// reference is the opaque handle issued by the transport; the engine never
// touches file bytes.
type FileKey struct {
	Ref     string `json:"ref"`
	Version int    `json:"version"`
}

func (k FileKey) String() string {
	return fmt.Sprintf("%s@v%d", k.Ref, k.Version)
}

// FileRecord is one uploaded artifact version. Deleted records stay in the
// store so that "deleted" remains distinguishable from "never existed" and
// historical versions stay queryable.
type FileRecord struct {
	ID          int64      `json:"id"`
	Ref         string     `json:"ref"`
	Version     int        `json:"version"`
	OwnerID     int64      `json:"owner_id"`
	Name        string     `json:"name"`
	Kind        FileKind   `json:"kind"`
	Category    string     `json:"category"`
	Tags        string     `json:"tags,omitempty"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	DeleteAfter *time.Time `json:"delete_after,omitempty"`
	Deleted     bool       `json:"deleted"`
	Downloads   int64      `json:"downloads"`
}

func (f FileRecord) Key() FileKey {
	return FileKey{Ref: f.Ref, Version: f.Version}
}

// UploadRequest carries everything the transport knows about a new upload.
// RetentionMinutes of zero means the file never auto-expires. Reversion must
// be set explicitly to stack a new version onto an existing reference.
type UploadRequest struct {
	Ref              string   `json:"ref"`
	Name             string   `json:"name"`
	Kind             FileKind `json:"kind"`
	Tags             string   `json:"tags"`
	RetentionMinutes int      `json:"retention_minutes"`
	Reversion        bool     `json:"reversion"`
}
