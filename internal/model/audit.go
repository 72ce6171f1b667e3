package model

import "time"

type AuditAction string

const (
	AuditRegister  AuditAction = "register"
	AuditUpload    AuditAction = "upload"
	AuditDelete    AuditAction = "delete"
	AuditPurge     AuditAction = "purge"
	AuditDownload  AuditAction = "download"
	AuditRetention AuditAction = "retention"
)

// AuditEntry is an immutable record of one committed state-changing action.
// UserID is nil for scheduler-initiated actions.
type AuditEntry struct {
	ID         int64       `json:"id"`
	UserID     *int64      `json:"user_id,omitempty"`
	Action     AuditAction `json:"action"`
	Detail     string      `json:"detail"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// AuditQuery filters the append-only log. Results are ordered by timestamp
// ascending.
type AuditQuery struct {
	UserID *int64      `json:"user_id,omitempty"`
	Action AuditAction `json:"action,omitempty"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}
