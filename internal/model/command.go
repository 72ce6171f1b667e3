package model

// CommandKind tags the operations the messaging collaborator may invoke.
// The transport decodes its own callback encoding into one of these before
// anything reaches the engine; the engine never parses transport strings.
type CommandKind string

const (
	CommandUpload          CommandKind = "upload"
	CommandListFiles       CommandKind = "list_files"
	CommandDownloadFile    CommandKind = "download_file"
	CommandDeleteFile      CommandKind = "delete_file"
	CommandPurgeOwn        CommandKind = "purge_own"
	CommandSearchFiles     CommandKind = "search_files"
	CommandRecentFiles     CommandKind = "recent_files"
	CommandEraseAccount    CommandKind = "erase_account"
	CommandAdminListFiles  CommandKind = "admin_list_files"
	CommandAdminDeleteFile CommandKind = "admin_delete_file"
	CommandAdminPurgeUser  CommandKind = "admin_purge_user"
	CommandAdminRetention  CommandKind = "admin_retention"
	CommandAdminAuditQuery CommandKind = "admin_audit_query"
)

// RetentionChange re-arms or cancels the deferred expiry of one file.
// Minutes <= 0 cancels any scheduled expiry.
type RetentionChange struct {
	File    FileKey `json:"file"`
	Minutes int     `json:"minutes"`
}

// Command is the tagged variant handed to the dispatcher. Only the fields
// relevant to the Kind are set.
type Command struct {
	Kind      CommandKind     `json:"kind"`
	Upload    *UploadRequest  `json:"upload,omitempty"`
	File      *FileKey        `json:"file,omitempty"`
	OwnerID   int64           `json:"owner_id,omitempty"`
	Query     string          `json:"query,omitempty"`
	Retention *RetentionChange `json:"retention,omitempty"`
	Audit     *AuditQuery     `json:"audit,omitempty"`
}

// CommandResult is the union of everything a command can produce.
type CommandResult struct {
	User    *User        `json:"user,omitempty"`
	Secret  string       `json:"secret,omitempty"`
	File    *FileRecord  `json:"file,omitempty"`
	Files   []FileRecord `json:"files,omitempty"`
	Ref     string       `json:"ref,omitempty"`
	Count   int          `json:"count,omitempty"`
	Entries []AuditEntry `json:"entries,omitempty"`
}
