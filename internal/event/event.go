package event

type Type string

const (
	TypeUserRegistered     Type = "user.registered"
	TypeUserErased         Type = "user.erased"
	TypeFileUploaded       Type = "file.uploaded"
	TypeFileDeleted        Type = "file.deleted"
	TypeFilePurged         Type = "file.purged"
	TypeFileDownloaded     Type = "file.downloaded"
	TypeRetentionArmed     Type = "retention.armed"
	TypeRetentionCancelled Type = "retention.cancelled"
	TypeRetentionFired     Type = "retention.fired"
	TypeRetentionDropped   Type = "retention.dropped"
)

// Event is one committed lifecycle transition, published after the store
// transaction that produced it. Payload carries the affected record or key.
type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Actor     string `json:"actor,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
