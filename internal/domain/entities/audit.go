package entities

import "time"

// Audit actions recorded by the submit pipeline.
const (
	ActionSubmit       = "submit"
	ActionMerge        = "merge"
	ActionCascadeCycle = "cascade_cycle"
	ActionUpload       = "upload"
)

// AuditEntry represents a logged action in the system.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	ChangeID  int            `json:"change_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
