// Package transcript is the append-only message history across channels.
package transcript

import (
	"context"
	"time"
)

// Sender roles for transcript entries.
const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
	RoleSystem   = "system"
)

// Entry kinds. Click entries carry the original action id in metadata.
const (
	KindText        = "text"
	KindButtonClick = "button-click"
	KindListClick   = "list-click"
	KindImage       = "image"
)

// Entry is one logged message. Entries are append-only and ordered by
// creation time; each processing cycle appends exactly one customer entry
// and, on success, exactly one agent entry.
type Entry struct {
	ID        string         `json:"id"`
	LeadID    string         `json:"lead_id"`
	Channel   string         `json:"channel"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Kind      string         `json:"kind"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AppendInput is the input for logging a message.
type AppendInput struct {
	LeadID   string
	Channel  string
	Role     string
	Content  string
	Kind     string
	Metadata map[string]any
}

// TrainingPair is one customer message and the agent reply that followed
// it, aggregated for training-data export.
type TrainingPair struct {
	Prompt     string    `json:"prompt"`
	Completion string    `json:"completion"`
	Tenant     string    `json:"tenant"`
	Channel    string    `json:"channel"`
	CreatedAt  time.Time `json:"created_at"`
}

// Log defines the transcript behavior the pipeline depends on.
type Log interface {
	Append(ctx context.Context, input AppendInput) (Entry, error)
	ListRecent(ctx context.Context, leadID, channel string, limit int32) ([]Entry, error)
	AttachMetadata(ctx context.Context, entryID string, metadata map[string]any) error
}
