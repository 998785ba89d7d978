// Package session tracks per-channel, per-customer conversation sessions.
// A session is created on the first message from a given external id on a
// channel, linked to its lead once resolved, and updated every turn.
// Sessions are never deleted.
package session

import (
	"time"

	"github.com/leadwireai/leadwire/internal/faults"
)

// ErrNotFound indicates the referenced session does not exist.
var ErrNotFound = faults.NotFound("session not found")

// Session is one channel-scoped conversation with a customer.
type Session struct {
	ID            string         `json:"id"`
	Channel       string         `json:"channel"`
	ExternalID    string         `json:"external_id"`
	Tenant        string         `json:"tenant"`
	LeadID        string         `json:"lead_id,omitempty"`
	MessageCount  int            `json:"message_count"`
	LastMessageAt time.Time      `json:"last_message_at"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	ContextNote   string         `json:"context_note,omitempty"`
	Phase         string         `json:"phase,omitempty"`
	Interests     []string       `json:"interests,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Linked reports whether the session has been tied to a lead.
func (s Session) Linked() bool { return s.LeadID != "" }

// ConversationData is the derived state written back after each turn.
// Writes are wholesale: the latest turn wins.
type ConversationData struct {
	Summary     string
	ContextNote string
	Phase       string
	Interests   []string
}
