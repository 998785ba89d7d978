// Package channel defines the shared surface between channel adapters and
// the inbound pipeline: the normalized inbound message and the rendering
// and delivery seams an adapter provides.
package channel

import (
	"context"
	"time"

	"github.com/leadwireai/leadwire/internal/respond"
)

// Channel names.
const (
	WhatsApp = "whatsapp"
	Web      = "web"
)

// Inbound message kinds.
const (
	KindText        = "text"
	KindButtonClick = "button-click"
	KindListClick   = "list-click"
)

// TaskInbound labels queued tasks whose payload is a JSON InboundMessage.
const TaskInbound = "inbound_message"

// InboundMessage is one normalized customer message entering the pipeline,
// whatever surface it arrived on. Click events are already remapped to
// plain text with the original action id preserved.
type InboundMessage struct {
	Channel     string         `json:"channel"`
	ExternalID  string         `json:"external_id"`
	Tenant      string         `json:"tenant,omitempty"`
	Text        string         `json:"text"`
	Kind        string         `json:"kind"`
	DisplayName string         `json:"display_name,omitempty"`
	ActionID    string         `json:"action_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Renderer renders a reply for a recipient into the channel's wire format.
type Renderer interface {
	Render(externalID string, reply *respond.Reply) (any, error)
}

// Sender delivers a rendered payload to the provider, returning the
// provider's message id.
type Sender interface {
	Send(ctx context.Context, payload any) (string, error)
}
