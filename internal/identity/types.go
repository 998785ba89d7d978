// Package identity resolves raw channel identifiers to durable,
// deduplicated lead records keyed by normalized phone and tenant.
package identity

import (
	"time"

	"github.com/leadwireai/leadwire/internal/faults"
)

// DefaultTenant is used when an inbound request carries no tenant tag.
const DefaultTenant = "default"

var (
	// ErrInvalidIdentifier indicates the raw identifier kept fewer than
	// ten digits after normalization.
	ErrInvalidIdentifier = faults.Validation("identifier must contain at least 10 digits")
	// ErrNotFound indicates the referenced lead does not exist.
	ErrNotFound = faults.NotFound("lead not found")
)

// Lead is the canonical customer record. Exactly one row exists per
// (normalized phone, tenant); concurrent first contacts collapse onto it
// through the conditional upsert in Service.GetOrCreate.
type Lead struct {
	ID                string                    `json:"id"`
	Phone             string                    `json:"phone"`
	Tenant            string                    `json:"tenant"`
	DisplayName       string                    `json:"display_name,omitempty"`
	Email             string                    `json:"email,omitempty"`
	FirstChannel      string                    `json:"first_channel"`
	LastChannel       string                    `json:"last_channel"`
	LastInteractionAt time.Time                 `json:"last_interaction_at"`
	MessageCounts     map[string]int            `json:"message_counts"`
	Context           map[string]ChannelContext `json:"context"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

// ChannelContext is the per-channel slice of a lead's context blob.
// Writes for one channel never touch another channel's slice.
type ChannelContext map[string]any

// ChannelSlice returns the context stored for a channel, never nil.
func (l Lead) ChannelSlice(channel string) ChannelContext {
	if l.Context == nil {
		return ChannelContext{}
	}
	if slice, ok := l.Context[channel]; ok && slice != nil {
		return slice
	}
	return ChannelContext{}
}

// Hint carries optional sender details gathered from the inbound message.
// Null lead fields are filled from it; populated fields are never overwritten.
type Hint struct {
	Channel     string
	DisplayName string
	Email       string
	Metadata    map[string]any
}
