// Package conversation assembles the per-turn context the response
// generator works from: the resolved lead, its channel session, a bounded
// transcript window, and the summary, interests, and phase derived from it.
package conversation

import (
	"context"

	"github.com/leadwireai/leadwire/internal/booking"
	"github.com/leadwireai/leadwire/internal/identity"
	"github.com/leadwireai/leadwire/internal/session"
	"github.com/leadwireai/leadwire/internal/transcript"
)

// Conversation phases, a coarse proxy derived from the session message
// count rather than a classifier.
const (
	PhaseDiscoveryEntry = "discovery-entry"
	PhaseDiscovery      = "discovery"
	PhaseEvaluation     = "evaluation"
	PhaseClosing        = "closing"
)

// IdentityStore is the lead surface the builder needs.
type IdentityStore interface {
	GetOrCreate(ctx context.Context, rawID, tenant string, hint identity.Hint) (identity.Lead, bool, error)
	UpdateChannelContext(ctx context.Context, id, channel string, data map[string]any) error
}

// SessionStore is the session surface the builder needs.
type SessionStore interface {
	GetOrCreate(ctx context.Context, channel, externalID, tenant string, metadata map[string]any) (session.Session, bool, error)
	LinkToIdentity(ctx context.Context, sessionID, leadID string) error
	UpdateConversationData(ctx context.Context, sessionID string, data session.ConversationData) error
}

// TranscriptReader is the history surface the builder needs.
type TranscriptReader interface {
	ListRecent(ctx context.Context, leadID, channel string, limit int32) ([]transcript.Entry, error)
}

// Context is the ephemeral per-turn aggregate. It is computed fresh on
// every turn and never persisted as a unit; only the derived fields are
// folded back into the session row and the lead's context blob.
type Context struct {
	Lead         identity.Lead
	Session      session.Session
	History      []transcript.Entry
	Summary      string
	Interests    []string
	Phase        string
	ContextNote  string
	IsReturning  bool
	HasBooking   bool
	Booking      *booking.Booking
	MessageCount int
}
