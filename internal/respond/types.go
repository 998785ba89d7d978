// Package respond turns a built conversation context and the latest
// customer message into reply text plus at most one suggested action.
package respond

import (
	"github.com/leadwireai/leadwire/internal/completion"
	"github.com/leadwireai/leadwire/internal/conversation"
)

// Reply shapes.
const (
	ShapePlain      = "plain"
	ShapeWithAction = "with-action"
)

// Urgency tags derived from the customer message.
const (
	UrgencyUrgent = "urgent"
	UrgencyHigh   = "high"
	UrgencyNormal = "normal"
)

// Intents inferred for suggested actions.
const (
	IntentPricing    = "pricing"
	IntentOnboarding = "onboarding"
	IntentHandoff    = "handoff"
	IntentInfo       = "info"
	IntentDemo       = "demo"
	IntentBooking    = "booking"
)

// Action is one suggested next step, rendered downstream as a tappable
// quick reply.
type Action struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Intent string `json:"intent"`
}

// GenerateInput is the input for one reply turn.
type GenerateInput struct {
	Context     *conversation.Context
	MessageText string
}

// Reply is the generator output for one turn.
type Reply struct {
	Text      string           `json:"text"`
	Shape     string           `json:"shape"`
	Actions   []Action         `json:"actions"`
	Urgency   string           `json:"urgency"`
	Usage     completion.Usage `json:"usage"`
	Model     string           `json:"model,omitempty"`
	LatencyMs int64            `json:"latency_ms"`
}
