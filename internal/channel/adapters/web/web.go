// Package web renders replies for the synchronous message API, which
// returns the payload in the HTTP response instead of pushing it to a
// provider.
package web

import (
	"fmt"

	"github.com/leadwireai/leadwire/internal/respond"
)

// Payload is the channel-neutral rendering of a reply.
type Payload struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons,omitempty"`
}

// Button is one tappable quick reply.
type Button struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Renderer renders replies for the web channel. There is no paired
// sender; delivery is the HTTP response itself.
type Renderer struct{}

// NewRenderer creates the web renderer.
func NewRenderer() *Renderer { return &Renderer{} }

// Render maps a reply onto the response payload. The external id is not
// embedded; the caller already knows who asked.
func (r *Renderer) Render(_ string, reply *respond.Reply) (any, error) {
	if reply == nil {
		return nil, fmt.Errorf("reply is required")
	}
	p := Payload{Text: reply.Text}
	for _, action := range reply.Actions {
		p.Buttons = append(p.Buttons, Button{ID: action.ID, Label: action.Label})
	}
	return p, nil
}
