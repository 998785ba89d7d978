package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadwireai/leadwire/internal/respond"
)

func TestRenderPlainReply(t *testing.T) {
	got, err := NewRenderer().Render("9876543210", &respond.Reply{Text: "Hello.", Shape: respond.ShapePlain})
	require.NoError(t, err)

	payload, ok := got.(Payload)
	require.True(t, ok)
	assert.Equal(t, "Hello.", payload.Text)
	assert.Empty(t, payload.Buttons)
}

func TestRenderReplyWithAction(t *testing.T) {
	got, err := NewRenderer().Render("9876543210", &respond.Reply{
		Text:    "Want a closer look?",
		Shape:   respond.ShapeWithAction,
		Actions: []respond.Action{{ID: "learn-more", Label: "learn more", Intent: respond.IntentInfo}},
	})
	require.NoError(t, err)

	payload, ok := got.(Payload)
	require.True(t, ok)
	require.Len(t, payload.Buttons, 1)
	assert.Equal(t, "learn-more", payload.Buttons[0].ID)
	assert.Equal(t, "learn more", payload.Buttons[0].Label)
}

func TestRenderRejectsNilReply(t *testing.T) {
	_, err := NewRenderer().Render("9876543210", nil)
	require.Error(t, err)
}
