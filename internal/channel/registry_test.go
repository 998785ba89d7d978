package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadwireai/leadwire/internal/respond"
)

type stubRenderer struct{ name string }

func (s *stubRenderer) Render(string, *respond.Reply) (any, error) { return s.name, nil }

type stubSender struct{}

func (s *stubSender) Send(context.Context, any) (string, error) { return "", nil }

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterRenderer(WhatsApp, &stubRenderer{name: "wa"}))
	require.NoError(t, reg.RegisterRenderer(Web, &stubRenderer{name: "web"}))
	require.NoError(t, reg.RegisterSender(WhatsApp, &stubSender{}))

	renderer, ok := reg.RendererFor("WhatsApp")
	require.True(t, ok)
	payload, err := renderer.Render("123", nil)
	require.NoError(t, err)
	assert.Equal(t, "wa", payload)

	_, ok = reg.SenderFor(WhatsApp)
	assert.True(t, ok)
	_, ok = reg.SenderFor(Web)
	assert.False(t, ok)

	assert.Equal(t, []string{"web", "whatsapp"}, reg.Channels())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterRenderer(WhatsApp, &stubRenderer{}))
	require.Error(t, reg.RegisterRenderer(WhatsApp, &stubRenderer{}))

	require.NoError(t, reg.RegisterSender(WhatsApp, &stubSender{}))
	require.Error(t, reg.RegisterSender(WhatsApp, &stubSender{}))
}

func TestRegistryRejectsInvalidRegistrations(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.RegisterRenderer("  ", &stubRenderer{}))
	assert.Error(t, reg.RegisterRenderer(WhatsApp, nil))
	assert.Error(t, reg.RegisterSender("", &stubSender{}))
	assert.Error(t, reg.RegisterSender(Web, nil))
}
