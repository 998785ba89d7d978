package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadwireai/leadwire/internal/config"
	"github.com/leadwireai/leadwire/internal/faults"
)

func newTestSender(t *testing.T, handler http.HandlerFunc) *Sender {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewSender(nil, config.WhatsAppConfig{
		APIBase:        srv.URL,
		PhoneNumberID:  "106540352242922",
		AccessToken:    "test-token",
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)
	return s
}

func TestSendPostsEnvelope(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody Envelope
	s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.out1"}]}`))
	})

	id, err := s.Send(context.Background(), FormatText("919876543210", "On my way."))
	require.NoError(t, err)
	assert.Equal(t, "wamid.out1", id)
	assert.Equal(t, "/106540352242922/messages", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "919876543210", gotBody.To)
	assert.Equal(t, "text", gotBody.Type)
	require.NotNil(t, gotBody.Text)
	assert.Equal(t, "On my way.", gotBody.Text.Body)
}

func TestSendClassifiesUpstreamStatuses(t *testing.T) {
	tests := []struct {
		status int
		kind   faults.Kind
	}{
		{status: http.StatusUnauthorized, kind: faults.KindUpstreamAuth},
		{status: http.StatusForbidden, kind: faults.KindUpstreamAuth},
		{status: http.StatusTooManyRequests, kind: faults.KindUpstreamRateLimit},
		{status: http.StatusInternalServerError, kind: faults.KindUpstreamServer},
		{status: http.StatusBadRequest, kind: faults.KindUpstreamServer},
	}
	for _, tt := range tests {
		s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"nope"}}`, tt.status)
		})
		_, err := s.Send(context.Background(), FormatText("919876543210", "hi"))
		require.Error(t, err, "status %d", tt.status)
		assert.Equal(t, tt.kind, faults.KindOf(err), "status %d", tt.status)
	}
}

func TestSendRejectsUnknownPayloadType(t *testing.T) {
	s := newTestSender(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not be sent")
	})

	_, err := s.Send(context.Background(), map[string]string{"to": "123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported payload type")
}

func TestNewSenderValidatesConfig(t *testing.T) {
	_, err := NewSender(nil, config.WhatsAppConfig{APIBase: "https://example.com", AccessToken: "t"})
	require.Error(t, err)

	_, err = NewSender(nil, config.WhatsAppConfig{APIBase: "https://example.com", PhoneNumberID: "1"})
	require.Error(t, err)

	_, err = NewSender(nil, config.WhatsAppConfig{PhoneNumberID: "1", AccessToken: "t"})
	require.Error(t, err)
}
