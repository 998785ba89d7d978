package completion

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

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(nil, config.CompletionConfig{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		Model:          "test-model",
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)
	return client
}

func TestCompleteSuccess(t *testing.T) {
	var gotAuth string
	var gotBody chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Hi there!"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	result, err := client.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", result.Text)
	assert.Equal(t, 49, result.Usage.TotalTokens)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", gotBody.Model)
	require.Len(t, gotBody.Messages, 2)
}

func TestCompleteClassifiesStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   faults.Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, kind: faults.KindUpstreamAuth},
		{name: "forbidden", status: http.StatusForbidden, kind: faults.KindUpstreamAuth},
		{name: "rate limited", status: http.StatusTooManyRequests, kind: faults.KindUpstreamRateLimit},
		{name: "server error", status: http.StatusInternalServerError, kind: faults.KindUpstreamServer},
		{name: "bad gateway", status: http.StatusBadGateway, kind: faults.KindUpstreamServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "upstream unhappy", tt.status)
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL)
			_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
			require.Error(t, err)
			assert.Equal(t, tt.kind, faults.KindOf(err))
		})
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.Error(t, err)
	assert.Equal(t, faults.KindUpstreamServer, faults.KindOf(err))
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(nil, config.CompletionConfig{Model: "m"})
	require.Error(t, err)

	_, err = NewClient(nil, config.CompletionConfig{BaseURL: "http://localhost"})
	require.Error(t, err)
}
