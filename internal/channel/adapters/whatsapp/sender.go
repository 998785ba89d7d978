package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/leadwireai/leadwire/internal/config"
	"github.com/leadwireai/leadwire/internal/faults"
)

const errorBodyLimit = 4096

// Sender posts rendered envelopes to the Cloud API messages endpoint.
type Sender struct {
	apiBase       string
	phoneNumberID string
	token         string
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewSender creates an outbound sender from config. Missing delivery
// credentials surface here, not on first send.
func NewSender(log *slog.Logger, cfg config.WhatsAppConfig) (*Sender, error) {
	if log == nil {
		log = slog.Default()
	}
	apiBase := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if apiBase == "" {
		return nil, fmt.Errorf("whatsapp api_base is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, fmt.Errorf("whatsapp phone_number_id is required")
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, fmt.Errorf("whatsapp access_token is required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultWhatsAppTimeout) * time.Second
	}
	return &Sender{
		apiBase:       apiBase,
		phoneNumberID: cfg.PhoneNumberID,
		token:         cfg.AccessToken,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        log.With(slog.String("service", "whatsapp-sender")),
	}, nil
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send delivers one envelope and returns the provider message id. Upstream
// faults come back classified by status and are never retried here.
func (s *Sender) Send(ctx context.Context, payload any) (string, error) {
	env, ok := payload.(Envelope)
	if !ok {
		return "", fmt.Errorf("whatsapp sender: unsupported payload type %T", payload)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.apiBase, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", faults.Wrap(faults.KindUpstreamServer, "whatsapp send failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody := readErrorBody(resp.Body)
		s.logger.Error("whatsapp API error",
			slog.Int("status", resp.StatusCode),
			slog.String("to", env.To),
			slog.String("body", errBody),
		)
		return "", faults.FromUpstreamStatus(resp.StatusCode,
			fmt.Sprintf("whatsapp API returned %d", resp.StatusCode))
	}

	var decoded sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	if len(decoded.Messages) == 0 {
		return "", nil
	}
	return decoded.Messages[0].ID, nil
}

func readErrorBody(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
