package whatsapp

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/leadwireai/leadwire/internal/channel"
	"github.com/leadwireai/leadwire/internal/config"
	"github.com/leadwireai/leadwire/internal/dispatch"
)

type inboundDispatcher interface {
	Dispatch(ctx context.Context, task dispatch.Task) error
}

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

// Webhook receives Cloud API callbacks: the GET verification handshake and
// POSTed message notifications.
type Webhook struct {
	logger     *slog.Logger
	cfg        config.WhatsAppConfig
	dispatcher inboundDispatcher
}

// NewWebhook creates the public webhook handler for Cloud API callbacks.
func NewWebhook(log *slog.Logger, cfg config.WhatsAppConfig, d inboundDispatcher) *Webhook {
	if log == nil {
		log = slog.Default()
	}
	return &Webhook{
		logger:     log.With(slog.String("handler", "whatsapp_webhook")),
		cfg:        cfg,
		dispatcher: d,
	}
}

// Register registers webhook callback routes.
func (h *Webhook) Register(e *echo.Echo) {
	e.GET("/channels/whatsapp/webhook", h.HandleVerify)
	e.POST("/channels/whatsapp/webhook", h.HandleEvent)
}

// HandleVerify answers the provider's subscription handshake: echo the
// challenge when the verify token matches, 403 otherwise.
func (h *Webhook) HandleVerify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")
	if mode != "subscribe" || h.cfg.VerifyToken == "" ||
		!hmac.Equal([]byte(token), []byte(h.cfg.VerifyToken)) {
		return echo.NewHTTPError(http.StatusForbidden, "verification failed")
	}
	return c.String(http.StatusOK, challenge)
}

// HandleEvent verifies the signature over the exact raw body, acknowledges
// with 200 right away, and hands each extracted message to the dispatcher.
// Processing outcomes never change the webhook response.
func (h *Webhook) HandleEvent(c echo.Context) error {
	if h.dispatcher == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "webhook dispatcher not configured")
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(payload)) > webhookMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes))
	}
	if err := VerifySignature(h.cfg.AppSecret, payload, c.Request().Header.Get(SignatureHeader)); err != nil {
		h.logger.Warn("webhook signature rejected", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusForbidden, "signature verification failed")
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid webhook payload: %v", err))
	}

	ctx := context.WithoutCancel(c.Request().Context())
	for _, msg := range ExtractMessages(event, "") {
		raw, err := json.Marshal(msg)
		if err != nil {
			h.logger.Error("marshal inbound message", slog.Any("error", err))
			continue
		}
		task := dispatch.NewTask(channel.TaskInbound, raw)
		if err := h.dispatcher.Dispatch(ctx, task); err != nil {
			h.logger.Error("dispatch inbound message",
				slog.String("task_id", task.ID),
				slog.String("external_id", msg.ExternalID),
				slog.Any("error", err),
			)
		}
	}
	return c.NoContent(http.StatusOK)
}
