package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/leadwireai/leadwire/internal/channel"
	"github.com/leadwireai/leadwire/internal/channel/inbound"
	"github.com/leadwireai/leadwire/internal/completion"
	"github.com/leadwireai/leadwire/internal/respond"
)

type messageProcessor interface {
	Process(ctx context.Context, msg channel.InboundMessage) (*inbound.Outcome, error)
}

// MessageHandler serves the synchronous web-channel message API.
type MessageHandler struct {
	processor messageProcessor
	logger    *slog.Logger
}

func NewMessageHandler(log *slog.Logger, processor messageProcessor) *MessageHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MessageHandler{
		processor: processor,
		logger:    log.With(slog.String("handler", "messages")),
	}
}

func (h *MessageHandler) Register(e *echo.Echo) {
	e.POST("/api/messages", h.SendMessage)
}

// MessageRequest is the sync API body. The identifier keeps whatever
// form the caller sent; digit normalization happens in the identity
// resolver.
type MessageRequest struct {
	ExternalID  string `json:"externalId" validate:"required,min=10,max=15"`
	Text        string `json:"text" validate:"required,min=1,max=4000"`
	DisplayName string `json:"displayName" validate:"omitempty,max=120"`
	Timestamp   int64  `json:"timestamp" validate:"omitempty,gte=0"`
	Tenant      string `json:"tenant" validate:"omitempty,oneof=default sandbox"`
}

type MessageResponse struct {
	Text    string           `json:"text"`
	Shape   string           `json:"shape"`
	Actions []respond.Action `json:"actions,omitempty"`
	Payload any              `json:"payload"`
	Meta    MessageMeta      `json:"meta"`
}

type MessageMeta struct {
	IdentityID string           `json:"identityId"`
	SessionID  string           `json:"sessionId"`
	LatencyMs  int64            `json:"latencyMs"`
	Usage      completion.Usage `json:"usage"`
}

// SendMessage runs one message through the pipeline and returns the
// reply in the same response.
func (h *MessageHandler) SendMessage(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	msg := channel.InboundMessage{
		Channel:     channel.Web,
		ExternalID:  req.ExternalID,
		Tenant:      req.Tenant,
		Text:        req.Text,
		Kind:        channel.KindText,
		DisplayName: req.DisplayName,
	}
	if req.Timestamp > 0 {
		msg.Timestamp = time.Unix(req.Timestamp, 0).UTC()
	}

	outcome, err := h.processor.Process(c.Request().Context(), msg)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, MessageResponse{
		Text:    outcome.Reply.Text,
		Shape:   outcome.Reply.Shape,
		Actions: outcome.Reply.Actions,
		Payload: outcome.Payload,
		Meta: MessageMeta{
			IdentityID: outcome.LeadID,
			SessionID:  outcome.SessionID,
			LatencyMs:  outcome.Reply.LatencyMs,
			Usage:      outcome.Reply.Usage,
		},
	})
}
