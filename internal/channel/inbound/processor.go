// Package inbound runs the per-message reply pipeline: build the
// conversation context, log the customer message, generate a reply,
// render it for the channel, deliver when the channel has a sender, and
// log the agent reply.
package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leadwireai/leadwire/internal/analytics"
	"github.com/leadwireai/leadwire/internal/booking"
	"github.com/leadwireai/leadwire/internal/channel"
	"github.com/leadwireai/leadwire/internal/conversation"
	"github.com/leadwireai/leadwire/internal/dispatch"
	"github.com/leadwireai/leadwire/internal/faults"
	"github.com/leadwireai/leadwire/internal/identity"
	"github.com/leadwireai/leadwire/internal/respond"
	"github.com/leadwireai/leadwire/internal/transcript"
)

// ContextBuilder assembles the cross-channel context for one message.
type ContextBuilder interface {
	Build(ctx context.Context, channel, externalID, tenant string, hint identity.Hint) (*conversation.Context, error)
}

// ReplyGenerator produces the reply for one turn.
type ReplyGenerator interface {
	Generate(ctx context.Context, in respond.GenerateInput) (*respond.Reply, error)
}

type sessionBumper interface {
	IncrementMessageCount(ctx context.Context, sessionID string) (int, error)
}

type usageRecorder interface {
	Record(ctx context.Context, input analytics.RecordInput) error
}

type faultSink interface {
	Capture(source string, err error)
}

// Tapping a quick reply whose id carries this fragment places a booking hold.
const bookingActionFragment = "book-demo"

// Processor runs one inbound message through the reply pipeline. Steps
// are sequential with no cross-step transaction; a crash mid-pipeline can
// leave a customer entry without a paired agent entry, and such messages
// are never retried.
type Processor struct {
	logger    *slog.Logger
	builder   ContextBuilder
	generator ReplyGenerator
	sessions  sessionBumper
	entries   transcript.Log
	bookings  booking.Service
	registry  *channel.Registry
	recorder  usageRecorder
	errors    faultSink
}

// NewProcessor creates the pipeline with its required collaborators.
func NewProcessor(
	log *slog.Logger,
	builder ContextBuilder,
	generator ReplyGenerator,
	sessions sessionBumper,
	entries transcript.Log,
	bookings booking.Service,
	registry *channel.Registry,
) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		logger:    log.With(slog.String("component", "inbound_pipeline")),
		builder:   builder,
		generator: generator,
		sessions:  sessions,
		entries:   entries,
		bookings:  bookings,
		registry:  registry,
	}
}

// SetRecorder configures best-effort usage recording.
func (p *Processor) SetRecorder(recorder usageRecorder) {
	if p == nil {
		return
	}
	p.recorder = recorder
}

// SetErrorLog configures diagnostics capture for pipeline failures.
func (p *Processor) SetErrorLog(sink faultSink) {
	if p == nil {
		return
	}
	p.errors = sink
}

// Outcome reports what one processing cycle produced.
type Outcome struct {
	Reply      *respond.Reply
	Payload    any
	LeadID     string
	SessionID  string
	EntryID    string
	ProviderID string
}

// Process runs the full cycle for one message.
func (p *Processor) Process(ctx context.Context, msg channel.InboundMessage) (*Outcome, error) {
	outcome, err := p.process(ctx, msg)
	if err != nil && p.errors != nil {
		p.errors.Capture("pipeline", err)
	}
	return outcome, err
}

func (p *Processor) process(ctx context.Context, msg channel.InboundMessage) (*Outcome, error) {
	if strings.TrimSpace(msg.Text) == "" {
		return nil, faults.Validation("message text is required")
	}
	renderer, ok := p.registry.RendererFor(msg.Channel)
	if !ok {
		return nil, fmt.Errorf("no renderer registered for channel %q", msg.Channel)
	}

	bctx, err := p.builder.Build(ctx, msg.Channel, msg.ExternalID, msg.Tenant, identity.Hint{
		Channel:     msg.Channel,
		DisplayName: msg.DisplayName,
		Metadata:    msg.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}

	if _, err := p.sessions.IncrementMessageCount(ctx, bctx.Session.ID); err != nil {
		p.logger.Warn("bump session counter",
			slog.String("session_id", bctx.Session.ID),
			slog.Any("error", err),
		)
	}

	if _, err := p.entries.Append(ctx, transcript.AppendInput{
		LeadID:   bctx.Lead.ID,
		Channel:  msg.Channel,
		Role:     transcript.RoleCustomer,
		Content:  msg.Text,
		Kind:     transcriptKind(msg.Kind),
		Metadata: customerMetadata(msg),
	}); err != nil {
		return nil, fmt.Errorf("log customer message: %w", err)
	}

	p.applyClickEffects(ctx, bctx, msg)

	reply, err := p.generator.Generate(ctx, respond.GenerateInput{
		Context:     bctx,
		MessageText: msg.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	payload, err := renderer.Render(msg.ExternalID, reply)
	if err != nil {
		return nil, fmt.Errorf("render reply: %w", err)
	}

	providerID := ""
	if sender, ok := p.registry.SenderFor(msg.Channel); ok {
		providerID, err = sender.Send(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("deliver reply: %w", err)
		}
	}

	agentEntry, err := p.entries.Append(ctx, transcript.AppendInput{
		LeadID:   bctx.Lead.ID,
		Channel:  msg.Channel,
		Role:     transcript.RoleAgent,
		Content:  reply.Text,
		Kind:     transcript.KindText,
		Metadata: agentMetadata(reply, providerID),
	})
	if err != nil {
		return nil, fmt.Errorf("log agent reply: %w", err)
	}

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, analytics.RecordInput{
			LeadID:    bctx.Lead.ID,
			SessionID: bctx.Session.ID,
			EntryID:   agentEntry.ID,
			Channel:   msg.Channel,
			Model:     reply.Model,
			Usage:     reply.Usage,
			LatencyMs: reply.LatencyMs,
		}); err != nil {
			p.logger.Warn("record usage",
				slog.String("entry_id", agentEntry.ID),
				slog.Any("error", err),
			)
		}
	}

	p.logger.Info("message processed",
		slog.String("channel", msg.Channel),
		slog.String("lead_id", bctx.Lead.ID),
		slog.String("session_id", bctx.Session.ID),
		slog.String("phase", bctx.Phase),
		slog.String("shape", reply.Shape),
		slog.Int64("latency_ms", reply.LatencyMs),
	)

	return &Outcome{
		Reply:      reply,
		Payload:    payload,
		LeadID:     bctx.Lead.ID,
		SessionID:  bctx.Session.ID,
		EntryID:    agentEntry.ID,
		ProviderID: providerID,
	}, nil
}

// applyClickEffects places a tentative booking hold when the customer
// tapped a book-demo action. Failures never block the reply.
func (p *Processor) applyClickEffects(ctx context.Context, bctx *conversation.Context, msg channel.InboundMessage) {
	if msg.Kind != channel.KindButtonClick && msg.Kind != channel.KindListClick {
		return
	}
	if !strings.Contains(msg.ActionID, bookingActionFragment) {
		return
	}
	if bctx.HasBooking || p.bookings == nil {
		return
	}
	note := fmt.Sprintf("requested via %s quick reply", msg.Channel)
	if _, err := p.bookings.Hold(ctx, bctx.Lead.ID, note); err != nil {
		p.logger.Warn("hold booking",
			slog.String("lead_id", bctx.Lead.ID),
			slog.Any("error", err),
		)
		return
	}
	p.logger.Info("booking hold placed",
		slog.String("lead_id", bctx.Lead.ID),
		slog.String("action_id", msg.ActionID),
	)
}

// HandleTask adapts queued webhook tasks onto Process. The error return
// feeds the dispatcher's failure log; tasks are not retried.
func (p *Processor) HandleTask(ctx context.Context, task dispatch.Task) error {
	if task.Kind != channel.TaskInbound {
		return fmt.Errorf("unknown task kind %q", task.Kind)
	}
	var msg channel.InboundMessage
	if err := json.Unmarshal(task.Payload, &msg); err != nil {
		return fmt.Errorf("decode inbound task: %w", err)
	}
	_, err := p.Process(ctx, msg)
	return err
}

func transcriptKind(kind string) string {
	switch kind {
	case channel.KindButtonClick:
		return transcript.KindButtonClick
	case channel.KindListClick:
		return transcript.KindListClick
	default:
		return transcript.KindText
	}
}

func customerMetadata(msg channel.InboundMessage) map[string]any {
	meta := make(map[string]any, len(msg.Metadata)+1)
	for k, v := range msg.Metadata {
		meta[k] = v
	}
	if msg.ActionID != "" {
		meta["action_id"] = msg.ActionID
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func agentMetadata(reply *respond.Reply, providerID string) map[string]any {
	meta := map[string]any{
		"shape":   reply.Shape,
		"urgency": reply.Urgency,
	}
	if len(reply.Actions) > 0 {
		actions := make([]map[string]any, 0, len(reply.Actions))
		for _, a := range reply.Actions {
			actions = append(actions, map[string]any{"id": a.ID, "label": a.Label, "intent": a.Intent})
		}
		meta["actions"] = actions
	}
	if providerID != "" {
		meta["provider_message_id"] = providerID
	}
	return meta
}
