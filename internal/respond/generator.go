package respond

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/leadwireai/leadwire/internal/completion"
	"github.com/leadwireai/leadwire/internal/conversation"
	"github.com/leadwireai/leadwire/internal/knowledge"
	"github.com/leadwireai/leadwire/internal/transcript"
)

// snippetLimit caps how many knowledge snippets are folded into a prompt.
const snippetLimit = 2

// clarifyingNote steers the completion back to a product overview when an
// identity question matched nothing in the knowledge corpus.
const clarifyingNote = "The customer is asking what this product or service is. Answer with a short, direct overview; do not repeat an earlier answer on a different topic."

// Generator produces one reply per inbound turn.
type Generator struct {
	completer completion.Completer
	retriever knowledge.Retriever
	business  string
	logger    *slog.Logger
}

// NewGenerator creates a response generator.
func NewGenerator(log *slog.Logger, completer completion.Completer, retriever knowledge.Retriever, businessName string) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{
		completer: completer,
		retriever: retriever,
		business:  businessName,
		logger:    log.With(slog.String("service", "respond")),
	}
}

// Generate builds the completion request for the turn, calls the
// completion service, and decides the suggested action: a marker embedded
// in the completion wins, otherwise the fallback rule table decides.
// Completion faults surface already classified; there is no retry here.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) (*Reply, error) {
	if in.Context == nil {
		return nil, fmt.Errorf("conversation context is required")
	}
	message := strings.TrimSpace(in.MessageText)

	block := ""
	if !isFastPath(message) {
		snippets, err := g.retriever.Search(ctx, message, snippetLimit)
		if err != nil {
			g.logger.Warn("knowledge retrieval failed", slog.Any("error", err))
		}
		block = knowledgeBlock(snippets)
		if block == "" && isClarificationQuestion(message) {
			block = clarifyingNote
		}
	}

	msgs := composeMessages(in.Context, g.business, block, message)
	started := time.Now()
	result, err := g.completer.Complete(ctx, completion.Request{Messages: msgs})
	if err != nil {
		return nil, err
	}
	latency := time.Since(started).Milliseconds()

	visible, label := parseActionMarker(result.Text)
	var action *Action
	if label != "" {
		action = &Action{ID: slugify(label), Label: label, Intent: inferIntent(label)}
	} else {
		action = SelectAction(RuleInput{
			Message: message,
			Reply:   visible,
			Ctx:     ruleContext(in.Context),
		})
	}

	reply := &Reply{
		Text:      visible,
		Shape:     ShapePlain,
		Actions:   []Action{},
		Urgency:   deriveUrgency(message),
		Usage:     result.Usage,
		Model:     result.Model,
		LatencyMs: latency,
	}
	if action != nil {
		reply.Shape = ShapeWithAction
		reply.Actions = append(reply.Actions, *action)
	}
	return reply, nil
}

func ruleContext(c *conversation.Context) RuleContext {
	return RuleContext{
		IsReturning:      c.IsReturning,
		HasBooking:       c.HasBooking,
		BookingConfirmed: c.Booking != nil && c.Booking.Confirmed,
	}
}

// composeMessages assembles the request: behavioral prompt, knowledge
// block, customer context note, the prior transcript window mapped onto
// chat roles, then the new message.
func composeMessages(cctx *conversation.Context, business, block, message string) []completion.Message {
	msgs := make([]completion.Message, 0, len(cctx.History)+4)
	msgs = append(msgs, completion.Message{
		Role:    completion.RoleSystem,
		Content: SystemPrompt(PromptParams{BusinessName: business, Phase: cctx.Phase}),
	})
	if block != "" {
		msgs = append(msgs, completion.Message{Role: completion.RoleSystem, Content: block})
	}
	if cctx.ContextNote != "" {
		msgs = append(msgs, completion.Message{
			Role:    completion.RoleSystem,
			Content: "Customer context:\n" + cctx.ContextNote,
		})
	}
	for _, entry := range cctx.History {
		switch entry.Role {
		case transcript.RoleCustomer:
			msgs = append(msgs, completion.Message{Role: completion.RoleUser, Content: entry.Content})
		case transcript.RoleAgent:
			msgs = append(msgs, completion.Message{Role: completion.RoleAssistant, Content: entry.Content})
		}
	}
	return append(msgs, completion.Message{Role: completion.RoleUser, Content: message})
}

func knowledgeBlock(snippets []knowledge.Snippet) string {
	if len(snippets) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant knowledge:\n")
	for _, sn := range snippets {
		fmt.Fprintf(&b, "\n%s\n%s\n", sn.Title, sn.Content)
	}
	return b.String()
}

var clarificationPhrases = []string{
	"what is this", "what's this", "who are you", "what do you do",
	"what are you", "tell me about your",
}

func isClarificationQuestion(msg string) bool {
	return containsAny(strings.ToLower(msg), clarificationPhrases)
}

// actionMarkerPattern matches the out-of-band marker and its label, which
// runs to the end of the line.
var actionMarkerPattern = regexp.MustCompile(`\[ACTION\][ \t]*([^\n]*)`)

var blankRunPattern = regexp.MustCompile(`\n{3,}`)

// parseActionMarker extracts the suggested action label from raw
// completion text. The marker may repeat; the last occurrence wins. All
// markers are stripped from the visible text.
func parseActionMarker(raw string) (visible, label string) {
	matches := actionMarkerPattern.FindAllStringSubmatch(raw, -1)
	if len(matches) > 0 {
		label = strings.TrimSpace(matches[len(matches)-1][1])
	}
	visible = actionMarkerPattern.ReplaceAllString(raw, "")
	visible = blankRunPattern.ReplaceAllString(visible, "\n\n")
	return strings.TrimSpace(visible), label
}
