package whatsapp

import (
	"strconv"
	"strings"
	"time"

	"github.com/leadwireai/leadwire/internal/channel"
)

// Event is the webhook notification envelope posted by the Cloud API.
type Event struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups changes for one business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one field update inside an entry.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue carries the messages and contact profiles of a change.
type ChangeValue struct {
	MessagingProduct string         `json:"messaging_product"`
	Metadata         ChangeMetadata `json:"metadata"`
	Contacts         []Contact      `json:"contacts"`
	Messages         []Message      `json:"messages"`
	Statuses         []StatusUpdate `json:"statuses"`
}

// ChangeMetadata identifies the receiving business number.
type ChangeMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender profile attached to a change.
type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

// Profile holds the sender's display name.
type Profile struct {
	Name string `json:"name"`
}

// Message is one inbound message within a change.
type Message struct {
	From        string              `json:"from"`
	ID          string              `json:"id"`
	Timestamp   string              `json:"timestamp"`
	Type        string              `json:"type"`
	Text        *TextPayload        `json:"text,omitempty"`
	Interactive *InteractivePayload `json:"interactive,omitempty"`
	Button      *ButtonPayload      `json:"button,omitempty"`
}

// TextPayload is the body of a text message.
type TextPayload struct {
	Body string `json:"body"`
}

// InteractivePayload is the reply to a button or list message.
type InteractivePayload struct {
	Type        string      `json:"type"`
	ButtonReply *ClickReply `json:"button_reply,omitempty"`
	ListReply   *ClickReply `json:"list_reply,omitempty"`
}

// ClickReply echoes the id and label of the tapped element.
type ClickReply struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ButtonPayload is the reply to a template quick-reply button.
type ButtonPayload struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// StatusUpdate reports delivery state for an outbound message. The pipeline
// does not act on these.
type StatusUpdate struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ExtractMessages flattens an event into normalized inbound messages.
// Clicks are remapped to their visible label so the pipeline sees them as
// text, with the tapped id preserved in metadata. Unsupported message kinds
// and status-only changes are skipped.
func ExtractMessages(event Event, tenant string) []channel.InboundMessage {
	var out []channel.InboundMessage
	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			names := contactNames(change.Value.Contacts)
			for _, msg := range change.Value.Messages {
				inbound, ok := normalizeMessage(msg, names, tenant)
				if !ok {
					continue
				}
				out = append(out, inbound)
			}
		}
	}
	return out
}

func contactNames(contacts []Contact) map[string]string {
	if len(contacts) == 0 {
		return nil
	}
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		if c.Profile.Name != "" {
			names[c.WaID] = c.Profile.Name
		}
	}
	return names
}

func normalizeMessage(msg Message, names map[string]string, tenant string) (channel.InboundMessage, bool) {
	inbound := channel.InboundMessage{
		Channel:     channel.WhatsApp,
		ExternalID:  msg.From,
		Tenant:      tenant,
		DisplayName: names[msg.From],
		Timestamp:   parseEpoch(msg.Timestamp),
		Metadata:    map[string]any{"message_id": msg.ID},
	}

	switch msg.Type {
	case "text":
		if msg.Text == nil || strings.TrimSpace(msg.Text.Body) == "" {
			return channel.InboundMessage{}, false
		}
		inbound.Kind = channel.KindText
		inbound.Text = msg.Text.Body
	case "interactive":
		if msg.Interactive == nil {
			return channel.InboundMessage{}, false
		}
		var reply *ClickReply
		switch msg.Interactive.Type {
		case "button_reply":
			reply = msg.Interactive.ButtonReply
			inbound.Kind = channel.KindButtonClick
		case "list_reply":
			reply = msg.Interactive.ListReply
			inbound.Kind = channel.KindListClick
		default:
			return channel.InboundMessage{}, false
		}
		if reply == nil || reply.Title == "" {
			return channel.InboundMessage{}, false
		}
		inbound.Text = reply.Title
		inbound.ActionID = reply.ID
		inbound.Metadata["action_id"] = reply.ID
	case "button":
		if msg.Button == nil || msg.Button.Text == "" {
			return channel.InboundMessage{}, false
		}
		inbound.Kind = channel.KindButtonClick
		inbound.Text = msg.Button.Text
		inbound.ActionID = msg.Button.Payload
		if msg.Button.Payload != "" {
			inbound.Metadata["action_id"] = msg.Button.Payload
		}
	default:
		return channel.InboundMessage{}, false
	}

	return inbound, true
}

func parseEpoch(raw string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
