package whatsapp

import (
	"fmt"
	"strings"

	"github.com/leadwireai/leadwire/internal/respond"
)

const (
	messagingProduct    = "whatsapp"
	recipientIndividual = "individual"

	maxButtons     = 3
	maxButtonTitle = 20

	defaultListButton  = "Choose an option"
	defaultTemplateLng = "en"
)

// Envelope is one Cloud API send-message request body.
type Envelope struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *TextBody    `json:"text,omitempty"`
	Interactive      *Interactive `json:"interactive,omitempty"`
	Template         *Template    `json:"template,omitempty"`
}

// TextBody is the plain text message body.
type TextBody struct {
	Body string `json:"body"`
}

// Interactive is a button, list, or carousel message.
type Interactive struct {
	Type   string             `json:"type"`
	Body   *InteractiveBody   `json:"body,omitempty"`
	Action *InteractiveAction `json:"action,omitempty"`
}

// InteractiveBody is the visible text of an interactive message.
type InteractiveBody struct {
	Text string `json:"text"`
}

// InteractiveAction holds the tappable parts of an interactive message.
type InteractiveAction struct {
	Buttons  []Button  `json:"buttons,omitempty"`
	Button   string    `json:"button,omitempty"`
	Sections []Section `json:"sections,omitempty"`
	Cards    []Card    `json:"cards,omitempty"`
}

// Button is one quick-reply button.
type Button struct {
	Type  string      `json:"type"`
	Reply ButtonReply `json:"reply"`
}

// ButtonReply is the id and label echoed back when a button is tapped.
type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Section groups rows of a single-select list.
type Section struct {
	Title string    `json:"title,omitempty"`
	Rows  []ListRow `json:"rows"`
}

// ListRow is one selectable row of a list message.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Card is one item of a catalog-style carousel.
type Card struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ListItem is the input shape for list messages.
type ListItem struct {
	ID          string
	Title       string
	Description string
}

// CarouselItem is the input shape for carousel messages.
type CarouselItem struct {
	ID    string
	Title string
}

func envelope(to, kind string) Envelope {
	return Envelope{
		MessagingProduct: messagingProduct,
		RecipientType:    recipientIndividual,
		To:               to,
		Type:             kind,
	}
}

// FormatText renders a plain text envelope.
func FormatText(to, text string) Envelope {
	env := envelope(to, "text")
	env.Text = &TextBody{Body: Sanitize(text)}
	return env
}

// FormatButtons renders an interactive envelope with up to three reply
// buttons. Labels are truncated to the channel's 20-character cap; ids are
// derived from index plus slugified label unless supplied.
func FormatButtons(to, text string, actions []respond.Action) Envelope {
	buttons := make([]Button, 0, maxButtons)
	for i, action := range actions {
		if i >= maxButtons {
			break
		}
		id := action.ID
		if id == "" {
			id = fmt.Sprintf("%d-%s", i, slugify(action.Label))
		}
		buttons = append(buttons, Button{
			Type:  "reply",
			Reply: ButtonReply{ID: id, Title: truncateRunes(Sanitize(action.Label), maxButtonTitle)},
		})
	}
	if len(buttons) == 0 {
		return FormatText(to, text)
	}

	env := envelope(to, "interactive")
	env.Interactive = &Interactive{
		Type:   "button",
		Body:   &InteractiveBody{Text: Sanitize(text)},
		Action: &InteractiveAction{Buttons: buttons},
	}
	return env
}

// FormatList renders a single-select list envelope.
func FormatList(to, text, buttonLabel string, items []ListItem) Envelope {
	if strings.TrimSpace(buttonLabel) == "" {
		buttonLabel = defaultListButton
	}
	rows := make([]ListRow, 0, len(items))
	for i, item := range items {
		id := item.ID
		if id == "" {
			id = fmt.Sprintf("%d-%s", i, slugify(item.Title))
		}
		rows = append(rows, ListRow{
			ID:          id,
			Title:       truncateRunes(Sanitize(item.Title), maxButtonTitle),
			Description: Sanitize(item.Description),
		})
	}

	env := envelope(to, "interactive")
	env.Interactive = &Interactive{
		Type:   "list",
		Body:   &InteractiveBody{Text: Sanitize(text)},
		Action: &InteractiveAction{
			Button:   truncateRunes(Sanitize(buttonLabel), maxButtonTitle),
			Sections: []Section{{Rows: rows}},
		},
	}
	return env
}

// FormatCarousel renders a catalog-style envelope.
func FormatCarousel(to, text string, items []CarouselItem) Envelope {
	cards := make([]Card, 0, len(items))
	for i, item := range items {
		id := item.ID
		if id == "" {
			id = fmt.Sprintf("%d-%s", i, slugify(item.Title))
		}
		cards = append(cards, Card{ID: id, Title: Sanitize(item.Title)})
	}

	env := envelope(to, "interactive")
	env.Interactive = &Interactive{
		Type:   "carousel",
		Body:   &InteractiveBody{Text: Sanitize(text)},
		Action: &InteractiveAction{Cards: cards},
	}
	return env
}

// FormatTemplate renders a named-template reference with positional body
// parameters.
func FormatTemplate(to, name, language string, params []string) Envelope {
	if strings.TrimSpace(language) == "" {
		language = defaultTemplateLng
	}
	env := envelope(to, "template")
	tpl := &Template{Name: name, Language: TemplateLanguage{Code: language}}
	if len(params) > 0 {
		parameters := make([]TemplateParameter, 0, len(params))
		for _, p := range params {
			parameters = append(parameters, TemplateParameter{Type: "text", Text: Sanitize(p)})
		}
		tpl.Components = []TemplateComponent{{Type: "body", Parameters: parameters}}
	}
	env.Template = tpl
	return env
}

// Template is a named-template reference.
type Template struct {
	Name       string              `json:"name"`
	Language   TemplateLanguage    `json:"language"`
	Components []TemplateComponent `json:"components,omitempty"`
}

// TemplateLanguage selects the template translation.
type TemplateLanguage struct {
	Code string `json:"code"`
}

// TemplateComponent carries positional parameters for one template part.
type TemplateComponent struct {
	Type       string              `json:"type"`
	Parameters []TemplateParameter `json:"parameters"`
}

// TemplateParameter is one positional template value.
type TemplateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Formatter renders generated replies into Cloud API envelopes.
type Formatter struct{}

// NewFormatter creates the reply renderer for this channel.
func NewFormatter() *Formatter { return &Formatter{} }

// Render maps a reply onto its wire shape: interactive buttons when an
// action is attached, plain text otherwise.
func (f *Formatter) Render(externalID string, reply *respond.Reply) (any, error) {
	if reply == nil {
		return nil, fmt.Errorf("reply is required")
	}
	if reply.Shape == respond.ShapeWithAction && len(reply.Actions) > 0 {
		return FormatButtons(externalID, reply.Text, reply.Actions), nil
	}
	return FormatText(externalID, reply.Text), nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func slugify(s string) string {
	var b strings.Builder
	prevDash := true
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevDash = false
		} else if !prevDash {
			b.WriteByte('-')
			prevDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
