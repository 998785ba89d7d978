package respond

import (
	"regexp"
	"strings"
)

// Reply-length thresholds for the fallback rules, in words.
const (
	shortReplyWords = 30
	longReplyWords  = 40
)

// RuleInput is what one fallback rule sees: the latest customer message,
// the visible reply text with markers already stripped, and the turn
// context.
type RuleInput struct {
	Message string
	Reply   string
	Ctx     RuleContext
}

// RuleContext is the slice of conversation state the rules read.
type RuleContext struct {
	IsReturning      bool
	HasBooking       bool
	BookingConfirmed bool
}

// Rule is one row of the fallback table. Decide reports whether the rule
// settles the outcome and, if so, which action to attach (nil for none).
type Rule struct {
	Name   string
	Decide func(in RuleInput) (decided bool, action *Action)
}

// Rules returns the ordered fallback table used when the completion text
// carries no action marker. Evaluation is top to bottom; the first rule
// that decides wins, so identical inputs always yield identical outcomes.
func Rules() []Rule {
	return []Rule{
		{Name: "ack-message", Decide: func(in RuleInput) (bool, *Action) {
			return isAcknowledgement(in.Message), nil
		}},
		{Name: "priced-reply", Decide: func(in RuleInput) (bool, *Action) {
			return countPriceFigures(in.Reply) >= 2, nil
		}},
		{Name: "booked-long-reply", Decide: func(in RuleInput) (bool, *Action) {
			return in.Ctx.BookingConfirmed && wordCount(in.Reply) > longReplyWords, nil
		}},
		{Name: "reply-asks-question", Decide: func(in RuleInput) (bool, *Action) {
			return strings.Contains(in.Reply, "?"), nil
		}},
		{Name: "pricing-short-reply", Decide: func(in RuleInput) (bool, *Action) {
			if isPricingMessage(in.Message) && wordCount(in.Reply) < shortReplyWords {
				return true, newAction("view plans", IntentPricing)
			}
			return false, nil
		}},
		{Name: "setup-request", Decide: func(in RuleInput) (bool, *Action) {
			if isSetupRequest(in.Message) {
				return true, newAction("get started", IntentOnboarding)
			}
			return false, nil
		}},
		{Name: "human-request", Decide: func(in RuleInput) (bool, *Action) {
			if asksForHuman(in.Message) {
				return true, newAction("talk to team", IntentHandoff)
			}
			return false, nil
		}},
		{Name: "booked-caller", Decide: func(in RuleInput) (bool, *Action) {
			if !in.Ctx.HasBooking {
				return false, nil
			}
			if wordCount(in.Reply) < shortReplyWords && offersToElaborate(in.Reply) {
				return true, newAction("more details", IntentInfo)
			}
			return true, nil
		}},
		{Name: "returning-caller", Decide: func(in RuleInput) (bool, *Action) {
			if !in.Ctx.IsReturning || in.Ctx.HasBooking {
				return false, nil
			}
			if invitesDemo(in.Reply) {
				return true, newAction("book demo", IntentBooking)
			}
			return true, nil
		}},
		{Name: "new-caller", Decide: func(in RuleInput) (bool, *Action) {
			if in.Ctx.IsReturning {
				return false, nil
			}
			switch {
			case isGreeting(in.Message):
				return true, newAction("learn more", IntentInfo)
			case isFeatureQuestion(in.Message) && wordCount(in.Reply) < shortReplyWords:
				return true, newAction("see demo", IntentDemo)
			case invitesToView(in.Reply):
				return true, newAction("book demo", IntentBooking)
			default:
				return true, newAction("learn more", IntentInfo)
			}
		}},
		{Name: "default", Decide: func(in RuleInput) (bool, *Action) {
			return true, nil
		}},
	}
}

// SelectAction runs the fallback table and returns the winning action, or
// nil for a plain reply.
func SelectAction(in RuleInput) *Action {
	for _, rule := range Rules() {
		if decided, action := rule.Decide(in); decided {
			return action
		}
	}
	return nil
}

func newAction(label, intent string) *Action {
	return &Action{ID: slugify(label), Label: label, Intent: intent}
}

// inferIntent classifies a model-supplied action label.
func inferIntent(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "plan") || strings.Contains(l, "pric"):
		return IntentPricing
	case strings.Contains(l, "start") || strings.Contains(l, "setup") || strings.Contains(l, "onboard"):
		return IntentOnboarding
	case strings.Contains(l, "team") || strings.Contains(l, "human") || strings.Contains(l, "call"):
		return IntentHandoff
	case strings.Contains(l, "book"):
		return IntentBooking
	case strings.Contains(l, "demo"):
		return IntentDemo
	default:
		return IntentInfo
	}
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

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// normalizeShort lowercases, strips punctuation, and collapses whitespace
// for exact-phrase matching of short messages.
func normalizeShort(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' || r == '\'' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var greetingPhrases = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "yo": {}, "namaste": {}, "greetings": {},
	"good morning": {}, "good afternoon": {}, "good evening": {},
	"hi there": {}, "hello there": {}, "hey there": {},
	"hi team": {}, "hello team": {},
}

var acknowledgements = map[string]struct{}{
	"ok": {}, "okay": {}, "k": {}, "kk": {}, "cool": {}, "great": {}, "nice": {},
	"thanks": {}, "thank you": {}, "thx": {}, "ty": {}, "sure": {}, "fine": {},
	"got it": {}, "alright": {}, "sounds good": {}, "perfect": {}, "noted": {},
	"ok thanks": {}, "okay thanks": {}, "thanks a lot": {},
}

func isGreeting(msg string) bool {
	_, ok := greetingPhrases[normalizeShort(msg)]
	return ok
}

func isAcknowledgement(msg string) bool {
	_, ok := acknowledgements[normalizeShort(msg)]
	return ok
}

// isFastPath reports whether the message can skip knowledge retrieval.
func isFastPath(msg string) bool {
	return isGreeting(msg) || isAcknowledgement(msg)
}

// priceFigurePattern matches a concrete price statement: a currency-marked
// amount, or a number tied to a billing period or unit.
var priceFigurePattern = regexp.MustCompile(`(?i)(?:\$|€|£|₹|rs\.?\s*|inr\s*|usd\s*)\d[\d,]*(?:\.\d+)?|\b\d[\d,]*(?:\.\d+)?\s*(?:/\s*(?:mo|month|user|seat|yr|year)|per\s+(?:month|user|seat|year)|a\s+month)`)

func countPriceFigures(reply string) int {
	return len(priceFigurePattern.FindAllString(reply, -1))
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

var pricingWords = []string{
	"price", "pricing", "cost", "how much", "quote", "plans", "charges", "fees", "subscription",
}

func isPricingMessage(msg string) bool {
	return containsAny(strings.ToLower(msg), pricingWords)
}

var setupWords = []string{
	"setup", "set up", "install", "deploy", "deployment", "get started",
	"getting started", "onboard", "implementation", "integrate", "how do i start",
}

func isSetupRequest(msg string) bool {
	return containsAny(strings.ToLower(msg), setupWords)
}

var humanWords = []string{
	"human", "representative", "real person", "speak to someone", "talk to someone",
	"speak with someone", "sales rep", "call me", "customer care", "support team",
}

func asksForHuman(msg string) bool {
	return containsAny(strings.ToLower(msg), humanWords)
}

var featureWords = []string{
	"feature", "can it", "does it", "how does", "what can", "capabilit", "support for",
}

func isFeatureQuestion(msg string) bool {
	return containsAny(strings.ToLower(msg), featureWords)
}

var elaborateWords = []string{
	"would you like", "want to know more", "happy to share", "let me know if",
	"can tell you more", "shall i", "want me to", "more detail",
}

func offersToElaborate(reply string) bool {
	return containsAny(strings.ToLower(reply), elaborateWords)
}

var demoWords = []string{
	"demo", "demonstration", "walk you through", "walkthrough", "show you",
}

func invitesDemo(reply string) bool {
	return containsAny(strings.ToLower(reply), demoWords)
}

var viewWords = []string{
	"take a look", "check out", "have a look", "you can view", "view the",
	"view our", "see our", "visit our", "browse",
}

func invitesToView(reply string) bool {
	return containsAny(strings.ToLower(reply), viewWords)
}

var urgentWords = []string{"urgent", "asap", "immediately", "right now", "emergency"}

var highWords = []string{"today", "soon", "quickly", "this week", "eod"}

// deriveUrgency tags the customer message by keyword.
func deriveUrgency(msg string) string {
	lower := strings.ToLower(msg)
	if containsAny(lower, urgentWords) {
		return UrgencyUrgent
	}
	if containsAny(lower, highWords) {
		return UrgencyHigh
	}
	return UrgencyNormal
}
