package respond

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longReply(words int) string {
	return strings.TrimSpace(strings.Repeat("word ", words))
}

func TestRuleAckMessageNoAction(t *testing.T) {
	for _, msg := range []string{"ok", "Thanks!", "sounds good", "got it."} {
		action := SelectAction(RuleInput{Message: msg, Reply: "Glad to help."})
		assert.Nil(t, action, "message %q", msg)
	}
}

func TestRulePricedReplyNoAction(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "price?",
		Reply:   "The Basic plan is $29/month and the Pro plan is $99/month.",
	})
	assert.Nil(t, action, "two price figures already stated")
}

func TestRulePricedReplySingleFigureFallsThrough(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "what is the price",
		Reply:   "The Basic plan starts at $29.",
	})
	require.NotNil(t, action)
	assert.Equal(t, "view plans", action.Label)
	assert.Equal(t, IntentPricing, action.Intent)
}

func TestRuleBookedLongReplyNoAction(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "tell me everything about onboarding",
		Reply:   longReply(45),
		Ctx:     RuleContext{HasBooking: true, BookingConfirmed: true},
	})
	assert.Nil(t, action)
}

func TestRuleReplyAsksQuestionNoAction(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "I need help with setup",
		Reply:   "Which platform are you deploying on?",
	})
	assert.Nil(t, action, "reply already poses a follow-up question")
}

func TestRulePricingShortReply(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "how much does it cost",
		Reply:   "Plans start low and scale with usage.",
	})
	require.NotNil(t, action)
	assert.Equal(t, "view plans", action.Label)
	assert.Equal(t, "view-plans", action.ID)
}

func TestRulePricingLongReplyFallsThrough(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "how much does it cost",
		Reply:   longReply(35),
	})
	require.NotNil(t, action, "falls through to the new-caller default")
	assert.Equal(t, "learn more", action.Label)
}

func TestRuleSetupRequest(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "how do I set up the integration",
		Reply:   "It takes about ten minutes end to end.",
	})
	require.NotNil(t, action)
	assert.Equal(t, "get started", action.Label)
	assert.Equal(t, IntentOnboarding, action.Intent)
}

func TestRuleHumanRequest(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "can I talk to someone from sales",
		Reply:   "Of course, happy to connect you.",
	})
	require.NotNil(t, action)
	assert.Equal(t, "talk to team", action.Label)
	assert.Equal(t, IntentHandoff, action.Intent)
}

func TestRuleBookedCallerShortElaboratingReply(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "anything else I should know",
		Reply:   "A few things stand out. Happy to share more detail if useful.",
		Ctx:     RuleContext{HasBooking: true},
	})
	require.NotNil(t, action)
	assert.Equal(t, "more details", action.Label)
}

func TestRuleBookedCallerPlainReplyNoAction(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "anything else I should know",
		Reply:   "Everything is set for your call.",
		Ctx:     RuleContext{HasBooking: true},
	})
	assert.Nil(t, action)
}

func TestRuleReturningCallerDemoInvite(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "I'd like to see it in practice",
		Reply:   "I can walk you through a quick demo of the dashboard.",
		Ctx:     RuleContext{IsReturning: true},
	})
	require.NotNil(t, action)
	assert.Equal(t, "book demo", action.Label)
	assert.Equal(t, IntentBooking, action.Intent)
}

func TestRuleReturningCallerPlainReplyNoAction(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "what changed since last month",
		Reply:   "We shipped faster exports and a new audit log.",
		Ctx:     RuleContext{IsReturning: true},
	})
	assert.Nil(t, action)
}

func TestRuleNewCallerGreeting(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "Hello",
		Reply:   "Hi! I'm the assistant here to help with plans and setup.",
	})
	require.NotNil(t, action)
	assert.Equal(t, "learn more", action.Label)
	assert.Equal(t, IntentInfo, action.Intent)
}

func TestRuleNewCallerFeatureQuestionShortReply(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "does it handle multiple channels",
		Reply:   "Yes, every channel feeds one shared history.",
	})
	require.NotNil(t, action)
	assert.Equal(t, "see demo", action.Label)
	assert.Equal(t, IntentDemo, action.Intent)
}

func TestRuleNewCallerViewInvite(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "send me the case studies",
		Reply:   "You can check out our customer stories on the site.",
	})
	require.NotNil(t, action)
	assert.Equal(t, "book demo", action.Label)
}

func TestRuleNewCallerDefault(t *testing.T) {
	action := SelectAction(RuleInput{
		Message: "we are a logistics company",
		Reply:   "That's a great fit for automated follow-ups.",
	})
	require.NotNil(t, action)
	assert.Equal(t, "learn more", action.Label)
}

func TestSelectActionDeterministic(t *testing.T) {
	in := RuleInput{
		Message: "how much does it cost",
		Reply:   "Plans start low and scale with usage.",
		Ctx:     RuleContext{IsReturning: true},
	}
	first := SelectAction(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, SelectAction(in))
	}
}

func TestRuleOrderIsStable(t *testing.T) {
	names := make([]string, 0)
	for _, r := range Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"ack-message", "priced-reply", "booked-long-reply", "reply-asks-question",
		"pricing-short-reply", "setup-request", "human-request",
		"booked-caller", "returning-caller", "new-caller", "default",
	}, names)
}

func TestCountPriceFigures(t *testing.T) {
	tests := []struct {
		reply string
		want  int
	}{
		{reply: "It costs $29/month for Basic and $99/month for Pro.", want: 2},
		{reply: "Rs. 999 per seat, billed yearly.", want: 1},
		{reply: "Pricing depends on your team size.", want: 0},
		{reply: "About 500 per month, or €5,400 a year.", want: 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, countPriceFigures(tt.reply), "reply %q", tt.reply)
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "view-plans", slugify("View Plans"))
	assert.Equal(t, "book-demo", slugify("  Book  Demo! "))
	assert.Equal(t, "talk-to-team", slugify("talk to team"))
}

func TestInferIntent(t *testing.T) {
	assert.Equal(t, IntentPricing, inferIntent("View Plans"))
	assert.Equal(t, IntentBooking, inferIntent("book demo"))
	assert.Equal(t, IntentDemo, inferIntent("see demo"))
	assert.Equal(t, IntentHandoff, inferIntent("talk to team"))
	assert.Equal(t, IntentInfo, inferIntent("learn more"))
}

func TestDeriveUrgency(t *testing.T) {
	assert.Equal(t, UrgencyUrgent, deriveUrgency("need this fixed ASAP"))
	assert.Equal(t, UrgencyHigh, deriveUrgency("can we close this today"))
	assert.Equal(t, UrgencyNormal, deriveUrgency("just browsing plans"))
}

func TestIsFastPath(t *testing.T) {
	assert.True(t, isFastPath("Hello"))
	assert.True(t, isFastPath("thanks"))
	assert.False(t, isFastPath("hello, how much does the pro plan cost?"))
}
