package conversation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leadwireai/leadwire/internal/identity"
	"github.com/leadwireai/leadwire/internal/transcript"
)

const (
	historyWindow   = 20
	summaryWindow   = 10
	summaryMaxRunes = 300
	interestCap     = 5
	fragmentWidth   = 40
)

// domainKeywords is the fixed set scanned for interests and topic summaries.
var domainKeywords = []string{
	"pricing", "price", "cost", "plan", "subscription",
	"demo", "trial", "onboarding", "setup", "integration",
	"api", "security", "compliance", "support", "migration",
	"billing", "enterprise", "feature", "deployment", "training",
}

var bookingKeywords = []string{
	"book", "schedule", "appointment", "meeting", "calendar", "reschedule", "slot",
}

var priceKeywords = []string{
	"price", "pricing", "cost", "how much", "quote",
}

// newestFirst returns a reversed copy of an oldest-first window.
func newestFirst(entries []transcript.Entry) []transcript.Entry {
	out := make([]transcript.Entry, len(entries))
	for i, entry := range entries {
		out[len(entries)-1-i] = entry
	}
	return out
}

// deriveInterests scans the window for domain keywords and captures a short
// surrounding fragment per hit. One interest per keyword, most recent hit
// first, capped at interestCap.
func deriveInterests(newest []transcript.Entry) []string {
	seen := make(map[string]struct{})
	var interests []string
	for _, entry := range newest {
		lower := strings.ToLower(entry.Content)
		for _, kw := range domainKeywords {
			if _, done := seen[kw]; done {
				continue
			}
			idx := wordIndex(lower, kw)
			if idx < 0 {
				continue
			}
			seen[kw] = struct{}{}
			interests = append(interests, fragmentAround(lower, idx, len(kw)))
			if len(interests) >= interestCap {
				return interests
			}
		}
	}
	return interests
}

// wordIndex returns the byte offset of the first whole-word occurrence of
// word in s, or -1. A hit inside a longer word does not count, so "price"
// never matches "pricing".
func wordIndex(s, word string) int {
	for offset := 0; ; {
		idx := strings.Index(s[offset:], word)
		if idx < 0 {
			return -1
		}
		idx += offset
		if wordBoundary(s, idx, len(word)) {
			return idx
		}
		offset = idx + 1
	}
}

func wordBoundary(s string, idx, length int) bool {
	if idx > 0 && isWordByte(s[idx-1]) {
		return false
	}
	if end := idx + length; end < len(s) && isWordByte(s[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func fragmentAround(s string, idx, matchLen int) string {
	start := idx - fragmentWidth
	if start < 0 {
		start = 0
	}
	end := idx + matchLen + fragmentWidth
	if end > len(s) {
		end = len(s)
	}
	return strings.TrimSpace(strings.ToValidUTF8(s[start:end], ""))
}

// derivePhase maps the count of prior messages on the session to a phase.
func derivePhase(messageCount int) string {
	switch {
	case messageCount == 0:
		return PhaseDiscoveryEntry
	case messageCount < 3:
		return PhaseDiscovery
	case messageCount < 8:
		return PhaseEvaluation
	default:
		return PhaseClosing
	}
}

// deriveSummary pattern-matches the newest summaryWindow messages in
// priority order: scheduling mentions, then price mentions, then topic
// keywords, else the latest customer message verbatim.
func deriveSummary(newest []transcript.Entry) string {
	window := newest
	if len(window) > summaryWindow {
		window = window[:summaryWindow]
	}
	if m := firstMention(window, bookingKeywords); m != "" {
		return truncateWithEllipsis("Customer discussed scheduling: "+m, summaryMaxRunes)
	}
	if m := firstMention(window, priceKeywords); m != "" {
		return truncateWithEllipsis("Customer asked about pricing: "+m, summaryMaxRunes)
	}
	if topics := topicsIn(window); len(topics) > 0 {
		return truncateWithEllipsis("Topics discussed: "+strings.Join(topics, ", "), summaryMaxRunes)
	}
	for _, entry := range window {
		if entry.Role == transcript.RoleCustomer {
			return truncateWithEllipsis("Latest message: "+strings.TrimSpace(entry.Content), summaryMaxRunes)
		}
	}
	return ""
}

// firstMention returns the newest message containing any of the keywords.
func firstMention(window []transcript.Entry, keywords []string) string {
	for _, entry := range window {
		lower := strings.ToLower(entry.Content)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return strings.TrimSpace(entry.Content)
			}
		}
	}
	return ""
}

func topicsIn(window []transcript.Entry) []string {
	seen := make(map[string]struct{})
	var topics []string
	for _, entry := range window {
		lower := strings.ToLower(entry.Content)
		for _, kw := range domainKeywords {
			if _, done := seen[kw]; done {
				continue
			}
			if wordIndex(lower, kw) >= 0 {
				seen[kw] = struct{}{}
				topics = append(topics, kw)
			}
		}
	}
	return topics
}

func truncateWithEllipsis(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

type noteInput struct {
	channel    string
	summary    string
	interests  []string
	stored     map[string]identity.ChannelContext
	returning  bool
	hasBooking bool
}

// composeNote merges the fresh summary and interests with whatever earlier
// channels stored on the lead into one block of model guidance, closing
// with the new-vs-returning greeting instruction and the booking state.
func composeNote(in noteInput) string {
	var b strings.Builder
	if in.summary != "" {
		b.WriteString("Conversation so far: ")
		b.WriteString(in.summary)
		b.WriteString("\n")
	}
	for _, ch := range sortedChannels(in.stored) {
		if ch == in.channel {
			continue
		}
		if s, ok := in.stored[ch]["summary"].(string); ok && strings.TrimSpace(s) != "" {
			fmt.Fprintf(&b, "Earlier on %s: %s\n", ch, strings.TrimSpace(s))
		}
	}
	if interests := mergeInterests(in.interests, in.stored, in.channel); len(interests) > 0 {
		b.WriteString("Customer interests: ")
		b.WriteString(strings.Join(interests, "; "))
		b.WriteString("\n")
	}
	if in.returning {
		b.WriteString("This is a returning customer. Do not introduce yourself again; continue the ongoing conversation.\n")
	} else {
		b.WriteString("This is a new customer. Greet them warmly and introduce yourself briefly.\n")
	}
	if in.hasBooking {
		b.WriteString("An active booking already exists for this customer; do not push for another one.")
	} else {
		b.WriteString("No booking exists for this customer yet.")
	}
	return b.String()
}

// mergeInterests appends other channels' stored interests after the fresh
// ones, deduplicated.
func mergeInterests(fresh []string, stored map[string]identity.ChannelContext, channel string) []string {
	seen := make(map[string]struct{}, len(fresh))
	merged := make([]string, 0, len(fresh))
	for _, it := range fresh {
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		merged = append(merged, it)
	}
	for _, ch := range sortedChannels(stored) {
		if ch == channel {
			continue
		}
		for _, it := range storedInterests(stored[ch]) {
			if _, dup := seen[it]; dup {
				continue
			}
			seen[it] = struct{}{}
			merged = append(merged, it)
		}
	}
	return merged
}

// storedInterests reads the interests list out of a channel context slice,
// tolerating the []any shape JSON decoding produces.
func storedInterests(slice identity.ChannelContext) []string {
	switch v := slice["interests"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func sortedChannels(m map[string]identity.ChannelContext) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
