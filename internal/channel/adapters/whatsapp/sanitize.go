// Package whatsapp is the WhatsApp Cloud API adapter: signed webhook
// ingestion, event normalization, wire payload rendering, and outbound
// delivery.
package whatsapp

import (
	"regexp"
	"strings"
)

// The channel renders markdown literally, so all markup is stripped from
// visible text before it is embedded in a payload. Bold runs before italic
// so ** pairs are not left as stray single stars.
var sanitizePatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile("```[^\n]*\n?"), ""},
	{regexp.MustCompile("`([^`\n]+)`"), "$1"},
	{regexp.MustCompile(`\*{3}([^*]+)\*{3}`), "$1"},
	{regexp.MustCompile(`\*{2}([^*]+)\*{2}`), "$1"},
	{regexp.MustCompile(`\b__([^_\n]+)__\b`), "$1"},
	{regexp.MustCompile(`\*([^*\n]+)\*`), "$1"},
	{regexp.MustCompile(`\b_([^_\n]+)_\b`), "$1"},
	{regexp.MustCompile(`~~([^~\n]+)~~`), "$1"},
	{regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`), "$1 ($2)"},
	{regexp.MustCompile(`(?m)^#{1,6}[ \t]+`), ""},
}

// Sanitize strips bold, italic, strikethrough, code, link, and header
// markup from text. Sanitizing an already-sanitized string is a no-op.
func Sanitize(text string) string {
	for _, p := range sanitizePatterns {
		text = p.re.ReplaceAllString(text, p.repl)
	}
	return strings.TrimSpace(text)
}
