// Package mail holds the email domain: message cleaning, summarisation,
// sender categorisation, and the tool actions that expose the mailbox to
// the dispatch cycle.
package mail

import (
	"regexp"
	"strings"
)

// Message is one email as seen by the assistant. Body is the decoded
// text/plain part; HTML-only messages arrive with an empty Body.
type Message struct {
	ID      string
	Sender  string
	Subject string
	Body    string
}

var (
	invisibleRunes = regexp.MustCompile(`\x{FEFF}|\x{2007}`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	ctaBoilerplate = regexp.MustCompile(`(?i)(tap to apply|click here|unsubscribe)`)
)

// Clean normalises an email body for LLM consumption: invisible runes
// become spaces, whitespace runs collapse, and call-to-action boilerplate
// is stripped.
func Clean(text string) string {
	text = invisibleRunes.ReplaceAllString(text, " ")
	text = whitespaceRuns.ReplaceAllString(text, " ")
	text = ctaBoilerplate.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
