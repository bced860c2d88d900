// Package draft generates email draft options: three alternative
// subject/body pairs for one writing intent, parsed out of a structured
// LLM response with deterministic fallbacks when the model misbehaves.
package draft

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/inboxai/inboxd/internal/inboxd/nlp"
	"github.com/inboxai/inboxd/internal/inboxd/observability"
)

// OptionCount is how many drafts one request always yields.
const OptionCount = 3

const drafterSystem = "You are a professional email writing assistant."

// Draft is one generated email option.
type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Request describes what to draft.
type Request struct {
	// Intent is what the email should accomplish, in the user's words.
	Intent string
	// Receiver is the recipient address.
	Receiver string
	// Tone defaults to "professional".
	Tone string
	// Context is optional extra material (e.g. the thread being replied to).
	Context string
}

// Drafter generates draft options through a completion client.
type Drafter struct {
	completer nlp.Completer
}

// NewDrafter creates a Drafter.
func NewDrafter(completer nlp.Completer) *Drafter {
	return &Drafter{completer: completer}
}

// Generate returns exactly OptionCount drafts. An LLM failure or a
// malformed response degrades to deterministic fallback drafts, never to
// an error.
func (d *Drafter) Generate(ctx context.Context, req Request) []Draft {
	if req.Tone == "" {
		req.Tone = "professional"
	}

	prompt := fmt.Sprintf(`Generate 3 email draft options with these specifications:

Recipient: %s
Intent: %s
Tone: %s
Additional context: %s

Please provide 3 different options, each with:
1. A subject line
2. The email body

Format your response as:
OPTION 1:
Subject: [subject here]
Body: [email body here]

OPTION 2:
Subject: [subject here]
Body: [email body here]

OPTION 3:
Subject: [subject here]
Body: [email body here]
`, req.Receiver, req.Intent, req.Tone, req.Context)

	content, err := d.completer.Complete(ctx, drafterSystem, prompt)
	if err != nil {
		observability.WithTrace(ctx).Warn("draft generation failed", "receiver", req.Receiver, "err", err)
		return fallbackDrafts(req)
	}

	drafts := parseOptions(content)
	for len(drafts) < OptionCount {
		drafts = append(drafts, Draft{
			Subject: "Follow up: " + truncate(req.Intent, 50),
			Body: fmt.Sprintf("Dear %s,\n\nThis is regarding: %s\n\nBest regards,\n[Your Name]",
				localPart(req.Receiver), req.Intent),
		})
	}
	return drafts[:OptionCount]
}

// parseOptions splits an OPTION n / Subject: / Body: formatted response
// into drafts. Lines after Body: accumulate into the body until the next
// OPTION marker.
func parseOptions(content string) []Draft {
	var drafts []Draft
	var current *Draft

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "OPTION"):
			if current != nil {
				drafts = append(drafts, *current)
			}
			current = &Draft{}
		case strings.HasPrefix(line, "Subject:"):
			if current != nil {
				current.Subject = strings.TrimSpace(strings.TrimPrefix(line, "Subject:"))
			}
		case strings.HasPrefix(line, "Body:"):
			if current != nil {
				current.Body = strings.TrimSpace(strings.TrimPrefix(line, "Body:"))
			}
		case current != nil && line != "":
			if current.Body != "" {
				current.Body += "\n" + line
			}
		}
	}
	if current != nil {
		drafts = append(drafts, *current)
	}
	return drafts
}

func fallbackDrafts(req Request) []Draft {
	intent := truncate(req.Intent, 50)
	name := localPart(req.Receiver)
	return []Draft{
		{
			Subject: "Regarding: " + intent,
			Body:    fmt.Sprintf("Hello,\n\n%s\n\nBest regards,\n[Your Name]", req.Intent),
		},
		{
			Subject: "Follow up: " + intent,
			Body:    fmt.Sprintf("Dear %s,\n\nI wanted to follow up about: %s\n\nSincerely,\n[Your Name]", name, req.Intent),
		},
		{
			Subject: "Quick update: " + intent,
			Body:    fmt.Sprintf("Hi,\n\nJust wanted to share: %s\n\nThanks,\n[Your Name]", req.Intent),
		},
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func localPart(addr string) string {
	if at := strings.Index(addr, "@"); at > 0 {
		return addr[:at]
	}
	return addr
}
