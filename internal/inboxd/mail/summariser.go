package mail

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/inboxai/inboxd/internal/inboxd/nlp"
	"github.com/inboxai/inboxd/internal/inboxd/observability"
)

const (
	summariserSystem = "You summarize emails into 2-3 natural sentences with brief context."

	// summaryBodyLimit bounds how much cleaned body text goes into the
	// prompt. Long newsletters add tokens without adding signal.
	summaryBodyLimit = 1200
)

// Summariser turns emails into short conversational summaries. A failed
// LLM call degrades to a deterministic summary built from the subject or a
// body preview, never to an error.
type Summariser struct {
	completer nlp.Completer
}

// NewSummariser creates a Summariser over the given completion client.
func NewSummariser(completer nlp.Completer) *Summariser {
	return &Summariser{completer: completer}
}

// Summarise produces a 2-3 sentence summary of the message.
func (s *Summariser) Summarise(ctx context.Context, msg Message) string {
	body := truncate(Clean(msg.Body), summaryBodyLimit)

	prompt := fmt.Sprintf(`Explain the email clearly in natural language in 2-3 sentences.

Rules:
- Do NOT mention formatting, bullet points, or email structure
- Do NOT quote the email
- No greetings or opinions

Instead:
- Say what the email is about
- Why it was sent
- Who sent it
- What the user is expected to do (if anything)

Sender: %s
Subject: %s

Email:
%s
`, msg.Sender, msg.Subject, body)

	summary, err := s.completer.Complete(ctx, summariserSystem, prompt)
	if err != nil {
		observability.WithTrace(ctx).Warn("email summarisation failed", "sender", msg.Sender, "err", err)
		return fallbackSummary(msg)
	}
	return strings.TrimSpace(summary)
}

// fallbackSummary builds a usable summary without the LLM.
func fallbackSummary(msg Message) string {
	body := Clean(msg.Body)
	switch {
	case body != "":
		preview := truncate(body, 80)
		return fmt.Sprintf("It's about %s...", strings.TrimSpace(preview))
	case msg.Subject != "":
		return fmt.Sprintf("Email about: %s", msg.Subject)
	default:
		return "Email received (couldn't read the content)"
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
