// Package fastpath implements the deterministic rule layer that resolves
// high-frequency commands without an LLM round trip.
//
// Rules are declarative {predicate, resolver} records evaluated in
// declaration order; the first match wins. The matcher is read-only: it
// never calls the classifier or any external API, it only names the tool to
// execute (or returns a clarifying question when a required argument could
// not be extracted).
package fastpath

import (
	"strings"

	"github.com/inboxai/inboxd/internal/inboxd/tools"
)

// Match is the outcome of a successful rule match. Exactly one of Tool and
// Reply is set: Tool names the action the dispatcher should bind and
// execute with Args; Reply is a terminal result (e.g. a clarifying
// question) that short-circuits execution entirely.
type Match struct {
	Rule  string
	Tool  string
	Args  map[string]any
	Reply *tools.Result
}

// Rule is one ordered fast-path record.
type Rule struct {
	// Name identifies the rule in logs.
	Name string
	// Matches tests the lower-cased, trimmed command.
	Matches func(command string) bool
	// Resolve produces the match outcome for a command the rule accepted.
	Resolve func(command string) Match
}

// Matcher evaluates an ordered rule list.
type Matcher struct {
	rules []Rule
}

// NewMatcher returns a Matcher over the given rules. Earlier rules take
// priority on overlap.
func NewMatcher(rules []Rule) *Matcher {
	return &Matcher{rules: rules}
}

// Match normalises the command (lower-case, trimmed) and returns the first
// matching rule's outcome. The second return is false when no rule matched
// and control should pass to the classifier.
func (m *Matcher) Match(command string) (Match, bool) {
	normalized := strings.ToLower(strings.TrimSpace(command))
	if normalized == "" {
		return Match{}, false
	}
	for _, rule := range m.rules {
		if rule.Matches(normalized) {
			match := rule.Resolve(normalized)
			match.Rule = rule.Name
			return match, true
		}
	}
	return Match{}, false
}

// DefaultRules returns the built-in rule set, ordered by priority. On
// overlap ("unread emails from github") the earlier rule wins, so the
// broad inbox rules come before the sender lookup.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "unread-summary",
			Matches: contains("unread"),
			Resolve: constant("get_unread_emails_summary"),
		},
		{
			Name:    "last-email",
			Matches: contains("last email"),
			Resolve: constant("get_last_email_summary"),
		},
		{
			Name:    "sender-lookup",
			Matches: containsAny("email from", "emails from"),
			Resolve: resolveSenderLookup,
		},
		{
			Name:    "bulk-summarize",
			Matches: exactAny("summarize", "summarize them", "summarise", "summarise them"),
			Resolve: constant("get_unread_emails_summary"),
		},
		{
			Name:    "quick-meeting",
			Matches: containsAny("schedule", "meeting"),
			Resolve: func(command string) Match {
				return Match{
					Tool: "schedule_meeting",
					Args: map[string]any{"agenda": command},
				}
			},
		},
	}
}

// resolveSenderLookup extracts the sender term after the final "from" and
// strips everything that cannot appear in an address fragment. An empty
// extraction yields a clarifying question instead of a tool call.
func resolveSenderLookup(command string) Match {
	idx := strings.LastIndex(command, "from")
	sender := cleanSenderQuery(command[idx+len("from"):])
	if sender == "" {
		return Match{Reply: &tools.Result{
			Reply: "Which sender should I check? For example: \"emails from github\".",
		}}
	}
	return Match{
		Tool: "check_emails_from_sender",
		Args: map[string]any{"sender_query": sender},
	}
}

// cleanSenderQuery keeps only characters that can appear in a sender name,
// address, or domain fragment.
func cleanSenderQuery(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_' || r == '@' || r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func contains(substr string) func(string) bool {
	return func(command string) bool { return strings.Contains(command, substr) }
}

func containsAny(substrs ...string) func(string) bool {
	return func(command string) bool {
		for _, s := range substrs {
			if strings.Contains(command, s) {
				return true
			}
		}
		return false
	}
}

func exactAny(values ...string) func(string) bool {
	return func(command string) bool {
		for _, v := range values {
			if command == v {
				return true
			}
		}
		return false
	}
}

func constant(tool string) func(string) Match {
	return func(string) Match { return Match{Tool: tool} }
}
