package mail

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/inboxai/inboxd/internal/inboxd/nlp"
	"github.com/inboxai/inboxd/internal/inboxd/observability"
)

// Categories an email can land in.
const (
	CategoryPrimary    = "Primary"
	CategoryPromotions = "Promotions"
	CategorySocial     = "Social"
	CategorySpam       = "Spam"
	CategoryUpdates    = "Updates"
	CategoryWork       = "Work"
	CategoryFinance    = "Finance"
)

// senderRule maps a sender substring to a category. Rules are checked in
// order so more specific fragments can be listed first.
type senderRule struct {
	fragment string
	category string
}

var defaultSenderRules = []senderRule{
	{"linkedin.com", CategoryPromotions},
	{"github.com", CategoryWork},
	{"google.com", CategoryUpdates},
	{"bank", CategoryFinance},
	{"no-reply", CategoryUpdates},
}

// CategoriseBySender applies the static sender rules. The second return is
// false when no rule matched and the caller should fall back to the LLM
// categoriser.
func CategoriseBySender(sender string) (string, bool) {
	sender = strings.ToLower(sender)
	for _, rule := range defaultSenderRules {
		if strings.Contains(sender, rule.fragment) {
			return rule.category, true
		}
	}
	return "", false
}

// Categoriser assigns a category to an email: static sender rules first,
// then an LLM pass constrained to the known category names. Failures
// degrade to CategoryPrimary.
type Categoriser struct {
	completer nlp.Completer
	rules     []senderRule
}

// NewCategoriser creates a Categoriser with the default sender rules.
func NewCategoriser(completer nlp.Completer) *Categoriser {
	return &Categoriser{completer: completer, rules: defaultSenderRules}
}

// Extend appends sender rules on top of the defaults. Fragments are added
// in sorted order so categorisation stays deterministic.
func (c *Categoriser) Extend(rules map[string]string) {
	fragments := make([]string, 0, len(rules))
	for fragment := range rules {
		fragments = append(fragments, fragment)
	}
	sort.Strings(fragments)
	for _, fragment := range fragments {
		c.rules = append(c.rules, senderRule{strings.ToLower(fragment), rules[fragment]})
	}
}

// Categorise returns the category for the message.
func (c *Categoriser) Categorise(ctx context.Context, msg Message) string {
	sender := strings.ToLower(msg.Sender)
	for _, rule := range c.rules {
		if strings.Contains(sender, rule.fragment) {
			return rule.category
		}
	}

	prompt := fmt.Sprintf(`Categorize the email into ONE category:
Primary, Promotions, Social, Spam, Updates

Sender: %s
Subject: %s
Body: %s

Respond with ONLY the category name.
`, msg.Sender, msg.Subject, Clean(msg.Body))

	raw, err := c.completer.Complete(ctx, "", prompt)
	if err != nil {
		observability.WithTrace(ctx).Warn("email categorisation failed", "sender", msg.Sender, "err", err)
		return CategoryPrimary
	}

	category := strings.TrimSpace(raw)
	switch category {
	case CategoryPrimary, CategoryPromotions, CategorySocial, CategorySpam, CategoryUpdates:
		return category
	}
	return CategoryPrimary
}
