package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/inboxai/inboxd/internal/inboxd/tools"
)

// Tool names the mail domain contributes to the registry.
const (
	ToolUnreadSummary = "get_unread_emails_summary"
	ToolLastEmail     = "get_last_email_summary"
	ToolSenderCheck   = "check_emails_from_sender"
	ToolSendEmail     = "send_email"
	ToolCategorise    = "categorise_email"
)

const (
	// unreadFetchLimit is how many unread messages one summary request
	// pulls from the provider.
	unreadFetchLimit = 10
	// unreadSummaryCount is how many of those get an LLM summary.
	unreadSummaryCount = 3
)

// Descriptors returns the mail tool descriptors for registry registration.
func Descriptors() []tools.Descriptor {
	return []tools.Descriptor{
		{
			Name:        ToolUnreadSummary,
			Description: "Summarise the user's unread emails (the three most recent).",
		},
		{
			Name:        ToolLastEmail,
			Description: "Summarise the most recent email in the inbox.",
		},
		{
			Name:        ToolSenderCheck,
			Description: "Check whether there are unread emails from a specific sender.",
			Params: map[string]tools.Param{
				"sender_query": {
					Type:        "string",
					Description: "Sender name, address, or domain fragment, e.g. \"github\".",
					Required:    true,
				},
			},
		},
		{
			Name:        ToolSendEmail,
			Description: "Send a plain-text email on the user's behalf.",
			Params: map[string]tools.Param{
				"to":      {Type: "string", Description: "Recipient email address.", Required: true},
				"subject": {Type: "string", Description: "Subject line.", Required: true},
				"body":    {Type: "string", Description: "Plain-text message body.", Required: true},
			},
		},
		{
			Name:        ToolCategorise,
			Description: "Assign an email to a category such as Primary, Promotions, or Updates.",
			Params: map[string]tools.Param{
				"sender":  {Type: "string", Description: "Sender address of the email.", Required: true},
				"subject": {Type: "string", Description: "Subject line of the email."},
				"body":    {Type: "string", Description: "Email body text."},
			},
		},
	}
}

// Actions builds the bound mail action set for one request.
func Actions(provider Provider, summariser *Summariser, categoriser *Categoriser) map[string]tools.Action {
	return map[string]tools.Action{
		ToolUnreadSummary: UnreadSummaryAction(provider, summariser),
		ToolLastEmail:     LastEmailAction(provider, summariser),
		ToolSenderCheck:   SenderCheckAction(provider),
		ToolSendEmail:     SendAction(provider),
		ToolCategorise:    CategoriseAction(categoriser),
	}
}

// UnreadSummaryAction summarises the most recent unread emails.
func UnreadSummaryAction(provider Provider, summariser *Summariser) tools.Action {
	return tools.ActionFunc(func(ctx context.Context, _ map[string]any) (any, error) {
		messages, err := provider.Unread(ctx, Query{Max: unreadFetchLimit})
		if err != nil {
			return nil, fmt.Errorf("mail: list unread: %w", err)
		}
		if len(messages) == 0 {
			return &tools.Result{Reply: "No unread emails 🎉"}, nil
		}

		limit := unreadSummaryCount
		if len(messages) < limit {
			limit = len(messages)
		}
		summaries := make([]string, 0, limit)
		for _, msg := range messages[:limit] {
			summaries = append(summaries, summariser.Summarise(ctx, msg))
		}
		return &tools.Result{
			Reply: strings.Join(summaries, "\n\n"),
			Data:  map[string]any{"unread_count": len(messages)},
		}, nil
	})
}

// LastEmailAction summarises the single most recent email.
func LastEmailAction(provider Provider, summariser *Summariser) tools.Action {
	return tools.ActionFunc(func(ctx context.Context, _ map[string]any) (any, error) {
		messages, err := provider.Unread(ctx, Query{Max: 1})
		if err != nil {
			return nil, fmt.Errorf("mail: fetch last email: %w", err)
		}
		if len(messages) == 0 {
			return &tools.Result{Reply: "No emails found."}, nil
		}
		return &tools.Result{Reply: summariser.Summarise(ctx, messages[0])}, nil
	})
}

// SenderCheckAction counts unread emails from the queried sender.
func SenderCheckAction(provider Provider) tools.Action {
	return tools.ActionFunc(func(ctx context.Context, args map[string]any) (any, error) {
		sender := stringArg(args, "sender_query")
		messages, err := provider.Unread(ctx, Query{Sender: sender, Max: unreadFetchLimit})
		if err != nil {
			return nil, fmt.Errorf("mail: check sender %q: %w", sender, err)
		}
		if len(messages) == 0 {
			return &tools.Result{Reply: fmt.Sprintf("You have no unread emails from %s.", sender)}, nil
		}

		subjects := make([]string, 0, len(messages))
		for _, msg := range messages {
			subjects = append(subjects, msg.Subject)
		}
		return &tools.Result{
			Reply: fmt.Sprintf("You have %d unread emails from %s.", len(messages), sender),
			Data:  map[string]any{"count": len(messages), "subjects": subjects},
		}, nil
	})
}

// SendAction delivers an email through the provider.
func SendAction(provider Provider) tools.Action {
	return tools.ActionFunc(func(ctx context.Context, args map[string]any) (any, error) {
		to := stringArg(args, "to")
		messageID, err := provider.Send(ctx, to, stringArg(args, "subject"), stringArg(args, "body"))
		if err != nil {
			return nil, fmt.Errorf("mail: send to %q: %w", to, err)
		}
		return &tools.Result{
			Reply: fmt.Sprintf("Email successfully sent to %s.", to),
			Data:  map[string]any{"message_id": messageID},
		}, nil
	})
}

// CategoriseAction assigns the described email to a category.
func CategoriseAction(categoriser *Categoriser) tools.Action {
	return tools.ActionFunc(func(ctx context.Context, args map[string]any) (any, error) {
		msg := Message{
			Sender:  stringArg(args, "sender"),
			Subject: stringArg(args, "subject"),
			Body:    stringArg(args, "body"),
		}
		category := categoriser.Categorise(ctx, msg)
		return &tools.Result{
			Reply: fmt.Sprintf("That email belongs in %s.", category),
			Data:  map[string]any{"category": category},
		}, nil
	})
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
