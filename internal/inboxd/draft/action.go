package draft

import (
	"context"
	"fmt"
	"strings"

	"github.com/inboxai/inboxd/internal/inboxd/tools"
)

// ToolDraftOptions is the drafting tool's registry name.
const ToolDraftOptions = "draft_email_options"

// Descriptor returns the drafting tool descriptor.
func Descriptor() tools.Descriptor {
	return tools.Descriptor{
		Name:        ToolDraftOptions,
		Description: "Draft three alternative emails for the user to pick from.",
		Params: map[string]tools.Param{
			"intent": {
				Type:        "string",
				Description: "What the email should accomplish.",
				Required:    true,
			},
			"receiver": {
				Type:        "string",
				Description: "Recipient email address.",
				Required:    true,
			},
			"tone":    {Type: "string", Description: "Writing tone, e.g. professional, casual."},
			"context": {Type: "string", Description: "Extra material, e.g. the thread being replied to."},
		},
	}
}

// Action generates the three drafts and renders them as a numbered reply.
func Action(drafter *Drafter) tools.Action {
	return tools.ActionFunc(func(ctx context.Context, args map[string]any) (any, error) {
		req := Request{
			Intent:   stringArg(args, "intent"),
			Receiver: stringArg(args, "receiver"),
			Tone:     stringArg(args, "tone"),
			Context:  stringArg(args, "context"),
		}
		drafts := drafter.Generate(ctx, req)

		var sb strings.Builder
		sb.WriteString("Here are three drafts:\n")
		for i, d := range drafts {
			fmt.Fprintf(&sb, "\n%d. %s\n%s\n", i+1, d.Subject, d.Body)
		}
		return &tools.Result{
			Reply: sb.String(),
			Data:  map[string]any{"drafts": drafts},
		}, nil
	})
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
