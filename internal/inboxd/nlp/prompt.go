package nlp

import (
	"strings"

	"github.com/inboxai/inboxd/internal/inboxd/tools"
)

// DefaultPersona is the identity block prepended to every system
// instruction unless the deployment overrides it in configuration.
const DefaultPersona = "You are Inboxd, a friendly personal email and calendar assistant. " +
	"You help the user stay on top of their inbox and schedule. " +
	"Keep replies short, warm, and practical."

// usageExamples maps common phrasings to the tool the model should pick.
// The examples are embedded in the system instruction; models at the small
// end (8B class) select tools far more reliably with a few concrete
// phrase-to-tool pairs than with descriptions alone.
var usageExamples = []struct {
	Phrase string
	Tool   string
}{
	{"do I have any unread emails?", "get_unread_emails_summary"},
	{"what was my last email about?", "get_last_email_summary"},
	{"any emails from github?", "check_emails_from_sender"},
	{"send an email to alice@example.com", "send_email"},
	{"draft a reply to the last email", "draft_email_options"},
	{"set up a meeting with bob tomorrow at 3pm", "schedule_meeting"},
}

// BuildSystemInstruction assembles the system instruction for one
// classification call: persona, the tool catalogue, tool-selection rules,
// usage examples, and any ambient context.
//
// The tool schemas themselves travel in the API's native tools field; the
// catalogue block here only lists names and descriptions so the model can
// reason about capability coverage in plain text.
func BuildSystemInstruction(persona string, catalogue []tools.Descriptor, ambient string) string {
	if persona == "" {
		persona = DefaultPersona
	}

	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString("\n\nYou have the following tools available:\n")
	if len(catalogue) == 0 {
		sb.WriteString("(no tools registered)\n")
	}
	for _, d := range catalogue {
		sb.WriteString("- ")
		sb.WriteString(d.Name)
		sb.WriteString(": ")
		sb.WriteString(d.Description)
		sb.WriteString("\n")
	}

	sb.WriteString("\nRules:\n")
	sb.WriteString("1. When the user's request matches a tool, call that tool. Call at most ONE tool per message.\n")
	sb.WriteString("2. Never invent tool names; only use the tools listed above.\n")
	sb.WriteString("3. If no tool fits, answer conversationally in one or two sentences.\n")
	sb.WriteString("4. Never fabricate email contents, senders, or meeting details; use tools to look things up.\n")
	sb.WriteString("5. If a required detail is missing (e.g. a recipient address), ask a short clarifying question instead of guessing.\n")

	sb.WriteString("\nExamples of phrasing and the tool to use:\n")
	for _, ex := range usageExamples {
		sb.WriteString("- \"")
		sb.WriteString(ex.Phrase)
		sb.WriteString("\" -> ")
		sb.WriteString(ex.Tool)
		sb.WriteString("\n")
	}

	if ambient != "" {
		sb.WriteString("\nAdditional context:\n")
		sb.WriteString(ambient)
		sb.WriteString("\n")
	}

	return sb.String()
}
