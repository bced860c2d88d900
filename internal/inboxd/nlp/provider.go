// Package nlp provides the LLM-backed intent classification layer.
//
// The classifier sits between the fast-path matcher and the action binder.
// Its sole responsibility is translation: given a free-form command, the
// conversation so far, and the tool catalogue, produce either a direct
// natural-language reply or exactly one tool selection. It never executes
// anything itself.
//
// Invariants enforced at this layer:
//   - At most one tool selection per classification. When the upstream API
//     returns several tool-call candidates, the first is taken and the rest
//     are discarded, bounding every user turn to a single side effect.
//   - Transport and API failures surface as ErrUnavailable so the
//     dispatcher can degrade to a fallback reply instead of crashing.
//   - Malformed tool-call argument payloads surface as ErrArgumentDecode;
//     arguments are never silently dropped.
package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inboxai/inboxd/internal/inboxd/tools"
)

// ErrUnavailable is returned when the upstream LLM API cannot be reached
// or rejects the call (timeout, auth, malformed HTTP response). Callers
// must degrade to a fallback reply.
var ErrUnavailable = errors.New("nlp: classifier unavailable")

// ErrArgumentDecode is returned when a tool call's structured argument
// payload is not valid JSON.
var ErrArgumentDecode = errors.New("nlp: malformed tool-call arguments")

// DefaultReply is used when the model returns neither a tool call nor any
// text content.
const DefaultReply = "I'm not sure how to help with that yet. Could you try a more specific command?"

// Turn is a single prior message in the conversation, oldest-first in
// ClassifyRequest.History.
type Turn struct {
	// Role is "user" or "assistant".
	Role string
	// Content is the message text.
	Content string
}

// ClassifyRequest is the input to one classification call.
type ClassifyRequest struct {
	// Command is the raw text of the current user command.
	Command string

	// History contains prior turns in chronological order. They are
	// injected between the system instruction and the current command so
	// the model has continuity. May be nil for a fresh conversation.
	History []Turn

	// Tools is the catalogue of capabilities the model may select from.
	Tools []tools.Descriptor

	// AmbientContext is optional extra material (e.g. extracted attachment
	// text) appended to the system instruction.
	AmbientContext string
}

// ToolSelection names the single tool the model chose, with its decoded
// arguments.
type ToolSelection struct {
	Name      string
	Arguments map[string]any
}

// ClassifyResponse is the structured classification outcome. Exactly one
// of the two shapes applies: Selection == nil means Reply carries a direct
// natural-language answer; Selection != nil means the named tool should be
// executed (Reply is empty in that case).
type ClassifyResponse struct {
	Reply     string
	Selection *ToolSelection
}

// Provider classifies free-form commands. Implementations must be safe for
// concurrent use.
type Provider interface {
	Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error)
}

// decodeArguments decodes a raw JSON argument payload into a map. An empty
// payload decodes to nil (parameterless tools). Anything unparseable, or
// any JSON value that is not an object, reports ErrArgumentDecode.
func decodeArguments(raw string) (map[string]any, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArgumentDecode, err)
	}
	return args, nil
}
