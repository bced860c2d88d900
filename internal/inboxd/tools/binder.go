package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/inboxai/inboxd/internal/inboxd/observability"
)

// Replies used by the binder when a tool cannot run. The dispatch cycle
// must keep producing well-formed Results, so every failure below is a
// reply, never an error to the caller.
const (
	UnknownToolReply     = "Sorry, I can't handle that request yet."
	InvalidArgumentReply = "Sorry, I couldn't make sense of the details in that request. Could you try again with a more specific command?"
	ExecutionFailedReply = "Sorry, something went wrong while doing that. Please try again."
)

// Binder maps tool names to bound actions for the duration of one request.
// The action set captures the caller's identity and provider handles, so a
// Binder must not be cached or shared across users.
type Binder struct {
	registry *Registry
	actions  map[string]Action
}

// NewBinder creates a Binder over the shared registry with the per-request
// action set.
func NewBinder(registry *Registry, actions map[string]Action) *Binder {
	return &Binder{registry: registry, actions: actions}
}

// Execute looks up the named action, validates the arguments against the
// registered schema, invokes the action, and normalises whatever comes
// back. All failure modes are absorbed into apologetic Results:
//
//   - unregistered name       → UnknownToolReply, nil data
//   - schema-invalid args     → InvalidArgumentReply, nil data
//   - action returned error   → ExecutionFailedReply, data {"error": cause}
//   - action panicked         → same as an error return
func (b *Binder) Execute(ctx context.Context, name string, args map[string]any) *Result {
	logger := observability.WithTrace(ctx)

	action, ok := b.actions[name]
	if !ok {
		logger.Warn("tool not registered", "tool", name)
		return &Result{Reply: UnknownToolReply}
	}

	if err := b.registry.ValidateArguments(name, args); err != nil {
		logger.Warn("tool arguments failed validation", "tool", name, "err", err)
		return &Result{Reply: InvalidArgumentReply}
	}

	value, err := b.invoke(ctx, action, args)
	if err != nil {
		logger.Error("tool execution failed", "tool", name, "err", err)
		return &Result{
			Reply: ExecutionFailedReply,
			Data:  map[string]any{"error": err.Error()},
		}
	}

	return Normalize(value)
}

// invoke runs the action with panic recovery so a misbehaving action cannot
// crash the dispatch cycle.
func (b *Binder) invoke(ctx context.Context, action Action, args map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return action.Invoke(ctx, args)
}

// Normalize coerces an action's return value into the Result contract:
//
//   - *Result            → as-is (nil becomes an empty Result)
//   - Result             → copied
//   - map[string]any     → "reply" (default "") and "data" (default nil) keys
//   - string             → {reply: s, data: nil}
//   - anything else      → {reply: fmt.Sprint(v), data: nil}
func Normalize(value any) *Result {
	switch v := value.(type) {
	case nil:
		return &Result{}
	case *Result:
		if v == nil {
			return &Result{}
		}
		return v
	case Result:
		return &v
	case map[string]any:
		out := &Result{}
		if reply, ok := v["reply"].(string); ok {
			out.Reply = reply
		}
		if data, ok := v["data"]; ok {
			out.Data = data
		}
		return out
	case string:
		return &Result{Reply: v}
	default:
		slog.Debug("normalising scalar tool result", "type", fmt.Sprintf("%T", value))
		return &Result{Reply: fmt.Sprint(v)}
	}
}
