// Package dispatch implements the command dispatch cycle: the single code
// path every user command flows through, from raw text to a well-formed
// result.
//
// The cycle runs in fixed order: fast-path match, intent classification,
// bound tool execution, normalisation, persistence. No error escapes a
// dispatch; every failure mode collapses into an apologetic reply so the
// conversational surface never sees a stack trace or an empty response.
package dispatch

import (
	"context"
	"errors"
	"strings"

	"github.com/inboxai/inboxd/internal/inboxd/fastpath"
	"github.com/inboxai/inboxd/internal/inboxd/nlp"
	"github.com/inboxai/inboxd/internal/inboxd/observability"
	"github.com/inboxai/inboxd/internal/inboxd/store"
	"github.com/inboxai/inboxd/internal/inboxd/tools"
)

// FailureReply is the uniform reply for any dispatch-level failure:
// classifier outage, malformed tool arguments from the model, storage
// trouble while loading history, or a panic anywhere in the cycle.
const FailureReply = "Something went wrong. Try again."

// EmptyCommandReply is returned for blank input without consuming a
// classifier call.
const EmptyCommandReply = "I didn't catch that. What would you like me to do?"

// DefaultHistoryLimit is how many recent turns are loaded as classifier
// context.
const DefaultHistoryLimit = 10

// ConversationStore is the slice of the store the dispatcher needs:
// appending turns and reading recent history.
type ConversationStore interface {
	Append(ctx context.Context, identity, role, content string) error
	History(ctx context.Context, identity string, limit int) ([]store.Turn, error)
}

// BinderFunc builds the per-request action binder for an identity. Actions
// capture the caller's provider handles (Gmail token, calendar client), so
// binders cannot be shared across users.
type BinderFunc func(identity string) *tools.Binder

// Dispatcher runs the dispatch cycle. Construct once and share; all fields
// are read-only after New.
type Dispatcher struct {
	registry      *tools.Registry
	matcher       *fastpath.Matcher
	classifier    nlp.Provider
	bind          BinderFunc
	conversations ConversationStore
	historyLimit  int
	ambient       string
}

// Options carries the dispatcher collaborators. Registry, Matcher,
// Classifier, Bind, and Conversations are required.
type Options struct {
	Registry      *tools.Registry
	Matcher       *fastpath.Matcher
	Classifier    nlp.Provider
	Bind          BinderFunc
	Conversations ConversationStore

	// HistoryLimit bounds the turns loaded as classifier context.
	// Defaults to DefaultHistoryLimit.
	HistoryLimit int

	// AmbientContext is extra material for the classifier's system
	// instruction (e.g. the user's timezone).
	AmbientContext string
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &Dispatcher{
		registry:      opts.Registry,
		matcher:       opts.Matcher,
		classifier:    opts.Classifier,
		bind:          opts.Bind,
		conversations: opts.Conversations,
		historyLimit:  opts.HistoryLimit,
		ambient:       opts.AmbientContext,
	}
}

// Dispatch runs one command through the full cycle and returns the result.
// It never returns an error and never returns nil: failures become
// FailureReply. Both conversation turns (the user's command, then the
// final reply) are persisted after the result is fully computed, on every
// path including failures.
func (d *Dispatcher) Dispatch(ctx context.Context, identity, command string) *tools.Result {
	ctx = observability.EnsureTraceID(ctx)
	logger := observability.WithTrace(ctx)

	result := d.run(ctx, identity, command)
	if result == nil {
		result = &tools.Result{Reply: FailureReply}
	}

	// User turn first, then assistant turn. A persistence failure is
	// logged but never alters the reply already computed.
	if err := d.conversations.Append(ctx, identity, store.RoleUser, command); err != nil {
		logger.Error("persist user turn", "identity", identity, "err", err)
	}
	if err := d.conversations.Append(ctx, identity, store.RoleAssistant, result.Reply); err != nil {
		logger.Error("persist assistant turn", "identity", identity, "err", err)
	}

	return result
}

// run produces the result for one command, with panic recovery so a bug in
// any stage still yields FailureReply.
func (d *Dispatcher) run(ctx context.Context, identity, command string) (result *tools.Result) {
	logger := observability.WithTrace(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatch panicked", "identity", identity, "panic", r)
			result = &tools.Result{Reply: FailureReply}
		}
	}()

	if strings.TrimSpace(command) == "" {
		return &tools.Result{Reply: EmptyCommandReply}
	}

	binder := d.bind(identity)

	// Stage 1: fast path. A hit short-circuits the classifier entirely.
	if match, ok := d.matcher.Match(command); ok {
		logger.Info("fast path hit", "rule", match.Rule, "tool", match.Tool)
		if match.Reply != nil {
			return match.Reply
		}
		return binder.Execute(ctx, match.Tool, match.Args)
	}

	// Stage 2: classification, with recent history as context.
	history, err := d.conversations.History(ctx, identity, d.historyLimit)
	if err != nil {
		logger.Error("load history", "identity", identity, "err", err)
		history = nil
	}

	resp, err := d.classifier.Classify(ctx, nlp.ClassifyRequest{
		Command:        command,
		History:        toTurns(history),
		Tools:          d.registry.Descriptors(),
		AmbientContext: d.ambient,
	})
	if err != nil {
		// Malformed tool-call arguments mean the model reached for a
		// capability it could not use; answer as if the tool did not
		// exist rather than as an outage.
		if errors.Is(err, nlp.ErrArgumentDecode) {
			logger.Warn("tool arguments undecodable", "identity", identity, "err", err)
			return &tools.Result{Reply: tools.UnknownToolReply}
		}
		logger.Error("classification failed", "identity", identity, "err", err)
		return &tools.Result{Reply: FailureReply}
	}

	if resp.Selection == nil {
		logger.Info("conversational reply", "identity", identity)
		return &tools.Result{Reply: resp.Reply}
	}

	// Stage 3: bound execution of the single selected tool.
	logger.Info("tool selected", "identity", identity, "tool", resp.Selection.Name)
	return binder.Execute(ctx, resp.Selection.Name, resp.Selection.Arguments)
}

func toTurns(history []store.Turn) []nlp.Turn {
	if len(history) == 0 {
		return nil
	}
	turns := make([]nlp.Turn, len(history))
	for i, t := range history {
		turns[i] = nlp.Turn{Role: t.Role, Content: t.Content}
	}
	return turns
}
