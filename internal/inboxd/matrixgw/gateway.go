// Package matrixgw bridges Matrix rooms to the dispatcher: every text
// message in an allowed room becomes a command, and the dispatch result is
// posted back as the reply.
package matrixgw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/inboxai/inboxd/common/trace"
	"github.com/inboxai/inboxd/internal/inboxd/observability"
	"github.com/inboxai/inboxd/internal/inboxd/tools"
)

// Dispatcher is the slice of the dispatch layer the gateway needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, identity, command string) *tools.Result
}

// Config holds gateway configuration.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string

	// Rooms lists the Matrix room IDs the gateway listens in.
	Rooms []string

	// Identities maps a Matrix sender MXID to the account identity the
	// Google tokens are stored under. Senders not in the map use their
	// MXID as identity.
	Identities map[string]string
}

// Gateway is the Matrix transport adapter.
type Gateway struct {
	client     *mautrix.Client
	cfg        Config
	dispatcher Dispatcher
	stopCh     chan struct{}
}

// New creates a Gateway.
func New(cfg Config, dispatcher Dispatcher) (*Gateway, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrixgw: create client: %w", err)
	}
	return &Gateway{
		client:     client,
		cfg:        cfg,
		dispatcher: dispatcher,
		stopCh:     make(chan struct{}),
	}, nil
}

// Start joins the configured rooms and begins syncing in the background,
// reconnecting with exponential back-off on transient sync failures.
func (g *Gateway) Start(ctx context.Context) error {
	syncer := g.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, g.handleMessage)

	for _, roomID := range g.cfg.Rooms {
		if err := g.joinRoom(ctx, id.RoomID(roomID)); err != nil {
			return fmt.Errorf("matrixgw: join room %s: %w", roomID, err)
		}
	}

	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			backoff = backoffMin // reset before each attempt
			if err := g.client.Sync(); err != nil {
				select {
				case <-g.stopCh:
					return
				default:
				}
				slog.Error("matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
				select {
				case <-g.stopCh:
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > backoffMax {
					backoff = backoffMax
				}
				continue
			}
			return
		}
	}()

	return nil
}

// Stop halts the sync loop.
func (g *Gateway) Stop() {
	close(g.stopCh)
	g.client.StopSync()
}

func (g *Gateway) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(g.cfg.UserID) {
		return
	}
	content := evt.Content.AsMessage()
	if content == nil || content.MsgType != event.MsgText {
		return
	}
	if !g.allowedRoom(evt.RoomID.String()) {
		return
	}

	ctx = trace.WithTraceID(ctx, trace.NewID())
	logger := observability.WithTrace(ctx)

	identity := g.identityFor(evt.Sender.String())
	logger.Info("matrix command received", "room", evt.RoomID, "sender", evt.Sender)

	if _, err := g.client.UserTyping(ctx, evt.RoomID, true, 30*time.Second); err != nil {
		logger.Debug("typing indicator failed", "err", err)
	}

	result := g.dispatcher.Dispatch(ctx, identity, content.Body)

	if _, err := g.client.UserTyping(ctx, evt.RoomID, false, 0); err != nil {
		logger.Debug("typing indicator failed", "err", err)
	}
	if _, err := g.client.SendText(ctx, evt.RoomID, result.Reply); err != nil {
		logger.Error("send reply", "room", evt.RoomID, "err", err)
	}
}

func (g *Gateway) allowedRoom(roomID string) bool {
	for _, allowed := range g.cfg.Rooms {
		if allowed == roomID {
			return true
		}
	}
	return false
}

func (g *Gateway) identityFor(sender string) string {
	if identity, ok := g.cfg.Identities[sender]; ok {
		return identity
	}
	return sender
}

func (g *Gateway) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := g.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		// Homeservers answer M_FORBIDDEN when the bot is already a member.
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("join room: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}
