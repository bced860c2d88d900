package mail

import "context"

// Query narrows an unread-mail listing.
type Query struct {
	// Sender restricts results to messages from the given sender term
	// (name, address, or domain fragment). Empty means any sender.
	Sender string

	// Max caps the number of messages returned. Zero means the provider
	// default.
	Max int
}

// Provider is the mailbox access surface. The production implementation
// talks to the Gmail REST API; tests substitute a stub.
type Provider interface {
	// Unread lists unread messages matching the query, newest first.
	Unread(ctx context.Context, q Query) ([]Message, error)

	// Send delivers a plain-text email and returns the provider's message ID.
	Send(ctx context.Context, to, subject, body string) (string, error)
}
