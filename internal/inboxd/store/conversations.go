package store

import (
	"context"
	"fmt"
	"time"
)

// Turn roles. Only these two appear in the conversation log; system
// instructions are assembled per request, never persisted.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one immutable role-tagged message in a user's conversation
// history, ordered oldest-first by insertion.
type Turn struct {
	Identity  string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Append records one conversation turn for identity. Turns are never
// updated or deleted afterwards.
func (s *Store) Append(ctx context.Context, identity, role, content string) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("store: invalid turn role %q", role)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (identity, role, content) VALUES (?, ?, ?)",
		identity, role, content,
	)
	if err != nil {
		return fmt.Errorf("store: append turn: %w", err)
	}
	return nil
}

// History returns the most recent limit turns for identity in
// chronological (oldest-first) order. A limit of zero or less returns an
// empty slice.
//
// The query selects newest-first on the autoincrement id (stable even when
// two turns share a CURRENT_TIMESTAMP second) and reverses in memory.
func (s *Store) History(ctx context.Context, identity string, limit int) ([]Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at
		FROM conversations
		WHERE identity = ?
		ORDER BY id DESC
		LIMIT ?`,
		identity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query history: %w", err)
	}
	defer rows.Close()

	var newestFirst []Turn
	for rows.Next() {
		t := Turn{Identity: identity}
		var createdAt string
		if err := rows.Scan(&t.Role, &t.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan turn: %w", err)
		}
		t.CreatedAt = parseTimestamp(createdAt)
		newestFirst = append(newestFirst, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate history: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(newestFirst)-1; i < j; i, j = i+1, j-1 {
		newestFirst[i], newestFirst[j] = newestFirst[j], newestFirst[i]
	}
	return newestFirst, nil
}

// parseTimestamp decodes SQLite's CURRENT_TIMESTAMP text format, falling
// back to RFC 3339. A zero time is returned for unparseable values rather
// than failing a read.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
