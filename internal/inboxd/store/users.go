package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inboxai/inboxd/common/crypto"
)

// ErrUserNotFound is returned when no credentials exist for an identity.
var ErrUserNotFound = errors.New("store: user not found")

// UserStore persists per-user OAuth refresh tokens, sealed at rest with the
// process master key. It shares the Store's database connection.
type UserStore struct {
	store     *Store
	masterKey []byte
}

// Users returns a UserStore over s. masterKey must be a 32-byte AES key
// (crypto.ParseMasterKey).
func (s *Store) Users(masterKey []byte) *UserStore {
	return &UserStore{store: s, masterKey: masterKey}
}

// Save upserts the refresh token for identity.
func (u *UserStore) Save(ctx context.Context, identity, refreshToken string) error {
	sealed, err := crypto.EncryptString(u.masterKey, refreshToken)
	if err != nil {
		return fmt.Errorf("store: seal refresh token: %w", err)
	}
	_, err = u.store.db.ExecContext(ctx, `
		INSERT INTO users (identity, refresh_token, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (identity) DO UPDATE SET
			refresh_token = excluded.refresh_token,
			updated_at = CURRENT_TIMESTAMP`,
		identity, sealed,
	)
	if err != nil {
		return fmt.Errorf("store: save user: %w", err)
	}
	return nil
}

// RefreshToken returns the unsealed refresh token for identity, or
// ErrUserNotFound.
func (u *UserStore) RefreshToken(ctx context.Context, identity string) (string, error) {
	var sealed string
	err := u.store.db.QueryRowContext(ctx,
		"SELECT refresh_token FROM users WHERE identity = ?", identity,
	).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: query user: %w", err)
	}

	token, err := crypto.DecryptString(u.masterKey, sealed)
	if err != nil {
		return "", fmt.Errorf("store: unseal refresh token: %w", err)
	}
	return token, nil
}
