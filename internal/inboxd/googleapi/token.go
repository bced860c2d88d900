// Package googleapi implements the Gmail and Google Calendar REST clients
// plus the OAuth refresh-token exchange that authenticates them.
package googleapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/inboxai/inboxd/common/redact"
	"github.com/inboxai/inboxd/common/retry"
	"github.com/inboxai/inboxd/internal/inboxd/observability"
)

const defaultTokenURL = "https://oauth2.googleapis.com/token"

// expirySlack is subtracted from a token's lifetime so we never hand out a
// token about to expire mid-request.
const expirySlack = 2 * time.Minute

// RefreshTokenSource looks up the long-lived refresh token for an
// identity. *store.UserStore satisfies this.
type RefreshTokenSource interface {
	RefreshToken(ctx context.Context, identity string) (string, error)
}

// TokenSource exchanges refresh tokens for short-lived access tokens and
// caches them per identity until shortly before expiry. Safe for
// concurrent use.
type TokenSource struct {
	clientID     string
	clientSecret string
	tokenURL     string
	refresh      RefreshTokenSource
	client       *http.Client
	now          func() time.Time

	mu    sync.Mutex
	cache map[string]cachedToken
}

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// TokenConfig configures a TokenSource.
type TokenConfig struct {
	ClientID     string
	ClientSecret string

	// TokenURL overrides the Google OAuth token endpoint, for tests.
	TokenURL string

	// Timeout is the HTTP request timeout. Defaults to 15 s.
	Timeout time.Duration
}

// NewTokenSource creates a TokenSource over the given refresh-token store.
func NewTokenSource(cfg TokenConfig, refresh RefreshTokenSource) *TokenSource {
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &TokenSource{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     cfg.TokenURL,
		refresh:      refresh,
		client:       &http.Client{Timeout: cfg.Timeout},
		now:          time.Now,
		cache:        map[string]cachedToken{},
	}
}

// AccessToken returns a valid access token for the identity, exchanging
// the stored refresh token when the cache is cold or stale.
func (ts *TokenSource) AccessToken(ctx context.Context, identity string) (string, error) {
	ts.mu.Lock()
	cached, ok := ts.cache[identity]
	ts.mu.Unlock()
	if ok && ts.now().Before(cached.expiresAt) {
		return cached.accessToken, nil
	}

	refreshToken, err := ts.refresh.RefreshToken(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("googleapi: refresh token for %s: %w", identity, err)
	}

	var token cachedToken
	err = retry.Do(ctx, retry.DefaultConfig, func() error {
		var exchangeErr error
		token, exchangeErr = ts.exchange(ctx, refreshToken)
		return exchangeErr
	})
	if err != nil {
		observability.WithTrace(ctx).Error("token exchange failed",
			"identity", identity, "err", redact.Error(err, refreshToken))
		return "", fmt.Errorf("googleapi: token exchange: %w", err)
	}

	ts.mu.Lock()
	ts.cache[identity] = token
	ts.mu.Unlock()
	return token.accessToken, nil
}

func (ts *TokenSource) exchange(ctx context.Context, refreshToken string) (cachedToken, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {ts.clientID},
		"client_secret": {ts.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return cachedToken{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return cachedToken{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cachedToken{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return cachedToken{}, fmt.Errorf("token endpoint returned HTTP %d: %s", resp.StatusCode, body)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return cachedToken{}, fmt.Errorf("decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return cachedToken{}, fmt.Errorf("token response carried no access_token")
	}

	return cachedToken{
		accessToken: parsed.AccessToken,
		expiresAt:   ts.now().Add(time.Duration(parsed.ExpiresIn)*time.Second - expirySlack),
	}, nil
}
