package googleapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/inboxai/inboxd/internal/inboxd/mail"
)

const defaultGmailBase = "https://gmail.googleapis.com"

// GmailConfig configures the Gmail client.
type GmailConfig struct {
	// BaseURL overrides the Gmail API endpoint, for tests.
	BaseURL string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// Gmail is the Gmail REST client. Mailbox binds it to one identity.
type Gmail struct {
	base   string
	tokens *TokenSource
	client *http.Client
}

// NewGmail creates the Gmail client.
func NewGmail(cfg GmailConfig, tokens *TokenSource) *Gmail {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGmailBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Gmail{
		base:   cfg.BaseURL,
		tokens: tokens,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Mailbox returns the identity-bound mail.Provider.
func (g *Gmail) Mailbox(identity string) mail.Provider {
	return &gmailMailbox{gmail: g, identity: identity}
}

type gmailMailbox struct {
	gmail    *Gmail
	identity string
}

// --- Gmail wire types (the subset we touch) ---

type gmailMessageRef struct {
	ID string `json:"id"`
}

type gmailListResponse struct {
	Messages []gmailMessageRef `json:"messages"`
}

type gmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gmailBody struct {
	Data string `json:"data"`
}

type gmailPart struct {
	MimeType string    `json:"mimeType"`
	Body     gmailBody `json:"body"`
}

type gmailPayload struct {
	Headers []gmailHeader `json:"headers"`
	Body    gmailBody     `json:"body"`
	Parts   []gmailPart   `json:"parts"`
}

type gmailMessage struct {
	ID      string       `json:"id"`
	Payload gmailPayload `json:"payload"`
}

// Unread lists unread messages, optionally narrowed to a sender, and
// fetches each message's headers and text body.
func (m *gmailMailbox) Unread(ctx context.Context, q mail.Query) ([]mail.Message, error) {
	max := q.Max
	if max <= 0 {
		max = 10
	}

	params := url.Values{
		"labelIds":   {"UNREAD"},
		"maxResults": {strconv.Itoa(max)},
	}
	if q.Sender != "" {
		params.Set("q", "from:"+q.Sender)
	}

	var list gmailListResponse
	if err := m.gmail.get(ctx, m.identity, "/gmail/v1/users/me/messages?"+params.Encode(), &list); err != nil {
		return nil, fmt.Errorf("googleapi: list unread: %w", err)
	}

	messages := make([]mail.Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		var raw gmailMessage
		if err := m.gmail.get(ctx, m.identity, "/gmail/v1/users/me/messages/"+ref.ID+"?format=full", &raw); err != nil {
			return nil, fmt.Errorf("googleapi: fetch message %s: %w", ref.ID, err)
		}
		messages = append(messages, decodeMessage(raw))
	}
	return messages, nil
}

// Send delivers a plain-text email via messages.send.
func (m *gmailMailbox) Send(ctx context.Context, to, subject, body string) (string, error) {
	rfc822 := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body)
	payload := map[string]string{
		"raw": base64.URLEncoding.EncodeToString([]byte(rfc822)),
	}

	var sent gmailMessageRef
	if err := m.gmail.post(ctx, m.identity, "/gmail/v1/users/me/messages/send", payload, &sent); err != nil {
		return "", fmt.Errorf("googleapi: send email: %w", err)
	}
	return sent.ID, nil
}

// decodeMessage extracts sender, subject, and the text/plain body from the
// full message payload. Multipart messages use the first text/plain part;
// single-part messages use the payload body directly.
func decodeMessage(raw gmailMessage) mail.Message {
	msg := mail.Message{ID: raw.ID, Sender: "Unknown", Subject: "No Subject"}
	for _, h := range raw.Payload.Headers {
		switch h.Name {
		case "From":
			msg.Sender = h.Value
		case "Subject":
			msg.Subject = h.Value
		}
	}

	data := raw.Payload.Body.Data
	for _, part := range raw.Payload.Parts {
		if part.MimeType == "text/plain" && part.Body.Data != "" {
			data = part.Body.Data
			break
		}
	}
	if data != "" {
		decoded, err := decodeBody(data)
		if err != nil {
			slog.Warn("gmail body decode failed", "message_id", raw.ID, "err", err)
		} else {
			msg.Body = decoded
		}
	}
	return msg
}

// decodeBody decodes Gmail's base64url body data. The API emits unpadded
// base64url, but some messages arrive padded.
func decodeBody(data string) (string, error) {
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded), nil
	}
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func (g *Gmail) get(ctx context.Context, identity, path string, out any) error {
	return g.do(ctx, identity, http.MethodGet, path, nil, out)
}

func (g *Gmail) post(ctx context.Context, identity, path string, in, out any) error {
	return g.do(ctx, identity, http.MethodPost, path, in, out)
}

func (g *Gmail) do(ctx context.Context, identity, method, path string, in, out any) error {
	token, err := g.tokens.AccessToken(ctx, identity)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.base+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gmail returned HTTP %d: %s", resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
