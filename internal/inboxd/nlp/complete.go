package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Completer produces plain text from a prompt, without tool calling. The
// summariser, categoriser, and drafter all run on this interface so tests
// can substitute canned text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// completionClient implements Completer against an OpenAI-compatible chat
// completions API. It shares the Config defaults with the classifier
// provider: same endpoint, same key, same model.
type completionClient struct {
	cfg    Config
	client *http.Client
}

// NewCompleter returns a Completer backed by an OpenAI-compatible chat API.
// Safe for concurrent use.
func NewCompleter(cfg Config) Completer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultNLPBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultNLPModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &completionClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *completionClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := []oaiMessage{}
	if system != "" {
		messages = append(messages, oaiMessage{Role: "system", Content: system})
	}
	messages = append(messages, oaiMessage{Role: "user", Content: prompt})

	body := oaiRequest{
		Model:     c.cfg.Model,
		Messages:  messages,
		MaxTokens: 1000,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("nlp: marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("nlp: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response body: %v", ErrUnavailable, err)
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return "", fmt.Errorf("%w: decode API response (HTTP %d): %v", ErrUnavailable, resp.StatusCode, err)
	}
	if oaiResp.Error != nil {
		return "", fmt.Errorf("%w: API error (%s): %s", ErrUnavailable, oaiResp.Error.Type, oaiResp.Error.Message)
	}
	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned (HTTP %d)", ErrUnavailable, resp.StatusCode)
	}

	return strings.TrimSpace(oaiResp.Choices[0].Message.Content), nil
}
