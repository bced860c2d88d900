package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultNLPBase  = "https://api.groq.com/openai/v1"
	defaultNLPModel = "llama-3.1-8b-instant"
	defaultTimeout  = 30 * time.Second
)

// Config configures the OpenAI-compatible NLP provider.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Useful for OpenAI proper, local
	// models (Ollama), or any other OpenAI-compatible endpoint.
	// Defaults to the Groq API when empty.
	BaseURL string

	// Model is the chat model to use. Defaults to llama-3.1-8b-instant
	// when empty (cheap and fast; tool selection does not need a frontier
	// model).
	Model string

	// Persona overrides the assistant persona in the system instruction.
	Persona string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// openAIProvider implements Provider using the OpenAI chat completions API
// with native tool calling (tools + tool_choice "auto").
type openAIProvider struct {
	cfg    Config
	client *http.Client
}

// New returns a Provider backed by an OpenAI-compatible chat API.
// The returned provider is safe for concurrent use.
func New(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultNLPBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultNLPModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &openAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiTool struct {
	Type     string      `json:"type"` // "function"
	Function oaiFunction `json:"function"`
}

type oaiFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type oaiRequest struct {
	Model      string       `json:"model"`
	Messages   []oaiMessage `json:"messages"`
	Tools      []oaiTool    `json:"tools,omitempty"`
	ToolChoice string       `json:"tool_choice,omitempty"`
	MaxTokens  int          `json:"max_tokens,omitempty"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiRespMessage `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

type oaiRespMessage struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	ToolCalls []oaiToolCall `json:"tool_calls,omitempty"`
}

type oaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
		// Arguments is a JSON object serialised as a string, per the
		// OpenAI wire format.
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// Classify sends the command, history, and tool catalogue to the LLM and
// returns either a direct reply or a single tool selection.
func (p *openAIProvider) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error) {
	system := BuildSystemInstruction(p.cfg.Persona, req.Tools, req.AmbientContext)

	messages := make([]oaiMessage, 0, len(req.History)+2)
	messages = append(messages, oaiMessage{Role: "system", Content: system})
	for _, turn := range req.History {
		messages = append(messages, oaiMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, oaiMessage{Role: "user", Content: req.Command})

	body := oaiRequest{
		Model:     p.cfg.Model,
		Messages:  messages,
		MaxTokens: 512,
	}
	for _, d := range req.Tools {
		body.Tools = append(body.Tools, oaiTool{
			Type: "function",
			Function: oaiFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Schema(),
			},
		})
	}
	if len(body.Tools) > 0 {
		body.ToolChoice = "auto"
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("nlp: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("nlp: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrUnavailable, err)
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("%w: decode API response (HTTP %d): %v", ErrUnavailable, resp.StatusCode, err)
	}

	if oaiResp.Error != nil {
		return nil, fmt.Errorf("%w: API error (%s): %s", ErrUnavailable, oaiResp.Error.Type, oaiResp.Error.Message)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned (HTTP %d)", ErrUnavailable, resp.StatusCode)
	}

	msg := oaiResp.Choices[0].Message

	// Take the first tool call only. Some models emit several; executing
	// more than one per user turn is never allowed.
	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0]
		args, err := decodeArguments(call.Function.Arguments)
		if err != nil {
			return nil, err
		}
		return &ClassifyResponse{
			Selection: &ToolSelection{
				Name:      call.Function.Name,
				Arguments: args,
			},
		}, nil
	}

	if msg.Content == "" {
		return &ClassifyResponse{Reply: DefaultReply}, nil
	}
	return &ClassifyResponse{Reply: msg.Content}, nil
}
