package nlp

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/inboxai/inboxd/internal/inboxd/tools"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures the Gemini-backed NLP provider.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API.
	APIKey string

	// Model defaults to gemini-2.0-flash when empty.
	Model string

	// Persona overrides the assistant persona in the system instruction.
	Persona string
}

// geminiProvider implements Provider using the Google Gemini API with
// native function calling.
type geminiProvider struct {
	cfg    GeminiConfig
	client *genai.Client
}

// NewGemini returns a Provider backed by the Gemini API. The returned
// provider is safe for concurrent use.
func NewGemini(ctx context.Context, cfg GeminiConfig) (Provider, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("nlp: gemini client: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	return &geminiProvider{cfg: cfg, client: gc}, nil
}

// Classify sends the command, history, and tool catalogue to Gemini and
// returns either a direct reply or a single tool selection.
func (p *geminiProvider) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: 512,
		Tools:           convertTools(req.Tools),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: BuildSystemInstruction(p.cfg.Persona, req.Tools, req.AmbientContext)}},
		},
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := "user"
		if turn.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Content}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.Command}},
	})

	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	// Take the first function call only; accumulate text parts as the
	// conversational reply otherwise.
	var reply string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			return &ClassifyResponse{
				Selection: &ToolSelection{
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
				},
			}, nil
		}
		if part.Text != "" {
			reply += part.Text
		}
	}

	if reply == "" {
		return &ClassifyResponse{Reply: DefaultReply}, nil
	}
	return &ClassifyResponse{Reply: reply}, nil
}

func convertTools(catalogue []tools.Descriptor) []*genai.Tool {
	if len(catalogue) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(catalogue))
	for i, d := range catalogue {
		decls[i] = &genai.FunctionDeclaration{
			Name:                 d.Name,
			Description:          d.Description,
			ParametersJsonSchema: d.Schema(),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
