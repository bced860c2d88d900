// Package config defines the versioned YAML assistant configuration.
//
// The file carries deployment choices that are not secrets: persona text,
// model selection, extra fast-path rules, and sender category overrides.
// Credentials stay in the environment.
package config

// SpecVersion is the API version string required in every config file.
const SpecVersion = "inboxd/v1"

// Config is the root type for an assistant configuration.
type Config struct {
	// APIVersion must be "inboxd/v1".
	APIVersion string `yaml:"apiVersion"`

	// Metadata holds descriptive metadata.
	Metadata Metadata `yaml:"metadata"`

	// Assistant configures the conversational surface.
	Assistant Assistant `yaml:"assistant,omitempty"`

	// LLM selects and configures the classifier backend.
	LLM LLM `yaml:"llm,omitempty"`

	// Fastpath lists extra deterministic rules evaluated after the
	// built-in ones.
	Fastpath []KeywordRule `yaml:"fastpath,omitempty"`

	// SenderCategories maps sender fragments to category names, extending
	// the built-in rules.
	SenderCategories map[string]string `yaml:"senderCategories,omitempty"`
}

// Metadata holds descriptive information about a configuration.
type Metadata struct {
	// Name identifies the deployment in logs.
	Name string `yaml:"name"`

	// Description is a human-readable description.
	Description string `yaml:"description,omitempty"`
}

// Assistant configures the conversational surface.
type Assistant struct {
	// Persona overrides the default persona block in the classifier's
	// system instruction.
	Persona string `yaml:"persona,omitempty"`

	// HistoryLimit bounds the turns loaded as classifier context.
	// 0 means the built-in default.
	HistoryLimit int `yaml:"historyLimit,omitempty"`
}

// LLM providers the classifier can run on.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// LLM selects the classifier backend. The API key itself comes from the
// environment, never from this file.
type LLM struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "gemini".
	// Defaults to "openai".
	Provider string `yaml:"provider,omitempty"`

	// BaseURL overrides the OpenAI-compatible endpoint.
	BaseURL string `yaml:"baseURL,omitempty"`

	// Model is the chat model to use.
	Model string `yaml:"model,omitempty"`
}

// KeywordRule is a configured fast-path rule: when the command contains
// any of the keywords, the named tool runs with the fixed arguments.
type KeywordRule struct {
	// Name identifies the rule in logs.
	Name string `yaml:"name"`

	// Contains lists the trigger substrings (matched case-insensitively).
	Contains []string `yaml:"contains"`

	// Tool is the registry name of the tool to execute.
	Tool string `yaml:"tool"`

	// Args are fixed arguments passed to the tool.
	Args map[string]any `yaml:"args,omitempty"`
}
