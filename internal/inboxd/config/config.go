package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inboxai/inboxd/internal/inboxd/fastpath"
)

// Parse decodes a config YAML document and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	return Parse(data)
}

// Validate checks a Config for structural correctness. It returns the
// first validation error encountered, or nil if the config is valid.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config must not be nil")
	}

	if cfg.APIVersion != SpecVersion {
		return fmt.Errorf("apiVersion must be %q, got %q", SpecVersion, cfg.APIVersion)
	}
	if strings.TrimSpace(cfg.Metadata.Name) == "" {
		return fmt.Errorf("metadata.name must not be empty")
	}

	switch cfg.LLM.Provider {
	case "", ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q",
			ProviderOpenAI, ProviderGemini, cfg.LLM.Provider)
	}

	for i, rule := range cfg.Fastpath {
		if strings.TrimSpace(rule.Name) == "" {
			return fmt.Errorf("fastpath[%d]: name must not be empty", i)
		}
		if len(rule.Contains) == 0 {
			return fmt.Errorf("fastpath[%d] (%q): contains must not be empty", i, rule.Name)
		}
		if strings.TrimSpace(rule.Tool) == "" {
			return fmt.Errorf("fastpath[%d] (%q): tool must not be empty", i, rule.Name)
		}
	}

	for fragment, category := range cfg.SenderCategories {
		if strings.TrimSpace(fragment) == "" {
			return fmt.Errorf("senderCategories: fragment must not be empty")
		}
		if strings.TrimSpace(category) == "" {
			return fmt.Errorf("senderCategories[%q]: category must not be empty", fragment)
		}
	}

	return nil
}

// FastpathRules converts the configured keyword rules into matcher rules.
func (c *Config) FastpathRules() []fastpath.Rule {
	rules := make([]fastpath.Rule, 0, len(c.Fastpath))
	for _, kr := range c.Fastpath {
		kr := kr
		rules = append(rules, fastpath.Rule{
			Name: kr.Name,
			Matches: func(command string) bool {
				for _, keyword := range kr.Contains {
					if strings.Contains(command, strings.ToLower(keyword)) {
						return true
					}
				}
				return false
			},
			Resolve: func(string) fastpath.Match {
				return fastpath.Match{Tool: kr.Tool, Args: kr.Args}
			},
		})
	}
	return rules
}
