package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is the conventional config file location.
const DefaultPath = ".apron-agent.yml"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (APRON_*). A double underscore in a
// variable name separates nesting levels, so APRON_MODEL__TIMEOUT_MS
// maps to model.timeout_ms.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables.
	if err := k.Load(env.Provider("APRON_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "APRON_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
	ProviderStub:   true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required")
	}
	if !validProviders[c.Model.Provider] {
		return fmt.Errorf("invalid model.provider %q: must be one of openai, ollama, stub", c.Model.Provider)
	}

	if c.Model.CompletionID == "" {
		return fmt.Errorf("model.completion_id is required")
	}

	if c.Model.TimeoutMS <= 0 {
		return fmt.Errorf("model.timeout_ms must be positive")
	}
	if c.Model.MaxRetries < 0 {
		return fmt.Errorf("model.max_retries must be non-negative")
	}
	if c.Model.RPMLimit < 0 {
		return fmt.Errorf("model.rpm_limit must be non-negative")
	}

	if c.Pipeline.HistoryLimit <= 0 {
		return fmt.Errorf("pipeline.history_limit must be positive")
	}
	if c.Pipeline.MaxConcurrent <= 0 {
		return fmt.Errorf("pipeline.max_concurrent must be positive")
	}
	if t := c.Pipeline.Retrieval.SimilarityThreshold; t < 0 || t > 1 {
		return fmt.Errorf("pipeline.retrieval.similarity_threshold must be in [0, 1]")
	}

	if c.Confirmation.TTLMS <= 0 {
		return fmt.Errorf("confirmation.ttl_ms must be positive")
	}
	if c.Confirmation.SweepMS <= 0 {
		return fmt.Errorf("confirmation.sweep_ms must be positive")
	}

	if c.Monitor.SampleMS <= 0 {
		return fmt.Errorf("monitor.sample_ms must be positive")
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
