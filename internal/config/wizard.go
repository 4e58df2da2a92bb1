package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .apron-agent.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to apron-agent! Let's configure your deployment.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select model provider",
		Items: []string{
			"openai — hosted models, requires OPENAI_API_KEY",
			"ollama — local models via an Ollama server",
			"stub   — offline deterministic responses",
		},
	}
	providerIdx, _, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	providers := []ProviderType{ProviderOpenAI, ProviderOllama, ProviderStub}
	provider := providers[providerIdx]

	preset := GetPreset(provider)
	cfg.Model.Provider = provider
	cfg.Model.CompletionID = preset.CompletionID
	cfg.Model.EmbeddingID = preset.EmbeddingID

	// 2. Completion model.
	modelPrompt := promptui.Prompt{
		Label:   "Completion model",
		Default: preset.CompletionID,
	}
	if cfg.Model.CompletionID, err = modelPrompt.Run(); err != nil {
		return nil, fmt.Errorf("completion model: %w", err)
	}

	// 3. Embedding model.
	embedPrompt := promptui.Prompt{
		Label:   "Embedding model",
		Default: preset.EmbeddingID,
	}
	if cfg.Model.EmbeddingID, err = embedPrompt.Run(); err != nil {
		return nil, fmt.Errorf("embedding model: %w", err)
	}

	// 4. Database path.
	dbPrompt := promptui.Prompt{
		Label:   "SQLite database path",
		Default: cfg.DatabasePath,
	}
	if cfg.DatabasePath, err = dbPrompt.Run(); err != nil {
		return nil, fmt.Errorf("database path: %w", err)
	}

	// 5. Server address.
	addrPrompt := promptui.Prompt{
		Label:   "HTTP listen address",
		Default: cfg.Server.Addr,
	}
	if cfg.Server.Addr, err = addrPrompt.Run(); err != nil {
		return nil, fmt.Errorf("listen address: %w", err)
	}

	// 6. Pipeline concurrency.
	concPrompt := promptui.Prompt{
		Label:   "Max concurrent queries",
		Default: strconv.Itoa(cfg.Pipeline.MaxConcurrent),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return fmt.Errorf("must be a positive integer")
			}
			return nil
		},
	}
	concStr, err := concPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("concurrency: %w", err)
	}
	cfg.Pipeline.MaxConcurrent, _ = strconv.Atoi(concStr)

	if provider == ProviderOpenAI {
		fmt.Println()
		fmt.Printf("Remember to export %s before starting the server.\n", APIKeyEnvVar(provider))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(DefaultPath); err != nil {
		return nil, err
	}
	fmt.Printf("\nConfiguration written to %s\n", DefaultPath)

	return cfg, nil
}
