package config

import "github.com/apronworks/apron-agent/internal/metrics"

// ModelPreset describes the models to use for a given provider.
type ModelPreset struct {
	CompletionID string
	EmbeddingID  string
}

// modelPresets maps each provider to its recommended model choices.
var modelPresets = map[ProviderType]ModelPreset{
	ProviderOpenAI: {CompletionID: "gpt-4o-mini", EmbeddingID: "text-embedding-3-small"},
	ProviderOllama: {CompletionID: "llama3", EmbeddingID: "nomic-embed-text"},
	ProviderStub:   {CompletionID: "stub", EmbeddingID: "stub"},
}

// DefaultConfig returns a Config with sensible defaults. The stub
// provider keeps the agent usable without credentials.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:     ProviderStub,
			CompletionID: "stub",
			EmbeddingID:  "stub",
			TimeoutMS:    30000,
			MaxRetries:   2,
		},
		Pipeline: PipelineConfig{
			HistoryLimit:  10,
			MaxConcurrent: 8,
			Retrieval: RetrievalConfig{
				MaxResults:          5,
				SimilarityThreshold: 0.3,
			},
		},
		Confirmation: ConfirmationConfig{
			TTLMS:   300000,
			SweepMS: 60000,
		},
		Metrics: MetricsConfig{
			HistogramBucketsMS: append([]float64(nil), metrics.DefaultBuckets...),
			SamplingMS:         60000,
			RetentionMS:        86400000,
		},
		Monitor: MonitorConfig{
			SampleMS:   60000,
			MaxSamples: 1440,
			Thresholds: MonitorThresholds{
				CPUPercent:    85,
				MemoryPercent: 90,
			},
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		DatabasePath: "apron.db",
		DataDir:      ".apron",
	}
}

// GetPreset returns the model preset for the given provider. Returns
// the stub preset if the provider is not recognized.
func GetPreset(provider ProviderType) ModelPreset {
	if preset, ok := modelPresets[provider]; ok {
		return preset
	}
	return modelPresets[ProviderStub]
}
