package config

// ProviderType identifies a model provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
	// ProviderStub runs the agent fully offline with deterministic
	// placeholder completions.
	ProviderStub ProviderType = "stub"
)

// ModelConfig selects the completion and embedding models.
type ModelConfig struct {
	Provider     ProviderType `yaml:"provider" koanf:"provider"`
	CompletionID string       `yaml:"completion_id" koanf:"completion_id"`
	EmbeddingID  string       `yaml:"embedding_id" koanf:"embedding_id"`
	TimeoutMS    int          `yaml:"timeout_ms" koanf:"timeout_ms"`
	MaxRetries   int          `yaml:"max_retries" koanf:"max_retries"`
	// RPMLimit caps completion calls per minute. Zero disables the limiter.
	RPMLimit int `yaml:"rpm_limit" koanf:"rpm_limit"`
}

// RetrievalConfig tunes the vector path of knowledge retrieval.
type RetrievalConfig struct {
	MaxResults          int     `yaml:"max_results" koanf:"max_results"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" koanf:"similarity_threshold"`
}

// PipelineConfig tunes the agent pipeline.
type PipelineConfig struct {
	HistoryLimit  int             `yaml:"history_limit" koanf:"history_limit"`
	MaxConcurrent int             `yaml:"max_concurrent" koanf:"max_concurrent"`
	Retrieval     RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`
}

// ConfirmationConfig tunes the pending-action store.
type ConfirmationConfig struct {
	TTLMS   int `yaml:"ttl_ms" koanf:"ttl_ms"`
	SweepMS int `yaml:"sweep_ms" koanf:"sweep_ms"`
}

// MetricsConfig tunes performance metrics.
type MetricsConfig struct {
	HistogramBucketsMS []float64 `yaml:"histogram_buckets_ms" koanf:"histogram_buckets_ms"`
	SamplingMS         int       `yaml:"sampling_ms" koanf:"sampling_ms"`
	RetentionMS        int       `yaml:"retention_ms" koanf:"retention_ms"`
}

// MonitorThresholds are the alerting limits for resource sampling.
type MonitorThresholds struct {
	CPUPercent    float64 `yaml:"cpu" koanf:"cpu"`
	MemoryPercent float64 `yaml:"memory" koanf:"memory"`
	HeapBytes     uint64  `yaml:"heap" koanf:"heap"`
	EventLoopMS   int     `yaml:"event_loop" koanf:"event_loop"`
	RequestMS     int     `yaml:"request" koanf:"request"`
	Goroutines    int     `yaml:"goroutines" koanf:"goroutines"`
}

// MonitorConfig tunes the resource monitor.
type MonitorConfig struct {
	SampleMS   int               `yaml:"sample_ms" koanf:"sample_ms"`
	MaxSamples int               `yaml:"max_samples" koanf:"max_samples"`
	Thresholds MonitorThresholds `yaml:"thresholds" koanf:"thresholds"`
}

// WebhookConfig is one alert delivery target.
type WebhookConfig struct {
	URL         string `yaml:"url" koanf:"url"`
	MinSeverity string `yaml:"min_severity" koanf:"min_severity"`
}

// NotifyConfig tunes alert notification delivery.
type NotifyConfig struct {
	Webhooks []WebhookConfig `yaml:"webhooks" koanf:"webhooks"`
}

// ServerConfig tunes the HTTP adapter.
type ServerConfig struct {
	Addr string `yaml:"addr" koanf:"addr"`
}

// Config is the top-level agent configuration, corresponding to
// .apron-agent.yml.
type Config struct {
	Model        ModelConfig        `yaml:"model" koanf:"model"`
	Pipeline     PipelineConfig     `yaml:"pipeline" koanf:"pipeline"`
	Confirmation ConfirmationConfig `yaml:"confirmation" koanf:"confirmation"`
	Metrics      MetricsConfig      `yaml:"metrics" koanf:"metrics"`
	Monitor      MonitorConfig      `yaml:"monitor" koanf:"monitor"`
	Notify       NotifyConfig       `yaml:"notify" koanf:"notify"`
	Server       ServerConfig       `yaml:"server" koanf:"server"`
	DatabasePath string             `yaml:"database_path" koanf:"database_path"`
	DataDir      string             `yaml:"data_dir" koanf:"data_dir"`
}
