package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Model.Provider != ProviderStub {
		t.Errorf("expected default provider %q, got %q", ProviderStub, cfg.Model.Provider)
	}
	if cfg.Pipeline.HistoryLimit != 10 {
		t.Errorf("expected default history_limit 10, got %d", cfg.Pipeline.HistoryLimit)
	}
	if cfg.Pipeline.MaxConcurrent != 8 {
		t.Errorf("expected default max_concurrent 8, got %d", cfg.Pipeline.MaxConcurrent)
	}
	if cfg.Confirmation.TTLMS != 300000 {
		t.Errorf("expected default confirmation ttl_ms 300000, got %d", cfg.Confirmation.TTLMS)
	}
	if cfg.Confirmation.SweepMS != 60000 {
		t.Errorf("expected default confirmation sweep_ms 60000, got %d", cfg.Confirmation.SweepMS)
	}
	if cfg.Pipeline.Retrieval.SimilarityThreshold != 0.3 {
		t.Errorf("expected default similarity_threshold 0.3, got %f", cfg.Pipeline.Retrieval.SimilarityThreshold)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default server addr :8080, got %q", cfg.Server.Addr)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.apron-agent.yml")

	original := DefaultConfig()
	original.Model.Provider = ProviderOpenAI
	original.Model.CompletionID = "gpt-4o"
	original.Model.EmbeddingID = "text-embedding-3-large"
	original.Pipeline.HistoryLimit = 20
	original.Pipeline.Retrieval.MaxResults = 8
	original.Confirmation.TTLMS = 120000
	original.DatabasePath = "/var/lib/apron/agent.db"

	// Save.
	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Load back.
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify round-trip.
	if loaded.Model.Provider != original.Model.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Model.Provider, original.Model.Provider)
	}
	if loaded.Model.CompletionID != original.Model.CompletionID {
		t.Errorf("completion_id: got %q, want %q", loaded.Model.CompletionID, original.Model.CompletionID)
	}
	if loaded.Model.EmbeddingID != original.Model.EmbeddingID {
		t.Errorf("embedding_id: got %q, want %q", loaded.Model.EmbeddingID, original.Model.EmbeddingID)
	}
	if loaded.Pipeline.HistoryLimit != original.Pipeline.HistoryLimit {
		t.Errorf("history_limit: got %d, want %d", loaded.Pipeline.HistoryLimit, original.Pipeline.HistoryLimit)
	}
	if loaded.Pipeline.Retrieval.MaxResults != original.Pipeline.Retrieval.MaxResults {
		t.Errorf("max_results: got %d, want %d", loaded.Pipeline.Retrieval.MaxResults, original.Pipeline.Retrieval.MaxResults)
	}
	if loaded.Confirmation.TTLMS != original.Confirmation.TTLMS {
		t.Errorf("ttl_ms: got %d, want %d", loaded.Confirmation.TTLMS, original.Confirmation.TTLMS)
	}
	if loaded.DatabasePath != original.DatabasePath {
		t.Errorf("database_path: got %q, want %q", loaded.DatabasePath, original.DatabasePath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Model.Provider != ProviderStub {
		t.Errorf("expected default provider, got %q", cfg.Model.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Double underscore separates nesting levels.
	os.Setenv("APRON_MODEL__PROVIDER", "openai")
	os.Setenv("APRON_MODEL__TIMEOUT_MS", "45000")
	defer os.Unsetenv("APRON_MODEL__PROVIDER")
	defer os.Unsetenv("APRON_MODEL__TIMEOUT_MS")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Model.Provider != ProviderOpenAI {
		t.Errorf("env override failed: got %q, want %q", loaded.Model.Provider, ProviderOpenAI)
	}
	if loaded.Model.TimeoutMS != 45000 {
		t.Errorf("nested env override failed: got %d, want 45000", loaded.Model.TimeoutMS)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateInvalidProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.Provider = "invalid"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid provider")
	}
}

func TestValidateEmptyProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.Provider = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty provider")
	}
}

func TestValidateEmptyCompletionModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.CompletionID = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty completion_id")
	}
}

func TestValidateBadSimilarityThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Retrieval.SimilarityThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for out-of-range similarity_threshold")
	}
}

func TestValidateNonPositiveTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Confirmation.TTLMS = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero confirmation ttl_ms")
	}
}

func TestValidateNegativeRPMLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.RPMLimit = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative rpm_limit")
	}
}

func TestValidateEmptyDatabasePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DatabasePath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty database_path")
	}
}

func TestGetPreset(t *testing.T) {
	p := GetPreset(ProviderOpenAI)
	if p.CompletionID != "gpt-4o-mini" {
		t.Errorf("expected gpt-4o-mini, got %q", p.CompletionID)
	}

	p = GetPreset(ProviderOllama)
	if p.EmbeddingID != "nomic-embed-text" {
		t.Errorf("expected nomic-embed-text, got %q", p.EmbeddingID)
	}

	// Unknown provider falls back to the stub preset.
	p = GetPreset("unknown")
	if p.CompletionID != "stub" {
		t.Errorf("expected fallback to stub, got %q", p.CompletionID)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderOllama, ""},
		{ProviderStub, ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.provider)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestMonitorThresholdKeysRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	cfg.Monitor.Thresholds.RequestMS = 750
	cfg.Monitor.Thresholds.Goroutines = 5000
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Monitor.Thresholds.RequestMS != 750 {
		t.Errorf("request threshold: got %d, want 750", loaded.Monitor.Thresholds.RequestMS)
	}
	if loaded.Monitor.Thresholds.Goroutines != 5000 {
		t.Errorf("goroutines threshold: got %d, want 5000", loaded.Monitor.Thresholds.Goroutines)
	}
}
